// Package storage defines the persistence interfaces for the campaign
// engine.
//
// Implementations live in subpackages: sqlite is the default backend and
// bbolt is a single-file alternative for embedded deployments. Both serve
// the same interfaces, so the session layer never knows which driver backs
// it.
package storage

import (
	"context"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing. Implementations wrap
// it so callers can match with errors.Is.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// CampaignSummary is a listing row without the full aggregate.
type CampaignSummary struct {
	ID      string
	Title   string
	OwnerID string
}

// CampaignStore persists campaign aggregates.
type CampaignStore interface {
	PutCampaign(ctx context.Context, c campaign.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error)
	ListCampaigns(ctx context.Context, ownerID string) ([]CampaignSummary, error)
	DeleteCampaign(ctx context.Context, campaignID string) error
}

// CharacterStore persists characters keyed by campaign membership.
type CharacterStore interface {
	PutCharacter(ctx context.Context, campaignID string, ch character.Character) error
	GetCharacter(ctx context.Context, characterID string) (character.Character, error)
	ListCharacters(ctx context.Context, campaignID string) ([]character.Character, error)
}

// EventStore is the append-only campaign journal. Sequence numbers are
// assigned by the reducer before events reach the store; appending a
// sequence that already exists is a conflict.
type EventStore interface {
	AppendEvents(ctx context.Context, campaignID string, events []campaign.Event) error
	ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]campaign.Event, error)
}

// Store bundles everything a session needs to load and persist a campaign.
type Store interface {
	CampaignStore
	CharacterStore
	EventStore
	Close() error
}
