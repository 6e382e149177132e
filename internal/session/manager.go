// Package session hosts live campaigns. Each loaded campaign is owned by a
// single actor goroutine; every reducer, combat and narration operation for
// that campaign funnels through its command queue, so state transitions are
// applied strictly in submission order.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/narration"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/platform/id"
	"github.com/loreforge/loreforge/internal/storage"
)

const defaultNarrationTimeout = 30 * time.Second

// Manager tracks which campaigns are live in this process and enforces the
// one-session-per-campaign rule.
type Manager struct {
	store       storage.Store
	narrator    narration.Client
	dice        dice.Source
	timeout     time.Duration
	clock       func() time.Time
	idGenerator func() (string, error)

	mu     sync.Mutex
	active map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithDice overrides the random source used by combat.
func WithDice(src dice.Source) Option {
	return func(m *Manager) { m.dice = src }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.idGenerator = gen }
}

// WithNarrationTimeout sets the watchdog deadline for narration round trips.
func WithNarrationTimeout(timeout time.Duration) Option {
	return func(m *Manager) { m.timeout = timeout }
}

// NewManager creates a Manager with default dependencies.
func NewManager(store storage.Store, narrator narration.Client, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		narrator:    narrator,
		dice:        dice.NewSource(time.Now().UnixNano()),
		timeout:     defaultNarrationTimeout,
		clock:       time.Now,
		idGenerator: id.NewID,
		active:      make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateCampaign creates and persists a new campaign aggregate.
func (m *Manager) CreateCampaign(ctx context.Context, input campaign.CreateInput) (campaign.CreateResult, error) {
	result, err := campaign.Create(input, m.clock, m.idGenerator)
	if err != nil {
		return campaign.CreateResult{}, err
	}
	if err := m.store.PutCampaign(ctx, result.Campaign); err != nil {
		return campaign.CreateResult{}, fmt.Errorf("persist campaign: %w", err)
	}
	return result, nil
}

// JoinCampaign verifies the join code, adds the character's owner to the
// party and persists both records. Joining a campaign with a live session is
// rejected; the session owns the campaign state exclusively.
func (m *Manager) JoinCampaign(ctx context.Context, campaignID, joinCode string, ch character.Character) error {
	m.mu.Lock()
	_, live := m.active[campaignID]
	m.mu.Unlock()
	if live {
		return apperrors.WithFields(apperrors.CodeSessionAlreadyActive,
			"campaign has a live session", map[string]string{"campaign_id": campaignID})
	}

	c, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("get campaign: %w", err)
	}
	if err := c.VerifyJoinCode(joinCode); err != nil {
		return err
	}
	c, err = c.AddPlayer(ch.ID)
	if err != nil {
		return err
	}
	if err := m.store.PutCampaign(ctx, c); err != nil {
		return fmt.Errorf("persist campaign: %w", err)
	}
	if err := m.store.PutCharacter(ctx, campaignID, ch); err != nil {
		return fmt.Errorf("persist character: %w", err)
	}
	return nil
}

// LoadSession materializes a live session for the campaign. At most one live
// session per campaign per process.
func (m *Manager) LoadSession(ctx context.Context, campaignID string) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.active[campaignID]; ok {
		m.mu.Unlock()
		return nil, apperrors.WithFields(apperrors.CodeSessionAlreadyActive,
			"session already active", map[string]string{"campaign_id": campaignID})
	}
	// Reserve the slot before loading so concurrent loads race on the map,
	// not on storage.
	m.active[campaignID] = nil
	m.mu.Unlock()

	c, err := m.store.GetCampaign(ctx, campaignID)
	if err != nil {
		m.release(campaignID)
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	party, err := m.store.ListCharacters(ctx, campaignID)
	if err != nil {
		m.release(campaignID)
		return nil, fmt.Errorf("load characters: %w", err)
	}

	s := newSession(m, campaign.NewState(c, party))

	m.mu.Lock()
	m.active[campaignID] = s
	m.mu.Unlock()

	go s.run()
	return s, nil
}

// Session returns the live session for a campaign, if any.
func (m *Manager) Session(campaignID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.active[campaignID]
	m.mu.Unlock()
	if !ok || s == nil {
		return nil, apperrors.WithFields(apperrors.CodeSessionNotLoaded,
			"session is not loaded", map[string]string{"campaign_id": campaignID})
	}
	return s, nil
}

func (m *Manager) release(campaignID string) {
	m.mu.Lock()
	delete(m.active, campaignID)
	m.mu.Unlock()
}

// Close exits every live session, flushing each to storage.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.active))
	for _, s := range m.active {
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Exit(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
