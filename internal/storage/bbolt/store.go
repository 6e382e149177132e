// Package bbolt implements the storage interfaces on a single-file BoltDB
// database. It trades the sqlite backend's SQL surface for zero external
// state, which suits embedded and test deployments.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/storage"
)

const (
	campaignBucket  = "campaigns"
	characterBucket = "characters"
	eventBucket     = "events"
)

// characterEnvelope pairs a character with its campaign for listing.
type characterEnvelope struct {
	CampaignID string              `json:"campaign_id"`
	Character  character.Character `json:"character"`
}

// Store provides a BoltDB-backed storage.Store.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{campaignBucket, characterBucket, eventBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database. Nil-safe.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutCampaign upserts a campaign aggregate.
func (s *Store) PutCampaign(_ context.Context, c campaign.Campaign) error {
	if c.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal campaign: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(campaignBucket)).Put([]byte(c.ID), data)
	})
}

// GetCampaign loads one campaign aggregate.
func (s *Store) GetCampaign(_ context.Context, campaignID string) (campaign.Campaign, error) {
	var c campaign.Campaign
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(campaignBucket)).Get([]byte(campaignID))
		if data == nil {
			return fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &c)
	})
	return c, err
}

// ListCampaigns lists campaigns, optionally filtered by owner.
func (s *Store) ListCampaigns(_ context.Context, ownerID string) ([]storage.CampaignSummary, error) {
	var out []storage.CampaignSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(campaignBucket)).ForEach(func(_, data []byte) error {
			var c campaign.Campaign
			if err := json.Unmarshal(data, &c); err != nil {
				return fmt.Errorf("unmarshal campaign: %w", err)
			}
			if ownerID != "" && c.OwnerID != ownerID {
				return nil
			}
			out = append(out, storage.CampaignSummary{ID: c.ID, Title: c.Title, OwnerID: c.OwnerID})
			return nil
		})
	})
	return out, err
}

// DeleteCampaign removes a campaign along with its characters and events.
func (s *Store) DeleteCampaign(_ context.Context, campaignID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		campaigns := tx.Bucket([]byte(campaignBucket))
		if campaigns.Get([]byte(campaignID)) == nil {
			return fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
		}
		if err := campaigns.Delete([]byte(campaignID)); err != nil {
			return err
		}

		characters := tx.Bucket([]byte(characterBucket))
		var stale [][]byte
		err := characters.ForEach(func(key, data []byte) error {
			var envelope characterEnvelope
			if err := json.Unmarshal(data, &envelope); err != nil {
				return err
			}
			if envelope.CampaignID == campaignID {
				stale = append(stale, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := characters.Delete(key); err != nil {
				return err
			}
		}

		events := tx.Bucket([]byte(eventBucket))
		if events.Bucket([]byte(campaignID)) != nil {
			return events.DeleteBucket([]byte(campaignID))
		}
		return nil
	})
}

// PutCharacter upserts a character under a campaign.
func (s *Store) PutCharacter(_ context.Context, campaignID string, ch character.Character) error {
	if ch.ID == "" || campaignID == "" {
		return fmt.Errorf("character and campaign ids are required")
	}
	data, err := json.Marshal(characterEnvelope{CampaignID: campaignID, Character: ch})
	if err != nil {
		return fmt.Errorf("marshal character: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(characterBucket)).Put([]byte(ch.ID), data)
	})
}

// GetCharacter loads one character.
func (s *Store) GetCharacter(_ context.Context, characterID string) (character.Character, error) {
	var envelope characterEnvelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(characterBucket)).Get([]byte(characterID))
		if data == nil {
			return fmt.Errorf("character %s: %w", characterID, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &envelope)
	})
	return envelope.Character, err
}

// ListCharacters loads a campaign's party.
func (s *Store) ListCharacters(_ context.Context, campaignID string) ([]character.Character, error) {
	var out []character.Character
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(characterBucket)).ForEach(func(_, data []byte) error {
			var envelope characterEnvelope
			if err := json.Unmarshal(data, &envelope); err != nil {
				return fmt.Errorf("unmarshal character: %w", err)
			}
			if envelope.CampaignID == campaignID {
				out = append(out, envelope.Character)
			}
			return nil
		})
	})
	return out, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// AppendEvents appends journal entries under the campaign's event bucket.
func (s *Store) AppendEvents(_ context.Context, campaignID string, events []campaign.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket([]byte(eventBucket)).CreateBucketIfNotExists([]byte(campaignID))
		if err != nil {
			return fmt.Errorf("create event bucket: %w", err)
		}
		for _, evt := range events {
			key := seqKey(evt.Seq)
			if bucket.Get(key) != nil {
				return apperrors.New(apperrors.CodeConflict,
					fmt.Sprintf("event seq %d already exists for campaign %s", evt.Seq, campaignID))
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListEvents pages the journal forward from afterSeq in sequence order.
func (s *Store) ListEvents(_ context.Context, campaignID string, afterSeq uint64, limit int) ([]campaign.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []campaign.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucket)).Bucket([]byte(campaignID))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for key, data := cursor.Seek(seqKey(afterSeq + 1)); key != nil && len(out) < limit; key, data = cursor.Next() {
			var evt campaign.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			out = append(out, evt)
		}
		return nil
	})
	return out, err
}
