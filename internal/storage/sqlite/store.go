// Package sqlite implements the storage interfaces on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/platform/storage/sqlitemigrate"
	"github.com/loreforge/loreforge/internal/storage"
	"github.com/loreforge/loreforge/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens a SQLite store at the provided path and applies embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database. Nil-safe so callers can defer it in
// all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutCampaign upserts the campaign aggregate as a JSON payload plus indexed
// columns.
func (s *Store) PutCampaign(ctx context.Context, c campaign.Campaign) error {
	if c.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal campaign: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO campaigns (id, title, owner_id, data, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    data = excluded.data,
    updated_at_ms = excluded.updated_at_ms`,
		c.ID, c.Title, c.OwnerID, string(data), toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put campaign %s: %w", c.ID, err)
	}
	return nil
}

// GetCampaign loads one campaign aggregate.
func (s *Store) GetCampaign(ctx context.Context, campaignID string) (campaign.Campaign, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT data FROM campaigns WHERE id = ?", campaignID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Campaign{}, fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
	}
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("get campaign %s: %w", campaignID, err)
	}
	var c campaign.Campaign
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return campaign.Campaign{}, fmt.Errorf("unmarshal campaign %s: %w", campaignID, err)
	}
	return c, nil
}

// ListCampaigns lists campaigns, optionally filtered by owner.
func (s *Store) ListCampaigns(ctx context.Context, ownerID string) ([]storage.CampaignSummary, error) {
	query := "SELECT id, title, owner_id FROM campaigns ORDER BY created_at_ms"
	args := []any{}
	if ownerID != "" {
		query = "SELECT id, title, owner_id FROM campaigns WHERE owner_id = ? ORDER BY created_at_ms"
		args = append(args, ownerID)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []storage.CampaignSummary
	for rows.Next() {
		var summary storage.CampaignSummary
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.OwnerID); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// DeleteCampaign removes a campaign and, through foreign keys, its
// characters and events.
func (s *Store) DeleteCampaign(ctx context.Context, campaignID string) error {
	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM campaigns WHERE id = ?", campaignID)
	if err != nil {
		return fmt.Errorf("delete campaign %s: %w", campaignID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign %s: %w", campaignID, err)
	}
	if affected == 0 {
		return fmt.Errorf("campaign %s: %w", campaignID, storage.ErrNotFound)
	}
	return nil
}

// PutCharacter upserts a character under a campaign.
func (s *Store) PutCharacter(ctx context.Context, campaignID string, ch character.Character) error {
	if ch.ID == "" || campaignID == "" {
		return fmt.Errorf("character and campaign ids are required")
	}
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal character: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO characters (id, campaign_id, owner_id, name, data, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    data = excluded.data,
    updated_at_ms = excluded.updated_at_ms`,
		ch.ID, campaignID, ch.OwnerID, ch.Name, string(data), toMillis(ch.CreatedAt), toMillis(ch.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put character %s: %w", ch.ID, err)
	}
	return nil
}

// GetCharacter loads one character.
func (s *Store) GetCharacter(ctx context.Context, characterID string) (character.Character, error) {
	var data string
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT data FROM characters WHERE id = ?", characterID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return character.Character{}, fmt.Errorf("character %s: %w", characterID, storage.ErrNotFound)
	}
	if err != nil {
		return character.Character{}, fmt.Errorf("get character %s: %w", characterID, err)
	}
	var ch character.Character
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return character.Character{}, fmt.Errorf("unmarshal character %s: %w", characterID, err)
	}
	return ch, nil
}

// ListCharacters loads a campaign's party in creation order.
func (s *Store) ListCharacters(ctx context.Context, campaignID string) ([]character.Character, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT data FROM characters WHERE campaign_id = ? ORDER BY created_at_ms", campaignID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var out []character.Character
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan character row: %w", err)
		}
		var ch character.Character
		if err := json.Unmarshal([]byte(data), &ch); err != nil {
			return nil, fmt.Errorf("unmarshal character: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// AppendEvents appends a batch of journal entries in one transaction.
func (s *Store) AppendEvents(ctx context.Context, campaignID string, events []campaign.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	for _, evt := range events {
		var roll sql.NullString
		if evt.Roll != nil {
			data, err := json.Marshal(evt.Roll)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal roll detail: %w", err)
			}
			roll = sql.NullString{String: string(data), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO events (campaign_id, seq, turn_id, type, actor_id, text, roll, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			campaignID, evt.Seq, evt.TurnID, string(evt.Type), evt.ActorID, evt.Text, roll, toMillis(evt.Timestamp))
		if err != nil {
			_ = tx.Rollback()
			if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY KEY") {
				return apperrors.Wrap(apperrors.CodeConflict,
					fmt.Sprintf("event seq %d already exists for campaign %s", evt.Seq, campaignID), err)
			}
			return fmt.Errorf("append event seq %d: %w", evt.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append events: %w", err)
	}
	return nil
}

// ListEvents pages the journal forward from afterSeq.
func (s *Store) ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]campaign.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, turn_id, type, actor_id, text, roll, created_at_ms
FROM events WHERE campaign_id = ? AND seq > ?
ORDER BY seq LIMIT ?`, campaignID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []campaign.Event
	for rows.Next() {
		var (
			evt       campaign.Event
			eventType string
			roll      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&evt.Seq, &evt.TurnID, &eventType, &evt.ActorID, &evt.Text, &roll, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		evt.CampaignID = campaignID
		evt.Type = campaign.EventType(eventType)
		evt.Timestamp = time.UnixMilli(createdAt).UTC()
		if roll.Valid {
			detail := &campaign.RollDetail{}
			if err := json.Unmarshal([]byte(roll.String), detail); err != nil {
				return nil, fmt.Errorf("unmarshal roll detail: %w", err)
			}
			evt.Roll = detail
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}
