package bbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
	"github.com/loreforge/loreforge/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCampaign(id string) campaign.Campaign {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	return campaign.Campaign{
		ID:        id,
		Title:     "The Sunken Vale",
		OwnerID:   "owner-1",
		Settings:  campaign.Settings{StartingLevel: 1, MaxPartySize: 5, Locale: "en"},
		Map:       campaign.NewMapState(10, 10),
		Clock:     campaign.NewWorldClock(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}
	got, err := store.GetCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("GetCampaign() error = %v", err)
	}
	if got.Title != "The Sunken Vale" {
		t.Errorf("Title = %q", got.Title)
	}

	if _, err := store.GetCampaign(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCampaign(missing) = %v, want ErrNotFound", err)
	}
}

func TestCharacterListByCampaign(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, pair := range []struct{ campaignID, charID string }{
		{"camp-1", "alice"}, {"camp-1", "bob"}, {"camp-2", "carol"},
	} {
		ch := character.Character{ID: pair.charID, Name: pair.charID, MaxHP: 10, CurrentHP: 10}
		if err := store.PutCharacter(ctx, pair.campaignID, ch); err != nil {
			t.Fatalf("PutCharacter(%s) error = %v", pair.charID, err)
		}
	}

	party, err := store.ListCharacters(ctx, "camp-1")
	if err != nil {
		t.Fatalf("ListCharacters() error = %v", err)
	}
	if len(party) != 2 {
		t.Errorf("party size = %d, want 2", len(party))
	}
}

func TestEventJournal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	events := []campaign.Event{
		{Seq: 1, CampaignID: "camp-1", Type: campaign.EventPlayerAction, Text: "a", Timestamp: now},
		{Seq: 2, CampaignID: "camp-1", Type: campaign.EventDMNarration, Text: "b", Timestamp: now},
		{Seq: 3, CampaignID: "camp-1", Type: campaign.EventSystem, Text: "c", Timestamp: now},
	}
	if err := store.AppendEvents(ctx, "camp-1", events); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}

	got, err := store.ListEvents(ctx, "camp-1", 1, 10)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Errorf("ListEvents(after 1) = %+v", got)
	}

	err = store.AppendEvents(ctx, "camp-1", []campaign.Event{{Seq: 2, Text: "dup", Timestamp: now}})
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("duplicate append code = %v, want conflict", apperrors.CodeOf(err))
	}
}

func TestDeleteCampaignRemovesChildren(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}
	if err := store.PutCharacter(ctx, "camp-1", character.Character{ID: "alice", Name: "Alice", MaxHP: 1, CurrentHP: 1}); err != nil {
		t.Fatalf("PutCharacter() error = %v", err)
	}
	if err := store.AppendEvents(ctx, "camp-1", []campaign.Event{{Seq: 1, Text: "x", Timestamp: time.Now()}}); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}

	if err := store.DeleteCampaign(ctx, "camp-1"); err != nil {
		t.Fatalf("DeleteCampaign() error = %v", err)
	}
	if _, err := store.GetCharacter(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("character survived campaign delete: %v", err)
	}
	events, err := store.ListEvents(ctx, "camp-1", 0, 10)
	if err != nil || len(events) != 0 {
		t.Errorf("events survived campaign delete: %v %v", events, err)
	}
}
