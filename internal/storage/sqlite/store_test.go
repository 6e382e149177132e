package sqlite

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
		PlayerIDs: []string{"alice"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testCampaign("camp-1")
	if err := store.PutCampaign(ctx, want); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}

	got, err := store.GetCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("GetCampaign() error = %v", err)
	}
	if got.Title != want.Title || got.OwnerID != want.OwnerID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.PlayerIDs) != 1 || got.PlayerIDs[0] != "alice" {
		t.Errorf("PlayerIDs = %v", got.PlayerIDs)
	}
	if !got.Map.IsRevealed(got.Map.PartyPos) {
		t.Error("map reveal set lost in round trip")
	}

	// Upsert overwrites in place.
	want.Title = "The Risen Vale"
	if err := store.PutCampaign(ctx, want); err != nil {
		t.Fatalf("PutCampaign() upsert error = %v", err)
	}
	got, err = store.GetCampaign(ctx, "camp-1")
	if err != nil {
		t.Fatalf("GetCampaign() error = %v", err)
	}
	if got.Title != "The Risen Vale" {
		t.Errorf("Title = %q after upsert", got.Title)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetCampaign(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCampaign(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListCampaignsByOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testCampaign("camp-1")
	second := testCampaign("camp-2")
	second.OwnerID = "owner-2"
	for _, c := range []campaign.Campaign{first, second} {
		if err := store.PutCampaign(ctx, c); err != nil {
			t.Fatalf("PutCampaign() error = %v", err)
		}
	}

	all, err := store.ListCampaigns(ctx, "")
	if err != nil {
		t.Fatalf("ListCampaigns() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListCampaigns() = %d rows, want 2", len(all))
	}

	mine, err := store.ListCampaigns(ctx, "owner-2")
	if err != nil {
		t.Fatalf("ListCampaigns(owner) error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "camp-2" {
		t.Errorf("ListCampaigns(owner-2) = %+v", mine)
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}

	ch := character.Character{
		ID:         "alice",
		OwnerID:    "owner-1",
		Name:       "Alice",
		Class:      "fighter",
		Level:      2,
		MaxHP:      20,
		CurrentHP:  13,
		ArmorClass: 15,
		Speed:      30,
		Conditions: map[character.Condition]bool{character.ConditionPoisoned: true},
	}
	if err := store.PutCharacter(ctx, "camp-1", ch); err != nil {
		t.Fatalf("PutCharacter() error = %v", err)
	}

	got, err := store.GetCharacter(ctx, "alice")
	if err != nil {
		t.Fatalf("GetCharacter() error = %v", err)
	}
	if got.CurrentHP != 13 || !got.HasCondition(character.ConditionPoisoned) {
		t.Errorf("got %+v", got)
	}

	party, err := store.ListCharacters(ctx, "camp-1")
	if err != nil {
		t.Fatalf("ListCharacters() error = %v", err)
	}
	if len(party) != 1 || party[0].ID != "alice" {
		t.Errorf("party = %+v", party)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	events := []campaign.Event{
		{Seq: 1, CampaignID: "camp-1", TurnID: 1, Type: campaign.EventPlayerAction, ActorID: "alice", Text: "searches the altar", Timestamp: now},
		{Seq: 2, CampaignID: "camp-1", TurnID: 1, Type: campaign.EventRollResult, ActorID: "alice", Text: "perception check",
			Roll: &campaign.RollDetail{Expression: "1d20+2", Rolls: []int{15}, Modifier: 2, Total: 17, Target: 12, Success: true}, Timestamp: now},
	}
	if err := store.AppendEvents(ctx, "camp-1", events); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}

	got, err := store.ListEvents(ctx, "camp-1", 0, 10)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListEvents() = %d events, want 2", len(got))
	}
	if got[1].Roll == nil || got[1].Roll.Total != 17 || !got[1].Roll.Success {
		t.Errorf("roll detail = %+v", got[1].Roll)
	}

	tail, err := store.ListEvents(ctx, "camp-1", 1, 10)
	if err != nil {
		t.Fatalf("ListEvents(after 1) error = %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Errorf("tail = %+v", tail)
	}
}

func TestAppendEventsDuplicateSeqConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}

	now := time.Now().UTC()
	evt := campaign.Event{Seq: 1, CampaignID: "camp-1", Type: campaign.EventSystem, Text: "x", Timestamp: now}
	if err := store.AppendEvents(ctx, "camp-1", []campaign.Event{evt}); err != nil {
		t.Fatalf("AppendEvents() error = %v", err)
	}
	err := store.AppendEvents(ctx, "camp-1", []campaign.Event{evt})
	if apperrors.CodeOf(err) != apperrors.CodeConflict {
		t.Errorf("duplicate append code = %v, want conflict", apperrors.CodeOf(err))
	}
}

func TestDeleteCampaignCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutCampaign(ctx, testCampaign("camp-1")); err != nil {
		t.Fatalf("PutCampaign() error = %v", err)
	}
	if err := store.PutCharacter(ctx, "camp-1", character.Character{ID: "alice", Name: "Alice", MaxHP: 1, CurrentHP: 1}); err != nil {
		t.Fatalf("PutCharacter() error = %v", err)
	}

	if err := store.DeleteCampaign(ctx, "camp-1"); err != nil {
		t.Fatalf("DeleteCampaign() error = %v", err)
	}
	if _, err := store.GetCharacter(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCharacter after cascade = %v, want ErrNotFound", err)
	}
	if err := store.DeleteCampaign(ctx, "camp-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteCampaign = %v, want ErrNotFound", err)
	}
}
