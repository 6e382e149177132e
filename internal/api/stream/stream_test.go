package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/narration"
	"github.com/loreforge/loreforge/internal/session"
	bboltstore "github.com/loreforge/loreforge/internal/storage/bbolt"
)

type silentNarrator struct{}

func (silentNarrator) GenerateResponse(context.Context, narration.Request) (narration.Response, error) {
	return narration.Response{Narration: "The wind howls."}, nil
}

func testFixture(t *testing.T) (*session.Manager, *httptest.Server, string) {
	t.Helper()

	store, err := bboltstore.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := session.NewManager(store, silentNarrator{})
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	ctx := context.Background()
	result, err := manager.CreateCampaign(ctx, campaign.CreateInput{Title: "Gloomharbor", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	hero, err := character.Create(character.CreateInput{
		OwnerID:    "alice",
		Name:       "Aria",
		MaxHP:      20,
		ArmorClass: 14,
		Abilities:  character.AbilityScores{Strength: 16, Dexterity: 10},
	}, nil, nil)
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	if err := manager.JoinCampaign(ctx, result.Campaign.ID, result.JoinCode, hero); err != nil {
		t.Fatalf("join campaign: %v", err)
	}

	server := httptest.NewServer(New(manager, store).Handler())
	t.Cleanup(server.Close)
	return manager, server, result.Campaign.ID
}

func TestHealth(t *testing.T) {
	_, server, _ := testFixture(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStateRequiresLiveSession(t *testing.T) {
	_, server, campaignID := testFixture(t)

	resp, err := http.Get(server.URL + "/campaigns/" + campaignID + "/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 without a live session", resp.StatusCode)
	}
}

func TestStateSnapshot(t *testing.T) {
	manager, server, campaignID := testFixture(t)
	ctx := context.Background()

	live, err := manager.LoadSession(ctx, campaignID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	defer live.Exit(ctx)

	resp, err := http.Get(server.URL + "/campaigns/" + campaignID + "/state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view stateView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Mode != "exploration" {
		t.Errorf("mode = %q, want exploration", view.Mode)
	}
	if len(view.Party) != 1 || view.Party[0].Name != "Aria" {
		t.Errorf("party = %+v, want Aria", view.Party)
	}
}

func TestEventsPagination(t *testing.T) {
	manager, server, campaignID := testFixture(t)
	ctx := context.Background()

	live, err := manager.LoadSession(ctx, campaignID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	actorID := firstPlayer(t, live)

	// Three actions produce at least three journal entries.
	for _, text := range []string{"I scout ahead", "I check for tracks", "I light a torch"} {
		if err := live.SubmitPlayerAction(ctx, actorID, text); err != nil {
			t.Fatalf("submit %q: %v", text, err)
		}
		waitForNarration(t, live, text)
	}
	if err := live.Exit(ctx); err != nil {
		t.Fatalf("exit: %v", err)
	}

	var total []uint64
	cursorToken := ""
	for page := 0; page < 10; page++ {
		url := server.URL + "/campaigns/" + campaignID + "/events?limit=2"
		if cursorToken != "" {
			url += "&cursor=" + cursorToken
		}
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get events: %v", err)
		}
		var result eventsPage
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		resp.Body.Close()
		for _, event := range result.Events {
			total = append(total, event.Seq)
		}
		if result.NextCursor == "" {
			break
		}
		cursorToken = result.NextCursor
	}

	if len(total) < 6 {
		t.Fatalf("paged %d events, want at least 6", len(total))
	}
	for i := 1; i < len(total); i++ {
		if total[i] <= total[i-1] {
			t.Fatalf("event sequences not increasing: %v", total)
		}
	}
}

func TestEventsRejectsBadCursor(t *testing.T) {
	_, server, campaignID := testFixture(t)

	resp, err := http.Get(server.URL + "/campaigns/" + campaignID + "/events?cursor=garbage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWebsocketStreamsKeyframes(t *testing.T) {
	manager, server, campaignID := testFixture(t)
	ctx := context.Background()

	live, err := manager.LoadSession(ctx, campaignID)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	defer live.Exit(ctx)
	actorID := firstPlayer(t, live)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/campaigns/" + campaignID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The first frame is the current state.
	var first frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read keyframe: %v", err)
	}
	if first.Type != "keyframe" || first.State.CampaignID != campaignID {
		t.Fatalf("first frame = %+v", first)
	}

	if err := live.SubmitPlayerAction(ctx, actorID, "I open the gate"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Subsequent frames carry the action and the narration.
	deadline := time.Now().Add(2 * time.Second)
	sawAction := false
	for !sawAction && time.Now().Before(deadline) {
		var next frame
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&next); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		for _, event := range next.Events {
			if strings.Contains(event.Text, "I open the gate") {
				sawAction = true
			}
		}
	}
	if !sawAction {
		t.Fatal("player action never streamed")
	}
}

func firstPlayer(t *testing.T, live *session.Session) string {
	t.Helper()
	state, err := live.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	holder := state.TurnHolder()
	if holder == "" {
		t.Fatal("no turn holder")
	}
	return holder
}

func waitForNarration(t *testing.T, live *session.Session, action string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, err := live.State(context.Background())
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if !thinking(state, action) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("narration for %q never landed", action)
}

// thinking reports whether the action's narration has not yet landed: the
// action event exists without a later dm_narration entry.
func thinking(state campaign.State, action string) bool {
	actionSeq := uint64(0)
	for _, event := range state.Events {
		if event.Type == campaign.EventPlayerAction && strings.Contains(event.Text, action) {
			actionSeq = event.Seq
		}
	}
	for _, event := range state.Events {
		if event.Type == campaign.EventDMNarration && event.Seq > actionSeq {
			return false
		}
	}
	return true
}
