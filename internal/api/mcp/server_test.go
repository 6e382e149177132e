package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loreforge/loreforge/internal/narration"
	"github.com/loreforge/loreforge/internal/session"
	"github.com/loreforge/loreforge/internal/storage/sqlite"
)

type silentNarrator struct{}

func (silentNarrator) GenerateResponse(context.Context, narration.Request) (narration.Response, error) {
	return narration.Response{Narration: "The road stretches on."}, nil
}

func startTestClient(t *testing.T) *mcp.ClientSession {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	manager := session.NewManager(store, silentNarrator{})
	server := New(manager)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	clientSession, err := client.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = manager.Close(context.Background())
	})
	return clientSession
}

func callTool(t *testing.T, clientSession *mcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := clientSession.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result.IsError {
		t.Fatalf("call %s returned tool error: %+v", name, result.Content)
	}
	if out == nil {
		return
	}
	raw, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshal %s result: %v", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s result: %v", name, err)
	}
}

func TestListTools(t *testing.T) {
	clientSession := startTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tools, err := clientSession.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	want := map[string]bool{
		"create_campaign":       false,
		"join_campaign":         false,
		"load_session":          false,
		"exit_session":          false,
		"campaign_state":        false,
		"submit_player_action":  false,
		"start_combat":          false,
		"submit_combat_action":  false,
		"end_turn":              false,
		"force_reset_narration": false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestCampaignLifecycleOverMCP(t *testing.T) {
	clientSession := startTestClient(t)

	var created CampaignCreateResult
	callTool(t, clientSession, "create_campaign", map[string]any{
		"title":    "Emberfall",
		"owner_id": "alice",
	}, &created)
	if created.CampaignID == "" || created.JoinCode == "" {
		t.Fatalf("create result incomplete: %+v", created)
	}

	var joined JoinCampaignResult
	callTool(t, clientSession, "join_campaign", map[string]any{
		"campaign_id": created.CampaignID,
		"join_code":   created.JoinCode,
		"owner_id":    "alice",
		"name":        "Aria",
		"max_hp":      20,
		"armor_class": 14,
		"abilities": map[string]any{
			"strength": 16, "dexterity": 10, "constitution": 12,
			"intelligence": 10, "wisdom": 10, "charisma": 10,
		},
	}, &joined)
	if joined.CharacterID == "" {
		t.Fatal("join returned no character id")
	}

	var state StateResult
	callTool(t, clientSession, "load_session", map[string]any{
		"campaign_id": created.CampaignID,
	}, &state)
	if state.Mode != "exploration" {
		t.Errorf("mode = %q, want exploration", state.Mode)
	}
	if len(state.Party) != 1 || state.Party[0].Name != "Aria" {
		t.Errorf("party = %+v, want Aria", state.Party)
	}
	if state.TurnHolder != joined.CharacterID {
		t.Errorf("turn holder = %q, want %q", state.TurnHolder, joined.CharacterID)
	}

	callTool(t, clientSession, "submit_player_action", map[string]any{
		"campaign_id": created.CampaignID,
		"actor_id":    joined.CharacterID,
		"text":        "I follow the ember trail north",
	}, nil)

	// Wait for the narration round trip to land before acting again.
	deadline := time.Now().Add(2 * time.Second)
	for {
		callTool(t, clientSession, "campaign_state", map[string]any{
			"campaign_id": created.CampaignID,
		}, &state)
		narrated := false
		for _, event := range state.RecentEvents {
			if event.Type == "dm_narration" {
				narrated = true
			}
		}
		if narrated {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("narration never landed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A combat round trip: start, attack, resolve.
	var combatState StateResult
	callTool(t, clientSession, "start_combat", map[string]any{
		"campaign_id": created.CampaignID,
		"monsters": []map[string]any{{
			"name":        "Cinder Wolf",
			"max_hp":      8,
			"armor_class": 11,
			"dexterity":   12,
			"position":    map[string]any{"x": 1, "y": 0},
			"attacks": []map[string]any{{
				"name": "bite", "attack_bonus": 3,
				"damage_dice": 1, "damage_sides": 6, "damage_bonus": 1,
			}},
		}},
	}, &combatState)
	if combatState.Mode != "combat" {
		t.Errorf("mode = %q, want combat", combatState.Mode)
	}
	if len(combatState.InitiativeOrder) != 2 {
		t.Errorf("initiative order = %v, want 2 units", combatState.InitiativeOrder)
	}

	callTool(t, clientSession, "exit_session", map[string]any{
		"campaign_id": created.CampaignID,
	}, nil)

	// Exit is released: the session can load again.
	callTool(t, clientSession, "load_session", map[string]any{
		"campaign_id": created.CampaignID,
	}, &state)
	if state.Mode != "exploration" {
		t.Errorf("reloaded mode = %q, want exploration", state.Mode)
	}
}

func TestCampaignStateWithoutSession(t *testing.T) {
	clientSession := startTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "campaign_state",
		Arguments: map[string]any{"campaign_id": "nope"},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unloaded session")
	}
}
