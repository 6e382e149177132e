package narration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{Model: "gpt-test"}); err == nil {
		t.Error("NewOpenAIClient() without api key succeeded")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"}); err == nil {
		t.Error("NewOpenAIClient() without model succeeded")
	}
}

func TestGenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Model string           `json:"model"`
			Input string           `json:"input"`
			Tools []toolDefinition `json:"tools"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-test" {
			t.Errorf("model = %q", body.Model)
		}
		if !strings.Contains(body.Input, "swings at the goblin") {
			t.Errorf("input missing player action: %q", body.Input)
		}
		if len(body.Tools) == 0 {
			t.Error("request carries no tools")
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{
					"type": "message",
					"content": []map[string]any{
						{"type": "output_text", "text": "Your blade bites deep."},
					},
				},
				{
					"type":      "function_call",
					"name":      "deal_damage",
					"arguments": `{"target_id":"gob-1","amount":6}`,
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		ResponsesURL: server.URL,
		APIKey:       "sk-test",
		Model:        "gpt-test",
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	res, err := client.GenerateResponse(context.Background(), Request{
		Snapshot:     Snapshot{Title: "Vale", Mode: "combat", Round: 1},
		PlayerAction: "swings at the goblin",
		ActorName:    "Hero",
	})
	if err != nil {
		t.Fatalf("GenerateResponse() error = %v", err)
	}
	if res.Narration != "Your blade bites deep." {
		t.Errorf("Narration = %q", res.Narration)
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Name != "deal_damage" {
		t.Fatalf("ToolCalls = %+v, want one deal_damage", res.ToolCalls)
	}
	var args struct {
		TargetID string `json:"target_id"`
		Amount   int    `json:"amount"`
	}
	if err := json.Unmarshal(res.ToolCalls[0].Args, &args); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if args.TargetID != "gob-1" || args.Amount != 6 {
		t.Errorf("args = %+v", args)
	}
}

func TestGenerateResponseServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{
		ResponsesURL: server.URL,
		APIKey:       "sk-test",
		Model:        "gpt-test",
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	_, err = client.GenerateResponse(context.Background(), Request{})
	if apperrors.CodeOf(err) != apperrors.CodeNarrationFailed {
		t.Errorf("error code = %v, want narration failed", apperrors.CodeOf(err))
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(Request{
		Snapshot: Snapshot{
			Title:     "Vale",
			Mode:      "exploration",
			Day:       2,
			TimeOfDay: "dusk",
			Weather:   "rain",
			Characters: []CharacterSnapshot{
				{ID: "hero", Name: "Hero", Class: "fighter", Level: 1, CurrentHP: 14, MaxHP: 20, Conditions: []string{"poisoned"}},
			},
			Quests: []QuestSnapshot{{ID: "q1", Title: "Find the relic", Status: "active"}},
		},
		RecentEvents: []string{"[player_action] Hero searches the room"},
		PlayerAction: "opens the chest",
		ActorName:    "Hero",
		Locale:       "pt-BR",
	})

	for _, want := range []string{
		"Campaign: Vale",
		"day 2, dusk, rain",
		"Hero (fighter 1) 14/20 hp [poisoned]",
		"Find the relic [active]",
		"Hero searches the room",
		"Hero attempts: opens the chest",
		"locale pt-BR",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestBuildPromptOpeningScene(t *testing.T) {
	prompt := BuildPrompt(Request{Snapshot: Snapshot{Title: "Vale", Mode: "exploration"}})
	if !strings.Contains(prompt, "Set the opening scene.") {
		t.Errorf("prompt missing opening-scene instruction:\n%s", prompt)
	}
}
