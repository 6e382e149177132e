package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

// OpenAIConfig configures the OpenAI responses endpoint and HTTP behavior.
type OpenAIConfig struct {
	ResponsesURL string
	APIKey       string
	Model        string
	HTTPClient   *http.Client
}

type openAIClient struct {
	cfg OpenAIConfig
}

// NewOpenAIClient builds a Client backed by the OpenAI Responses API.
func NewOpenAIClient(cfg OpenAIConfig) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.ResponsesURL == "" {
		cfg.ResponsesURL = "https://api.openai.com/v1/responses"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &openAIClient{cfg: cfg}, nil
}

// toolDefinition mirrors the Responses API function tool schema.
type toolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// narratorTools is the tool surface offered to the narrator. Names and
// argument shapes match what the mediation layer parses.
var narratorTools = []toolDefinition{
	{
		Type: "function", Name: "deal_damage",
		Description: "Deal damage to a character or monster by id.",
		Parameters: objectSchema(map[string]any{
			"target_id": map[string]any{"type": "string"},
			"amount":    map[string]any{"type": "integer", "minimum": 0},
			"source":    map[string]any{"type": "string"},
		}, "target_id", "amount"),
	},
	{
		Type: "function", Name: "update_quest_log",
		Description: "Add a quest or change an existing quest's title, description or status.",
		Parameters: objectSchema(map[string]any{
			"quest_id":    map[string]any{"type": "string"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"status":      map[string]any{"type": "string", "enum": []string{"active", "completed", "failed"}},
		}),
	},
	{
		Type: "function", Name: "upsert_npc",
		Description: "Introduce a new NPC or update an existing one by id.",
		Parameters: objectSchema(map[string]any{
			"npc_id":      map[string]any{"type": "string"},
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"disposition": map[string]any{"type": "string", "enum": []string{"friendly", "neutral", "hostile"}},
			"location":    map[string]any{"type": "string"},
		}, "name"),
	},
	{
		Type: "function", Name: "move_npc",
		Description: "Move a known NPC to a named location.",
		Parameters: objectSchema(map[string]any{
			"npc_id":   map[string]any{"type": "string"},
			"location": map[string]any{"type": "string"},
		}, "npc_id", "location"),
	},
	{
		Type: "function", Name: "place_marker",
		Description: "Place a point of interest on the map, hidden unless revealed.",
		Parameters: objectSchema(map[string]any{
			"marker_id": map[string]any{"type": "string"},
			"label":     map[string]any{"type": "string"},
			"x":         map[string]any{"type": "integer", "minimum": 0},
			"y":         map[string]any{"type": "integer", "minimum": 0},
			"revealed":  map[string]any{"type": "boolean"},
		}, "label", "x", "y"),
	},
	{
		Type: "function", Name: "reveal_marker",
		Description: "Reveal a hidden map marker to the party.",
		Parameters: objectSchema(map[string]any{
			"marker_id": map[string]any{"type": "string"},
		}, "marker_id"),
	},
	{
		Type: "function", Name: "set_condition",
		Description: "Apply or clear a condition on a character or monster.",
		Parameters: objectSchema(map[string]any{
			"target_id": map[string]any{"type": "string"},
			"condition": map[string]any{"type": "string", "enum": []string{"poisoned", "stunned", "prone", "disengaged"}},
			"active":    map[string]any{"type": "boolean"},
		}, "target_id", "condition"),
	},
}

func (c *openAIClient) GenerateResponse(ctx context.Context, req Request) (Response, error) {
	requestBody, err := json.Marshal(map[string]any{
		"model":        c.cfg.Model,
		"instructions": systemPrompt,
		"input":        BuildPrompt(req),
		"tools":        narratorTools,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal narration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return Response{}, fmt.Errorf("build narration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// Credential material travels only in the Authorization header and is
	// never echoed in errors.
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeNarrationFailed, "narration request failed", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Response{}, apperrors.New(apperrors.CodeNarrationFailed,
			fmt.Sprintf("narration request status %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Type      string `json:"type"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
			Content   []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeNarrationFailed, "decode narration response", err)
	}

	out := Response{Narration: strings.TrimSpace(payload.OutputText)}
	for _, item := range payload.Output {
		switch item.Type {
		case "function_call":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name: item.Name,
				Args: json.RawMessage(item.Arguments),
			})
		case "message":
			if out.Narration != "" {
				continue
			}
			for _, content := range item.Content {
				if text := strings.TrimSpace(content.Text); text != "" {
					out.Narration = text
					break
				}
			}
		}
	}
	if out.Narration == "" && len(out.ToolCalls) == 0 {
		return Response{}, apperrors.New(apperrors.CodeNarrationFailed, "narration response missing output")
	}
	return out, nil
}
