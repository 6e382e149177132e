// Package narration generates dungeon-master prose and structured tool calls
// from an AI collaborator. The engine treats every proposal as untrusted and
// reconciles it against the rules before any state changes.
package narration

import (
	"context"
	"encoding/json"
)

// ToolCall is one structured state-change proposal from the narrator.
type ToolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Request carries everything the narrator needs for one beat: a snapshot of
// the campaign, the recent journal and the action being narrated.
type Request struct {
	Snapshot     Snapshot
	RecentEvents []string
	// PlayerAction is the free-text action to narrate. Empty for scene-
	// setting beats such as session openings.
	PlayerAction string
	// ActorName is the character performing the action.
	ActorName string
	Locale    string
}

// Response is the narrator's reply: prose plus zero or more tool calls.
type Response struct {
	Narration string
	ToolCalls []ToolCall
}

// Client produces narration. Implementations must honor context cancellation;
// the session layer cancels stale generations.
type Client interface {
	GenerateResponse(ctx context.Context, req Request) (Response, error)
}
