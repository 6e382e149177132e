package campaign

import (
	"time"
)

// EventType labels an entry in the campaign event log.
type EventType string

const (
	// EventPlayerAction records a player's declared action.
	EventPlayerAction EventType = "player_action"
	// EventDMNarration records narrator prose.
	EventDMNarration EventType = "dm_narration"
	// EventSystem records engine notices such as combat transitions and
	// diagnostics for invalid narrator proposals.
	EventSystem EventType = "system"
	// EventRollResult records a dice check outcome.
	EventRollResult EventType = "roll_result"
)

// RollDetail is the mechanical breakdown attached to a roll event.
type RollDetail struct {
	Expression string `json:"expression"`
	Rolls      []int  `json:"rolls"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
	Target     int    `json:"target,omitempty"`
	Success    bool   `json:"success"`
}

// Event is one immutable entry in the campaign journal.
type Event struct {
	Seq        uint64      `json:"seq"`
	CampaignID string      `json:"campaign_id"`
	TurnID     uint64      `json:"turn_id"`
	Type       EventType   `json:"type"`
	ActorID    string      `json:"actor_id,omitempty"`
	Text       string      `json:"text"`
	Roll       *RollDetail `json:"roll,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// EventInput describes an event before the reducer assigns its sequence
// number and turn token.
type EventInput struct {
	Type    EventType
	ActorID string
	Text    string
	Roll    *RollDetail
	Now     time.Time
}
