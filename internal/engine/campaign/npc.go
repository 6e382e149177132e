package campaign

// Disposition is an NPC's attitude toward the party.
type Disposition string

const (
	// DispositionFriendly marks an ally.
	DispositionFriendly Disposition = "friendly"
	// DispositionNeutral marks an indifferent NPC.
	DispositionNeutral Disposition = "neutral"
	// DispositionHostile marks an enemy.
	DispositionHostile Disposition = "hostile"
)

// NPC is a narrator-controlled character in the campaign roster.
type NPC struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Disposition Disposition `json:"disposition"`
	Location    string      `json:"location"`
}
