package campaign

import (
	"encoding/json"
	"sort"

	"github.com/loreforge/loreforge/internal/engine/grid"
)

// Marker is a point of interest on the campaign map. Hidden markers exist in
// state but are withheld from player-facing views until revealed.
type Marker struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Position grid.Position `json:"position"`
	Revealed bool          `json:"revealed"`
}

// MapState is the shared party map: bounds, the fog-of-war reveal set, the
// party position and any markers placed by the narrator.
type MapState struct {
	Width    int
	Height   int
	Revealed map[grid.Position]bool
	Markers  []Marker
	// PartyPos is the party's current grid position in exploration and the
	// position of every player character during combat.
	PartyPos grid.Position
}

// NewMapState builds an unexplored map of the given size with the party at
// the origin revealed.
func NewMapState(width, height int) MapState {
	if width <= 0 {
		width = 20
	}
	if height <= 0 {
		height = 20
	}
	return MapState{
		Width:    width,
		Height:   height,
		Revealed: map[grid.Position]bool{{X: 0, Y: 0}: true},
	}
}

// InBounds reports whether a position lies on the map.
func (m MapState) InBounds(pos grid.Position) bool {
	return pos.X >= 0 && pos.X < m.Width && pos.Y >= 0 && pos.Y < m.Height
}

// IsRevealed reports whether a cell has been uncovered.
func (m MapState) IsRevealed(pos grid.Position) bool {
	return m.Revealed[pos]
}

func (m MapState) clone() MapState {
	out := m
	out.Revealed = make(map[grid.Position]bool, len(m.Revealed))
	for pos, ok := range m.Revealed {
		out.Revealed[pos] = ok
	}
	out.Markers = append([]Marker(nil), m.Markers...)
	return out
}

type mapStateJSON struct {
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Revealed []grid.Position `json:"revealed"`
	Markers  []Marker        `json:"markers"`
	PartyPos grid.Position   `json:"party_pos"`
}

// MarshalJSON encodes the reveal set as a sorted position list so the wire
// form is stable across encodes.
func (m MapState) MarshalJSON() ([]byte, error) {
	revealed := make([]grid.Position, 0, len(m.Revealed))
	for pos := range m.Revealed {
		revealed = append(revealed, pos)
	}
	sort.Slice(revealed, func(i, j int) bool {
		if revealed[i].Y != revealed[j].Y {
			return revealed[i].Y < revealed[j].Y
		}
		return revealed[i].X < revealed[j].X
	})
	return json.Marshal(mapStateJSON{
		Width:    m.Width,
		Height:   m.Height,
		Revealed: revealed,
		Markers:  m.Markers,
		PartyPos: m.PartyPos,
	})
}

// UnmarshalJSON rebuilds the reveal set from the position list.
func (m *MapState) UnmarshalJSON(data []byte) error {
	var raw mapStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Width = raw.Width
	m.Height = raw.Height
	m.Markers = raw.Markers
	m.PartyPos = raw.PartyPos
	m.Revealed = make(map[grid.Position]bool, len(raw.Revealed))
	for _, pos := range raw.Revealed {
		m.Revealed[pos] = true
	}
	return nil
}
