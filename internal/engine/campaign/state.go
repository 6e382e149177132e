package campaign

import (
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/engine/monster"
	"github.com/loreforge/loreforge/internal/engine/turn"
)

// State is the full in-memory session state for one campaign: the aggregate,
// the party's characters, any live monsters, the active turn economy and the
// event journal accumulated since load.
type State struct {
	Campaign   Campaign
	Characters map[string]character.Character
	Monsters   map[string]monster.Instance
	// Economy is the action economy of the unit whose turn it is.
	Economy turn.Economy
	// ReactionUsed marks units that have spent their off-turn reaction.
	// A unit's entry clears when its own turn comes back around.
	ReactionUsed map[string]bool
	Events       []Event
}

// NewState wraps a campaign and its party into a fresh session state.
func NewState(c Campaign, party []character.Character) State {
	state := State{
		Campaign:     c,
		Characters:   make(map[string]character.Character, len(party)),
		Monsters:     map[string]monster.Instance{},
		ReactionUsed: map[string]bool{},
	}
	for _, ch := range party {
		state.Characters[ch.ID] = ch
	}
	return state
}

// Clone deep-copies the state so reducer operations never alias the input.
func (s State) Clone() State {
	out := s
	out.Campaign = s.Campaign.clone()
	out.Characters = make(map[string]character.Character, len(s.Characters))
	for charID, ch := range s.Characters {
		out.Characters[charID] = ch.Clone()
	}
	out.Monsters = make(map[string]monster.Instance, len(s.Monsters))
	for monsterID, m := range s.Monsters {
		out.Monsters[monsterID] = m.Clone()
	}
	out.ReactionUsed = make(map[string]bool, len(s.ReactionUsed))
	for unitID, used := range s.ReactionUsed {
		out.ReactionUsed[unitID] = used
	}
	out.Events = append([]Event(nil), s.Events...)
	return out
}

func (c Campaign) clone() Campaign {
	out := c
	out.InitiativeOrder = append([]string(nil), c.InitiativeOrder...)
	out.PlayerIDs = append([]string(nil), c.PlayerIDs...)
	out.Quests = append([]Quest(nil), c.Quests...)
	out.NPCs = append([]NPC(nil), c.NPCs...)
	out.Map = c.Map.clone()
	return out
}

// TurnHolder returns the id whose turn it currently is: the initiative cursor
// in combat, the current player in exploration.
func (s State) TurnHolder() string {
	if s.Campaign.Mode == ModeCombat {
		return s.Campaign.CurrentUnitID
	}
	return s.Campaign.CurrentPlayerID
}

// UnitKind distinguishes the two combatant populations.
type UnitKind int

const (
	// UnitCharacter is a player character.
	UnitCharacter UnitKind = iota
	// UnitMonster is a spawned monster instance.
	UnitMonster
)

// Unit is a uniform view over characters and monsters for combat math.
type Unit struct {
	Kind       UnitKind
	ID         string
	Name       string
	CurrentHP  int
	ArmorClass int
	Position   grid.Position
	Defeated   bool
	Conditions map[string]bool
}

// Unit resolves an id to a combatant view. The second return is false when
// the id matches neither a character nor a monster.
func (s State) Unit(unitID string) (Unit, bool) {
	if ch, ok := s.Characters[unitID]; ok {
		conditions := make(map[string]bool, len(ch.Conditions))
		for cond, active := range ch.Conditions {
			if active {
				conditions[string(cond)] = true
			}
		}
		return Unit{
			Kind:       UnitCharacter,
			ID:         ch.ID,
			Name:       ch.Name,
			CurrentHP:  ch.CurrentHP,
			ArmorClass: ch.ArmorClass,
			Position:   s.Campaign.Map.PartyPos,
			Defeated:   ch.Defeated(),
			Conditions: conditions,
		}, true
	}
	if m, ok := s.Monsters[unitID]; ok {
		conditions := make(map[string]bool, len(m.Conditions))
		for cond, active := range m.Conditions {
			if active {
				conditions[string(cond)] = true
			}
		}
		return Unit{
			Kind:       UnitMonster,
			ID:         m.ID,
			Name:       m.Name,
			CurrentHP:  m.CurrentHP,
			ArmorClass: m.Definition.ArmorClass,
			Position:   m.Position,
			Defeated:   m.Defeated(),
			Conditions: conditions,
		}, true
	}
	return Unit{}, false
}

// AliveUnits returns the set of initiative participants still standing.
func (s State) AliveUnits() map[string]bool {
	alive := make(map[string]bool, len(s.Campaign.InitiativeOrder))
	for _, unitID := range s.Campaign.InitiativeOrder {
		unit, ok := s.Unit(unitID)
		if ok && !unit.Defeated {
			alive[unitID] = true
		}
	}
	return alive
}

// SideDefeated reports whether every combatant of the given kind is defeated.
// Defeated units leave the initiative order, so the populations are consulted
// directly rather than the order.
func (s State) SideDefeated(kind UnitKind) bool {
	present := false
	switch kind {
	case UnitMonster:
		for _, m := range s.Monsters {
			present = true
			if !m.Defeated() {
				return false
			}
		}
	case UnitCharacter:
		for _, ch := range s.Characters {
			present = true
			if !ch.Defeated() {
				return false
			}
		}
	}
	return present
}
