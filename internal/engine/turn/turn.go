// Package turn implements initiative ordering and per-turn action economy.
package turn

import (
	"sort"

	"github.com/loreforge/loreforge/internal/engine/dice"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

// Combatant identifies one participant in an initiative contest.
type Combatant struct {
	ID          string
	DexModifier int
}

// InitiativeRoll records one combatant's initiative result.
type InitiativeRoll struct {
	CombatantID string
	Roll        int
	Modifier    int
	Total       int
}

// RollInitiative rolls d20 + dexterity modifier for every combatant and
// returns the resulting order, highest total first. Ties break by higher
// modifier, then by the combatants' insertion order, so the outcome is
// stable for a given input.
func RollInitiative(src dice.Source, combatants []Combatant) ([]InitiativeRoll, error) {
	rolls := make([]InitiativeRoll, 0, len(combatants))
	for _, combatant := range combatants {
		roll, err := dice.RollDie(src, 20)
		if err != nil {
			return nil, err
		}
		rolls = append(rolls, InitiativeRoll{
			CombatantID: combatant.ID,
			Roll:        roll,
			Modifier:    combatant.DexModifier,
			Total:       roll + combatant.DexModifier,
		})
	}

	sort.SliceStable(rolls, func(i, j int) bool {
		if rolls[i].Total != rolls[j].Total {
			return rolls[i].Total > rolls[j].Total
		}
		return rolls[i].Modifier > rolls[j].Modifier
	})
	return rolls, nil
}

// Order extracts the combatant ids from rolled initiative, best first.
func Order(rolls []InitiativeRoll) []string {
	order := make([]string, 0, len(rolls))
	for _, roll := range rolls {
		order = append(order, roll.CombatantID)
	}
	return order
}

// Slot names an action-economy resource on a unit's turn.
type Slot string

const (
	// SlotAction is the unit's single main action.
	SlotAction Slot = "action"
	// SlotBonusAction is the unit's bonus action.
	SlotBonusAction Slot = "bonus_action"
	// SlotReaction is consumed outside the unit's own turn.
	SlotReaction Slot = "reaction"
)

// Economy tracks what a unit has spent on its current turn.
type Economy struct {
	ActionUsed      bool
	BonusActionUsed bool
	ReactionUsed    bool
	MovementUsed    int
}

// Reset returns a fresh economy for the start of a unit's turn. The reaction
// refreshes at the start of the owning unit's turn like the other slots.
func Reset() Economy {
	return Economy{}
}

// Spend consumes the named slot, rejecting a second use within one turn.
func (e Economy) Spend(slot Slot) (Economy, error) {
	switch slot {
	case SlotAction:
		if e.ActionUsed {
			return e, apperrors.New(apperrors.CodeActionAlreadyUsed, "action already used this turn")
		}
		e.ActionUsed = true
	case SlotBonusAction:
		if e.BonusActionUsed {
			return e, apperrors.New(apperrors.CodeActionAlreadyUsed, "bonus action already used this turn")
		}
		e.BonusActionUsed = true
	case SlotReaction:
		if e.ReactionUsed {
			return e, apperrors.New(apperrors.CodeActionAlreadyUsed, "reaction already used this round")
		}
		e.ReactionUsed = true
	default:
		return e, apperrors.New(apperrors.CodeActionAlreadyUsed, "unknown action slot")
	}
	return e, nil
}

// Move consumes movement, rejecting totals beyond the unit's speed.
func (e Economy) Move(steps, speed int) (Economy, error) {
	if steps < 0 {
		steps = 0
	}
	if e.MovementUsed+steps > speed {
		return e, apperrors.New(apperrors.CodeActionAlreadyUsed, "movement exceeds remaining speed")
	}
	e.MovementUsed += steps
	return e, nil
}

// NextAlive returns the id following current in the order, skipping ids
// absent from alive and wrapping to the start. The second return reports
// whether the cursor wrapped, which signals a new round. An empty result id
// means nobody in the order is alive.
func NextAlive(order []string, current string, alive map[string]bool) (string, bool) {
	if len(order) == 0 {
		return "", false
	}

	start := -1
	for i, unitID := range order {
		if unitID == current {
			start = i
			break
		}
	}

	wrapped := false
	for offset := 1; offset <= len(order); offset++ {
		index := start + offset
		if index >= len(order) {
			index -= len(order)
			wrapped = true
		}
		candidate := order[index]
		if alive[candidate] {
			return candidate, wrapped
		}
	}
	return "", false
}
