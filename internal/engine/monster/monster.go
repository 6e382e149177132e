// Package monster models combat-only adversaries.
//
// A Definition is an externally supplied template; an Instance is the
// ephemeral per-combat entity carrying current HP and conditions. Instances
// are created when combat starts and discarded when it ends, never persisted.
package monster

import (
	"errors"
	"strings"

	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/platform/id"
)

var (
	// ErrEmptyDefinition indicates a definition without a name.
	ErrEmptyDefinition = errors.New("monster definition name is required")
	// ErrInvalidHP indicates a definition with non-positive max HP.
	ErrInvalidHP = errors.New("monster max hp must be positive")
	// ErrNoAttacks indicates a definition with no attacks.
	ErrNoAttacks = errors.New("monster definition needs at least one attack")
)

// Attack describes one attack option on a definition.
type Attack struct {
	Name        string    `json:"name"`
	AttackBonus int       `json:"attack_bonus"`
	Damage      dice.Spec `json:"damage"`
	DamageBonus int       `json:"damage_bonus"`
}

// Definition is a monster template supplied by the content layer.
type Definition struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	MaxHP       int                       `json:"max_hp"`
	ArmorClass  int                       `json:"armor_class"`
	Speed       int                       `json:"speed"`
	Dexterity   int                       `json:"dexterity"`
	SaveBonuses map[character.Ability]int `json:"save_bonuses,omitempty"`
	Attacks     []Attack                  `json:"attacks"`
}

// Validate checks a definition for usability in combat.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyDefinition
	}
	if d.MaxHP <= 0 {
		return ErrInvalidHP
	}
	if len(d.Attacks) == 0 {
		return ErrNoAttacks
	}
	return nil
}

// DexModifier returns the initiative modifier for the definition.
func (d Definition) DexModifier() int {
	return dice.AbilityModifier(d.Dexterity)
}

// Instance is one live monster in an active combat.
type Instance struct {
	ID         string
	Definition Definition
	Name       string
	CurrentHP  int
	Conditions map[character.Condition]bool
	Position   grid.Position
}

// Spawn materializes a combat instance from a definition.
func Spawn(def Definition, pos grid.Position, idGenerator func() (string, error)) (Instance, error) {
	if err := def.Validate(); err != nil {
		return Instance{}, err
	}
	if idGenerator == nil {
		idGenerator = func() (string, error) { return id.NewPrefixed("mon") }
	}
	instanceID, err := idGenerator()
	if err != nil {
		return Instance{}, err
	}
	return Instance{
		ID:         instanceID,
		Definition: def,
		Name:       def.Name,
		CurrentHP:  def.MaxHP,
		Conditions: map[character.Condition]bool{},
		Position:   pos,
	}, nil
}

// HasCondition reports whether the condition is currently active.
func (i Instance) HasCondition(condition character.Condition) bool {
	return i.Conditions[condition]
}

// Defeated reports whether the instance is out of the fight.
func (i Instance) Defeated() bool {
	return i.CurrentHP <= 0 || i.HasCondition(character.ConditionDefeated)
}

// Clone returns a deep copy so reducer transitions never alias state.
func (i Instance) Clone() Instance {
	clone := i
	clone.Conditions = make(map[character.Condition]bool, len(i.Conditions))
	for condition, active := range i.Conditions {
		clone.Conditions[condition] = active
	}
	return clone
}
