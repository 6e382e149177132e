// Package character models a player's persistent persona.
//
// Characters are loaned into an active session by id and written back at
// session exit; all in-session mutation happens through the campaign reducer.
package character

import (
	"errors"
	"strings"
	"time"

	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/platform/id"
)

var (
	// ErrEmptyName indicates a missing character name.
	ErrEmptyName = errors.New("character name is required")
	// ErrEmptyOwner indicates a missing owning player id.
	ErrEmptyOwner = errors.New("character owner id is required")
	// ErrInvalidHP indicates max HP below one.
	ErrInvalidHP = errors.New("character max hp must be positive")
)

// Condition is a status condition on a character or monster.
type Condition string

const (
	// ConditionDefeated marks a combatant at zero HP.
	ConditionDefeated Condition = "defeated"
	// ConditionDisengaged suppresses opportunity attacks until the next turn.
	ConditionDisengaged Condition = "disengaged"
	// ConditionPoisoned imposes disadvantage on attack rolls and checks.
	ConditionPoisoned Condition = "poisoned"
	// ConditionStunned prevents actions and reactions.
	ConditionStunned Condition = "stunned"
	// ConditionProne grants melee attackers advantage.
	ConditionProne Condition = "prone"
)

// AbilityScores holds the six core ability scores.
type AbilityScores struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// Ability names the score addressed by saves and checks.
type Ability string

const (
	AbilityStrength     Ability = "strength"
	AbilityDexterity    Ability = "dexterity"
	AbilityConstitution Ability = "constitution"
	AbilityIntelligence Ability = "intelligence"
	AbilityWisdom       Ability = "wisdom"
	AbilityCharisma     Ability = "charisma"
)

// Modifier returns the ability modifier for the named ability.
func (s AbilityScores) Modifier(ability Ability) int {
	switch ability {
	case AbilityStrength:
		return dice.AbilityModifier(s.Strength)
	case AbilityDexterity:
		return dice.AbilityModifier(s.Dexterity)
	case AbilityConstitution:
		return dice.AbilityModifier(s.Constitution)
	case AbilityIntelligence:
		return dice.AbilityModifier(s.Intelligence)
	case AbilityWisdom:
		return dice.AbilityModifier(s.Wisdom)
	case AbilityCharisma:
		return dice.AbilityModifier(s.Charisma)
	default:
		return 0
	}
}

// Item is an inventory entry.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Equipped bool   `json:"equipped"`
}

// SpellSlots tracks expended slots for one spell level.
type SpellSlots struct {
	Level int `json:"level"`
	Max   int `json:"max"`
	Used  int `json:"used"`
}

// DeathSaves tracks death saving throw counters.
type DeathSaves struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Character is a player's persistent persona.
type Character struct {
	ID         string
	OwnerID    string
	Name       string
	Class      string
	Level      int
	Abilities  AbilityScores
	MaxHP      int
	CurrentHP  int
	ArmorClass int
	Speed      int

	Proficiencies  []string
	Inventory      []Item
	SpellsKnown    []string
	SpellsPrepared []string
	SpellSlots     []SpellSlots
	Conditions     map[Condition]bool
	DeathSaves     DeathSaves

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput captures the fields needed to create a character.
type CreateInput struct {
	OwnerID    string
	Name       string
	Class      string
	Level      int
	Abilities  AbilityScores
	MaxHP      int
	ArmorClass int
	Speed      int
}

// Create builds a new character with a generated id and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Character, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Character{}, ErrEmptyName
	}
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	if input.OwnerID == "" {
		return Character{}, ErrEmptyOwner
	}
	if input.MaxHP <= 0 {
		return Character{}, ErrInvalidHP
	}
	if input.Level <= 0 {
		input.Level = 1
	}
	if input.Speed <= 0 {
		input.Speed = 30
	}

	characterID, err := idGenerator()
	if err != nil {
		return Character{}, err
	}

	createdAt := now().UTC()
	return Character{
		ID:         characterID,
		OwnerID:    input.OwnerID,
		Name:       input.Name,
		Class:      strings.TrimSpace(input.Class),
		Level:      input.Level,
		Abilities:  input.Abilities,
		MaxHP:      input.MaxHP,
		CurrentHP:  input.MaxHP,
		ArmorClass: input.ArmorClass,
		Speed:      input.Speed,
		Conditions: map[Condition]bool{},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}

// HasCondition reports whether the condition is currently active.
func (c Character) HasCondition(condition Condition) bool {
	return c.Conditions[condition]
}

// Defeated reports whether the character is out of the fight.
func (c Character) Defeated() bool {
	return c.CurrentHP <= 0 || c.HasCondition(ConditionDefeated)
}

// Clone returns a deep copy so reducer transitions never alias state.
func (c Character) Clone() Character {
	clone := c
	clone.Proficiencies = append([]string(nil), c.Proficiencies...)
	clone.Inventory = append([]Item(nil), c.Inventory...)
	clone.SpellsKnown = append([]string(nil), c.SpellsKnown...)
	clone.SpellsPrepared = append([]string(nil), c.SpellsPrepared...)
	clone.SpellSlots = append([]SpellSlots(nil), c.SpellSlots...)
	clone.Conditions = make(map[Condition]bool, len(c.Conditions))
	for condition, active := range c.Conditions {
		clone.Conditions[condition] = active
	}
	return clone
}
