// Package combat resolves attacks, saving throws and encounter flow on top
// of the campaign state reducer.
package combat

import (
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/engine/monster"
)

// AttackProfile is one attack a unit can make.
type AttackProfile struct {
	Name        string
	AttackBonus int
	Damage      dice.Spec
	DamageBonus int
}

// AttackParams describes a single attack roll against a defender.
type AttackParams struct {
	AttackBonus int
	Damage      dice.Spec
	DamageBonus int
	TargetAC    int
	Mode        dice.Mode
}

// AttackOutcome is the mechanical result of one attack.
type AttackOutcome struct {
	Check dice.CheckResult
	// Critical is a natural 20, which hits regardless of armor class and
	// doubles the damage dice.
	Critical bool
	// Fumble is a natural 1, which misses regardless of armor class.
	Fumble      bool
	Hit         bool
	DamageRolls []int
	Damage      int
}

// ResolveAttack rolls to hit and, on a hit, rolls damage.
func ResolveAttack(src dice.Source, params AttackParams) (AttackOutcome, error) {
	check, err := dice.RollCheck(src, dice.CheckRequest{
		Modifier: params.AttackBonus,
		Target:   params.TargetAC,
		Mode:     params.Mode,
	})
	if err != nil {
		return AttackOutcome{}, err
	}

	outcome := AttackOutcome{
		Check:    check,
		Critical: check.Chosen == 20,
		Fumble:   check.Chosen == 1,
	}
	outcome.Hit = outcome.Critical || (!outcome.Fumble && check.Success)
	if !outcome.Hit {
		return outcome, nil
	}

	spec := params.Damage
	if outcome.Critical {
		spec.Count *= 2
	}
	roll, err := dice.RollSpec(src, spec)
	if err != nil {
		return AttackOutcome{}, err
	}
	outcome.DamageRolls = roll.Results
	outcome.Damage = roll.Total + params.DamageBonus
	if outcome.Damage < 0 {
		outcome.Damage = 0
	}
	return outcome, nil
}

// ResolveSave rolls a saving throw against a difficulty class.
func ResolveSave(src dice.Source, bonus, dc int, mode dice.Mode) (dice.CheckResult, error) {
	return dice.RollCheck(src, dice.CheckRequest{
		Modifier: bonus,
		Target:   dc,
		Mode:     mode,
	})
}

// ProficiencyBonus follows the standard level progression, +2 at level one
// and one more every four levels.
func ProficiencyBonus(level int) int {
	if level < 1 {
		level = 1
	}
	return 2 + (level-1)/4
}

// CharacterProfile derives a character's standard weapon attack.
func CharacterProfile(ch character.Character) AttackProfile {
	strength := ch.Abilities.Modifier(character.AbilityStrength)
	return AttackProfile{
		Name:        "weapon attack",
		AttackBonus: strength + ProficiencyBonus(ch.Level),
		Damage:      dice.Spec{Sides: 8, Count: 1},
		DamageBonus: strength,
	}
}

// MonsterProfile picks a monster's attack by name, or its first attack when
// the name is empty. The second return is false for monsters with no attacks.
func MonsterProfile(m monster.Instance, attackName string) (AttackProfile, bool) {
	for _, attack := range m.Definition.Attacks {
		if attackName == "" || attack.Name == attackName {
			return AttackProfile{
				Name:        attack.Name,
				AttackBonus: attack.AttackBonus,
				Damage:      attack.Damage,
				DamageBonus: attack.DamageBonus,
			}, true
		}
	}
	return AttackProfile{}, false
}
