// Package dice implements die rolls and ability checks for the campaign engine.
//
// Every rolling function takes an explicit random source so callers control
// determinism: the live engine hands in a session-scoped source, tests hand in
// a scripted one.
package dice

import (
	"errors"
	"math/rand"
)

// Source yields random integers for rolls. *rand.Rand satisfies it; tests
// may substitute a scripted implementation.
type Source interface {
	// Intn returns a uniformly distributed integer in [0, n).
	Intn(n int) int
}

// NewSource returns a seeded pseudo-random Source.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// Mode selects how a d20 check is rolled.
type Mode int

const (
	// ModeNormal rolls a single d20.
	ModeNormal Mode = iota
	// ModeAdvantage rolls two d20 and keeps the higher.
	ModeAdvantage
	// ModeDisadvantage rolls two d20 and keeps the lower.
	ModeDisadvantage
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeAdvantage:
		return "advantage"
	case ModeDisadvantage:
		return "disadvantage"
	default:
		return "unknown"
	}
}

// ErrInvalidSides indicates a die with a non-positive number of sides.
var ErrInvalidSides = errors.New("die must have at least one side")

// ErrInvalidSpec indicates a dice specification with invalid fields.
var ErrInvalidSpec = errors.New("dice must have positive sides and count")

// ErrMissingSource indicates a roll was requested without a random source.
var ErrMissingSource = errors.New("random source is required")

// Spec describes a die to roll and how many times to roll it.
type Spec struct {
	Sides int
	Count int
}

// Roll captures the results of rolling one Spec.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

// CheckRequest describes a d20 check against a target number.
type CheckRequest struct {
	Modifier int
	Target   int
	Mode     Mode
}

// CheckResult captures the outcome of a d20 check.
type CheckResult struct {
	// Rolls holds every d20 rolled: one entry for normal mode, two for
	// advantage and disadvantage, in roll order.
	Rolls []int
	// Chosen is the roll selected by the mode.
	Chosen int
	// Total is the chosen roll plus the modifier.
	Total int
	// Success reports whether Total met the target number.
	Success bool
}

// RollDie rolls a single die, returning a value in [1, sides].
func RollDie(src Source, sides int) (int, error) {
	if src == nil {
		return 0, ErrMissingSource
	}
	if sides <= 0 {
		return 0, ErrInvalidSides
	}
	return src.Intn(sides) + 1, nil
}

// RollSpec rolls a dice specification, returning each result and the sum.
func RollSpec(src Source, spec Spec) (Roll, error) {
	if src == nil {
		return Roll{}, ErrMissingSource
	}
	if spec.Sides <= 0 || spec.Count <= 0 {
		return Roll{}, ErrInvalidSpec
	}

	results := make([]int, spec.Count)
	total := 0
	for i := 0; i < spec.Count; i++ {
		value := src.Intn(spec.Sides) + 1
		results[i] = value
		total += value
	}
	return Roll{Sides: spec.Sides, Results: results, Total: total}, nil
}

// RollCheck performs a d20 check.
//
// Advantage rolls two dice and keeps the higher, disadvantage keeps the
// lower, normal rolls once. The total is the chosen roll plus the modifier;
// success means the total met or exceeded the target number.
func RollCheck(src Source, request CheckRequest) (CheckResult, error) {
	if src == nil {
		return CheckResult{}, ErrMissingSource
	}

	rollCount := 1
	if request.Mode == ModeAdvantage || request.Mode == ModeDisadvantage {
		rollCount = 2
	}

	rolls := make([]int, rollCount)
	for i := range rolls {
		rolls[i] = src.Intn(20) + 1
	}

	chosen := rolls[0]
	for _, roll := range rolls[1:] {
		switch request.Mode {
		case ModeAdvantage:
			if roll > chosen {
				chosen = roll
			}
		case ModeDisadvantage:
			if roll < chosen {
				chosen = roll
			}
		}
	}

	total := chosen + request.Modifier
	return CheckResult{
		Rolls:   rolls,
		Chosen:  chosen,
		Total:   total,
		Success: total >= request.Target,
	}, nil
}

// AbilityModifier derives the modifier for an ability score:
// floor((score-10)/2). The floor matters for odd scores below 10.
func AbilityModifier(score int) int {
	diff := score - 10
	if diff < 0 && diff%2 != 0 {
		return diff/2 - 1
	}
	return diff / 2
}
