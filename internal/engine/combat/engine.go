package combat

import (
	"fmt"
	"time"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/engine/monster"
	"github.com/loreforge/loreforge/internal/engine/turn"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

// Engine drives encounters against the campaign state. All randomness flows
// through the injected dice source so encounters replay deterministically
// under a seeded source.
type Engine struct {
	Dice dice.Source
}

// New builds an engine over a dice source.
func New(src dice.Source) Engine {
	return Engine{Dice: src}
}

// Outcome is the result of a termination check.
type Outcome int

const (
	// OutcomeOngoing means both sides still have units standing.
	OutcomeOngoing Outcome = iota
	// OutcomeVictory means every monster is defeated.
	OutcomeVictory
	// OutcomeDefeat means every player character is defeated.
	OutcomeDefeat
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVictory:
		return "victory"
	case OutcomeDefeat:
		return "defeat"
	default:
		return "ongoing"
	}
}

// Start rolls initiative for the party and the given monsters and switches
// the campaign into combat.
func (e Engine) Start(s campaign.State, monsters []monster.Instance, now time.Time) (campaign.State, []campaign.Event, error) {
	if len(monsters) == 0 {
		return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "an encounter needs at least one monster")
	}

	var combatants []turn.Combatant
	for _, playerID := range s.Campaign.PlayerIDs {
		ch, ok := s.Characters[playerID]
		if !ok || ch.Defeated() {
			continue
		}
		combatants = append(combatants, turn.Combatant{
			ID:          ch.ID,
			DexModifier: ch.Abilities.Modifier(character.AbilityDexterity),
		})
	}
	for _, m := range monsters {
		combatants = append(combatants, turn.Combatant{
			ID:          m.ID,
			DexModifier: m.Definition.DexModifier(),
		})
	}

	rolls, err := turn.RollInitiative(e.Dice, combatants)
	if err != nil {
		return s, nil, err
	}
	return s.StartCombat(monsters, rolls, now)
}

// Attack resolves one attack action by the current turn holder. The attacker
// spends its action, the attack is rolled against the target's armor class
// and any damage flows through the reducer.
func (e Engine) Attack(s campaign.State, attackerID, targetID string, now time.Time) (campaign.State, []campaign.Event, error) {
	if s.Campaign.Mode != campaign.ModeCombat {
		return s, nil, apperrors.New(apperrors.CodeCampaignNotInCombat, "attacks require combat")
	}
	if err := s.RequireTurn(attackerID); err != nil {
		return s, nil, err
	}

	attacker, ok := s.Unit(attackerID)
	if !ok || attacker.Defeated {
		return s, nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "attacker is not a living combatant",
			map[string]string{"attacker_id": attackerID})
	}
	if attacker.Conditions[string(character.ConditionStunned)] {
		return s, nil, apperrors.New(apperrors.CodeUnitIncapacitated, "stunned units cannot act")
	}
	target, ok := s.Unit(targetID)
	if !ok || target.Defeated {
		return s, nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "target is not a living combatant",
			map[string]string{"target_id": targetID})
	}
	if attacker.Kind == target.Kind {
		return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "target is on the attacker's side")
	}
	if !grid.Adjacent(attacker.Position, target.Position) {
		return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "target is out of reach")
	}

	profile, err := e.profileFor(s, attacker)
	if err != nil {
		return s, nil, err
	}

	next, err := s.SpendSlot(turn.SlotAction)
	if err != nil {
		return s, nil, err
	}
	return e.resolveAndLog(next, attacker, target, profile, now)
}

func (e Engine) profileFor(s campaign.State, unit campaign.Unit) (AttackProfile, error) {
	if unit.Kind == campaign.UnitCharacter {
		return CharacterProfile(s.Characters[unit.ID]), nil
	}
	profile, ok := MonsterProfile(s.Monsters[unit.ID], "")
	if !ok {
		return AttackProfile{}, apperrors.WithFields(apperrors.CodeInvalidTarget, "monster has no attacks",
			map[string]string{"monster_id": unit.ID})
	}
	return profile, nil
}

// attackMode weighs attacker and target conditions. A poisoned attacker rolls
// at disadvantage, a prone target grants advantage, and the two cancel.
func attackMode(attacker, target campaign.Unit) dice.Mode {
	advantage := target.Conditions[string(character.ConditionProne)]
	disadvantage := attacker.Conditions[string(character.ConditionPoisoned)]
	switch {
	case advantage == disadvantage:
		return dice.ModeNormal
	case advantage:
		return dice.ModeAdvantage
	default:
		return dice.ModeDisadvantage
	}
}

func (e Engine) resolveAndLog(s campaign.State, attacker, target campaign.Unit, profile AttackProfile, now time.Time) (campaign.State, []campaign.Event, error) {
	outcome, err := ResolveAttack(e.Dice, AttackParams{
		AttackBonus: profile.AttackBonus,
		Damage:      profile.Damage,
		DamageBonus: profile.DamageBonus,
		TargetAC:    target.ArmorClass,
		Mode:        attackMode(attacker, target),
	})
	if err != nil {
		return s, nil, err
	}

	verdict := "misses"
	switch {
	case outcome.Critical:
		verdict = "critically hits"
	case outcome.Hit:
		verdict = "hits"
	}
	next, events, err := s.LogEvent(campaign.EventInput{
		Type:    campaign.EventRollResult,
		ActorID: attacker.ID,
		Text:    fmt.Sprintf("%s attacks %s and %s", attacker.Name, target.Name, verdict),
		Roll: &campaign.RollDetail{
			Expression: fmt.Sprintf("1d20%+d vs AC %d", profile.AttackBonus, target.ArmorClass),
			Rolls:      outcome.Check.Rolls,
			Modifier:   profile.AttackBonus,
			Total:      outcome.Check.Total,
			Target:     target.ArmorClass,
			Success:    outcome.Hit,
		},
		Now: now,
	})
	if err != nil {
		return s, nil, err
	}
	if !outcome.Hit {
		return next, events, nil
	}

	next, damageEvents, err := next.ApplyDamage(target.ID, outcome.Damage, attacker.Name, now)
	if err != nil {
		return s, nil, err
	}
	return next, append(events, damageEvents...), nil
}

// Move walks the current turn holder along a path of adjacent cells. Leaving
// a living enemy's reach provokes one opportunity attack from it, spending
// that enemy's reaction, unless the mover disengaged this turn. A mover
// dropped by an opportunity attack stops where it was hit.
func (e Engine) Move(s campaign.State, moverID string, path []grid.Position, now time.Time) (campaign.State, []campaign.Event, error) {
	if s.Campaign.Mode != campaign.ModeCombat {
		return s, nil, apperrors.New(apperrors.CodeCampaignNotInCombat, "combat movement requires combat")
	}
	if err := s.RequireTurn(moverID); err != nil {
		return s, nil, err
	}
	mover, ok := s.Unit(moverID)
	if !ok || mover.Defeated {
		return s, nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "mover is not a living combatant",
			map[string]string{"mover_id": moverID})
	}
	if mover.Conditions[string(character.ConditionStunned)] {
		return s, nil, apperrors.New(apperrors.CodeUnitIncapacitated, "stunned units cannot move")
	}

	speed := s.Characters[moverID].Speed
	if mover.Kind == campaign.UnitMonster {
		speed = s.Monsters[moverID].Definition.Speed
	}
	economy, err := s.Economy.Move(len(path), speed/5)
	if err != nil {
		return s, nil, err
	}

	next := s.Clone()
	next.Economy = economy
	disengaged := mover.Conditions[string(character.ConditionDisengaged)]
	pos := mover.Position
	var events []campaign.Event

	for _, step := range path {
		if !next.Campaign.Map.InBounds(step) {
			return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "path leaves the map")
		}
		if !grid.Adjacent(pos, step) {
			return s, nil, apperrors.New(apperrors.CodeInvalidTarget, "path steps are not adjacent")
		}

		if !disengaged {
			for _, hostileID := range next.Campaign.InitiativeOrder {
				hostile, ok := next.Unit(hostileID)
				if !ok || hostile.Defeated || hostile.Kind == mover.Kind {
					continue
				}
				if hostile.Conditions[string(character.ConditionStunned)] || next.ReactionUsed[hostileID] {
					continue
				}
				if !grid.Adjacent(hostile.Position, pos) || grid.Adjacent(hostile.Position, step) {
					continue
				}

				var oaEvents []campaign.Event
				next, oaEvents, err = e.opportunityAttack(next, hostileID, moverID, now)
				if err != nil {
					return s, nil, err
				}
				events = append(events, oaEvents...)

				if unit, ok := next.Unit(moverID); !ok || unit.Defeated {
					return next, events, nil
				}
			}
		}

		pos = step
		next, err = e.setPosition(next, mover.Kind, moverID, pos, now)
		if err != nil {
			return s, nil, err
		}
	}
	return next, events, nil
}

func (e Engine) setPosition(s campaign.State, kind campaign.UnitKind, unitID string, pos grid.Position, now time.Time) (campaign.State, error) {
	if kind == campaign.UnitMonster {
		next, _, err := s.SetMonsterPosition(unitID, pos, now)
		return next, err
	}
	next, _, err := s.MoveParty([]grid.Position{pos}, now)
	return next, err
}

func (e Engine) opportunityAttack(s campaign.State, hostileID, moverID string, now time.Time) (campaign.State, []campaign.Event, error) {
	next, err := s.SpendReaction(hostileID)
	if err != nil {
		return s, nil, err
	}
	hostile, _ := next.Unit(hostileID)
	mover, _ := next.Unit(moverID)
	profile, err := e.profileFor(next, hostile)
	if err != nil {
		return s, nil, err
	}

	next, noticeEvents, err := next.LogEvent(campaign.EventInput{
		Type: campaign.EventSystem,
		Text: fmt.Sprintf("%s provokes an opportunity attack from %s", mover.Name, hostile.Name),
		Now:  now,
	})
	if err != nil {
		return s, nil, err
	}
	next, attackEvents, err := e.resolveAndLog(next, hostile, mover, profile, now)
	if err != nil {
		return s, nil, err
	}
	return next, append(noticeEvents, attackEvents...), nil
}

// SavingThrow rolls a save for a unit against a difficulty class and logs it.
func (e Engine) SavingThrow(s campaign.State, unitID string, ability character.Ability, dc int, now time.Time) (campaign.State, []campaign.Event, dice.CheckResult, error) {
	unit, ok := s.Unit(unitID)
	if !ok {
		return s, nil, dice.CheckResult{}, apperrors.WithFields(apperrors.CodeInvalidTarget, "save target not found",
			map[string]string{"unit_id": unitID})
	}

	bonus := 0
	if unit.Kind == campaign.UnitCharacter {
		bonus = s.Characters[unitID].Abilities.Modifier(ability)
	} else if saveBonus, ok := s.Monsters[unitID].Definition.SaveBonuses[ability]; ok {
		bonus = saveBonus
	}
	mode := dice.ModeNormal
	if unit.Conditions[string(character.ConditionPoisoned)] {
		mode = dice.ModeDisadvantage
	}

	result, err := ResolveSave(e.Dice, bonus, dc, mode)
	if err != nil {
		return s, nil, dice.CheckResult{}, err
	}

	verdict := "fails"
	if result.Success {
		verdict = "succeeds on"
	}
	next, events, err := s.LogEvent(campaign.EventInput{
		Type:    campaign.EventRollResult,
		ActorID: unitID,
		Text:    fmt.Sprintf("%s %s a DC %d %s save", unit.Name, verdict, dc, ability),
		Roll: &campaign.RollDetail{
			Expression: fmt.Sprintf("1d20%+d vs DC %d", bonus, dc),
			Rolls:      result.Rolls,
			Modifier:   bonus,
			Total:      result.Total,
			Target:     dc,
			Success:    result.Success,
		},
		Now: now,
	})
	if err != nil {
		return s, nil, dice.CheckResult{}, err
	}
	return next, events, result, nil
}

// MonsterTurn runs a simple monster routine: close with the most wounded
// living character, then attack if in reach.
func (e Engine) MonsterTurn(s campaign.State, monsterID string, now time.Time) (campaign.State, []campaign.Event, error) {
	if s.Campaign.Mode != campaign.ModeCombat {
		return s, nil, apperrors.New(apperrors.CodeCampaignNotInCombat, "monsters act only in combat")
	}
	if err := s.RequireTurn(monsterID); err != nil {
		return s, nil, err
	}
	m, ok := s.Unit(monsterID)
	if !ok || m.Defeated {
		return s, nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "monster is not a living combatant",
			map[string]string{"monster_id": monsterID})
	}
	if m.Conditions[string(character.ConditionStunned)] {
		return s.LogEvent(campaign.EventInput{
			Type: campaign.EventSystem,
			Text: fmt.Sprintf("%s is stunned and cannot act", m.Name),
			Now:  now,
		})
	}

	targetID := e.pickTarget(s)
	if targetID == "" {
		return s, nil, nil
	}

	next := s
	var events []campaign.Event
	target, _ := next.Unit(targetID)
	if !grid.Adjacent(m.Position, target.Position) {
		speed := next.Monsters[monsterID].Definition.Speed
		path := approachPath(m.Position, target.Position, speed/5)
		if len(path) > 0 {
			var moveEvents []campaign.Event
			var err error
			next, moveEvents, err = e.Move(next, monsterID, path, now)
			if err != nil {
				return s, nil, err
			}
			events = append(events, moveEvents...)
		}
	}

	m, _ = next.Unit(monsterID)
	target, ok = next.Unit(targetID)
	if !ok || target.Defeated || m.Defeated || !grid.Adjacent(m.Position, target.Position) {
		return next, events, nil
	}
	next, attackEvents, err := e.Attack(next, monsterID, targetID, now)
	if err != nil {
		return s, nil, err
	}
	return next, append(events, attackEvents...), nil
}

// pickTarget chooses the living character with the lowest hit points.
func (e Engine) pickTarget(s campaign.State) string {
	targetID := ""
	lowest := 0
	for _, unitID := range s.Campaign.InitiativeOrder {
		unit, ok := s.Unit(unitID)
		if !ok || unit.Kind != campaign.UnitCharacter || unit.Defeated {
			continue
		}
		if targetID == "" || unit.CurrentHP < lowest {
			targetID = unitID
			lowest = unit.CurrentHP
		}
	}
	return targetID
}

// approachPath walks straight toward the target, stopping one cell short or
// when movement runs out.
func approachPath(from, to grid.Position, maxSteps int) []grid.Position {
	var path []grid.Position
	pos := from
	for steps := 0; steps < maxSteps; steps++ {
		if grid.Adjacent(pos, to) {
			break
		}
		if pos.X < to.X {
			pos.X++
		} else if pos.X > to.X {
			pos.X--
		}
		if pos.Y < to.Y {
			pos.Y++
		} else if pos.Y > to.Y {
			pos.Y--
		}
		path = append(path, pos)
	}
	return path
}

// CheckTermination ends combat when one side has no units standing. The
// returned outcome tells the caller which side prevailed.
func (e Engine) CheckTermination(s campaign.State, now time.Time) (campaign.State, []campaign.Event, Outcome, error) {
	if s.Campaign.Mode != campaign.ModeCombat {
		return s, nil, OutcomeOngoing, nil
	}

	outcome := OutcomeOngoing
	text := ""
	switch {
	case s.SideDefeated(campaign.UnitMonster):
		outcome = OutcomeVictory
		text = "the last enemy falls; the party is victorious"
	case s.SideDefeated(campaign.UnitCharacter):
		outcome = OutcomeDefeat
		text = "the party has fallen"
	default:
		return s, nil, OutcomeOngoing, nil
	}

	next, events, err := s.LogEvent(campaign.EventInput{
		Type: campaign.EventSystem,
		Text: text,
		Now:  now,
	})
	if err != nil {
		return s, nil, outcome, err
	}
	next, endEvents, err := next.EndCombat(now)
	if err != nil {
		return s, nil, outcome, err
	}
	return next, append(events, endEvents...), outcome, nil
}
