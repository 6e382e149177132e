package campaign

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/engine/monster"
	"github.com/loreforge/loreforge/internal/engine/turn"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

// Reducer operations. Every operation deep-copies the input state, applies
// one transition and returns the new state plus the events it produced. The
// input state is never mutated and no operation performs I/O.
//
// Proposals that reference entities which do not exist are absorbed as
// no-ops: the returned state gains only a system diagnostic event. Rule
// violations by the acting player return a coded error and leave state
// untouched.

func appendEvent(s *State, input EventInput) Event {
	s.Campaign.EventSeq++
	evt := Event{
		Seq:        s.Campaign.EventSeq,
		CampaignID: s.Campaign.ID,
		TurnID:     s.Campaign.TurnSeq,
		Type:       input.Type,
		ActorID:    input.ActorID,
		Text:       input.Text,
		Roll:       input.Roll,
		Timestamp:  input.Now.UTC(),
	}
	s.Events = append(s.Events, evt)
	s.Campaign.UpdatedAt = evt.Timestamp
	return evt
}

func diagnostic(s *State, now time.Time, format string, args ...any) Event {
	return appendEvent(s, EventInput{
		Type: EventSystem,
		Text: "diagnostic: " + fmt.Sprintf(format, args...),
		Now:  now,
	})
}

// RequireTurn rejects actions from anyone but the current turn holder.
func (s State) RequireTurn(actorID string) error {
	holder := s.TurnHolder()
	if holder == "" || holder == actorID {
		return nil
	}
	return apperrors.WithFields(apperrors.CodeNotYourTurn, "it is not your turn",
		map[string]string{"actor_id": actorID, "turn_holder": holder})
}

// LogEvent appends one event to the journal. Player actions also advance the
// world clock; crossing into a new time segment adds a system notice.
func (s State) LogEvent(input EventInput) (State, []Event, error) {
	next := s.Clone()
	input.Text = strings.TrimSpace(input.Text)
	events := []Event{appendEvent(&next, input)}

	if input.Type == EventPlayerAction {
		clock, crossed := next.Campaign.Clock.Tick()
		next.Campaign.Clock = clock
		if crossed {
			events = append(events, appendEvent(&next, EventInput{
				Type: EventSystem,
				Text: fmt.Sprintf("time passes; it is now %s of day %d", clock.Segment, clock.Day),
				Now:  input.Now,
			}))
		}
	}
	return next, events, nil
}

// ApplyWeatherRoll updates the weather from a d20 roll.
func (s State) ApplyWeatherRoll(roll int, now time.Time) (State, []Event, error) {
	next := s.Clone()
	before := next.Campaign.Clock.Weather
	next.Campaign.Clock = next.Campaign.Clock.SetWeatherRoll(roll)
	var events []Event
	if next.Campaign.Clock.Weather != before {
		events = append(events, appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("the weather turns to %s", next.Campaign.Clock.Weather),
			Now:  now,
		}))
	}
	return next, events, nil
}

// AddQuest appends a new quest to the log.
func (s State) AddQuest(quest Quest, now time.Time) (State, []Event, error) {
	next := s.Clone()
	quest.Title = strings.TrimSpace(quest.Title)
	if quest.ID == "" || quest.Title == "" {
		return next, []Event{diagnostic(&next, now, "quest proposal missing id or title")}, nil
	}
	if quest.Status == "" {
		quest.Status = QuestActive
	}
	if !validQuestStatus(quest.Status) {
		return next, []Event{diagnostic(&next, now, "quest %s has invalid status %q", quest.ID, quest.Status)}, nil
	}
	for _, existing := range next.Campaign.Quests {
		if existing.ID == quest.ID {
			return next, []Event{diagnostic(&next, now, "quest %s already exists", quest.ID)}, nil
		}
	}
	next.Campaign.Quests = append(next.Campaign.Quests, quest)
	evt := appendEvent(&next, EventInput{
		Type: EventSystem,
		Text: fmt.Sprintf("quest added: %s", quest.Title),
		Now:  now,
	})
	return next, []Event{evt}, nil
}

// UpdateQuest applies a partial update to an existing quest. Unknown quest
// ids and invalid statuses are absorbed as diagnostics.
func (s State) UpdateQuest(patch QuestPatch, now time.Time) (State, []Event, error) {
	next := s.Clone()
	if patch.Status != nil && !validQuestStatus(*patch.Status) {
		return next, []Event{diagnostic(&next, now, "quest %s patch has invalid status %q", patch.ID, *patch.Status)}, nil
	}
	for i, quest := range next.Campaign.Quests {
		if quest.ID != patch.ID {
			continue
		}
		if patch.Title != nil {
			quest.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			quest.Description = *patch.Description
		}
		if patch.Status != nil {
			quest.Status = *patch.Status
		}
		next.Campaign.Quests[i] = quest
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("quest updated: %s (%s)", quest.Title, quest.Status),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	return next, []Event{diagnostic(&next, now, "quest %s not found", patch.ID)}, nil
}

// UpsertNPC adds an NPC or updates one in place by id.
func (s State) UpsertNPC(npc NPC, now time.Time) (State, []Event, error) {
	next := s.Clone()
	npc.Name = strings.TrimSpace(npc.Name)
	if npc.ID == "" || npc.Name == "" {
		return next, []Event{diagnostic(&next, now, "npc proposal missing id or name")}, nil
	}
	if npc.Disposition == "" {
		npc.Disposition = DispositionNeutral
	}
	for i, existing := range next.Campaign.NPCs {
		if existing.ID == npc.ID {
			next.Campaign.NPCs[i] = npc
			evt := appendEvent(&next, EventInput{
				Type: EventSystem,
				Text: fmt.Sprintf("npc updated: %s", npc.Name),
				Now:  now,
			})
			return next, []Event{evt}, nil
		}
	}
	next.Campaign.NPCs = append(next.Campaign.NPCs, npc)
	evt := appendEvent(&next, EventInput{
		Type: EventSystem,
		Text: fmt.Sprintf("npc introduced: %s", npc.Name),
		Now:  now,
	})
	return next, []Event{evt}, nil
}

// MoveNPC relocates a known NPC to a named location.
func (s State) MoveNPC(npcID, location string, now time.Time) (State, []Event, error) {
	next := s.Clone()
	for i, npc := range next.Campaign.NPCs {
		if npc.ID != npcID {
			continue
		}
		next.Campaign.NPCs[i].Location = strings.TrimSpace(location)
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("%s moves to %s", npc.Name, strings.TrimSpace(location)),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	return next, []Event{diagnostic(&next, now, "npc %s not found", npcID)}, nil
}

// ApplyDamage reduces a unit's hit points, never below zero and never as a
// heal. Dropping to zero marks the unit defeated and drops it from the
// initiative order. Exactly one event records the change.
func (s State) ApplyDamage(targetID string, amount int, sourceName string, now time.Time) (State, []Event, error) {
	next := s.Clone()
	if amount < 0 {
		amount = 0
	}

	if ch, ok := next.Characters[targetID]; ok {
		ch.CurrentHP -= amount
		if ch.CurrentHP <= 0 {
			ch.CurrentHP = 0
			ch.Conditions[character.ConditionDefeated] = true
			removeFromInitiative(&next.Campaign, targetID)
		}
		next.Characters[targetID] = ch
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: damageText(ch.Name, sourceName, amount, ch.CurrentHP, ch.Defeated()),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	if m, ok := next.Monsters[targetID]; ok {
		m.CurrentHP -= amount
		if m.CurrentHP <= 0 {
			m.CurrentHP = 0
			m.Conditions[character.ConditionDefeated] = true
			removeFromInitiative(&next.Campaign, targetID)
		}
		next.Monsters[targetID] = m
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: damageText(m.Name, sourceName, amount, m.CurrentHP, m.Defeated()),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	return next, []Event{diagnostic(&next, now, "damage target %s not found", targetID)}, nil
}

// removeFromInitiative drops a defeated combatant so the order holds exactly
// the living units. The turn cursor keeps its id even when the defeated unit
// held the turn; the next advance restarts from the head of the order.
func removeFromInitiative(c *Campaign, unitID string) {
	for i, id := range c.InitiativeOrder {
		if id == unitID {
			c.InitiativeOrder = append(c.InitiativeOrder[:i], c.InitiativeOrder[i+1:]...)
			return
		}
	}
}

func damageText(targetName, sourceName string, amount, remaining int, defeated bool) string {
	text := fmt.Sprintf("%s takes %d damage (%d hp remaining)", targetName, amount, remaining)
	if sourceName != "" {
		text = fmt.Sprintf("%s takes %d damage from %s (%d hp remaining)", targetName, amount, sourceName, remaining)
	}
	if defeated {
		text += "; " + targetName + " is defeated"
	}
	return text
}

// SetCondition toggles a condition on a unit.
func (s State) SetCondition(targetID string, condition character.Condition, active bool, now time.Time) (State, []Event, error) {
	next := s.Clone()
	verb := "gains"
	if !active {
		verb = "loses"
	}
	if ch, ok := next.Characters[targetID]; ok {
		if active {
			ch.Conditions[condition] = true
		} else {
			delete(ch.Conditions, condition)
		}
		next.Characters[targetID] = ch
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("%s %s condition %s", ch.Name, verb, condition),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	if m, ok := next.Monsters[targetID]; ok {
		if active {
			m.Conditions[condition] = true
		} else {
			delete(m.Conditions, condition)
		}
		next.Monsters[targetID] = m
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("%s %s condition %s", m.Name, verb, condition),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	return next, []Event{diagnostic(&next, now, "condition target %s not found", targetID)}, nil
}

// PlaceMarker adds a map marker, hidden by default.
func (s State) PlaceMarker(marker Marker, now time.Time) (State, []Event, error) {
	next := s.Clone()
	marker.Label = strings.TrimSpace(marker.Label)
	if marker.ID == "" || marker.Label == "" {
		return next, []Event{diagnostic(&next, now, "marker proposal missing id or label")}, nil
	}
	if !next.Campaign.Map.InBounds(marker.Position) {
		return next, []Event{diagnostic(&next, now, "marker %s position (%d,%d) is out of bounds", marker.ID, marker.Position.X, marker.Position.Y)}, nil
	}
	for i, existing := range next.Campaign.Map.Markers {
		if existing.ID == marker.ID {
			next.Campaign.Map.Markers[i] = marker
			return next, nil, nil
		}
	}
	next.Campaign.Map.Markers = append(next.Campaign.Map.Markers, marker)
	return next, nil, nil
}

// RevealMarker makes a hidden marker visible to the party.
func (s State) RevealMarker(markerID string, now time.Time) (State, []Event, error) {
	next := s.Clone()
	for i, marker := range next.Campaign.Map.Markers {
		if marker.ID != markerID {
			continue
		}
		if marker.Revealed {
			return next, nil, nil
		}
		next.Campaign.Map.Markers[i].Revealed = true
		next.Campaign.Map.Revealed[marker.Position] = true
		evt := appendEvent(&next, EventInput{
			Type: EventSystem,
			Text: fmt.Sprintf("the party discovers %s", marker.Label),
			Now:  now,
		})
		return next, []Event{evt}, nil
	}
	return next, []Event{diagnostic(&next, now, "marker %s not found", markerID)}, nil
}

// MoveParty walks the party along a path of adjacent in-bounds cells,
// revealing each cell it crosses.
func (s State) MoveParty(path []grid.Position, now time.Time) (State, []Event, error) {
	next := s.Clone()
	if len(path) == 0 {
		return next, nil, nil
	}
	current := next.Campaign.Map.PartyPos
	for _, pos := range path {
		if !next.Campaign.Map.InBounds(pos) {
			return s.Clone(), nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "path leaves the map",
				map[string]string{"x": strconv.Itoa(pos.X), "y": strconv.Itoa(pos.Y)})
		}
		if !grid.Adjacent(current, pos) {
			return s.Clone(), nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "path steps are not adjacent",
				map[string]string{"x": strconv.Itoa(pos.X), "y": strconv.Itoa(pos.Y)})
		}
		current = pos
		next.Campaign.Map.Revealed[pos] = true
	}
	next.Campaign.Map.PartyPos = current
	return next, nil, nil
}

// SetMonsterPosition moves a spawned monster on the grid.
func (s State) SetMonsterPosition(monsterID string, pos grid.Position, now time.Time) (State, []Event, error) {
	next := s.Clone()
	m, ok := next.Monsters[monsterID]
	if !ok {
		return next, []Event{diagnostic(&next, now, "monster %s not found", monsterID)}, nil
	}
	if !next.Campaign.Map.InBounds(pos) {
		return s.Clone(), nil, apperrors.WithFields(apperrors.CodeInvalidTarget, "position is out of bounds",
			map[string]string{"monster_id": monsterID, "x": strconv.Itoa(pos.X), "y": strconv.Itoa(pos.Y)})
	}
	m.Position = pos
	next.Monsters[monsterID] = m
	return next, nil, nil
}

// StartCombat switches the campaign into combat mode with the given monsters
// and a pre-rolled initiative order. The first turn belongs to the order's
// head and round one begins.
func (s State) StartCombat(monsters []monster.Instance, rolls []turn.InitiativeRoll, now time.Time) (State, []Event, error) {
	if s.Campaign.Mode == ModeCombat {
		return s.Clone(), nil, apperrors.New(apperrors.CodeCampaignAlreadyInCombat, "combat is already underway")
	}
	if len(rolls) == 0 {
		return s.Clone(), nil, apperrors.New(apperrors.CodeInvalidTarget, "initiative order is empty")
	}
	next := s.Clone()
	for _, m := range monsters {
		next.Monsters[m.ID] = m.Clone()
	}
	next.Campaign.Mode = ModeCombat
	next.Campaign.InitiativeOrder = turn.Order(rolls)
	next.Campaign.CurrentUnitID = next.Campaign.InitiativeOrder[0]
	next.Campaign.Round = 1
	next.Campaign.TurnSeq++
	next.Economy = turn.Reset()
	next.ReactionUsed = map[string]bool{}

	lines := make([]string, 0, len(rolls))
	for _, roll := range rolls {
		name := roll.CombatantID
		if unit, ok := next.Unit(roll.CombatantID); ok {
			name = unit.Name
		}
		lines = append(lines, fmt.Sprintf("%s (%d)", name, roll.Total))
	}
	evt := appendEvent(&next, EventInput{
		Type: EventSystem,
		Text: "combat begins; initiative: " + strings.Join(lines, ", "),
		Now:  now,
	})
	return next, []Event{evt}, nil
}

// EndCombat returns the campaign to exploration, discarding monsters and the
// initiative order.
func (s State) EndCombat(now time.Time) (State, []Event, error) {
	if s.Campaign.Mode != ModeCombat {
		return s.Clone(), nil, apperrors.New(apperrors.CodeCampaignNotInCombat, "campaign is not in combat")
	}
	next := s.Clone()
	next.Monsters = map[string]monster.Instance{}
	next.Campaign.Mode = ModeExploration
	next.Campaign.InitiativeOrder = nil
	next.Campaign.CurrentUnitID = ""
	next.Campaign.Round = 0
	next.Campaign.TurnSeq++
	next.Economy = turn.Reset()
	next.ReactionUsed = map[string]bool{}
	if next.Campaign.CurrentPlayerID == "" && len(next.Campaign.PlayerIDs) > 0 {
		next.Campaign.CurrentPlayerID = next.Campaign.PlayerIDs[0]
	}
	evt := appendEvent(&next, EventInput{
		Type: EventSystem,
		Text: "combat ends",
		Now:  now,
	})
	return next, []Event{evt}, nil
}

// AdvanceTurn passes the turn to the next eligible unit. In combat defeated
// units are skipped and a full wrap of the order starts a new round. In
// exploration the turn rotates through the party in join order. The new turn
// holder starts with a fresh action economy and sheds the disengaged state.
func (s State) AdvanceTurn(now time.Time) (State, []Event, error) {
	next := s.Clone()
	next.Campaign.TurnSeq++
	next.Economy = turn.Reset()

	var holder string
	if next.Campaign.Mode == ModeCombat {
		nextUnit, wrapped := turn.NextAlive(next.Campaign.InitiativeOrder, next.Campaign.CurrentUnitID, next.AliveUnits())
		if nextUnit == "" {
			return s.Clone(), nil, apperrors.New(apperrors.CodeInvalidTarget, "no living combatants remain")
		}
		if wrapped {
			next.Campaign.Round++
		}
		next.Campaign.CurrentUnitID = nextUnit
		holder = nextUnit
	} else {
		if len(next.Campaign.PlayerIDs) == 0 {
			return s.Clone(), nil, apperrors.New(apperrors.CodeInvalidTarget, "campaign has no players")
		}
		index := 0
		for i, playerID := range next.Campaign.PlayerIDs {
			if playerID == next.Campaign.CurrentPlayerID {
				index = (i + 1) % len(next.Campaign.PlayerIDs)
				break
			}
		}
		next.Campaign.CurrentPlayerID = next.Campaign.PlayerIDs[index]
		holder = next.Campaign.CurrentPlayerID
	}

	// Disengaged and the spent reaction last until the unit's next turn
	// begins.
	delete(next.ReactionUsed, holder)
	if ch, ok := next.Characters[holder]; ok {
		delete(ch.Conditions, character.ConditionDisengaged)
		next.Characters[holder] = ch
	}
	if m, ok := next.Monsters[holder]; ok {
		delete(m.Conditions, character.ConditionDisengaged)
		next.Monsters[holder] = m
	}

	name := holder
	if unit, ok := next.Unit(holder); ok {
		name = unit.Name
	}
	text := fmt.Sprintf("it is now %s's turn", name)
	if next.Campaign.Mode == ModeCombat {
		text = fmt.Sprintf("round %d: it is now %s's turn", next.Campaign.Round, name)
	}
	evt := appendEvent(&next, EventInput{
		Type: EventSystem,
		Text: text,
		Now:  now,
	})
	return next, []Event{evt}, nil
}

// SpendSlot consumes one action-economy slot for the current turn.
func (s State) SpendSlot(slot turn.Slot) (State, error) {
	next := s.Clone()
	economy, err := next.Economy.Spend(slot)
	if err != nil {
		return s.Clone(), err
	}
	next.Economy = economy
	return next, nil
}

// SpendReaction consumes a unit's off-turn reaction. Unlike the main action
// economy this is tracked per unit, since reactions trigger on other units'
// turns.
func (s State) SpendReaction(unitID string) (State, error) {
	if s.ReactionUsed[unitID] {
		return s.Clone(), apperrors.New(apperrors.CodeActionAlreadyUsed, "reaction already used this round")
	}
	next := s.Clone()
	next.ReactionUsed[unitID] = true
	return next, nil
}
