// Package mediation reconciles narrator tool calls against the campaign
// reducer. Proposals are untrusted input: malformed or unknown calls become
// diagnostic journal entries instead of state changes, and nothing a
// narrator proposes can violate the reducer's rules.
package mediation

import (
	"encoding/json"
	"time"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/narration"
	"github.com/loreforge/loreforge/internal/platform/id"
)

// Mediator applies narrator proposals to campaign state in order.
type Mediator struct {
	now         func() time.Time
	idGenerator func() (string, error)
}

// New builds a mediator. Nil arguments fall back to the real clock and id
// generator.
func New(now func() time.Time, idGenerator func() (string, error)) Mediator {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return Mediator{now: now, idGenerator: idGenerator}
}

// Apply runs every tool call against the state in the order proposed. Each
// call either mutates the state through a reducer operation or leaves a
// diagnostic event behind. The error return covers only infrastructure
// failures such as id generation; narrator mistakes never abort the batch.
func (m Mediator) Apply(s campaign.State, calls []narration.ToolCall) (campaign.State, []campaign.Event, error) {
	var events []campaign.Event
	for _, call := range calls {
		next, callEvents, err := m.applyOne(s, call)
		if err != nil {
			return s, events, err
		}
		s = next
		events = append(events, callEvents...)
	}
	return s, events, nil
}

func (m Mediator) applyOne(s campaign.State, call narration.ToolCall) (campaign.State, []campaign.Event, error) {
	now := m.now()
	switch call.Name {
	case "deal_damage":
		var args struct {
			TargetID string `json:"target_id"`
			Amount   int    `json:"amount"`
			Source   string `json:"source"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.TargetID == "" {
			return m.malformed(s, call, now)
		}
		return s.ApplyDamage(args.TargetID, args.Amount, args.Source, now)

	case "update_quest_log":
		var args struct {
			QuestID     string  `json:"quest_id"`
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Status      *string `json:"status"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return m.malformed(s, call, now)
		}
		if args.QuestID == "" {
			if args.Title == nil {
				return m.malformed(s, call, now)
			}
			questID, err := m.idGenerator()
			if err != nil {
				return s, nil, err
			}
			quest := campaign.Quest{ID: questID, Title: *args.Title}
			if args.Description != nil {
				quest.Description = *args.Description
			}
			if args.Status != nil {
				quest.Status = campaign.QuestStatus(*args.Status)
			}
			return s.AddQuest(quest, now)
		}
		patch := campaign.QuestPatch{ID: args.QuestID, Title: args.Title, Description: args.Description}
		if args.Status != nil {
			status := campaign.QuestStatus(*args.Status)
			patch.Status = &status
		}
		return s.UpdateQuest(patch, now)

	case "upsert_npc":
		var args struct {
			NPCID       string `json:"npc_id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Disposition string `json:"disposition"`
			Location    string `json:"location"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.Name == "" {
			return m.malformed(s, call, now)
		}
		if args.NPCID == "" {
			npcID, err := m.idGenerator()
			if err != nil {
				return s, nil, err
			}
			args.NPCID = npcID
		}
		return s.UpsertNPC(campaign.NPC{
			ID:          args.NPCID,
			Name:        args.Name,
			Description: args.Description,
			Disposition: campaign.Disposition(args.Disposition),
			Location:    args.Location,
		}, now)

	case "move_npc":
		var args struct {
			NPCID    string `json:"npc_id"`
			Location string `json:"location"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.NPCID == "" {
			return m.malformed(s, call, now)
		}
		return s.MoveNPC(args.NPCID, args.Location, now)

	case "place_marker":
		var args struct {
			MarkerID string `json:"marker_id"`
			Label    string `json:"label"`
			X        *int   `json:"x"`
			Y        *int   `json:"y"`
			Revealed bool   `json:"revealed"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.Label == "" || args.X == nil || args.Y == nil {
			return m.malformed(s, call, now)
		}
		if args.MarkerID == "" {
			markerID, err := m.idGenerator()
			if err != nil {
				return s, nil, err
			}
			args.MarkerID = markerID
		}
		next, events, err := s.PlaceMarker(campaign.Marker{
			ID:       args.MarkerID,
			Label:    args.Label,
			Position: grid.Position{X: *args.X, Y: *args.Y},
		}, now)
		if err != nil || !args.Revealed {
			return next, events, err
		}
		// Reveal only a marker that actually landed.
		placed := false
		for _, marker := range next.Campaign.Map.Markers {
			if marker.ID == args.MarkerID {
				placed = true
				break
			}
		}
		if !placed {
			return next, events, nil
		}
		next, revealEvents, err := next.RevealMarker(args.MarkerID, now)
		return next, append(events, revealEvents...), err

	case "reveal_marker":
		var args struct {
			MarkerID string `json:"marker_id"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.MarkerID == "" {
			return m.malformed(s, call, now)
		}
		return s.RevealMarker(args.MarkerID, now)

	case "set_condition":
		var args struct {
			TargetID  string `json:"target_id"`
			Condition string `json:"condition"`
			Active    *bool  `json:"active"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.TargetID == "" {
			return m.malformed(s, call, now)
		}
		condition, ok := parseCondition(args.Condition)
		if !ok {
			return m.malformed(s, call, now)
		}
		active := true
		if args.Active != nil {
			active = *args.Active
		}
		return s.SetCondition(args.TargetID, condition, active, now)

	default:
		return s.LogEvent(campaign.EventInput{
			Type: campaign.EventSystem,
			Text: "diagnostic: narrator proposed unknown tool " + call.Name,
			Now:  now,
		})
	}
}

func (m Mediator) malformed(s campaign.State, call narration.ToolCall, now time.Time) (campaign.State, []campaign.Event, error) {
	return s.LogEvent(campaign.EventInput{
		Type: campaign.EventSystem,
		Text: "diagnostic: narrator tool call " + call.Name + " had malformed arguments",
		Now:  now,
	})
}

func parseCondition(name string) (character.Condition, bool) {
	switch character.Condition(name) {
	case character.ConditionPoisoned, character.ConditionStunned,
		character.ConditionProne, character.ConditionDisengaged:
		return character.Condition(name), true
	default:
		return "", false
	}
}
