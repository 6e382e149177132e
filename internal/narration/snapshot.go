package narration

import (
	"fmt"
	"strings"

	"github.com/loreforge/loreforge/internal/engine/campaign"
)

// Snapshot is the narrator-facing view of campaign state. It carries only
// what the prompt needs, flattened to plain values.
type Snapshot struct {
	Title       string
	Description string
	Mode        string
	Round       int
	TurnHolder  string
	Day         int
	TimeOfDay   string
	Weather     string
	Characters  []CharacterSnapshot
	Monsters    []MonsterSnapshot
	Quests      []QuestSnapshot
	NPCs        []NPCSnapshot
}

// CharacterSnapshot summarizes one party member.
type CharacterSnapshot struct {
	ID         string
	Name       string
	Class      string
	Level      int
	CurrentHP  int
	MaxHP      int
	Conditions []string
}

// MonsterSnapshot summarizes one live monster.
type MonsterSnapshot struct {
	ID        string
	Name      string
	CurrentHP int
	Defeated  bool
}

// QuestSnapshot summarizes one quest log entry.
type QuestSnapshot struct {
	ID     string
	Title  string
	Status string
}

// NPCSnapshot summarizes one roster NPC.
type NPCSnapshot struct {
	ID          string
	Name        string
	Disposition string
	Location    string
}

// BuildSnapshot flattens campaign state into a narrator view.
func BuildSnapshot(s campaign.State) Snapshot {
	snap := Snapshot{
		Title:       s.Campaign.Title,
		Description: s.Campaign.Description,
		Mode:        s.Campaign.Mode.String(),
		Round:       s.Campaign.Round,
		Day:         s.Campaign.Clock.Day,
		TimeOfDay:   string(s.Campaign.Clock.Segment),
		Weather:     string(s.Campaign.Clock.Weather),
	}
	if unit, ok := s.Unit(s.TurnHolder()); ok {
		snap.TurnHolder = unit.Name
	}

	for _, playerID := range s.Campaign.PlayerIDs {
		ch, ok := s.Characters[playerID]
		if !ok {
			continue
		}
		cs := CharacterSnapshot{
			ID:        ch.ID,
			Name:      ch.Name,
			Class:     ch.Class,
			Level:     ch.Level,
			CurrentHP: ch.CurrentHP,
			MaxHP:     ch.MaxHP,
		}
		for condition, active := range ch.Conditions {
			if active {
				cs.Conditions = append(cs.Conditions, string(condition))
			}
		}
		snap.Characters = append(snap.Characters, cs)
	}

	for _, unitID := range s.Campaign.InitiativeOrder {
		m, ok := s.Monsters[unitID]
		if !ok {
			continue
		}
		snap.Monsters = append(snap.Monsters, MonsterSnapshot{
			ID:        m.ID,
			Name:      m.Name,
			CurrentHP: m.CurrentHP,
			Defeated:  m.Defeated(),
		})
	}

	for _, quest := range s.Campaign.Quests {
		snap.Quests = append(snap.Quests, QuestSnapshot{
			ID:     quest.ID,
			Title:  quest.Title,
			Status: string(quest.Status),
		})
	}
	for _, npc := range s.Campaign.NPCs {
		snap.NPCs = append(snap.NPCs, NPCSnapshot{
			ID:          npc.ID,
			Name:        npc.Name,
			Disposition: string(npc.Disposition),
			Location:    npc.Location,
		})
	}
	return snap
}

// RecentEventTexts renders the tail of the journal for the prompt.
func RecentEventTexts(events []campaign.Event, limit int) []string {
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}
	out := make([]string, 0, limit)
	for _, evt := range events[len(events)-limit:] {
		out = append(out, fmt.Sprintf("[%s] %s", evt.Type, evt.Text))
	}
	return out
}

// systemPrompt frames the narrator's role and its limits.
const systemPrompt = `You are the dungeon master for a tabletop campaign. Narrate vividly in second person, two to four paragraphs at most. You never decide mechanical outcomes yourself: propose state changes only through the provided tools, and the game engine will validate them. Never narrate a player character's death or dialogue.`

// BuildPrompt renders the user-message body for one narration beat.
func BuildPrompt(req Request) string {
	var b strings.Builder
	snap := req.Snapshot

	fmt.Fprintf(&b, "Campaign: %s\n", snap.Title)
	if snap.Description != "" {
		fmt.Fprintf(&b, "Premise: %s\n", snap.Description)
	}
	fmt.Fprintf(&b, "Mode: %s", snap.Mode)
	if snap.Mode == "combat" {
		fmt.Fprintf(&b, " (round %d)", snap.Round)
	}
	fmt.Fprintf(&b, "\nTime: day %d, %s, %s\n", snap.Day, snap.TimeOfDay, snap.Weather)
	if snap.TurnHolder != "" {
		fmt.Fprintf(&b, "Turn: %s\n", snap.TurnHolder)
	}

	if len(snap.Characters) > 0 {
		b.WriteString("\nParty:\n")
		for _, ch := range snap.Characters {
			fmt.Fprintf(&b, "- %s (%s %d) %d/%d hp", ch.Name, ch.Class, ch.Level, ch.CurrentHP, ch.MaxHP)
			if len(ch.Conditions) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(ch.Conditions, ", "))
			}
			fmt.Fprintf(&b, " (id %s)\n", ch.ID)
		}
	}
	if len(snap.Monsters) > 0 {
		b.WriteString("\nEnemies:\n")
		for _, m := range snap.Monsters {
			status := fmt.Sprintf("%d hp", m.CurrentHP)
			if m.Defeated {
				status = "defeated"
			}
			fmt.Fprintf(&b, "- %s, %s (id %s)\n", m.Name, status, m.ID)
		}
	}
	if len(snap.Quests) > 0 {
		b.WriteString("\nQuests:\n")
		for _, quest := range snap.Quests {
			fmt.Fprintf(&b, "- %s [%s] (id %s)\n", quest.Title, quest.Status, quest.ID)
		}
	}
	if len(snap.NPCs) > 0 {
		b.WriteString("\nNPCs:\n")
		for _, npc := range snap.NPCs {
			fmt.Fprintf(&b, "- %s (%s) at %s (id %s)\n", npc.Name, npc.Disposition, npc.Location, npc.ID)
		}
	}

	if len(req.RecentEvents) > 0 {
		b.WriteString("\nRecent events:\n")
		for _, line := range req.RecentEvents {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}

	if req.PlayerAction != "" {
		fmt.Fprintf(&b, "\n%s attempts: %s\n", req.ActorName, req.PlayerAction)
		b.WriteString("Narrate the outcome.")
	} else {
		b.WriteString("\nSet the opening scene.")
	}
	if req.Locale != "" && req.Locale != "en" {
		fmt.Fprintf(&b, "\nRespond in locale %s.", req.Locale)
	}
	return b.String()
}
