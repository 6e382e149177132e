package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/engine/monster"
	"github.com/loreforge/loreforge/internal/session"
)

// CampaignCreateInput is the MCP input for create_campaign.
type CampaignCreateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	OwnerID      string `json:"owner_id"`
	Locale       string `json:"locale,omitempty"`
	MaxPartySize int    `json:"max_party_size,omitempty"`
}

// CampaignCreateResult is the MCP output for create_campaign.
type CampaignCreateResult struct {
	CampaignID string `json:"campaign_id"`
	Title      string `json:"title"`
	// JoinCode is shown once; it is stored only as a hash.
	JoinCode string `json:"join_code"`
}

// AbilityScoresInput carries the six ability scores.
type AbilityScoresInput struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
}

// JoinCampaignInput is the MCP input for join_campaign.
type JoinCampaignInput struct {
	CampaignID string             `json:"campaign_id"`
	JoinCode   string             `json:"join_code"`
	OwnerID    string             `json:"owner_id"`
	Name       string             `json:"name"`
	Class      string             `json:"class,omitempty"`
	Level      int                `json:"level,omitempty"`
	MaxHP      int                `json:"max_hp"`
	ArmorClass int                `json:"armor_class"`
	Speed      int                `json:"speed,omitempty"`
	Abilities  AbilityScoresInput `json:"abilities"`
}

// JoinCampaignResult is the MCP output for join_campaign.
type JoinCampaignResult struct {
	CharacterID string `json:"character_id"`
}

// SessionInput addresses a campaign's live session.
type SessionInput struct {
	CampaignID string `json:"campaign_id"`
}

// AckResult reports a completed operation.
type AckResult struct {
	Status string `json:"status"`
}

// PlayerActionInput is the MCP input for submit_player_action.
type PlayerActionInput struct {
	CampaignID string `json:"campaign_id"`
	ActorID    string `json:"actor_id"`
	Text       string `json:"text,omitempty"`
}

// PositionInput is one grid cell.
type PositionInput struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MonsterAttackInput describes one attack on a monster entering combat.
type MonsterAttackInput struct {
	Name        string `json:"name"`
	AttackBonus int    `json:"attack_bonus"`
	DamageDice  int    `json:"damage_dice"`
	DamageSides int    `json:"damage_sides"`
	DamageBonus int    `json:"damage_bonus"`
}

// MonsterInput describes one monster entering combat.
type MonsterInput struct {
	Name       string               `json:"name"`
	MaxHP      int                  `json:"max_hp"`
	ArmorClass int                  `json:"armor_class"`
	Speed      int                  `json:"speed,omitempty"`
	Dexterity  int                  `json:"dexterity"`
	Position   PositionInput        `json:"position"`
	Attacks    []MonsterAttackInput `json:"attacks"`
}

// StartCombatInput is the MCP input for start_combat.
type StartCombatInput struct {
	CampaignID string         `json:"campaign_id"`
	Monsters   []MonsterInput `json:"monsters"`
}

// CombatActionInput is the MCP input for submit_combat_action.
type CombatActionInput struct {
	CampaignID string          `json:"campaign_id"`
	ActorID    string          `json:"actor_id"`
	Kind       string          `json:"kind"`
	TargetID   string          `json:"target_id,omitempty"`
	Path       []PositionInput `json:"path,omitempty"`
}

// EndTurnInput is the MCP input for end_turn.
type EndTurnInput struct {
	CampaignID string `json:"campaign_id"`
	ActorID    string `json:"actor_id"`
}

// UnitStatus summarizes one combatant or party member.
type UnitStatus struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	CurrentHP  int           `json:"current_hp"`
	MaxHP      int           `json:"max_hp,omitempty"`
	ArmorClass int           `json:"armor_class"`
	Position   PositionInput `json:"position"`
	Conditions []string      `json:"conditions,omitempty"`
}

// QuestStatus summarizes one quest log entry.
type QuestStatus struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// EventSummary is one journal entry in a state snapshot.
type EventSummary struct {
	Seq  uint64 `json:"seq"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// StateResult is the read-only session snapshot returned by several tools.
type StateResult struct {
	CampaignID      string         `json:"campaign_id"`
	Title           string         `json:"title"`
	Mode            string         `json:"mode"`
	Round           int            `json:"round,omitempty"`
	TurnHolder      string         `json:"turn_holder"`
	InitiativeOrder []string       `json:"initiative_order,omitempty"`
	Day             int            `json:"day"`
	TimeOfDay       string         `json:"time_of_day"`
	Weather         string         `json:"weather"`
	Party           []UnitStatus   `json:"party"`
	Monsters        []UnitStatus   `json:"monsters,omitempty"`
	Quests          []QuestStatus  `json:"quests,omitempty"`
	RecentEvents    []EventSummary `json:"recent_events,omitempty"`
}

const recentEventLimit = 10

func stateResult(state campaign.State) StateResult {
	result := StateResult{
		CampaignID:      state.Campaign.ID,
		Title:           state.Campaign.Title,
		Mode:            state.Campaign.Mode.String(),
		Round:           state.Campaign.Round,
		TurnHolder:      state.TurnHolder(),
		InitiativeOrder: state.Campaign.InitiativeOrder,
		Day:             state.Campaign.Clock.Day,
		TimeOfDay:       string(state.Campaign.Clock.Segment),
		Weather:         string(state.Campaign.Clock.Weather),
	}
	for _, playerID := range state.Campaign.PlayerIDs {
		ch, ok := state.Characters[playerID]
		if !ok {
			continue
		}
		status := UnitStatus{
			ID:         ch.ID,
			Name:       ch.Name,
			CurrentHP:  ch.CurrentHP,
			MaxHP:      ch.MaxHP,
			ArmorClass: ch.ArmorClass,
			Position:   PositionInput{X: state.Campaign.Map.PartyPos.X, Y: state.Campaign.Map.PartyPos.Y},
		}
		for condition, active := range ch.Conditions {
			if active {
				status.Conditions = append(status.Conditions, string(condition))
			}
		}
		result.Party = append(result.Party, status)
	}
	for _, unitID := range state.Campaign.InitiativeOrder {
		m, ok := state.Monsters[unitID]
		if !ok {
			continue
		}
		status := UnitStatus{
			ID:         m.ID,
			Name:       m.Name,
			CurrentHP:  m.CurrentHP,
			MaxHP:      m.Definition.MaxHP,
			ArmorClass: m.Definition.ArmorClass,
			Position:   PositionInput{X: m.Position.X, Y: m.Position.Y},
		}
		for condition, active := range m.Conditions {
			if active {
				status.Conditions = append(status.Conditions, string(condition))
			}
		}
		result.Monsters = append(result.Monsters, status)
	}
	for _, quest := range state.Campaign.Quests {
		result.Quests = append(result.Quests, QuestStatus{
			ID:     quest.ID,
			Title:  quest.Title,
			Status: string(quest.Status),
		})
	}
	events := state.Events
	if len(events) > recentEventLimit {
		events = events[len(events)-recentEventLimit:]
	}
	for _, event := range events {
		result.RecentEvents = append(result.RecentEvents, EventSummary{
			Seq:  event.Seq,
			Type: string(event.Type),
			Text: event.Text,
		})
	}
	return result
}

func (s *Server) createCampaign(ctx context.Context, _ *mcp.CallToolRequest, input CampaignCreateInput) (*mcp.CallToolResult, CampaignCreateResult, error) {
	result, err := s.manager.CreateCampaign(ctx, campaign.CreateInput{
		Title:       input.Title,
		Description: input.Description,
		OwnerID:     input.OwnerID,
		Settings: campaign.Settings{
			Locale:       input.Locale,
			MaxPartySize: input.MaxPartySize,
		},
	})
	if err != nil {
		return nil, CampaignCreateResult{}, fmt.Errorf("create campaign: %w", err)
	}
	return nil, CampaignCreateResult{
		CampaignID: result.Campaign.ID,
		Title:      result.Campaign.Title,
		JoinCode:   result.JoinCode,
	}, nil
}

func (s *Server) joinCampaign(ctx context.Context, _ *mcp.CallToolRequest, input JoinCampaignInput) (*mcp.CallToolResult, JoinCampaignResult, error) {
	ch, err := character.Create(character.CreateInput{
		OwnerID: input.OwnerID,
		Name:    input.Name,
		Class:   input.Class,
		Level:   input.Level,
		Abilities: character.AbilityScores{
			Strength:     input.Abilities.Strength,
			Dexterity:    input.Abilities.Dexterity,
			Constitution: input.Abilities.Constitution,
			Intelligence: input.Abilities.Intelligence,
			Wisdom:       input.Abilities.Wisdom,
			Charisma:     input.Abilities.Charisma,
		},
		MaxHP:      input.MaxHP,
		ArmorClass: input.ArmorClass,
		Speed:      input.Speed,
	}, nil, nil)
	if err != nil {
		return nil, JoinCampaignResult{}, fmt.Errorf("create character: %w", err)
	}
	if err := s.manager.JoinCampaign(ctx, input.CampaignID, input.JoinCode, ch); err != nil {
		return nil, JoinCampaignResult{}, fmt.Errorf("join campaign: %w", err)
	}
	return nil, JoinCampaignResult{CharacterID: ch.ID}, nil
}

func (s *Server) loadSession(ctx context.Context, _ *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, StateResult, error) {
	live, err := s.manager.LoadSession(ctx, input.CampaignID)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("load session: %w", err)
	}
	state, err := live.State(ctx)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("session state: %w", err)
	}
	return nil, stateResult(state), nil
}

func (s *Server) exitSession(ctx context.Context, _ *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, AckResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, AckResult{}, fmt.Errorf("exit session: %w", err)
	}
	if err := live.Exit(ctx); err != nil {
		return nil, AckResult{}, fmt.Errorf("exit session: %w", err)
	}
	return nil, AckResult{Status: "exited"}, nil
}

func (s *Server) campaignState(ctx context.Context, _ *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, StateResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("campaign state: %w", err)
	}
	state, err := live.State(ctx)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("campaign state: %w", err)
	}
	return nil, stateResult(state), nil
}

func (s *Server) submitPlayerAction(ctx context.Context, _ *mcp.CallToolRequest, input PlayerActionInput) (*mcp.CallToolResult, AckResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, AckResult{}, fmt.Errorf("submit action: %w", err)
	}
	if err := live.SubmitPlayerAction(ctx, input.ActorID, input.Text); err != nil {
		return nil, AckResult{}, fmt.Errorf("submit action: %w", err)
	}
	return nil, AckResult{Status: "narrating"}, nil
}

func (s *Server) startCombat(ctx context.Context, _ *mcp.CallToolRequest, input StartCombatInput) (*mcp.CallToolResult, StateResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("start combat: %w", err)
	}
	monsters := make([]monster.Instance, 0, len(input.Monsters))
	for _, in := range input.Monsters {
		def := monster.Definition{
			Name:       in.Name,
			MaxHP:      in.MaxHP,
			ArmorClass: in.ArmorClass,
			Speed:      in.Speed,
			Dexterity:  in.Dexterity,
		}
		if def.Speed <= 0 {
			def.Speed = 30
		}
		for _, attack := range in.Attacks {
			def.Attacks = append(def.Attacks, monster.Attack{
				Name:        attack.Name,
				AttackBonus: attack.AttackBonus,
				Damage:      dice.Spec{Sides: attack.DamageSides, Count: attack.DamageDice},
				DamageBonus: attack.DamageBonus,
			})
		}
		instance, err := monster.Spawn(def, grid.Position{X: in.Position.X, Y: in.Position.Y}, nil)
		if err != nil {
			return nil, StateResult{}, fmt.Errorf("spawn %q: %w", in.Name, err)
		}
		monsters = append(monsters, instance)
	}
	if err := live.StartCombat(ctx, monsters); err != nil {
		return nil, StateResult{}, fmt.Errorf("start combat: %w", err)
	}
	state, err := live.State(ctx)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("start combat: %w", err)
	}
	return nil, stateResult(state), nil
}

func (s *Server) submitCombatAction(ctx context.Context, _ *mcp.CallToolRequest, input CombatActionInput) (*mcp.CallToolResult, StateResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("combat action: %w", err)
	}
	action := session.CombatAction{
		Kind:     session.CombatActionKind(input.Kind),
		ActorID:  input.ActorID,
		TargetID: input.TargetID,
	}
	for _, pos := range input.Path {
		action.Path = append(action.Path, grid.Position{X: pos.X, Y: pos.Y})
	}
	if err := live.SubmitCombatAction(ctx, action); err != nil {
		return nil, StateResult{}, fmt.Errorf("combat action: %w", err)
	}
	state, err := live.State(ctx)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("combat action: %w", err)
	}
	return nil, stateResult(state), nil
}

func (s *Server) endTurn(ctx context.Context, _ *mcp.CallToolRequest, input EndTurnInput) (*mcp.CallToolResult, StateResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("end turn: %w", err)
	}
	if err := live.EndTurn(ctx, input.ActorID); err != nil {
		return nil, StateResult{}, fmt.Errorf("end turn: %w", err)
	}
	state, err := live.State(ctx)
	if err != nil {
		return nil, StateResult{}, fmt.Errorf("end turn: %w", err)
	}
	return nil, stateResult(state), nil
}

func (s *Server) forceResetNarration(ctx context.Context, _ *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, AckResult, error) {
	live, err := s.manager.Session(input.CampaignID)
	if err != nil {
		return nil, AckResult{}, fmt.Errorf("force reset: %w", err)
	}
	if err := live.ForceResetNarration(ctx); err != nil {
		return nil, AckResult{}, fmt.Errorf("force reset: %w", err)
	}
	return nil, AckResult{Status: "idle"}, nil
}
