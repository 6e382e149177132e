package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/loreforge/loreforge/internal/engine/campaign"
	"github.com/loreforge/loreforge/internal/engine/character"
	"github.com/loreforge/loreforge/internal/engine/combat"
	"github.com/loreforge/loreforge/internal/engine/dice"
	"github.com/loreforge/loreforge/internal/engine/grid"
	"github.com/loreforge/loreforge/internal/engine/mediation"
	"github.com/loreforge/loreforge/internal/engine/monster"
	"github.com/loreforge/loreforge/internal/engine/turn"
	"github.com/loreforge/loreforge/internal/narration"
	apperrors "github.com/loreforge/loreforge/internal/platform/errors"
)

const (
	// recentEventLimit bounds how much journal context the narrator sees.
	recentEventLimit = 12
	// maxMonsterTurns bounds the automatic monster turn loop per EndTurn.
	maxMonsterTurns = 32

	cmdQueueSize = 16
)

// Update is one state broadcast to watchers: the full state after a
// transition plus the events that transition emitted.
type Update struct {
	State  campaign.State
	Events []campaign.Event
}

// CombatActionKind names a combat action a player can submit.
type CombatActionKind string

const (
	ActionAttack    CombatActionKind = "attack"
	ActionMove      CombatActionKind = "move"
	ActionDisengage CombatActionKind = "disengage"
)

// CombatAction is one combat submission from the current unit's player.
type CombatAction struct {
	Kind     CombatActionKind
	ActorID  string
	TargetID string
	Path     []grid.Position
}

// Session is the live, exclusively-owned instance of one campaign. All
// methods are safe for concurrent use; they enqueue onto the actor goroutine
// and wait for the result.
type Session struct {
	manager    *Manager
	campaignID string
	engine     combat.Engine
	mediator   mediation.Mediator

	cmds   chan func()
	closed chan struct{}

	// Owned by the actor goroutine.
	state           campaign.State
	phase           combat.Phase
	thinking        bool
	narrationGen    uint64
	cancelNarration context.CancelFunc
	pending         []campaign.Event
	watchers        map[chan Update]struct{}
	exited          bool
}

func newSession(m *Manager, state campaign.State) *Session {
	return &Session{
		manager:    m,
		campaignID: state.Campaign.ID,
		engine:     combat.New(m.dice),
		mediator:   mediation.New(m.clock, m.idGenerator),
		cmds:       make(chan func(), cmdQueueSize),
		closed:     make(chan struct{}),
		state:      state,
		phase:      combat.PhaseClosed,
		watchers:   make(map[chan Update]struct{}),
	}
}

// CampaignID returns the owning campaign's id.
func (s *Session) CampaignID() string { return s.campaignID }

func (s *Session) run() {
	for fn := range s.cmds {
		fn()
		if s.exited {
			close(s.closed)
			// Drain commands that were queued before the close so their
			// callers observe SESSION_EXITED instead of hanging.
			for {
				select {
				case fn := <-s.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

var errSessionExited = apperrors.New(apperrors.CodeSessionExited, "session has exited")

// do runs fn on the actor goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context) error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func() { errc <- fn(ctx) }:
	case <-s.closed:
		return errSessionExited
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		select {
		case err := <-errc:
			return err
		default:
			return errSessionExited
		}
	}
}

// post enqueues fn without waiting. Used by narration completions; a closed
// session drops them.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.closed:
	}
}

// State returns a snapshot of the live state.
func (s *Session) State(ctx context.Context) (campaign.State, error) {
	var snapshot campaign.State
	err := s.do(ctx, func(context.Context) error {
		if s.exited {
			return errSessionExited
		}
		snapshot = s.state.Clone()
		return nil
	})
	return snapshot, err
}

// Watch subscribes to state updates. The returned cancel func must be called
// when the watcher is done. Slow watchers miss intermediate updates; every
// update carries the full state, so the next one catches them up.
func (s *Session) Watch(ctx context.Context) (<-chan Update, func(), error) {
	ch := make(chan Update, 8)
	err := s.do(ctx, func(context.Context) error {
		if s.exited {
			return errSessionExited
		}
		s.watchers[ch] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	cancel := func() {
		_ = s.do(context.Background(), func(context.Context) error {
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

func (s *Session) broadcast(events []campaign.Event) {
	if len(s.watchers) == 0 {
		return
	}
	update := Update{State: s.state.Clone(), Events: events}
	for ch := range s.watchers {
		select {
		case ch <- update:
		default:
		}
	}
}

// flush persists the campaign, party and any unflushed events as one logical
// save. On failure the events stay queued so a later flush retries them.
func (s *Session) flush(ctx context.Context, events []campaign.Event) error {
	s.pending = append(s.pending, events...)
	if len(s.pending) > 0 {
		if err := s.manager.store.AppendEvents(ctx, s.campaignID, s.pending); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
		s.pending = nil
	}
	if err := s.manager.store.PutCampaign(ctx, s.state.Campaign); err != nil {
		return fmt.Errorf("persist campaign: %w", err)
	}
	for _, ch := range s.state.Characters {
		if err := s.manager.store.PutCharacter(ctx, s.campaignID, ch); err != nil {
			return fmt.Errorf("persist character: %w", err)
		}
	}
	return nil
}

// commit applies a transition result: store the new state, persist and
// broadcast.
func (s *Session) commit(ctx context.Context, next campaign.State, events []campaign.Event) error {
	s.state = next
	err := s.flush(ctx, events)
	s.broadcast(events)
	return err
}

func (s *Session) logSystem(ctx context.Context, text string) error {
	next, events, err := s.state.LogEvent(campaign.EventInput{
		Type: campaign.EventSystem,
		Text: text,
		Now:  s.manager.clock(),
	})
	if err != nil {
		return err
	}
	return s.commit(ctx, next, events)
}

// SubmitPlayerAction records the player's free-text action and dispatches a
// narration round trip. Empty text requests a scene-setting beat without a
// player action event. Rejected with ALREADY_THINKING while a narration is
// in flight.
func (s *Session) SubmitPlayerAction(ctx context.Context, actorID, text string) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return errSessionExited
		}
		if s.thinking {
			return apperrors.WithFields(apperrors.CodeAlreadyThinking,
				"a narration is already in flight", map[string]string{"campaign_id": s.campaignID})
		}
		if err := s.state.RequireTurn(actorID); err != nil {
			return err
		}
		if text != "" {
			before := s.state.Campaign.Clock
			next, events, err := s.state.LogEvent(campaign.EventInput{
				Type:    campaign.EventPlayerAction,
				ActorID: actorID,
				Text:    text,
				Now:     s.manager.clock(),
			})
			if err != nil {
				return err
			}
			// Crossing into a new time segment rerolls the weather.
			if clock := next.Campaign.Clock; clock.Segment != before.Segment || clock.Day != before.Day {
				roll, err := dice.RollDie(s.manager.dice, 20)
				if err != nil {
					return err
				}
				wnext, wevents, err := next.ApplyWeatherRoll(roll, s.manager.clock())
				if err != nil {
					return err
				}
				next = wnext
				events = append(events, wevents...)
			}
			if err := s.commit(ctx, next, events); err != nil {
				return err
			}
		}
		s.dispatchNarration(actorID, text)
		return nil
	})
}

// dispatchNarration starts the asynchronous narration round trip. Actor
// goroutine only.
func (s *Session) dispatchNarration(actorID, text string) {
	s.thinking = true
	s.narrationGen++
	gen := s.narrationGen
	turnID := s.state.Campaign.TurnSeq

	nctx, cancel := context.WithTimeout(context.Background(), s.manager.timeout)
	s.cancelNarration = cancel

	actorName := actorID
	if ch, ok := s.state.Characters[actorID]; ok {
		actorName = ch.Name
	}
	req := narration.Request{
		Snapshot:     narration.BuildSnapshot(s.state),
		RecentEvents: narration.RecentEventTexts(s.state.Events, recentEventLimit),
		PlayerAction: text,
		ActorName:    actorName,
		Locale:       s.state.Campaign.Settings.Locale,
	}

	go func() {
		defer cancel()
		spanCtx, span := otel.Tracer("loreforge/session").Start(nctx, "narration.generate")
		resp, err := s.manager.narrator.GenerateResponse(spanCtx, req)
		if err != nil {
			if sc := trace.SpanFromContext(spanCtx).SpanContext(); sc.IsValid() {
				log.Printf("narration error campaign_id=%s trace_id=%s error=%v", s.campaignID, sc.TraceID(), err)
			}
		}
		span.End()
		s.post(func() { s.completeNarration(gen, turnID, resp, err) })
	}()
}

// completeNarration applies a narration response. A response whose
// generation or turn token no longer matches is stale; it leaves no trace
// beyond a diagnostic event.
func (s *Session) completeNarration(gen, turnID uint64, resp narration.Response, err error) {
	if s.exited {
		return
	}
	ctx := context.Background()
	if gen != s.narrationGen || turnID != s.state.Campaign.TurnSeq {
		if gen == s.narrationGen {
			// The discarded response was still the in-flight request; the
			// session is idle again.
			s.thinking = false
			s.cancelNarration = nil
		}
		log.Printf("narration discarded campaign_id=%s turn_id=%d", s.campaignID, turnID)
		if err := s.logSystem(ctx, "diagnostic: stale narration discarded"); err != nil {
			log.Printf("log discard failed campaign_id=%s error=%v", s.campaignID, err)
		}
		return
	}

	s.thinking = false
	s.cancelNarration = nil

	if err != nil {
		log.Printf("narration failed campaign_id=%s error=%v", s.campaignID, err)
		if err := s.logSystem(ctx, "the narrator could not respond; try again"); err != nil {
			log.Printf("log failure failed campaign_id=%s error=%v", s.campaignID, err)
		}
		return
	}

	next, events, err := s.mediator.Apply(s.state, resp.ToolCalls)
	if err != nil {
		log.Printf("mediation failed campaign_id=%s error=%v", s.campaignID, err)
		if err := s.logSystem(ctx, "the narrator could not respond; try again"); err != nil {
			log.Printf("log failure failed campaign_id=%s error=%v", s.campaignID, err)
		}
		return
	}
	s.state = next
	all := events

	if resp.Narration != "" {
		next, events, err = s.state.LogEvent(campaign.EventInput{
			Type: campaign.EventDMNarration,
			Text: resp.Narration,
			Now:  s.manager.clock(),
		})
		if err == nil {
			s.state = next
			all = append(all, events...)
		}
	}

	if err := s.flush(ctx, all); err != nil {
		log.Printf("flush failed campaign_id=%s error=%v", s.campaignID, err)
	}
	s.broadcast(all)
}

// ForceResetNarration cancels an in-flight narration and returns the session
// to idle. A no-op when nothing is in flight.
func (s *Session) ForceResetNarration(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return errSessionExited
		}
		if !s.thinking {
			return nil
		}
		s.cancelNarration()
		s.cancelNarration = nil
		s.thinking = false
		s.narrationGen++
		log.Printf("narration reset campaign_id=%s", s.campaignID)
		return s.logSystem(ctx, "the narration was interrupted by a forced reset")
	})
}

// StartCombat rolls initiative against the given monsters and switches the
// campaign to combat mode.
func (s *Session) StartCombat(ctx context.Context, monsters []monster.Instance) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return errSessionExited
		}
		if s.thinking {
			return apperrors.WithFields(apperrors.CodeAlreadyThinking,
				"a narration is already in flight", map[string]string{"campaign_id": s.campaignID})
		}
		prev := s.phase
		s.phase = combat.PhaseForming
		next, events, err := s.engine.Start(s.state, monsters, s.manager.clock())
		if err != nil {
			s.phase = prev
			return err
		}
		if err := s.commit(ctx, next, events); err != nil {
			return err
		}
		s.advancePhase(combat.PhaseActive)
		return nil
	})
}

// advancePhase steps the encounter lifecycle. An out-of-order jump is a
// programming error; it is logged and refused. Actor goroutine only.
func (s *Session) advancePhase(to combat.Phase) {
	if !combat.ValidTransition(s.phase, to) {
		log.Printf("refused phase transition campaign_id=%s from=%s to=%s", s.campaignID, s.phase, to)
		return
	}
	s.phase = to
}

// SubmitCombatAction applies one combat action for the current unit, then
// checks for combat termination.
func (s *Session) SubmitCombatAction(ctx context.Context, action CombatAction) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return errSessionExited
		}
		if s.thinking {
			return apperrors.WithFields(apperrors.CodeAlreadyThinking,
				"a narration is already in flight", map[string]string{"campaign_id": s.campaignID})
		}
		now := s.manager.clock()

		var (
			next   campaign.State
			events []campaign.Event
			err    error
		)
		switch action.Kind {
		case ActionAttack:
			next, events, err = s.engine.Attack(s.state, action.ActorID, action.TargetID, now)
		case ActionMove:
			next, events, err = s.engine.Move(s.state, action.ActorID, action.Path, now)
		case ActionDisengage:
			next, events, err = s.disengage(action.ActorID, now)
		default:
			return apperrors.WithFields(apperrors.CodeInvalidTarget,
				"unknown combat action", map[string]string{"kind": string(action.Kind)})
		}
		if err != nil {
			return err
		}
		s.state = next

		next, tEvents, outcome, err := s.engine.CheckTermination(s.state, now)
		if err != nil {
			return err
		}
		if outcome != combat.OutcomeOngoing {
			s.advancePhase(combat.PhaseConcluding)
			s.advancePhase(combat.PhaseClosed)
		}
		events = append(events, tEvents...)
		return s.commit(ctx, next, events)
	})
}

// disengage spends the unit's action to gain the disengaged condition until
// its next turn.
func (s *Session) disengage(actorID string, now time.Time) (campaign.State, []campaign.Event, error) {
	if s.state.Campaign.Mode != campaign.ModeCombat {
		return campaign.State{}, nil, apperrors.New(apperrors.CodeCampaignNotInCombat, "campaign is not in combat")
	}
	if err := s.state.RequireTurn(actorID); err != nil {
		return campaign.State{}, nil, err
	}
	next, err := s.state.SpendSlot(turn.SlotAction)
	if err != nil {
		return campaign.State{}, nil, err
	}
	return next.SetCondition(actorID, character.ConditionDisengaged, true, now)
}

// EndTurn advances the initiative, then plays any monster turns until the
// next character's turn or the end of combat.
func (s *Session) EndTurn(ctx context.Context, actorID string) error {
	return s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return errSessionExited
		}
		if s.thinking {
			return apperrors.WithFields(apperrors.CodeAlreadyThinking,
				"a narration is already in flight", map[string]string{"campaign_id": s.campaignID})
		}
		if err := s.state.RequireTurn(actorID); err != nil {
			return err
		}
		next, events, err := s.state.AdvanceTurn(s.manager.clock())
		if err != nil {
			return err
		}
		s.state = next

		events, err = s.runMonsterTurns(events)
		if err != nil {
			return err
		}
		return s.commit(ctx, s.state, events)
	})
}

// runMonsterTurns plays consecutive monster turns. Actor goroutine only.
func (s *Session) runMonsterTurns(events []campaign.Event) ([]campaign.Event, error) {
	for i := 0; i < maxMonsterTurns; i++ {
		if s.state.Campaign.Mode != campaign.ModeCombat {
			break
		}
		holder := s.state.TurnHolder()
		unit, ok := s.state.Unit(holder)
		if !ok || unit.Kind != campaign.UnitMonster {
			break
		}
		now := s.manager.clock()

		next, turnEvents, err := s.engine.MonsterTurn(s.state, holder, now)
		if err != nil {
			return events, err
		}
		s.state = next
		events = append(events, turnEvents...)

		next, endEvents, outcome, err := s.engine.CheckTermination(s.state, now)
		if err != nil {
			return events, err
		}
		s.state = next
		events = append(events, endEvents...)
		if outcome != combat.OutcomeOngoing {
			s.advancePhase(combat.PhaseConcluding)
			s.advancePhase(combat.PhaseClosed)
			break
		}

		next, advanceEvents, err := s.state.AdvanceTurn(now)
		if err != nil {
			return events, err
		}
		s.state = next
		events = append(events, advanceEvents...)
	}
	return events, nil
}

// Exit flushes one coherent snapshot and releases the in-memory instance.
// Idempotent; a second call is a no-op. Ephemeral combat bookkeeping does
// not survive the session.
func (s *Session) Exit(ctx context.Context) error {
	err := s.do(ctx, func(ctx context.Context) error {
		if s.exited {
			return nil
		}
		if s.cancelNarration != nil {
			s.cancelNarration()
			s.cancelNarration = nil
			s.thinking = false
		}
		if s.state.Campaign.Mode == campaign.ModeCombat {
			next, events, err := s.state.EndCombat(s.manager.clock())
			if err == nil {
				s.state = next
				s.pending = append(s.pending, events...)
			}
			// An abandoned encounter concludes on the way out.
			s.advancePhase(combat.PhaseConcluding)
			s.advancePhase(combat.PhaseClosed)
		}
		if err := s.flush(ctx, nil); err != nil {
			// State stays live so the caller can retry the exit.
			return err
		}
		for ch := range s.watchers {
			close(ch)
		}
		s.watchers = make(map[chan Update]struct{})
		s.exited = true
		s.manager.release(s.campaignID)
		log.Printf("session exited campaign_id=%s", s.campaignID)
		return nil
	})
	if apperrors.CodeOf(err) == apperrors.CodeSessionExited {
		return nil
	}
	return err
}
