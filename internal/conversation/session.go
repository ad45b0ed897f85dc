package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/agent"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/guardrail"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/llm"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/slots"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
)

// Responder produces the agent's side of one exchange. agent.Runner is the
// production implementation; tests substitute a scripted one.
type Responder interface {
	Run(ctx context.Context, ag agent.Agent, tc *agent.TurnContext, history []llm.Message, callerText string) (*agent.Reply, error)
}

// Deps bundles the shared services a session needs.
type Deps struct {
	Registry     *agent.Registry
	Responder    Responder
	Pipeline     *guardrail.Pipeline
	Catalog      *catalog.Catalog
	SlotDefs     []slots.Definition
	Business     *config.BusinessConfig
	Guardrails   *config.GuardrailConfig
	Availability *tools.AvailabilityService
	Bookings     *tools.BookingService
	Customers    *tools.CustomerService
	Log          *logrus.Logger
}

// TurnOutput is what the caller-facing transport gets back for one turn.
type TurnOutput struct {
	Reply string
	State domain.State
	Turn  domain.Turn
}

// Session drives one caller through the conversation flow. Turns are
// strictly sequential: a second turn arriving while one is in flight is
// rejected, and anything arriving after termination is discarded.
type Session struct {
	ID string

	deps    Deps
	machine *Machine
	slots   *slots.Manager
	log     *logrus.Entry

	mu         sync.Mutex
	inTurn     bool
	terminated bool
	aborted    bool

	history          []llm.Message
	turns            []domain.Turn
	agentsUsed       []domain.AgentRole
	handoffCount     int
	errorCount       int
	recoveryCount    int
	confusionStreak  int
	escalationReason string
	bookingRef       string
	bookingFailed    bool
	startedAt        time.Time
	endedAt          time.Time
}

func NewSession(id string, deps Deps) *Session {
	return &Session{
		ID:        id,
		deps:      deps,
		machine:   NewMachine(),
		slots:     slots.NewManager(deps.SlotDefs),
		log:       deps.Log.WithField("session_id", id),
		startedAt: time.Now().UTC(),
	}
}

// State returns the session's current conversation state.
func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// Terminated reports whether the session has reached FAREWELL or been
// aborted.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// ProcessTurn runs one caller utterance through the full pipeline:
// pre-model guardrails, agent and tools, post-model guardrails, then the
// state transition. Session state only moves when the whole turn commits;
// a failed turn rolls the slots back and leaves the state untouched.
func (s *Session) ProcessTurn(ctx context.Context, callerText string) (*TurnOutput, error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return nil, domain.ErrSessionTerminated
	}
	if s.inTurn {
		s.mu.Unlock()
		return nil, domain.ErrTurnInProgress
	}
	s.inTurn = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inTurn = false
		s.mu.Unlock()
	}()

	started := time.Now()
	stateBefore := s.machine.Current()
	snapshot := s.slots.Snapshot()

	turn := domain.Turn{
		Index:       len(s.turns),
		CallerText:  callerText,
		StateBefore: stateBefore,
		Timestamp:   started.UTC(),
	}

	// Pre-model guardrails. A forced escalation lands here, at the turn
	// boundary, so this turn is already handled by the escalation agent.
	pre := s.deps.Pipeline.Run(ctx, guardrail.Input{
		Stage:           domain.StagePreLLM,
		CallerText:      callerText,
		State:           stateBefore,
		ConfusionStreak: s.confusionStreak,
		SlotFailures:    s.slots.MaxCorrections(),
		ErrorCount:      s.errorCount,
	})
	turn.Verdicts = append(turn.Verdicts, pre.Verdicts...)

	if pre.Escalate {
		if s.escalationReason == "" {
			s.escalationReason = pre.EscalateReason
		}
		if _, err := s.machine.ForceEscalate(); err == nil {
			s.log.WithField("reason", pre.EscalateReason).Info("forced escalation")
		}
	}

	state := s.machine.Current()
	turn.AgentRole = agent.RoleFor(state)

	var reply *agent.Reply
	if pre.Blocked {
		// The caller's request was off limits; deliver the redirect
		// without consulting the model.
		reply = &agent.Reply{Text: pre.Text}
	} else {
		var err error
		reply, err = s.runAgent(ctx, state, callerText)
		if err != nil {
			s.slots.Restore(snapshot)
			s.errorCount++
			turn.Failed = true
			turn.AgentText = s.deps.Guardrails.FallbackUtterance
			turn.StateAfter = stateBefore
			turn.LatencyMs = int(time.Since(started).Milliseconds())
			s.commitTurn(turn)
			s.log.WithError(err).Warn("turn failed, state unchanged")
			return &TurnOutput{Reply: turn.AgentText, State: stateBefore, Turn: turn}, nil
		}
	}

	// The caller may have hung up while the model was thinking. A result
	// arriving after termination is discarded, never applied to the frozen
	// transcript.
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		s.slots.Restore(snapshot)
		return nil, domain.ErrSessionTerminated
	}
	s.mu.Unlock()

	// Post-model guardrails inspect the candidate before the caller hears
	// it.
	post := s.deps.Pipeline.Run(ctx, guardrail.Input{
		Stage:      domain.StagePostLLM,
		CallerText: callerText,
		AgentText:  reply.Text,
		State:      state,
	})
	turn.Verdicts = append(turn.Verdicts, post.Verdicts...)
	delivered := post.Text
	if delivered == "" {
		delivered = s.deps.Guardrails.FallbackUtterance
	}

	turn.AgentText = delivered
	turn.ToolCalls = reply.Invocations

	if err := s.applyEvent(&turn, reply.Event); err != nil {
		// A transition error is fatal to the turn, never silently ignored:
		// the slots roll back and the session drops into error recovery.
		s.slots.Restore(snapshot)
		s.errorCount++
		turn.Failed = true
		if _, rerr := s.machine.ForceRecover(); rerr == nil {
			turn.Event = domain.EventRecoveryForced
		}
		turn.StateAfter = s.machine.Current()
		turn.LatencyMs = int(time.Since(started).Milliseconds())
		s.commitTurn(turn)
		s.log.WithError(err).Warn("undeclared transition, entering error recovery")
		return &TurnOutput{Reply: delivered, State: turn.StateAfter, Turn: turn}, nil
	}

	turn.StateAfter = s.machine.Current()
	turn.LatencyMs = int(time.Since(started).Milliseconds())

	s.history = append(s.history,
		llm.Message{Role: "user", Content: callerText},
		llm.Message{Role: "assistant", Content: delivered},
	)

	s.commitTurn(turn)
	return &TurnOutput{Reply: delivered, State: turn.StateAfter, Turn: turn}, nil
}

func (s *Session) runAgent(ctx context.Context, state domain.State, callerText string) (*agent.Reply, error) {
	ag, err := s.deps.Registry.ForState(state)
	if err != nil {
		return nil, err
	}

	tc := &agent.TurnContext{
		SessionID:        s.ID,
		State:            state,
		Slots:            s.slots,
		Catalog:          s.deps.Catalog,
		Business:         s.deps.Business,
		Availability:     s.deps.Availability,
		Bookings:         s.deps.Bookings,
		Customers:        s.deps.Customers,
		EscalationReason: s.escalationReason,
		BookingRef:       s.bookingRef,
	}

	reply, err := s.deps.Responder.Run(ctx, ag, tc, s.history, callerText)
	if err != nil {
		return nil, err
	}

	if tc.BookingRef != "" {
		s.bookingRef = tc.BookingRef
	}
	if tc.EscalationReason != "" {
		s.escalationReason = tc.EscalationReason
	}
	return reply, nil
}

// applyEvent drives the state machine for one committed turn. The greeting
// and error-recovery states take an implicit hop first so a decisive first
// answer does not stall the flow.
func (s *Session) applyEvent(turn *domain.Turn, event domain.Event) error {
	state := s.machine.Current()

	if state == domain.StateGreeting {
		if _, err := s.machine.Fire(domain.EventGreetingDelivered); err != nil {
			return err
		}
		turn.Event = domain.EventGreetingDelivered
		state = s.machine.Current()
	}

	if event == "" {
		s.trackConfusion(domain.Event(""))
		return nil
	}

	// Agents request a human handoff with the same forced edge the
	// escalation guardrail uses; it is legal from any non-terminal state.
	if event == domain.EventEscalationForced {
		if _, err := s.machine.ForceEscalate(); err != nil {
			return err
		}
		turn.Event = event
		s.trackConfusion(event)
		return nil
	}

	if state == domain.StateErrorRecovery && isIntentEvent(event) {
		if _, err := s.machine.Fire(domain.EventCorrectionReceived); err != nil {
			return err
		}
		s.recoveryCount++
	}

	if _, err := s.machine.Fire(event); err != nil {
		return err
	}
	turn.Event = event
	s.trackConfusion(event)
	return nil
}

func (s *Session) trackConfusion(event domain.Event) {
	if event == domain.EventIntentUnclear {
		s.confusionStreak++
		return
	}
	if event != "" {
		s.confusionStreak = 0
	}
}

func isIntentEvent(event domain.Event) bool {
	switch event {
	case domain.EventIntentBook, domain.EventIntentInfo,
		domain.EventIntentEmergency, domain.EventIntentHuman:
		return true
	}
	return false
}

func (s *Session) commitTurn(turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Termination won the race: the transcript is already frozen.
	if s.terminated {
		return
	}

	if len(s.agentsUsed) == 0 || s.agentsUsed[len(s.agentsUsed)-1] != turn.AgentRole {
		if len(s.agentsUsed) > 0 {
			s.handoffCount++
		}
		s.agentsUsed = append(s.agentsUsed, turn.AgentRole)
	}
	if turn.Event == domain.EventBookingFailed {
		s.bookingFailed = true
	}
	s.turns = append(s.turns, turn)

	if s.machine.Current().Terminal() {
		s.terminated = true
		s.endedAt = time.Now().UTC()
	}
}

// Abort ends the session early, recording why. Used when the caller hangs
// up or the transport drops.
func (s *Session) Abort(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	s.aborted = true
	s.endedAt = time.Now().UTC()
	if s.escalationReason == "" {
		s.escalationReason = reason
	}
	s.log.WithField("reason", reason).Info("session aborted")
}

// Finalize freezes the session into its immutable transcript. Only
// meaningful once the session has terminated.
func (s *Session) Finalize() *domain.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	ended := s.endedAt
	if ended.IsZero() {
		ended = time.Now().UTC()
	}

	return &domain.Transcript{
		SchemaVersion:    domain.TranscriptSchemaVersion,
		SessionID:        s.ID,
		StartedAt:        s.startedAt,
		EndedAt:          ended,
		DurationSeconds:  ended.Sub(s.startedAt).Seconds(),
		Outcome:          s.outcome(),
		TerminalState:    s.machine.Current(),
		StateTrace:       s.machine.Trace(),
		Turns:            append([]domain.Turn(nil), s.turns...),
		Slots:            s.slots.States(),
		AgentsUsed:       append([]domain.AgentRole(nil), s.agentsUsed...),
		HandoffCount:     s.handoffCount,
		ErrorCount:       s.errorCount,
		RecoveryCount:    s.recoveryCount,
		EscalationReason: s.escalationReason,
		BookingRef:       s.bookingRef,
	}
}

func (s *Session) outcome() domain.Outcome {
	switch {
	case s.bookingRef != "":
		return domain.OutcomeBookingMade
	case s.bookingFailed:
		return domain.OutcomeBookingFailed
	case s.aborted:
		return domain.OutcomeCallerHungUp
	case s.machine.VisitCount(domain.StateEscalation) > 0:
		return domain.OutcomeEscalated
	case s.machine.VisitCount(domain.StateInfoResponse) > 0:
		return domain.OutcomeInfoProvided
	case s.errorCount > 0 && s.machine.Current() != domain.StateFarewell:
		return domain.OutcomeError
	default:
		return domain.OutcomeCallerHungUp
	}
}
