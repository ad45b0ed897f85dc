// Package conversation implements the orchestration core: the state
// machine that owns all conversation flow, and the session that drives one
// caller through it turn by turn.
package conversation

import (
	"fmt"
	"time"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// transitions is the complete declared flow. Every legal move appears
// here; an event with no entry for the current state is an error, never a
// silent no-op. The single exception is ForceEscalate, which the
// escalation guardrail may apply from any non-terminal state.
var transitions = map[domain.State]map[domain.Event]domain.State{
	domain.StateGreeting: {
		domain.EventGreetingDelivered: domain.StateIntentDetection,
	},
	domain.StateIntentDetection: {
		domain.EventIntentBook:      domain.StateServiceSelection,
		domain.EventIntentInfo:      domain.StateInfoResponse,
		domain.EventIntentEmergency: domain.StateEscalation,
		domain.EventIntentHuman:     domain.StateEscalation,
		domain.EventIntentUnclear:   domain.StateErrorRecovery,
	},
	domain.StateServiceSelection: {
		domain.EventServiceConfirmed: domain.StateSlotFilling,
	},
	domain.StateSlotFilling: {
		domain.EventAllSlotsFilled: domain.StateSlotConfirmation,
		domain.EventMaxRetries:     domain.StateErrorRecovery,
	},
	domain.StateSlotConfirmation: {
		domain.EventCallerConfirmed: domain.StateAvailabilityCheck,
		domain.EventCallerCorrected: domain.StateSlotFilling,
	},
	domain.StateAvailabilityCheck: {
		domain.EventTimeSelected:        domain.StateBookingCreation,
		domain.EventNoAvailability:      domain.StateSlotFilling,
		domain.EventNoAvailabilityAtAll: domain.StateEscalation,
	},
	domain.StateBookingCreation: {
		domain.EventBookingSuccess: domain.StateConfirmation,
		domain.EventBookingFailed:  domain.StateEscalation,
	},
	domain.StateConfirmation: {
		domain.EventGoodbye:  domain.StateFarewell,
		domain.EventFollowUp: domain.StateInfoResponse,
	},
	domain.StateInfoResponse: {
		domain.EventWantsToBook: domain.StateServiceSelection,
		domain.EventSatisfied:   domain.StateFarewell,
	},
	domain.StateErrorRecovery: {
		domain.EventCorrectionReceived: domain.StateIntentDetection,
		domain.EventRecoveryFailed:     domain.StateEscalation,
	},
	domain.StateEscalation: {
		domain.EventHandoffComplete: domain.StateFarewell,
	},
	domain.StateFarewell: {},
}

// Machine is one session's walk through the conversation flow. It is not
// safe for concurrent use; the owning session serializes access.
type Machine struct {
	current domain.State
	trace   []domain.StateVisit
	now     func() time.Time
}

func NewMachine() *Machine {
	m := &Machine{current: domain.StateGreeting, now: time.Now}
	m.trace = append(m.trace, domain.StateVisit{
		State:     domain.StateGreeting,
		EnteredAt: m.now().UTC(),
	})
	return m
}

// Current returns the state the machine is in.
func (m *Machine) Current() domain.State {
	return m.current
}

// Trace returns the ordered list of states visited.
func (m *Machine) Trace() []domain.StateVisit {
	out := make([]domain.StateVisit, len(m.trace))
	copy(out, m.trace)
	return out
}

// CanFire reports whether an event has a declared transition from the
// current state.
func (m *Machine) CanFire(event domain.Event) bool {
	_, ok := transitions[m.current][event]
	return ok
}

// Fire applies an event. Undeclared transitions fail without changing
// state.
func (m *Machine) Fire(event domain.Event) (domain.State, error) {
	next, ok := transitions[m.current][event]
	if !ok {
		return m.current, fmt.Errorf("%w: %s from %s", domain.ErrNoTransition, event, m.current)
	}
	m.enter(next, event)
	return next, nil
}

// ForceEscalate jumps to ESCALATION regardless of the declared table. It
// is reserved for the escalation guardrail and refuses to act on a
// terminal session or when already escalating.
func (m *Machine) ForceEscalate() (domain.State, error) {
	if m.current.Terminal() {
		return m.current, domain.ErrSessionTerminated
	}
	if m.current == domain.StateEscalation {
		return m.current, nil
	}
	m.enter(domain.StateEscalation, domain.EventEscalationForced)
	return m.current, nil
}

// ForceRecover jumps to ERROR_RECOVERY after a fatal turn error, so a
// broken turn is never silently swallowed and the next turn asks the
// caller to clarify.
func (m *Machine) ForceRecover() (domain.State, error) {
	if m.current.Terminal() {
		return m.current, domain.ErrSessionTerminated
	}
	if m.current == domain.StateErrorRecovery {
		return m.current, nil
	}
	m.enter(domain.StateErrorRecovery, domain.EventRecoveryForced)
	return m.current, nil
}

func (m *Machine) enter(next domain.State, event domain.Event) {
	m.current = next
	m.trace = append(m.trace, domain.StateVisit{
		State:     next,
		Event:     event,
		EnteredAt: m.now().UTC(),
	})
}

// VisitCount returns how many times a state appears in the trace.
func (m *Machine) VisitCount(state domain.State) int {
	var n int
	for _, v := range m.trace {
		if v.State == state {
			n++
		}
	}
	return n
}
