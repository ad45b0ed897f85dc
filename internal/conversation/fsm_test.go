package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

func TestDeclaredTransitionCount(t *testing.T) {
	var n int
	for _, events := range transitions {
		n += len(events)
	}
	assert.Equal(t, 23, n)
}

func TestEveryStateDeclared(t *testing.T) {
	for _, state := range domain.AllStates {
		_, ok := transitions[state]
		assert.True(t, ok, "state %s missing from transition table", state)
	}
	for state, events := range transitions {
		assert.True(t, state.Valid(), "unknown source state %s", state)
		for event, next := range events {
			assert.True(t, next.Valid(), "transition %s/%s targets unknown state", state, event)
		}
	}
}

func TestFarewellIsTerminal(t *testing.T) {
	assert.Empty(t, transitions[domain.StateFarewell])
	assert.True(t, domain.StateFarewell.Terminal())
}

func TestHappyPathWalk(t *testing.T) {
	m := NewMachine()
	path := []struct {
		event domain.Event
		want  domain.State
	}{
		{domain.EventGreetingDelivered, domain.StateIntentDetection},
		{domain.EventIntentBook, domain.StateServiceSelection},
		{domain.EventServiceConfirmed, domain.StateSlotFilling},
		{domain.EventAllSlotsFilled, domain.StateSlotConfirmation},
		{domain.EventCallerConfirmed, domain.StateAvailabilityCheck},
		{domain.EventTimeSelected, domain.StateBookingCreation},
		{domain.EventBookingSuccess, domain.StateConfirmation},
		{domain.EventGoodbye, domain.StateFarewell},
	}
	for _, step := range path {
		got, err := m.Fire(step.event)
		require.NoError(t, err, "event %s", step.event)
		assert.Equal(t, step.want, got)
	}
	assert.True(t, m.Current().Terminal())
	assert.Len(t, m.Trace(), len(path)+1)
}

func TestUndeclaredTransitionFailsWithoutMoving(t *testing.T) {
	m := NewMachine()
	_, err := m.Fire(domain.EventBookingSuccess)
	assert.ErrorIs(t, err, domain.ErrNoTransition)
	assert.Equal(t, domain.StateGreeting, m.Current())
	assert.Len(t, m.Trace(), 1, "failed fire must not extend the trace")
}

func TestCorrectionLoopReturnsToSlotFilling(t *testing.T) {
	m := NewMachine()
	for _, e := range []domain.Event{
		domain.EventGreetingDelivered, domain.EventIntentBook,
		domain.EventServiceConfirmed, domain.EventAllSlotsFilled,
	} {
		_, err := m.Fire(e)
		require.NoError(t, err)
	}

	got, err := m.Fire(domain.EventCallerCorrected)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSlotFilling, got)

	got, err = m.Fire(domain.EventAllSlotsFilled)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSlotConfirmation, got)
	assert.Equal(t, 2, m.VisitCount(domain.StateSlotFilling))
}

func TestForceEscalateFromAnyNonTerminalState(t *testing.T) {
	m := NewMachine()
	for _, e := range []domain.Event{domain.EventGreetingDelivered, domain.EventIntentBook} {
		_, err := m.Fire(e)
		require.NoError(t, err)
	}

	got, err := m.ForceEscalate()
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, got)

	trace := m.Trace()
	assert.Equal(t, domain.EventEscalationForced, trace[len(trace)-1].Event)

	// Idempotent while already escalating.
	got, err = m.ForceEscalate()
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, got)
	assert.Len(t, m.Trace(), len(trace))
}

func TestForceEscalateRefusedAfterFarewell(t *testing.T) {
	m := NewMachine()
	for _, e := range []domain.Event{
		domain.EventGreetingDelivered, domain.EventIntentInfo, domain.EventSatisfied,
	} {
		_, err := m.Fire(e)
		require.NoError(t, err)
	}
	_, err := m.ForceEscalate()
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)
}

func TestEscalationAlwaysReachable(t *testing.T) {
	// From every non-terminal state there must be a path to ESCALATION,
	// via the declared table or the forced edge.
	for _, state := range domain.AllStates {
		if state.Terminal() {
			continue
		}
		m := &Machine{current: state, now: time.Now}
		_, err := m.ForceEscalate()
		assert.NoError(t, err, "state %s", state)
		assert.Equal(t, domain.StateEscalation, m.Current())
	}
}
