package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/agent"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/guardrail"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/llm"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/slots"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
)

// step is one scripted model exchange: it may mutate the turn context the
// way tool handlers would, and returns the candidate reply.
type step func(tc *agent.TurnContext) (*agent.Reply, error)

type scriptedResponder struct {
	steps []step
	pos   int
}

func (r *scriptedResponder) Run(ctx context.Context, ag agent.Agent, tc *agent.TurnContext, history []llm.Message, callerText string) (*agent.Reply, error) {
	if r.pos >= len(r.steps) {
		return nil, fmt.Errorf("unexpected model call %d", r.pos)
	}
	s := r.steps[r.pos]
	r.pos++
	return s(tc)
}

func say(text string, event domain.Event) step {
	return func(tc *agent.TurnContext) (*agent.Reply, error) {
		return &agent.Reply{Text: text, Event: event}, nil
	}
}

func testDeps(t *testing.T, responder Responder) Deps {
	t.Helper()
	cat := catalog.Default()
	guardCfg := &config.GuardrailConfig{
		ConfusionThreshold:     3,
		MaxSlotRetries:         3,
		MaxSessionErrors:       3,
		HallucinationBlocks:    true,
		FallbackUtterance:      "Sorry, I didn't catch that. Could you say it again?",
		ClaimFallbackUtterance: "I can share our standard pricing, and the technician can confirm on site.",
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	availability := tools.NewAvailabilityService(7)
	return Deps{
		Registry:  agent.NewRegistry(),
		Responder: responder,
		Pipeline: guardrail.NewPipeline(guardCfg.FallbackUtterance,
			guardrail.NewScope(cat),
			guardrail.NewHallucination(cat, guardCfg),
			guardrail.NewPersona(cat),
			guardrail.NewEscalation(cat, guardCfg),
		),
		Catalog:      cat,
		SlotDefs:     slots.Definitions(guardCfg, cat),
		Business:     &config.BusinessConfig{Name: "Apex Home Services", EmergencyLine: "000", CallbackSLAMinutes: 15},
		Guardrails:   guardCfg,
		Availability: availability,
		Bookings:     tools.NewBookingService(availability),
		Customers:    tools.NewCustomerService(),
		Log:          log,
	}
}

func fillSlots(tc *agent.TurnContext) {
	for _, v := range []struct{ slot, value string }{
		{"customer_name", "Jane Smith"},
		{"customer_phone", "0412345678"},
		{"service_type", "plumbing"},
		{"preferred_date", "2026-09-01"},
		{"preferred_time", "10:00"},
		{"customer_address", "12 Harbour St, Sydney"},
	} {
		if _, err := tc.Slots.Set(v.slot, v.value); err != nil {
			panic(err)
		}
	}
}

func TestHappyPathBooking(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Thanks for calling Apex Home Services, how can I help?", ""),
		say("I can book a plumber for you. Can I get your name?", domain.EventIntentBook),
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			_, _ = tc.Slots.Set("service_type", "plumbing")
			return &agent.Reply{Text: "Plumbing it is. What's your name?", Event: domain.EventServiceConfirmed}, nil
		},
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			fillSlots(tc)
			return &agent.Reply{Text: "Let me read that back to you.", Event: domain.EventAllSlotsFilled}, nil
		},
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			tc.Slots.ConfirmAll()
			return &agent.Reply{Text: "Great, checking availability now.", Event: domain.EventCallerConfirmed}, nil
		},
		say("Ten o'clock works, locking that in.", domain.EventTimeSelected),
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			tc.BookingRef = "BK-TEST01"
			return &agent.Reply{Text: "You're booked in. Your reference is BK-TEST01.", Event: domain.EventBookingSuccess}, nil
		},
		say("Thanks for calling, goodbye.", domain.EventGoodbye),
	}}

	s := NewSession("s-happy", testDeps(t, responder))
	utterances := []string{
		"hello",
		"I'd like to book a plumber",
		"plumbing please",
		"Jane Smith, 0412345678, September first at ten, 12 Harbour St",
		"yes that's all correct",
		"ten o'clock is perfect",
		"great",
		"no that's everything, bye",
	}
	wantStates := []domain.State{
		domain.StateIntentDetection,
		domain.StateServiceSelection,
		domain.StateSlotFilling,
		domain.StateSlotConfirmation,
		domain.StateAvailabilityCheck,
		domain.StateBookingCreation,
		domain.StateConfirmation,
		domain.StateFarewell,
	}

	for i, text := range utterances {
		out, err := s.ProcessTurn(context.Background(), text)
		require.NoError(t, err, "turn %d", i)
		assert.Equal(t, wantStates[i], out.State, "turn %d", i)
		assert.False(t, out.Turn.Failed, "turn %d", i)
	}

	require.True(t, s.Terminated())
	tr := s.Finalize()
	assert.Equal(t, domain.OutcomeBookingMade, tr.Outcome)
	assert.Equal(t, "BK-TEST01", tr.BookingRef)
	assert.Equal(t, domain.StateFarewell, tr.TerminalState)
	assert.Len(t, tr.Turns, 8)
	require.NoError(t, tr.Validate())

	// One handoff: intake to booking.
	assert.Equal(t, []domain.AgentRole{domain.RoleIntake, domain.RoleBooking}, tr.AgentsUsed)
	assert.Equal(t, 1, tr.HandoffCount)
}

func TestTurnAfterTerminationRejected(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
		say("Happy to help with pricing.", domain.EventIntentInfo),
		say("Anything else? No? Goodbye.", domain.EventSatisfied),
	}}
	s := NewSession("s-done", testDeps(t, responder))

	for _, text := range []string{"hi", "how much is a plumber?", "that's all thanks"} {
		_, err := s.ProcessTurn(context.Background(), text)
		require.NoError(t, err)
	}
	require.True(t, s.Terminated())

	_, err := s.ProcessTurn(context.Background(), "wait, one more thing")
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)

	tr := s.Finalize()
	assert.Equal(t, domain.OutcomeInfoProvided, tr.Outcome)
}

func TestEmergencyForcesEscalationBeforeModel(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Please leave the building now. What number can we call you back on?", ""),
	}}
	s := NewSession("s-gas", testDeps(t, responder))

	out, err := s.ProcessTurn(context.Background(), "help, there's a gas leak in my kitchen")
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, out.State)
	assert.Equal(t, domain.RoleEscalation, out.Turn.AgentRole)

	s.Abort("caller hung up after guidance")
	tr := s.Finalize()
	assert.Contains(t, tr.EscalationReason, "emergency keyword")
}

func TestModelFailureLeavesStateUntouched(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			_, _ = tc.Slots.Set("customer_name", "Partial")
			return nil, fmt.Errorf("provider timeout")
		},
		say("Hello!", ""),
	}}
	deps := testDeps(t, responder)
	s := NewSession("s-fail", deps)

	out, err := s.ProcessTurn(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, out.Turn.Failed)
	assert.Equal(t, domain.StateGreeting, out.State)
	assert.Equal(t, deps.Guardrails.FallbackUtterance, out.Reply)

	// The half-written slot rolled back with the turn.
	tr := s.Finalize()
	assert.Equal(t, domain.SlotUncollected, tr.Slots["customer_name"].Status)
	assert.Equal(t, 1, tr.ErrorCount)

	// The next turn proceeds normally.
	out, err = s.ProcessTurn(context.Background(), "hello?")
	require.NoError(t, err)
	assert.False(t, out.Turn.Failed)
	assert.Equal(t, domain.StateIntentDetection, out.State)
}

func TestUndeclaredEventFailsTurn(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
		say("Booked!", domain.EventBookingSuccess),
	}}
	s := NewSession("s-bad-event", testDeps(t, responder))

	_, err := s.ProcessTurn(context.Background(), "hi")
	require.NoError(t, err)

	out, err := s.ProcessTurn(context.Background(), "book me in")
	require.NoError(t, err)
	assert.True(t, out.Turn.Failed)
	assert.Equal(t, domain.StateErrorRecovery, out.State)
	assert.Equal(t, domain.EventRecoveryForced, out.Turn.Event)
}

func TestOffTopicRequestBlockedWithoutModelCall(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
	}}
	s := NewSession("s-scope", testDeps(t, responder))

	_, err := s.ProcessTurn(context.Background(), "hi")
	require.NoError(t, err)

	out, err := s.ProcessTurn(context.Background(), "can you give me legal advice about my landlord?")
	require.NoError(t, err)
	assert.Contains(t, out.Reply, "home services")
	assert.Equal(t, domain.StateIntentDetection, out.State)

	var blocked bool
	for _, v := range out.Turn.Verdicts {
		if v.Guardrail == "scope" && v.Decision == domain.VerdictBlock {
			blocked = true
		}
	}
	assert.True(t, blocked)
}

func TestErrorRecoveryDoubleHop(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
		say("Sorry, could you tell me a bit more?", domain.EventIntentUnclear),
		say("Got it, a plumber. Let's get you booked.", domain.EventIntentBook),
	}}
	s := NewSession("s-recovery", testDeps(t, responder))

	_, err := s.ProcessTurn(context.Background(), "hi")
	require.NoError(t, err)

	out, err := s.ProcessTurn(context.Background(), "um, the thing with the stuff")
	require.NoError(t, err)
	assert.Equal(t, domain.StateErrorRecovery, out.State)

	out, err = s.ProcessTurn(context.Background(), "my sink is leaking, I need a plumber")
	require.NoError(t, err)
	assert.Equal(t, domain.StateServiceSelection, out.State)

	tr := s.Finalize()
	assert.Equal(t, 1, tr.RecoveryCount)
}

func TestAgentRequestedHandoffEntersEscalation(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
		say("I can book a plumber for you.", domain.EventIntentBook),
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			tc.EscalationReason = "caller asked for the office line"
			return &agent.Reply{
				Text:  "Of course, let me get someone from the office for you.",
				Event: domain.EventEscalationForced,
			}, nil
		},
		say("Our team will call you right back. Goodbye.", domain.EventHandoffComplete),
	}}
	s := NewSession("s-handoff", testDeps(t, responder))

	for _, text := range []string{"hi", "I'd like to book a plumber"} {
		_, err := s.ProcessTurn(context.Background(), text)
		require.NoError(t, err)
	}

	out, err := s.ProcessTurn(context.Background(), "actually I'd rather arrange this with the office directly")
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, out.State)
	assert.False(t, out.Turn.Failed)
	assert.Equal(t, domain.EventEscalationForced, out.Turn.Event)

	out, err = s.ProcessTurn(context.Background(), "thanks, bye")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFarewell, out.State)

	require.True(t, s.Terminated())
	tr := s.Finalize()
	assert.Equal(t, domain.OutcomeEscalated, tr.Outcome)
	assert.Equal(t, "caller asked for the office line", tr.EscalationReason)
}

func TestAbortDuringModelCallDiscardsResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	responder := &scriptedResponder{steps: []step{
		func(tc *agent.TurnContext) (*agent.Reply, error) {
			close(entered)
			<-release
			return &agent.Reply{Text: "Hello!"}, nil
		},
	}}
	s := NewSession("s-late-reply", testDeps(t, responder))

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ProcessTurn(context.Background(), "hello")
		errCh <- err
	}()

	<-entered
	s.Abort("caller hung up")
	require.True(t, s.Terminated())

	close(release)
	assert.ErrorIs(t, <-errCh, domain.ErrSessionTerminated)

	// The late model result never reaches the frozen transcript.
	tr := s.Finalize()
	assert.Empty(t, tr.Turns)
	assert.Equal(t, domain.StateGreeting, tr.TerminalState)
	assert.Equal(t, domain.OutcomeCallerHungUp, tr.Outcome)
}

func TestRepeatedFailedTurnsForceEscalation(t *testing.T) {
	failing := func(tc *agent.TurnContext) (*agent.Reply, error) {
		return nil, fmt.Errorf("provider timeout")
	}
	responder := &scriptedResponder{steps: []step{
		failing, failing, failing,
		say("I'm going to have a team member call you right back.", ""),
	}}
	s := NewSession("s-errors", testDeps(t, responder))

	for i := 0; i < 3; i++ {
		out, err := s.ProcessTurn(context.Background(), "hello")
		require.NoError(t, err, "turn %d", i)
		assert.True(t, out.Turn.Failed, "turn %d", i)
	}

	// The error budget is spent, so the next turn goes to the escalation
	// agent before the model is consulted about intent.
	out, err := s.ProcessTurn(context.Background(), "okay, let's try again")
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, out.State)
	assert.Equal(t, domain.RoleEscalation, out.Turn.AgentRole)

	s.Abort("caller hung up")
	tr := s.Finalize()
	assert.Contains(t, tr.EscalationReason, "failed turns")
}

func TestFrustrationEscalatesViaRegistry(t *testing.T) {
	responder := &scriptedResponder{steps: []step{
		say("Hello!", ""),
		say("Of course, let me get someone for you. What's the best callback number?", ""),
	}}
	deps := testDeps(t, responder)
	r := NewRegistry(deps)

	s := r.Create()
	_, err := s.ProcessTurn(context.Background(), "hi")
	require.NoError(t, err)

	out, err := s.ProcessTurn(context.Background(), "this is useless, I want to speak to a person")
	require.NoError(t, err)
	assert.Equal(t, domain.StateEscalation, out.State)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	removed, err := r.Remove(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, removed)
	assert.Equal(t, 0, r.Count())

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
