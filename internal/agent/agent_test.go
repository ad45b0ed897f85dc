package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/slots"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
)

func testTurnContext(t *testing.T, state domain.State) *TurnContext {
	t.Helper()
	cat := catalog.Default()
	guard := &config.GuardrailConfig{MaxSlotRetries: 3, MaxToolAttempts: 4}
	availability := tools.NewAvailabilityService(7)
	return &TurnContext{
		SessionID:    "test-session",
		State:        state,
		Slots:        slots.NewManager(slots.Definitions(guard, cat)),
		Catalog:      cat,
		Business:     &config.BusinessConfig{Name: "Apex Home Services", EmergencyLine: "000", CallbackSLAMinutes: 15},
		Availability: availability,
		Bookings:     tools.NewBookingService(availability),
		Customers:    tools.NewCustomerService(),
	}
}

func findTool(t *testing.T, ag Agent, name string) *ToolDef {
	t.Helper()
	defs := ag.Tools()
	for i := range defs {
		if defs[i].Spec.Name == name {
			return &defs[i]
		}
	}
	t.Fatalf("agent %s has no tool %s", ag.Role(), name)
	return nil
}

func fillAndConfirm(t *testing.T, tc *TurnContext) {
	t.Helper()
	tomorrow := time.Now().AddDate(0, 0, 1)
	if tomorrow.Weekday() == time.Sunday {
		tomorrow = tomorrow.AddDate(0, 0, 1)
	}
	date := tomorrow.Format("2006-01-02")
	open, err := tc.Availability.CheckDate("plumbing", date)
	require.NoError(t, err)
	require.NotEmpty(t, open)

	for name, value := range map[string]string{
		"customer_name":    "Jane Smith",
		"customer_phone":   "0412345678",
		"service_type":     "plumbing",
		"preferred_date":   date,
		"preferred_time":   open[0].StartTime,
		"customer_address": "12 Harbour St, Sydney",
	} {
		res, err := tc.Slots.Set(name, value)
		require.NoError(t, err)
		require.False(t, res.Rejected)
	}
	tc.Slots.ConfirmAll()
}

func TestRouteToBookingEmitsIntentEvent(t *testing.T) {
	tc := testTurnContext(t, domain.StateIntentDetection)
	tool := findTool(t, NewIntake(), "route_to_booking")

	res, err := tool.Handle(context.Background(), tc, map[string]any{"service_hint": "my toilet is blocked"})
	require.NoError(t, err)
	assert.Equal(t, domain.EventIntentBook, res.Event)
	assert.Equal(t, "plumbing", tc.Slots.Value("service_type"))
}

func TestRecordDetailDrivesSlotLifecycle(t *testing.T) {
	tc := testTurnContext(t, domain.StateSlotFilling)
	tool := findTool(t, NewBooking(), "record_detail")

	res, err := tool.Handle(context.Background(), tc, map[string]any{
		"slot": "customer_phone", "value": "123",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Event)
	assert.Contains(t, res.Output, "not a valid")

	res, err = tool.Handle(context.Background(), tc, map[string]any{
		"slot": "customer_phone", "value": "0412 345 678",
	})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "0412345678")
}

func TestRecordDetailMaxRetriesEmitsEscalationEvent(t *testing.T) {
	tc := testTurnContext(t, domain.StateSlotFilling)
	tool := findTool(t, NewBooking(), "record_detail")

	var res ToolResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = tool.Handle(context.Background(), tc, map[string]any{
			"slot": "customer_phone", "value": "nope",
		})
		require.NoError(t, err)
	}
	assert.Equal(t, domain.EventMaxRetries, res.Event)
	assert.True(t, tc.SlotRetryExceeded)
	assert.NotEmpty(t, tc.EscalationReason)
}

func TestAllSlotsFilledEvent(t *testing.T) {
	tc := testTurnContext(t, domain.StateSlotFilling)
	tool := findTool(t, NewBooking(), "record_detail")

	values := []struct{ slot, value string }{
		{"customer_name", "Jane Smith"},
		{"customer_phone", "0412345678"},
		{"service_type", "electrician"},
		{"preferred_date", "2026-09-01"},
		{"preferred_time", "10:00"},
		{"customer_address", "12 Harbour St"},
	}
	var last ToolResult
	for _, v := range values {
		var err error
		last, err = tool.Handle(context.Background(), tc, map[string]any{
			"slot": v.slot, "value": v.value,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, domain.EventAllSlotsFilled, last.Event)
}

func TestCreateBookingRequiresConfirmedSlots(t *testing.T) {
	tc := testTurnContext(t, domain.StateBookingCreation)
	tool := findTool(t, NewBooking(), "create_booking")

	_, err := tool.Handle(context.Background(), tc, map[string]any{})
	assert.ErrorIs(t, err, domain.ErrSlotsNotConfirmed)

	fillAndConfirm(t, tc)
	res, err := tool.Handle(context.Background(), tc, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, domain.EventBookingSuccess, res.Event)
	assert.Regexp(t, `^BK-`, tc.BookingRef)

	cust := tc.Customers.Lookup("0412345678")
	require.NotNil(t, cust)
	assert.Equal(t, []string{tc.BookingRef}, cust.PastBookings)
}

func TestConfirmDetailsRefusesIncompleteSlots(t *testing.T) {
	tc := testTurnContext(t, domain.StateSlotConfirmation)
	tool := findTool(t, NewBooking(), "confirm_details")

	res, err := tool.Handle(context.Background(), tc, map[string]any{"confirmed": true})
	require.NoError(t, err)
	assert.Empty(t, res.Event)
	assert.Contains(t, res.Output, "missing")
	assert.False(t, tc.Slots.AllConfirmed())
}

func TestEveryStateHasAnAgent(t *testing.T) {
	r := NewRegistry()
	for _, state := range domain.AllStates {
		ag, err := r.ForState(state)
		require.NoError(t, err, "state %s", state)
		require.NotNil(t, ag, "state %s", state)
		assert.Equal(t, RoleFor(state), ag.Role())
	}
}

func TestBookingStatesFrontedByBookingAgent(t *testing.T) {
	for _, state := range []domain.State{
		domain.StateServiceSelection, domain.StateSlotFilling,
		domain.StateSlotConfirmation, domain.StateAvailabilityCheck,
		domain.StateBookingCreation, domain.StateConfirmation,
	} {
		assert.Equal(t, domain.RoleBooking, RoleFor(state), "state %s", state)
	}
	assert.Equal(t, domain.RoleEscalation, RoleFor(domain.StateEscalation))
	assert.Equal(t, domain.RoleInfo, RoleFor(domain.StateInfoResponse))
}

func TestEscalationAgentRecordsCallback(t *testing.T) {
	tc := testTurnContext(t, domain.StateEscalation)
	tc.EscalationReason = "emergency: gas leak"
	ag := NewEscalation()

	assert.Contains(t, ag.SystemPrompt(tc), "gas leak")

	tool := findTool(t, ag, "record_callback_number")
	res, err := tool.Handle(context.Background(), tc, map[string]any{"phone": "0412 345 678"})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "0412345678")

	done := findTool(t, ag, "complete_handoff")
	res, err = done.Handle(context.Background(), tc, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, domain.EventHandoffComplete, res.Event)
}
