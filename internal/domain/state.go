package domain

// State is one of the twelve conversation states. Every session starts in
// StateGreeting and terminates in StateFarewell.
type State string

const (
	StateGreeting          State = "greeting"
	StateIntentDetection   State = "intent_detection"
	StateServiceSelection  State = "service_selection"
	StateSlotFilling       State = "slot_filling"
	StateSlotConfirmation  State = "slot_confirmation"
	StateAvailabilityCheck State = "availability_check"
	StateBookingCreation   State = "booking_creation"
	StateConfirmation      State = "confirmation"
	StateInfoResponse      State = "info_response"
	StateEscalation        State = "escalation"
	StateFarewell          State = "farewell"
	StateErrorRecovery     State = "error_recovery"
)

// AllStates lists every declared state, used to validate persisted
// transcripts before evaluation.
var AllStates = []State{
	StateGreeting, StateIntentDetection, StateServiceSelection,
	StateSlotFilling, StateSlotConfirmation, StateAvailabilityCheck,
	StateBookingCreation, StateConfirmation, StateInfoResponse,
	StateEscalation, StateFarewell, StateErrorRecovery,
}

func (s State) Valid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateFarewell
}

// Event is a classified outcome of a turn. Transitions are driven only by
// events, never by raw caller text.
type Event string

const (
	EventGreetingDelivered   Event = "greeting_delivered"
	EventIntentBook          Event = "intent_book"
	EventIntentInfo          Event = "intent_info"
	EventIntentEmergency     Event = "intent_emergency"
	EventIntentHuman         Event = "intent_human"
	EventIntentUnclear       Event = "intent_unclear"
	EventServiceConfirmed    Event = "service_confirmed"
	EventAllSlotsFilled      Event = "all_slots_filled"
	EventMaxRetries          Event = "max_retries"
	EventCallerConfirmed     Event = "caller_confirmed"
	EventCallerCorrected     Event = "caller_corrected"
	EventTimeSelected        Event = "time_selected"
	EventNoAvailability      Event = "no_availability"
	EventNoAvailabilityAtAll Event = "no_availability_at_all"
	EventBookingSuccess      Event = "booking_success"
	EventBookingFailed       Event = "booking_failed"
	EventGoodbye             Event = "goodbye"
	EventFollowUp            Event = "follow_up"
	EventWantsToBook         Event = "wants_to_book"
	EventSatisfied           Event = "satisfied"
	EventCorrectionReceived  Event = "correction_received"
	EventRecoveryFailed      Event = "recovery_failed"
	EventHandoffComplete     Event = "handoff_complete"

	// EventEscalationForced is reserved for the escalation guardrail and
	// EventRecoveryForced for fatal turn errors. They are the only events
	// applied outside the declared transition table.
	EventEscalationForced Event = "escalation_forced"
	EventRecoveryForced   Event = "recovery_forced"
)

// AgentRole identifies which conversational policy is active. The active
// role is a pure function of the current State.
type AgentRole string

const (
	RoleIntake     AgentRole = "intake"
	RoleBooking    AgentRole = "booking"
	RoleInfo       AgentRole = "info"
	RoleEscalation AgentRole = "escalation"
)
