package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TranscriptSchemaVersion is the persisted transcript format version.
// Historical transcripts must remain analyzable, so fields are only ever
// added to this schema, never removed or repurposed.
const TranscriptSchemaVersion = "1"

// Outcome is the terminal classification of a completed session.
type Outcome string

const (
	OutcomeBookingMade   Outcome = "booking_made"
	OutcomeBookingFailed Outcome = "booking_failed"
	OutcomeInfoProvided  Outcome = "info_provided"
	OutcomeEscalated     Outcome = "escalated"
	OutcomeCallerHungUp  Outcome = "caller_hung_up"
	OutcomeError         Outcome = "error"
)

// ToolInvocation records one tool call issued by the model during a turn.
type ToolInvocation struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    string          `json:"status"`
	Result    string          `json:"result,omitempty"`
}

// Turn is one caller-utterance/agent-response exchange. Turns are
// append-only and never mutated after creation.
type Turn struct {
	Index       int              `json:"index"`
	CallerText  string           `json:"caller_text"`
	AgentText   string           `json:"agent_text"`
	AgentRole   AgentRole        `json:"agent_role"`
	ToolCalls   []ToolInvocation `json:"tool_calls,omitempty"`
	Verdicts    []Verdict        `json:"verdicts,omitempty"`
	StateBefore State            `json:"state_before"`
	StateAfter  State            `json:"state_after"`
	Event       Event            `json:"event,omitempty"`
	Failed      bool             `json:"failed,omitempty"`
	LatencyMs   int              `json:"latency_ms,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// StateVisit is one entry in a session's state trace.
type StateVisit struct {
	State     State     `json:"state"`
	Event     Event     `json:"event,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}

// Transcript is the immutable, fully-ordered record of one completed
// session. It is the sole input to the evaluation engine.
type Transcript struct {
	SchemaVersion    string                `json:"schema_version"`
	SessionID        string                `json:"session_id"`
	StartedAt        time.Time             `json:"started_at"`
	EndedAt          time.Time             `json:"ended_at"`
	DurationSeconds  float64               `json:"duration_seconds"`
	Outcome          Outcome               `json:"outcome"`
	TerminalState    State                 `json:"terminal_state"`
	StateTrace       []StateVisit          `json:"state_trace"`
	Turns            []Turn                `json:"turns"`
	Slots            map[string]SlotState  `json:"slots"`
	AgentsUsed       []AgentRole           `json:"agents_used"`
	HandoffCount     int                   `json:"handoff_count"`
	ErrorCount       int                   `json:"error_count"`
	RecoveryCount    int                   `json:"recovery_count"`
	EscalationReason string                `json:"escalation_reason,omitempty"`
	BookingRef       string                `json:"booking_ref,omitempty"`
	ProcessedAt      *time.Time            `json:"processed_at,omitempty"`
}

// Validate reports why a transcript is unfit for evaluation. Malformed
// transcripts are excluded from KPIs but always reported, never silently
// dropped.
func (t *Transcript) Validate() error {
	if t.SessionID == "" {
		return fmt.Errorf("missing session_id")
	}
	if len(t.Turns) == 0 {
		return fmt.Errorf("transcript %s has no turns", t.SessionID)
	}
	if !t.TerminalState.Valid() {
		return fmt.Errorf("transcript %s: unknown terminal state %q", t.SessionID, t.TerminalState)
	}
	for i, turn := range t.Turns {
		if turn.Index != i {
			return fmt.Errorf("transcript %s: turn %d has index %d", t.SessionID, i, turn.Index)
		}
		if !turn.StateBefore.Valid() || !turn.StateAfter.Valid() {
			return fmt.Errorf("transcript %s: turn %d references an unknown state", t.SessionID, i)
		}
	}
	for _, visit := range t.StateTrace {
		if !visit.State.Valid() {
			return fmt.Errorf("transcript %s: state trace contains unknown state %q", t.SessionID, visit.State)
		}
	}
	return nil
}

// AgentTurnTexts returns the delivered agent utterances in order.
func (t *Transcript) AgentTurnTexts() []string {
	texts := make([]string, 0, len(t.Turns))
	for _, turn := range t.Turns {
		texts = append(texts, turn.AgentText)
	}
	return texts
}

// VerdictCount tallies verdicts for one guardrail by decision.
func (t *Transcript) VerdictCount(guardrail string, decision VerdictDecision) int {
	var n int
	for _, turn := range t.Turns {
		for _, v := range turn.Verdicts {
			if v.Guardrail == guardrail && v.Decision == decision {
				n++
			}
		}
	}
	return n
}

// ChecksFor counts how many verdicts a guardrail produced in total.
func (t *Transcript) ChecksFor(guardrail string) int {
	var n int
	for _, turn := range t.Turns {
		for _, v := range turn.Verdicts {
			if v.Guardrail == guardrail {
				n++
			}
		}
	}
	return n
}
