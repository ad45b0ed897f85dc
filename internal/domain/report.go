package domain

import "time"

// Severity ranks detected failures and derived suggestions.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns an ordinal for sorting: lower sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// MetricCategory groups the 15 KPIs.
type MetricCategory string

const (
	CategoryTaskSuccess MetricCategory = "task_success"
	CategorySlotQuality MetricCategory = "slot_quality"
	CategoryEfficiency  MetricCategory = "efficiency"
	CategoryErrors      MetricCategory = "errors"
	CategoryGuardrails  MetricCategory = "guardrails"
)

// Metric is one scalar KPI aggregated over a batch of transcripts.
type Metric struct {
	Name          string         `json:"name"`
	Category      MetricCategory `json:"category"`
	Value         float64        `json:"value"`
	TranscriptIDs []string       `json:"transcript_ids,omitempty"`
}

// PatternType names a detectable conversational defect.
type PatternType string

const (
	PatternRepeatedSlotFailure   PatternType = "repeated_slot_failure"
	PatternConfirmationLoop      PatternType = "confirmation_loop"
	PatternWrongAgentHandoff     PatternType = "wrong_agent_handoff"
	PatternScopeViolation        PatternType = "scope_violation"
	PatternCallerFrustration     PatternType = "caller_frustration"
	PatternHallucinatedInfo      PatternType = "hallucinated_info"
	PatternMissedIntent          PatternType = "missed_intent"
	PatternIncompleteBooking     PatternType = "incomplete_booking"
	PatternUnnecessaryEscalation PatternType = "unnecessary_escalation"
	PatternSlowResponse          PatternType = "slow_response"
)

// DetectedFailure is one failure pattern instance with its evidence.
type DetectedFailure struct {
	Pattern   PatternType `json:"pattern"`
	Severity  Severity    `json:"severity"`
	SessionID string      `json:"session_id"`
	TurnIndex *int        `json:"turn_index,omitempty"`
	Evidence  string      `json:"evidence"`
}

// Suggestion is one deduplicated improvement proposal derived from a
// failure pattern. Target names what to modify: a prompt, a guardrail,
// or a state transition rule.
type Suggestion struct {
	Pattern        PatternType `json:"pattern"`
	Target         string      `json:"target"`
	Change         string      `json:"change"`
	ExpectedImpact string      `json:"expected_impact"`
	Priority       Severity    `json:"priority"`
	Occurrences    int         `json:"occurrences"`
}

// SkippedTranscript records a malformed transcript excluded from KPIs.
type SkippedTranscript struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Report is the evaluation engine's output over one batch.
type Report struct {
	ID          string              `json:"id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Analyzed    int                 `json:"analyzed"`
	Metrics     []Metric            `json:"metrics"`
	Failures    []DetectedFailure   `json:"failures"`
	Suggestions []Suggestion        `json:"suggestions"`
	Skipped     []SkippedTranscript `json:"skipped,omitempty"`
}
