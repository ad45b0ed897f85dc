package domain

// VerdictDecision is the outcome of a single guardrail check.
type VerdictDecision string

const (
	VerdictPass  VerdictDecision = "pass"
	VerdictFlag  VerdictDecision = "flag"
	VerdictBlock VerdictDecision = "block"
)

// GuardrailStage identifies which pipeline produced a verdict.
type GuardrailStage string

const (
	StagePreLLM  GuardrailStage = "pre_llm"
	StagePostLLM GuardrailStage = "post_llm"
)

// Verdict is the result of one guardrail over one payload. Verdicts are
// produced fresh per exchange and all of them are retained for audit,
// including passes.
type Verdict struct {
	Guardrail string          `json:"guardrail"`
	Decision  VerdictDecision `json:"decision"`
	Reason    string          `json:"reason,omitempty"`
	Rewritten string          `json:"rewritten,omitempty"`
	Stage     GuardrailStage  `json:"stage"`
	// Escalate marks verdicts that force an ESCALATION event regardless
	// of the state machine's normal branch logic.
	Escalate bool `json:"escalate,omitempty"`
}
