package evaluation

import (
	"sort"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// fixTemplate is the fixed mapping from a failure pattern to the concrete
// change that addresses it.
type fixTemplate struct {
	Target         string
	Change         string
	ExpectedImpact string
}

var fixTemplates = map[domain.PatternType]fixTemplate{
	domain.PatternRepeatedSlotFailure: {
		Target:         "prompt:slot_filling",
		Change:         "Add an explicit format example when re-asking for a slot that already failed once.",
		ExpectedImpact: "Fewer validation retries per slot and fewer recovery entries.",
	},
	domain.PatternConfirmationLoop: {
		Target:         "prompt:slot_confirmation",
		Change:         "Read back only the corrected field instead of the full summary after a correction.",
		ExpectedImpact: "Shorter confirmation cycles and fewer caller corrections.",
	},
	domain.PatternWrongAgentHandoff: {
		Target:         "state_transition:intent_detection",
		Change:         "Require a second classification signal before routing when intent confidence is mixed.",
		ExpectedImpact: "Fewer mid-call agent switches.",
	},
	domain.PatternScopeViolation: {
		Target:         "guardrail:scope",
		Change:         "Extend the out-of-scope topic list with the blocked phrases from this batch.",
		ExpectedImpact: "Off-topic requests redirected earlier, before the model is consulted.",
	},
	domain.PatternCallerFrustration: {
		Target:         "prompt:all_agents",
		Change:         "Acknowledge the caller's previous answer before asking the next question.",
		ExpectedImpact: "Lower frustration-triggered escalation rate.",
	},
	domain.PatternHallucinatedInfo: {
		Target:         "guardrail:hallucination",
		Change:         "Switch the hallucination guardrail from FLAG to BLOCK and add the offending claims to the forbidden list.",
		ExpectedImpact: "No unverified claims reach the caller.",
	},
	domain.PatternMissedIntent: {
		Target:         "prompt:intake",
		Change:         "Add the misclassified utterances from this batch as routing examples.",
		ExpectedImpact: "Higher first-pass intent classification accuracy.",
	},
	domain.PatternIncompleteBooking: {
		Target:         "prompt:booking",
		Change:         "Offer the nearest alternative slot immediately when the requested time is unavailable.",
		ExpectedImpact: "More booking flows that start also finish.",
	},
	domain.PatternUnnecessaryEscalation: {
		Target:         "guardrail:escalation",
		Change:         "Raise the confusion threshold by one and require a frustration keyword alongside it.",
		ExpectedImpact: "Fewer escalations that a booking agent could have handled.",
	},
	domain.PatternSlowResponse: {
		Target:         "config:llm",
		Change:         "Lower the completion token budget and tighten the per-call timeout.",
		ExpectedImpact: "Reduced dead air between caller turns.",
	},
}

// Suggest folds detected failures into deduplicated suggestions: one per
// pattern type, counting occurrences, ordered by severity then descending
// occurrence count, with pattern name as the final tiebreak.
func Suggest(failures []domain.DetectedFailure) []domain.Suggestion {
	type agg struct {
		severity domain.Severity
		count    int
	}
	byPattern := make(map[domain.PatternType]*agg)
	for _, f := range failures {
		a, ok := byPattern[f.Pattern]
		if !ok {
			a = &agg{severity: f.Severity}
			byPattern[f.Pattern] = a
		}
		a.count++
		if f.Severity.Rank() < a.severity.Rank() {
			a.severity = f.Severity
		}
	}

	out := make([]domain.Suggestion, 0, len(byPattern))
	for pattern, a := range byPattern {
		tpl, ok := fixTemplates[pattern]
		if !ok {
			continue
		}
		out = append(out, domain.Suggestion{
			Pattern:        pattern,
			Target:         tpl.Target,
			Change:         tpl.Change,
			ExpectedImpact: tpl.ExpectedImpact,
			Priority:       a.severity,
			Occurrences:    a.count,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}
