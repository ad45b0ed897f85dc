package evaluation

import (
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Detector is one failure-pattern predicate over a single transcript.
// Detectors are independent; one transcript may trigger several.
type Detector struct {
	Pattern  domain.PatternType
	Severity domain.Severity
	Detect   func(t *domain.Transcript) []domain.DetectedFailure
}

// Detectors builds the ten failure-pattern detectors with the configured
// thresholds bound in.
func Detectors(cfg *config.GuardrailConfig) []Detector {
	slowThreshold := int(cfg.SlowResponseThreshold.Milliseconds())
	if slowThreshold <= 0 {
		slowThreshold = 5000
	}

	return []Detector{
		{
			Pattern:  domain.PatternRepeatedSlotFailure,
			Severity: domain.SeverityHigh,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				var out []domain.DetectedFailure
				for name, s := range t.Slots {
					if s.Corrections >= 2 {
						out = append(out, failure(domain.PatternRepeatedSlotFailure, domain.SeverityHigh, t,
							nil, fmt.Sprintf("slot %s corrected %d times, values %v", name, s.Corrections, s.History)))
					}
				}
				return out
			},
		},
		{
			Pattern:  domain.PatternConfirmationLoop,
			Severity: domain.SeverityMedium,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				n := stateVisits(t, domain.StateSlotConfirmation)
				if n < 2 {
					return nil
				}
				return []domain.DetectedFailure{failure(domain.PatternConfirmationLoop, domain.SeverityMedium, t,
					nil, fmt.Sprintf("confirmation gate entered %d times", n))}
			},
		},
		{
			Pattern:  domain.PatternWrongAgentHandoff,
			Severity: domain.SeverityMedium,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				if t.HandoffCount < 3 {
					return nil
				}
				roles := make([]string, len(t.AgentsUsed))
				for i, r := range t.AgentsUsed {
					roles[i] = string(r)
				}
				return []domain.DetectedFailure{failure(domain.PatternWrongAgentHandoff, domain.SeverityMedium, t,
					nil, fmt.Sprintf("%d handoffs across %s", t.HandoffCount, strings.Join(roles, " -> ")))}
			},
		},
		{
			Pattern:  domain.PatternScopeViolation,
			Severity: domain.SeverityHigh,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				return verdictFailures(t, "scope", domain.PatternScopeViolation, domain.SeverityHigh,
					domain.VerdictBlock)
			},
		},
		{
			Pattern:  domain.PatternCallerFrustration,
			Severity: domain.SeverityHigh,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				var out []domain.DetectedFailure
				for i := range t.Turns {
					for _, v := range t.Turns[i].Verdicts {
						if v.Guardrail == "escalation" && strings.Contains(v.Reason, "frustration") {
							idx := i
							out = append(out, failure(domain.PatternCallerFrustration, domain.SeverityHigh, t,
								&idx, v.Reason))
						}
					}
				}
				return out
			},
		},
		{
			Pattern:  domain.PatternHallucinatedInfo,
			Severity: domain.SeverityCritical,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				return verdictFailures(t, "hallucination", domain.PatternHallucinatedInfo, domain.SeverityCritical,
					domain.VerdictFlag, domain.VerdictBlock)
			},
		},
		{
			Pattern:  domain.PatternMissedIntent,
			Severity: domain.SeverityMedium,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				var unclear int
				for _, v := range t.StateTrace {
					if v.Event == domain.EventIntentUnclear || v.Event == domain.EventRecoveryForced {
						unclear++
					}
				}
				if unclear == 0 {
					return nil
				}
				return []domain.DetectedFailure{failure(domain.PatternMissedIntent, domain.SeverityMedium, t,
					nil, fmt.Sprintf("intent missed %d times", unclear))}
			},
		},
		{
			Pattern:  domain.PatternIncompleteBooking,
			Severity: domain.SeverityHigh,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				if stateVisits(t, domain.StateSlotFilling) == 0 {
					return nil
				}
				if t.BookingRef != "" || t.Outcome == domain.OutcomeEscalated {
					return nil
				}
				return []domain.DetectedFailure{failure(domain.PatternIncompleteBooking, domain.SeverityHigh, t,
					nil, fmt.Sprintf("booking flow started but ended %s with no reference", t.Outcome))}
			},
		},
		{
			Pattern:  domain.PatternUnnecessaryEscalation,
			Severity: domain.SeverityMedium,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				if stateVisits(t, domain.StateEscalation) == 0 {
					return nil
				}
				if t.EscalationReason != "" || t.ErrorCount > 0 {
					return nil
				}
				return []domain.DetectedFailure{failure(domain.PatternUnnecessaryEscalation, domain.SeverityMedium, t,
					nil, "escalated with no recorded reason and no errors")}
			},
		},
		{
			Pattern:  domain.PatternSlowResponse,
			Severity: domain.SeverityLow,
			Detect: func(t *domain.Transcript) []domain.DetectedFailure {
				var out []domain.DetectedFailure
				for i := range t.Turns {
					if t.Turns[i].LatencyMs > slowThreshold {
						idx := i
						out = append(out, failure(domain.PatternSlowResponse, domain.SeverityLow, t,
							&idx, fmt.Sprintf("turn took %dms, threshold %dms", t.Turns[i].LatencyMs, slowThreshold)))
					}
				}
				return out
			},
		},
	}
}

// RunDetectors applies every detector to one transcript.
func RunDetectors(detectors []Detector, t *domain.Transcript) []domain.DetectedFailure {
	var out []domain.DetectedFailure
	for _, d := range detectors {
		out = append(out, d.Detect(t)...)
	}
	return out
}

func failure(p domain.PatternType, sev domain.Severity, t *domain.Transcript, turn *int, evidence string) domain.DetectedFailure {
	return domain.DetectedFailure{
		Pattern:   p,
		Severity:  sev,
		SessionID: t.SessionID,
		TurnIndex: turn,
		Evidence:  evidence,
	}
}

func verdictFailures(t *domain.Transcript, guardrail string, p domain.PatternType, sev domain.Severity, decisions ...domain.VerdictDecision) []domain.DetectedFailure {
	var out []domain.DetectedFailure
	for i := range t.Turns {
		for _, v := range t.Turns[i].Verdicts {
			if v.Guardrail != guardrail {
				continue
			}
			for _, d := range decisions {
				if v.Decision == d {
					idx := i
					out = append(out, failure(p, sev, t, &idx, v.Reason))
				}
			}
		}
	}
	return out
}

func stateVisits(t *domain.Transcript, state domain.State) int {
	var n int
	for _, v := range t.StateTrace {
		if v.State == state {
			n++
		}
	}
	return n
}
