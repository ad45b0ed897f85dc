// Package evaluation implements the offline engine that turns batches of
// transcripts into KPIs, detected failure patterns, and improvement
// suggestions. It has no dependency on any live conversation component.
package evaluation

import (
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// ComputeMetrics aggregates the fifteen KPIs over a batch of valid
// transcripts. Every metric documents its denominator; a metric whose
// denominator is empty reports zero rather than NaN.
func ComputeMetrics(batch []*domain.Transcript) []domain.Metric {
	ids := make([]string, len(batch))
	for i, t := range batch {
		ids[i] = t.SessionID
	}

	var (
		total          = len(batch)
		bookings       int
		firstCall      int
		contained      int
		escalated      int
		withErrors     int
		recoveries     int
		recovered      int
		handoffs       int
		durationSum    float64
		bookingTurnSum int
		slotsRequired  int
		slotsConfirmed int
		slotAttempts   int
		slotsTouched   int
		corrections    int
		confirmEntered int
		confirmPassed  int
		scopeHits      int
		hallucinations int
	)

	for _, t := range batch {
		if t.Outcome == domain.OutcomeBookingMade {
			bookings++
			bookingTurnSum += len(t.Turns)
		}
		if t.Outcome == domain.OutcomeEscalated {
			escalated++
		}

		visitedRecovery := visited(t, domain.StateErrorRecovery)
		visitedEscalation := visited(t, domain.StateEscalation)

		if !visitedEscalation {
			contained++
		}
		if !visitedEscalation && !visitedRecovery && terminalOK(t) {
			firstCall++
		}
		if t.ErrorCount > 0 {
			withErrors++
		}
		if visitedRecovery {
			recoveries++
			if !visitedEscalation && terminalOK(t) {
				recovered++
			}
		}

		handoffs += t.HandoffCount
		durationSum += t.DurationSeconds

		// Slot quality only makes sense for sessions that tried to book.
		// Optional slots never count against the fill rate.
		if visited(t, domain.StateSlotFilling) {
			for _, s := range t.Slots {
				if s.Required {
					slotsRequired++
					if s.Status == domain.SlotConfirmed {
						slotsConfirmed++
					}
				}
				if s.Attempts > 0 {
					slotsTouched++
				}
				slotAttempts += s.Attempts
				corrections += s.Corrections
			}
		}
		if visited(t, domain.StateSlotConfirmation) {
			confirmEntered++
			if visited(t, domain.StateAvailabilityCheck) {
				confirmPassed++
			}
		}

		if t.VerdictCount("scope", domain.VerdictBlock) > 0 {
			scopeHits++
		}
		if t.VerdictCount("hallucination", domain.VerdictFlag)+
			t.VerdictCount("hallucination", domain.VerdictBlock) > 0 {
			hallucinations++
		}
	}

	metric := func(name string, category domain.MetricCategory, value float64) domain.Metric {
		return domain.Metric{Name: name, Category: category, Value: value, TranscriptIDs: ids}
	}

	return []domain.Metric{
		// success rate: bookings made / analyzed transcripts
		metric("success_rate", domain.CategoryTaskSuccess, ratio(bookings, total)),
		// first-call resolution: reached FAREWELL with no recovery and no
		// escalation / analyzed
		metric("first_call_resolution", domain.CategoryTaskSuccess, ratio(firstCall, total)),
		// containment: never escalated to a human / analyzed
		metric("containment_rate", domain.CategoryTaskSuccess, ratio(contained, total)),

		// fill rate: required slots reaching CONFIRMED / required slots in
		// booking sessions
		metric("slot_fill_rate", domain.CategorySlotQuality, ratio(slotsConfirmed, slotsRequired)),
		// correction rate: corrections / slot attempts
		metric("slot_correction_rate", domain.CategorySlotQuality, ratio(corrections, slotAttempts)),
		// average attempts per touched slot
		metric("average_slot_attempts", domain.CategorySlotQuality, ratio(slotAttempts, slotsTouched)),
		// confirmation pass: advanced past the read-back gate / entered it
		metric("confirmation_pass_rate", domain.CategorySlotQuality, ratio(confirmPassed, confirmEntered)),

		// mean turn count over booked sessions
		metric("average_turns_to_booking", domain.CategoryEfficiency, ratio(bookingTurnSum, bookings)),
		// mean session duration in seconds
		metric("average_duration_seconds", domain.CategoryEfficiency, durationSum/nonZero(total)),
		// handoffs per session
		metric("handoff_rate", domain.CategoryEfficiency, ratio(handoffs, total)),

		// sessions with at least one failed turn / analyzed
		metric("error_rate", domain.CategoryErrors, ratio(withErrors, total)),
		// recovered without escalating / sessions that entered recovery
		metric("recovery_success_rate", domain.CategoryErrors, ratio(recovered, recoveries)),
		// escalated outcomes / analyzed
		metric("escalation_rate", domain.CategoryErrors, ratio(escalated, total)),

		// sessions with a scope block / analyzed
		metric("scope_violation_rate", domain.CategoryGuardrails, ratio(scopeHits, total)),
		// sessions with a hallucination flag or block / analyzed
		metric("hallucination_detection_rate", domain.CategoryGuardrails, ratio(hallucinations, total)),
	}
}

func visited(t *domain.Transcript, state domain.State) bool {
	for _, v := range t.StateTrace {
		if v.State == state {
			return true
		}
	}
	return false
}

func terminalOK(t *domain.Transcript) bool {
	return t.TerminalState == domain.StateFarewell
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func nonZero(n int) float64 {
	if n == 0 {
		return 1
	}
	return float64(n)
}
