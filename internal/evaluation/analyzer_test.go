package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

func testAnalyzer() *Analyzer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewAnalyzer(
		&config.GuardrailConfig{SlowResponseThreshold: 5 * time.Second},
		&config.WorkerConfig{Concurrency: 4},
		log,
	)
}

// bookedTranscript builds a clean successful booking session.
func bookedTranscript(id string) *domain.Transcript {
	start := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	states := []domain.State{
		domain.StateGreeting, domain.StateIntentDetection,
		domain.StateServiceSelection, domain.StateSlotFilling,
		domain.StateSlotConfirmation, domain.StateAvailabilityCheck,
		domain.StateBookingCreation, domain.StateConfirmation,
		domain.StateFarewell,
	}
	trace := make([]domain.StateVisit, len(states))
	for i, s := range states {
		trace[i] = domain.StateVisit{State: s, EnteredAt: start.Add(time.Duration(i) * 30 * time.Second)}
	}
	turns := make([]domain.Turn, 8)
	for i := range turns {
		turns[i] = domain.Turn{
			Index:       i,
			CallerText:  "caller",
			AgentText:   "agent",
			AgentRole:   domain.RoleBooking,
			StateBefore: states[i],
			StateAfter:  states[i+1],
			LatencyMs:   800,
			Timestamp:   start.Add(time.Duration(i) * 30 * time.Second),
			Verdicts: []domain.Verdict{
				{Guardrail: "scope", Decision: domain.VerdictPass, Stage: domain.StagePreLLM},
			},
		}
	}
	return &domain.Transcript{
		SchemaVersion:   domain.TranscriptSchemaVersion,
		SessionID:       id,
		StartedAt:       start,
		EndedAt:         start.Add(4 * time.Minute),
		DurationSeconds: 240,
		Outcome:         domain.OutcomeBookingMade,
		TerminalState:   domain.StateFarewell,
		StateTrace:      trace,
		Turns:           turns,
		Slots: map[string]domain.SlotState{
			"customer_name":  {Name: "customer_name", Required: true, Status: domain.SlotConfirmed, Attempts: 1},
			"customer_phone": {Name: "customer_phone", Required: true, Status: domain.SlotConfirmed, Attempts: 1},
			"service_type":   {Name: "service_type", Required: true, Status: domain.SlotConfirmed, Attempts: 1},
			// Optional, never offered by the caller.
			"job_description": {Name: "job_description", Status: domain.SlotUncollected},
		},
		AgentsUsed:   []domain.AgentRole{domain.RoleIntake, domain.RoleBooking},
		HandoffCount: 1,
		BookingRef:   "BK-AAAA01",
	}
}

// slotFailureTranscript builds a session that burned retries on one slot.
func slotFailureTranscript(id string) *domain.Transcript {
	t := bookedTranscript(id)
	t.Slots["customer_phone"] = domain.SlotState{
		Name:        "customer_phone",
		Required:    true,
		Status:      domain.SlotConfirmed,
		Attempts:    3,
		Corrections: 2,
		History:     []string{"123", "4567"},
	}
	return t
}

func TestAnalyzeComputesAllFifteenKPIs(t *testing.T) {
	report, err := testAnalyzer().Analyze(context.Background(),
		[]*domain.Transcript{bookedTranscript("s1"), bookedTranscript("s2")})
	require.NoError(t, err)

	require.Len(t, report.Metrics, 15)
	byName := map[string]domain.Metric{}
	categories := map[domain.MetricCategory]int{}
	for _, m := range report.Metrics {
		byName[m.Name] = m
		categories[m.Category]++
	}

	assert.Len(t, categories, 5)
	assert.Equal(t, 1.0, byName["success_rate"].Value)
	assert.Equal(t, 1.0, byName["containment_rate"].Value)
	assert.Equal(t, 1.0, byName["slot_fill_rate"].Value,
		"an unfilled optional slot must not dilute the fill rate")
	assert.Equal(t, 8.0, byName["average_turns_to_booking"].Value)
	assert.Equal(t, 240.0, byName["average_duration_seconds"].Value)
	assert.Equal(t, 0.0, byName["escalation_rate"].Value)
	assert.Equal(t, 2, report.Analyzed)
}

func TestMalformedTranscriptSkippedNotDropped(t *testing.T) {
	bad := bookedTranscript("s-bad")
	bad.Turns = nil

	report, err := testAnalyzer().Analyze(context.Background(),
		[]*domain.Transcript{bookedTranscript("s-ok"), bad})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Analyzed)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "s-bad", report.Skipped[0].SessionID)
	assert.Contains(t, report.Skipped[0].Reason, "no turns")
}

func TestDeduplicatedSuggestionRankedAboveLowerSeverity(t *testing.T) {
	// Five transcripts, two with the same HIGH repeated-slot-failure
	// pattern and one with a MEDIUM confirmation loop: one suggestion per
	// pattern, HIGH first.
	loop := bookedTranscript("s-loop")
	loop.StateTrace = append(loop.StateTrace,
		domain.StateVisit{State: domain.StateSlotConfirmation},
		domain.StateVisit{State: domain.StateAvailabilityCheck},
	)

	batch := []*domain.Transcript{
		slotFailureTranscript("s-f1"),
		slotFailureTranscript("s-f2"),
		loop,
		bookedTranscript("s-c1"),
		bookedTranscript("s-c2"),
	}

	report, err := testAnalyzer().Analyze(context.Background(), batch)
	require.NoError(t, err)

	var slotSuggestions []domain.Suggestion
	for _, s := range report.Suggestions {
		if s.Pattern == domain.PatternRepeatedSlotFailure {
			slotSuggestions = append(slotSuggestions, s)
		}
	}
	require.Len(t, slotSuggestions, 1, "suggestions are deduplicated per pattern")
	assert.Equal(t, domain.SeverityHigh, slotSuggestions[0].Priority)
	assert.Equal(t, 2, slotSuggestions[0].Occurrences)

	// Severity ordering: every HIGH suggestion precedes every MEDIUM one.
	rank := func(p domain.PatternType) int {
		for i, s := range report.Suggestions {
			if s.Pattern == p {
				return i
			}
		}
		return -1
	}
	assert.Less(t, rank(domain.PatternRepeatedSlotFailure), rank(domain.PatternConfirmationLoop))
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	batch := []*domain.Transcript{
		bookedTranscript("s1"),
		slotFailureTranscript("s2"),
		bookedTranscript("s3"),
	}

	first, err := testAnalyzer().Analyze(context.Background(), batch)
	require.NoError(t, err)
	second, err := testAnalyzer().Analyze(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Failures, second.Failures)
	assert.Equal(t, first.Suggestions, second.Suggestions)
	assert.Equal(t, first.Analyzed, second.Analyzed)
}

func TestHallucinationDetectorIsCritical(t *testing.T) {
	tr := bookedTranscript("s-h")
	tr.Turns[2].Verdicts = append(tr.Turns[2].Verdicts, domain.Verdict{
		Guardrail: "hallucination",
		Decision:  domain.VerdictBlock,
		Reason:    `unverified claim "guarantee"`,
		Stage:     domain.StagePostLLM,
	})

	report, err := testAnalyzer().Analyze(context.Background(), []*domain.Transcript{tr})
	require.NoError(t, err)

	require.NotEmpty(t, report.Failures)
	var found *domain.DetectedFailure
	for i := range report.Failures {
		if report.Failures[i].Pattern == domain.PatternHallucinatedInfo {
			found = &report.Failures[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, domain.SeverityCritical, found.Severity)
	require.NotNil(t, found.TurnIndex)
	assert.Equal(t, 2, *found.TurnIndex)

	require.NotEmpty(t, report.Suggestions)
	assert.Equal(t, domain.PatternHallucinatedInfo, report.Suggestions[0].Pattern)
}

func TestRenderIncludesAllSections(t *testing.T) {
	tr := slotFailureTranscript("s-render")
	bad := &domain.Transcript{SessionID: "s-malformed"}

	report, err := testAnalyzer().Analyze(context.Background(), []*domain.Transcript{tr, bad})
	require.NoError(t, err)

	text := Render(report)
	assert.Contains(t, text, "KPIs")
	assert.Contains(t, text, "success_rate")
	assert.Contains(t, text, "repeated_slot_failure")
	assert.Contains(t, text, "Suggestions")
	assert.Contains(t, text, "Skipped transcripts")
	assert.Contains(t, text, "s-malformed")
}
