// Package telemetry exposes Prometheus instrumentation for the
// orchestrator and the evaluation worker.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_sessions_started_total",
		Help: "Sessions created by the orchestrator.",
	})

	SessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_sessions_completed_total",
		Help: "Sessions finalized, by outcome.",
	}, []string{"outcome"})

	TurnsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_turns_total",
		Help: "Turns processed, by terminal agent role and failure flag.",
	}, []string{"role", "failed"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_agent_turn_duration_seconds",
		Help:    "End-to-end turn processing latency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	GuardrailVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_guardrail_verdicts_total",
		Help: "Guardrail verdicts, by guardrail name and decision.",
	}, []string{"guardrail", "decision"})

	Escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_escalations_total",
		Help: "Sessions forced into escalation, by trigger.",
	}, []string{"trigger"})

	TranscriptsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_transcripts_ingested_total",
		Help: "Transcripts accepted for evaluation.",
	})

	ReportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_reports_generated_total",
		Help: "Evaluation reports produced by the worker.",
	})

	TranscriptsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_transcripts_analyzed_total",
		Help: "Transcripts that passed validation and entered a report.",
	})

	TranscriptsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_agent_transcripts_skipped_total",
		Help: "Malformed transcripts excluded from KPI computation.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
