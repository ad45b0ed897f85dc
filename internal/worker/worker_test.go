package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/evaluation"
)

type fakeTranscriptStore struct {
	mu          sync.Mutex
	unprocessed []*domain.Transcript
	marked      []string
}

func (f *fakeTranscriptStore) Create(ctx context.Context, t *domain.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unprocessed = append(f.unprocessed, t)
	return nil
}

func (f *fakeTranscriptStore) GetUnprocessed(ctx context.Context, limit int) ([]*domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.unprocessed) < limit {
		limit = len(f.unprocessed)
	}
	return f.unprocessed[:limit], nil
}

func (f *fakeTranscriptStore) MarkProcessed(ctx context.Context, sessionIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, sessionIDs...)
	f.unprocessed = f.unprocessed[len(sessionIDs):]
	return nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports []*domain.Report
}

func (f *fakeReportStore) Create(ctx context.Context, report *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func testWorker(ts *fakeTranscriptStore, rs *fakeReportStore, reportWindow int) *Worker {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	analyzer := evaluation.NewAnalyzer(
		&config.GuardrailConfig{SlowResponseThreshold: 5 * time.Second},
		&config.WorkerConfig{Concurrency: 2},
		log,
	)
	return New(nil, ts, rs, analyzer, 1, 10, reportWindow, log)
}

func storedTranscript(id string) *domain.Transcript {
	return &domain.Transcript{
		SchemaVersion: domain.TranscriptSchemaVersion,
		SessionID:     id,
		Outcome:       domain.OutcomeInfoProvided,
		TerminalState: domain.StateFarewell,
		StateTrace: []domain.StateVisit{
			{State: domain.StateGreeting},
			{State: domain.StateIntentDetection},
			{State: domain.StateInfoResponse},
			{State: domain.StateFarewell},
		},
		Turns: []domain.Turn{{
			Index:       0,
			CallerText:  "how much is a call-out?",
			AgentText:   "The call-out fee depends on the service.",
			AgentRole:   domain.RoleInfo,
			StateBefore: domain.StateGreeting,
			StateAfter:  domain.StateInfoResponse,
		}},
	}
}

func TestForcedFlushEvaluatesStoredBacklog(t *testing.T) {
	// Transcripts left unprocessed by a previous run: nothing has been
	// consumed from the stream in this process.
	ts := &fakeTranscriptStore{unprocessed: []*domain.Transcript{
		storedTranscript("s1"),
		storedTranscript("s2"),
	}}
	rs := &fakeReportStore{}
	w := testWorker(ts, rs, 25)

	w.maybeEvaluate(context.Background(), false)
	assert.Empty(t, rs.reports, "partial window waits for the flush timer")

	w.maybeEvaluate(context.Background(), true)
	require.Len(t, rs.reports, 1)
	assert.Equal(t, 2, rs.reports[0].Analyzed)
	assert.Equal(t, []string{"s1", "s2"}, ts.marked)
}

func TestFullWindowEvaluatesWithoutForce(t *testing.T) {
	ts := &fakeTranscriptStore{unprocessed: []*domain.Transcript{
		storedTranscript("s1"),
		storedTranscript("s2"),
	}}
	rs := &fakeReportStore{}
	w := testWorker(ts, rs, 2)

	w.mu.Lock()
	w.pending = 2
	w.mu.Unlock()

	w.maybeEvaluate(context.Background(), false)
	require.Len(t, rs.reports, 1)
	assert.Equal(t, []string{"s1", "s2"}, ts.marked)
}

func TestForcedFlushWithNothingPendingIsQuiet(t *testing.T) {
	ts := &fakeTranscriptStore{}
	rs := &fakeReportStore{}
	w := testWorker(ts, rs, 25)

	w.maybeEvaluate(context.Background(), true)
	assert.Empty(t, rs.reports)
	assert.Empty(t, ts.marked)
}
