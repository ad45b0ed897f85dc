package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/evaluation"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/queue"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/telemetry"
)

// transcriptStore is the slice of storage.TranscriptRepo the worker needs.
type transcriptStore interface {
	Create(ctx context.Context, t *domain.Transcript) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.Transcript, error)
	MarkProcessed(ctx context.Context, sessionIDs ...string) error
}

// reportStore is the slice of storage.ReportRepo the worker needs.
type reportStore interface {
	Create(ctx context.Context, report *domain.Report) error
}

// Worker drains the transcript stream, persists each transcript, and runs
// the evaluation analyzer over windows of unprocessed transcripts. One
// report covers one window; transcripts are marked processed only after
// their report is stored.
type Worker struct {
	queue          *queue.RedisQueue
	transcriptRepo transcriptStore
	reportRepo     reportStore
	analyzer       *evaluation.Analyzer
	concurrency    int
	batchSize      int
	reportWindow   int
	log            *logrus.Logger

	mu      sync.Mutex
	pending int
}

func New(
	q *queue.RedisQueue,
	transcriptRepo transcriptStore,
	reportRepo reportStore,
	analyzer *evaluation.Analyzer,
	concurrency int,
	batchSize int,
	reportWindow int,
	log *logrus.Logger,
) *Worker {
	return &Worker{
		queue:          q,
		transcriptRepo: transcriptRepo,
		reportRepo:     reportRepo,
		analyzer:       analyzer,
		concurrency:    concurrency,
		batchSize:      batchSize,
		reportWindow:   reportWindow,
		log:            log,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"concurrency":   w.concurrency,
		"batch_size":    w.batchSize,
		"report_window": w.reportWindow,
	}).Info("starting evaluation worker")

	jobs := make(chan queue.Message, w.concurrency*2)
	var wg sync.WaitGroup

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processJobs(ctx, workerID, jobs)
		}(i)
	}

	// Partial windows still get evaluated eventually.
	flush := time.NewTicker(time.Minute)
	defer flush.Stop()

	go func() {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-flush.C:
				w.maybeEvaluate(ctx, true)
			default:
				messages, err := w.queue.Consume(ctx, int64(w.batchSize), 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					w.log.WithError(err).Error("consume failed")
					time.Sleep(time.Second)
					continue
				}

				for _, msg := range messages {
					select {
					case jobs <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	wg.Wait()
	return nil
}

func (w *Worker) processJobs(ctx context.Context, workerID int, jobs <-chan queue.Message) {
	for msg := range jobs {
		if err := w.ingest(ctx, msg); err != nil {
			w.log.WithError(err).WithFields(logrus.Fields{
				"worker":  workerID,
				"session": msg.Transcript.SessionID,
			}).Error("ingest failed")
			continue
		}

		if err := w.queue.Ack(ctx, msg.ID); err != nil {
			w.log.WithError(err).WithField("message_id", msg.ID).Error("ack failed")
		}

		w.maybeEvaluate(ctx, false)
	}
}

func (w *Worker) ingest(ctx context.Context, msg queue.Message) error {
	if err := w.transcriptRepo.Create(ctx, msg.Transcript); err != nil {
		return err
	}

	w.mu.Lock()
	w.pending++
	w.mu.Unlock()

	w.log.WithFields(logrus.Fields{
		"session": msg.Transcript.SessionID,
		"outcome": msg.Transcript.Outcome,
	}).Debug("transcript stored")

	return nil
}

// maybeEvaluate runs the analyzer when a full window of transcripts has
// accumulated. Forced runs query storage unconditionally, so a backlog
// left behind by a previous process still gets evaluated after a restart.
func (w *Worker) maybeEvaluate(ctx context.Context, force bool) {
	w.mu.Lock()
	if !force && w.pending < w.reportWindow {
		w.mu.Unlock()
		return
	}
	w.pending = 0
	w.mu.Unlock()

	window, err := w.transcriptRepo.GetUnprocessed(ctx, w.reportWindow)
	if err != nil {
		w.log.WithError(err).Error("load unprocessed transcripts failed")
		return
	}
	if len(window) == 0 {
		return
	}

	report, err := w.analyzer.Analyze(ctx, window)
	if err != nil {
		w.log.WithError(err).Error("analysis failed")
		return
	}

	if err := w.reportRepo.Create(ctx, report); err != nil {
		w.log.WithError(err).Error("store report failed")
		return
	}

	ids := make([]string, len(window))
	for i, t := range window {
		ids[i] = t.SessionID
	}
	if err := w.transcriptRepo.MarkProcessed(ctx, ids...); err != nil {
		w.log.WithError(err).Error("mark processed failed")
		return
	}

	telemetry.ReportsGenerated.Inc()
	telemetry.TranscriptsAnalyzed.Add(float64(report.Analyzed))
	telemetry.TranscriptsSkipped.Add(float64(len(report.Skipped)))

	w.log.WithFields(logrus.Fields{
		"report":      report.ID,
		"analyzed":    report.Analyzed,
		"failures":    len(report.Failures),
		"suggestions": len(report.Suggestions),
	}).Info("evaluation report generated")
}
