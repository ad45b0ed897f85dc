package evaluation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Analyzer runs the full evaluation over a batch: per-transcript detection
// fanned out across a bounded worker pool, then a single-writer reduction
// into one report.
type Analyzer struct {
	detectors   []Detector
	concurrency int
	log         *logrus.Logger
}

func NewAnalyzer(guardCfg *config.GuardrailConfig, workerCfg *config.WorkerConfig, log *logrus.Logger) *Analyzer {
	concurrency := workerCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Analyzer{
		detectors:   Detectors(guardCfg),
		concurrency: concurrency,
		log:         log,
	}
}

type transcriptResult struct {
	index      int
	transcript *domain.Transcript
	failures   []domain.DetectedFailure
	skipReason string
}

// Analyze evaluates one batch. Malformed transcripts are excluded from the
// KPIs and reported in Skipped, never dropped without record. Re-running
// on the same batch yields an identical report apart from ID and
// timestamp.
func (a *Analyzer) Analyze(ctx context.Context, batch []*domain.Transcript) (*domain.Report, error) {
	jobs := make(chan int)
	results := make(chan transcriptResult, len(batch))

	var wg sync.WaitGroup
	for w := 0; w < a.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- a.analyzeOne(i, batch[i])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range batch {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Single-writer reduction. Results are re-ordered by batch index so
	// the report is deterministic regardless of worker scheduling.
	ordered := make([]transcriptResult, 0, len(batch))
	for r := range results {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	var (
		valid    []*domain.Transcript
		failures []domain.DetectedFailure
		skipped  []domain.SkippedTranscript
	)
	for _, r := range ordered {
		if r.skipReason != "" {
			skipped = append(skipped, domain.SkippedTranscript{
				SessionID: r.transcript.SessionID,
				Reason:    r.skipReason,
			})
			continue
		}
		valid = append(valid, r.transcript)
		failures = append(failures, r.failures...)
	}

	report := &domain.Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Analyzed:    len(valid),
		Metrics:     ComputeMetrics(valid),
		Failures:    failures,
		Suggestions: Suggest(failures),
		Skipped:     skipped,
	}

	a.log.WithFields(logrus.Fields{
		"analyzed": report.Analyzed,
		"skipped":  len(skipped),
		"failures": len(failures),
	}).Info("evaluation batch complete")

	return report, nil
}

func (a *Analyzer) analyzeOne(index int, t *domain.Transcript) transcriptResult {
	if err := t.Validate(); err != nil {
		return transcriptResult{index: index, transcript: t, skipReason: err.Error()}
	}
	return transcriptResult{
		index:      index,
		transcript: t,
		failures:   RunDetectors(a.detectors, t),
	}
}
