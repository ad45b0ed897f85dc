package guardrail

import (
	"context"
	"sync"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Outcome aggregates the verdicts of one stage run.
type Outcome struct {
	Verdicts []domain.Verdict
	// Text is the payload after rewrites: the original when all checks
	// passed, a rewritten form when a check repaired it, or the fallback
	// utterance when a check blocked without offering a rewrite.
	Text string
	// Blocked is true when any check returned BLOCK.
	Blocked bool
	// Escalate is true when any check demanded a human handoff.
	Escalate bool
	// EscalateReason carries the first escalating verdict's reason.
	EscalateReason string
}

// Pipeline fans the registered guardrails out concurrently for a stage and
// folds their verdicts into one outcome.
type Pipeline struct {
	guardrails []Guardrail
	fallback   string
}

func NewPipeline(fallback string, guardrails ...Guardrail) *Pipeline {
	return &Pipeline{guardrails: guardrails, fallback: fallback}
}

// Run executes every guardrail registered for in.Stage concurrently and
// aggregates. Verdict order matches registration order regardless of
// completion order, so transcripts stay deterministic.
func (p *Pipeline) Run(ctx context.Context, in Input) Outcome {
	active := make([]Guardrail, 0, len(p.guardrails))
	for _, g := range p.guardrails {
		if runsAt(g, in.Stage) {
			active = append(active, g)
		}
	}

	verdicts := make([]domain.Verdict, len(active))
	var wg sync.WaitGroup
	for i, g := range active {
		wg.Add(1)
		go func(i int, g Guardrail) {
			defer wg.Done()
			verdicts[i] = g.Check(ctx, in)
		}(i, g)
	}
	wg.Wait()

	return p.aggregate(in, verdicts)
}

func (p *Pipeline) aggregate(in Input, verdicts []domain.Verdict) Outcome {
	out := Outcome{Verdicts: verdicts}

	text := in.CallerText
	if in.Stage == domain.StagePostLLM {
		text = in.AgentText
	}

	for _, v := range verdicts {
		if v.Escalate && !out.Escalate {
			out.Escalate = true
			out.EscalateReason = v.Reason
		}
		switch v.Decision {
		case domain.VerdictBlock:
			out.Blocked = true
			if v.Rewritten != "" {
				text = v.Rewritten
			} else {
				text = p.fallback
			}
		case domain.VerdictFlag:
			if !out.Blocked && v.Rewritten != "" {
				text = v.Rewritten
			}
		}
	}

	out.Text = text
	return out
}
