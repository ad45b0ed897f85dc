// Package guardrail implements the safety checks that run around every
// model call. Pre-model checks see the caller's text before the model does;
// post-model checks see the candidate reply before the caller does. Checks
// in the same stage run concurrently and every verdict is retained on the
// turn record.
package guardrail

import (
	"context"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Input is what a guardrail inspects. CallerText is always set; AgentText
// is only set at the post-model stage.
type Input struct {
	Stage      domain.GuardrailStage
	CallerText string
	AgentText  string
	State      domain.State
	// ConfusionStreak counts consecutive turns classified as unclear,
	// feeding the escalation trigger.
	ConfusionStreak int
	// SlotFailures is the highest validation-failure count of any single
	// slot in the session.
	SlotFailures int
	// ErrorCount counts failed turns in the session so far.
	ErrorCount int
}

// Guardrail is one named check. Check must be side-effect free so the
// pipeline can fan checks out concurrently.
type Guardrail interface {
	Name() string
	Stages() []domain.GuardrailStage
	Check(ctx context.Context, in Input) domain.Verdict
}

func runsAt(g Guardrail, stage domain.GuardrailStage) bool {
	for _, s := range g.Stages() {
		if s == stage {
			return true
		}
	}
	return false
}
