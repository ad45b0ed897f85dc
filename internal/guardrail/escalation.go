package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Escalation watches the caller's side of the call for situations that
// must reach a human: safety emergencies, explicit frustration, and
// conversations that have stopped making progress. Its verdicts carry the
// Escalate marker; the session applies the forced transition at the next
// turn boundary.
type Escalation struct {
	cat *catalog.Catalog
	cfg *config.GuardrailConfig
}

func NewEscalation(cat *catalog.Catalog, cfg *config.GuardrailConfig) *Escalation {
	return &Escalation{cat: cat, cfg: cfg}
}

func (e *Escalation) Name() string { return "escalation" }

func (e *Escalation) Stages() []domain.GuardrailStage {
	return []domain.GuardrailStage{domain.StagePreLLM, domain.StagePostLLM}
}

func (e *Escalation) Check(ctx context.Context, in Input) domain.Verdict {
	lowered := strings.ToLower(in.CallerText)

	for _, kw := range e.cat.EmergencyKeywords {
		if strings.Contains(lowered, kw) {
			return e.escalate(in, fmt.Sprintf("emergency keyword %q", kw))
		}
	}
	for _, kw := range e.cat.FrustrationKeywords {
		if strings.Contains(lowered, kw) {
			return e.escalate(in, fmt.Sprintf("frustration signal %q", kw))
		}
	}
	if e.cfg.ConfusionThreshold > 0 && in.ConfusionStreak >= e.cfg.ConfusionThreshold {
		return e.escalate(in, fmt.Sprintf("%d consecutive unclear turns", in.ConfusionStreak))
	}
	if e.cfg.MaxSlotRetries > 0 && in.SlotFailures >= e.cfg.MaxSlotRetries {
		return e.escalate(in, fmt.Sprintf("slot failed validation %d times", in.SlotFailures))
	}
	if e.cfg.MaxSessionErrors > 0 && in.ErrorCount >= e.cfg.MaxSessionErrors {
		return e.escalate(in, fmt.Sprintf("%d failed turns this session", in.ErrorCount))
	}

	return domain.Verdict{Guardrail: e.Name(), Decision: domain.VerdictPass, Stage: in.Stage}
}

func (e *Escalation) escalate(in Input, reason string) domain.Verdict {
	return domain.Verdict{
		Guardrail: e.Name(),
		Decision:  domain.VerdictFlag,
		Reason:    reason,
		Stage:     in.Stage,
		Escalate:  true,
	}
}
