package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Hallucination inspects candidate replies for claims the business has not
// verified: guarantees, credentials, and superlatives. Whether a hit blocks
// or only flags is configurable; blocked replies fall back to the
// configured safe correction.
type Hallucination struct {
	cat *catalog.Catalog
	cfg *config.GuardrailConfig
}

func NewHallucination(cat *catalog.Catalog, cfg *config.GuardrailConfig) *Hallucination {
	return &Hallucination{cat: cat, cfg: cfg}
}

func (h *Hallucination) Name() string { return "hallucination" }

func (h *Hallucination) Stages() []domain.GuardrailStage {
	return []domain.GuardrailStage{domain.StagePostLLM}
}

func (h *Hallucination) Check(ctx context.Context, in Input) domain.Verdict {
	lowered := strings.ToLower(in.AgentText)
	for _, claim := range h.cat.ForbiddenClaims {
		if !strings.Contains(lowered, claim) {
			continue
		}
		if h.cat.IsVerifiedClaim(claim) {
			continue
		}
		decision := domain.VerdictFlag
		rewritten := ""
		if h.cfg.HallucinationBlocks {
			decision = domain.VerdictBlock
			rewritten = h.cfg.ClaimFallbackUtterance
		}
		return domain.Verdict{
			Guardrail: h.Name(),
			Decision:  decision,
			Reason:    fmt.Sprintf("unverified claim %q", claim),
			Rewritten: rewritten,
			Stage:     in.Stage,
		}
	}
	return domain.Verdict{Guardrail: h.Name(), Decision: domain.VerdictPass, Stage: in.Stage}
}
