package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Scope blocks conversation drift into topics the business does not handle.
// It runs on both stages: pre-model it catches caller requests for
// off-topic content, post-model it catches replies that wandered there
// anyway.
type Scope struct {
	cat      *catalog.Catalog
	redirect string
}

func NewScope(cat *catalog.Catalog) *Scope {
	// The redirect names what the business actually offers, so a catalog
	// change never leaves a stale list here.
	names := make([]string, len(cat.Services))
	for i, svc := range cat.Services {
		names[i] = strings.ToLower(svc.Name)
	}
	return &Scope{
		cat: cat,
		redirect: fmt.Sprintf("I can only help with our home services: %s. "+
			"Is there a repair or booking I can help you with?", strings.Join(names, ", ")),
	}
}

func (s *Scope) Name() string { return "scope" }

func (s *Scope) Stages() []domain.GuardrailStage {
	return []domain.GuardrailStage{domain.StagePreLLM, domain.StagePostLLM}
}

func (s *Scope) Check(ctx context.Context, in Input) domain.Verdict {
	text := in.CallerText
	if in.Stage == domain.StagePostLLM {
		text = in.AgentText
	}
	lowered := strings.ToLower(text)
	for _, topic := range s.cat.OutOfScopeTopics {
		if strings.Contains(lowered, topic) {
			return domain.Verdict{
				Guardrail: s.Name(),
				Decision:  domain.VerdictBlock,
				Reason:    fmt.Sprintf("out-of-scope topic %q", topic),
				Rewritten: s.redirect,
				Stage:     in.Stage,
			}
		}
	}
	return domain.Verdict{Guardrail: s.Name(), Decision: domain.VerdictPass, Stage: in.Stage}
}
