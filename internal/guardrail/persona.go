package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Persona keeps replies sounding like a phone receptionist. Replies are
// spoken aloud, so markdown formatting and self-references to being a
// model are flagged and repaired in place rather than blocked.
type Persona struct {
	cat *catalog.Catalog
}

func NewPersona(cat *catalog.Catalog) *Persona {
	return &Persona{cat: cat}
}

func (p *Persona) Name() string { return "persona" }

func (p *Persona) Stages() []domain.GuardrailStage {
	return []domain.GuardrailStage{domain.StagePostLLM}
}

func (p *Persona) Check(ctx context.Context, in Input) domain.Verdict {
	lowered := strings.ToLower(in.AgentText)

	for _, phrase := range p.cat.PersonaBreakPhrases {
		if strings.Contains(lowered, phrase) {
			return domain.Verdict{
				Guardrail: p.Name(),
				Decision:  domain.VerdictFlag,
				Reason:    fmt.Sprintf("persona break %q", phrase),
				Rewritten: stripPhrase(in.AgentText, phrase),
				Stage:     in.Stage,
			}
		}
	}

	if rewritten, hit := stripFormatting(in.AgentText, p.cat.FormattingViolations); hit != "" {
		return domain.Verdict{
			Guardrail: p.Name(),
			Decision:  domain.VerdictFlag,
			Reason:    fmt.Sprintf("formatting %q unsuitable for voice", hit),
			Rewritten: rewritten,
			Stage:     in.Stage,
		}
	}

	return domain.Verdict{Guardrail: p.Name(), Decision: domain.VerdictPass, Stage: in.Stage}
}

// stripPhrase drops the sentence containing the offending phrase.
func stripPhrase(text, phrase string) string {
	sentences := strings.Split(text, ". ")
	kept := sentences[:0]
	for _, s := range sentences {
		if strings.Contains(strings.ToLower(s), phrase) {
			continue
		}
		kept = append(kept, s)
	}
	out := strings.TrimSpace(strings.Join(kept, ". "))
	if out == "" {
		out = "Let me help you with that."
	}
	return out
}

// stripFormatting removes markdown markers, returning the cleaned text and
// the first marker found.
func stripFormatting(text string, markers []string) (string, string) {
	first := ""
	cleaned := text
	for _, m := range markers {
		if strings.Contains(cleaned, m) {
			if first == "" {
				first = m
			}
			cleaned = strings.ReplaceAll(cleaned, m, "")
		}
	}
	if first == "" {
		return text, ""
	}
	return strings.Join(strings.Fields(cleaned), " "), first
}
