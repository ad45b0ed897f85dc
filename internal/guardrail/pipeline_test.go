package guardrail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

const fallback = "I'm sorry, could you repeat that?"

func testPipeline(blocksHallucination bool) *Pipeline {
	cat := catalog.Default()
	cfg := &config.GuardrailConfig{
		ConfusionThreshold:  3,
		MaxSlotRetries:      3,
		MaxSessionErrors:    3,
		HallucinationBlocks: blocksHallucination,
		ClaimFallbackUtterance: "I can share our standard pricing and availability, " +
			"and the technician can confirm the details on site.",
	}
	return NewPipeline(fallback,
		NewScope(cat),
		NewHallucination(cat, cfg),
		NewPersona(cat),
		NewEscalation(cat, cfg),
	)
}

func TestPreStagePassesCleanInput(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:      domain.StagePreLLM,
		CallerText: "My kitchen tap is dripping, can someone come out?",
	})

	assert.False(t, out.Blocked)
	assert.False(t, out.Escalate)
	assert.Equal(t, "My kitchen tap is dripping, can someone come out?", out.Text)
	require.Len(t, out.Verdicts, 2, "scope and escalation run pre-model")
	for _, v := range out.Verdicts {
		assert.Equal(t, domain.VerdictPass, v.Decision)
		assert.Equal(t, domain.StagePreLLM, v.Stage)
	}
}

func TestScopeBlocksOffTopicRequest(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:      domain.StagePreLLM,
		CallerText: "Can you give me some medical advice about my back?",
	})

	assert.True(t, out.Blocked)
	assert.Contains(t, out.Text, "home services")
}

func TestEmergencyForcesEscalation(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:      domain.StagePreLLM,
		CallerText: "I can smell gas in the kitchen",
	})

	assert.True(t, out.Escalate)
	assert.Contains(t, out.EscalateReason, "emergency keyword")
	assert.False(t, out.Blocked, "escalation does not suppress the turn")
}

func TestConfusionStreakForcesEscalation(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:           domain.StagePreLLM,
		CallerText:      "uh I don't know",
		ConfusionStreak: 3,
	})

	assert.True(t, out.Escalate)
	assert.Contains(t, out.EscalateReason, "consecutive unclear")
}

func TestScopeRedirectNamesCatalogServices(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:      domain.StagePreLLM,
		CallerText: "Can you give me some medical advice about my back?",
	})

	require.True(t, out.Blocked)
	assert.Contains(t, out.Text, "plumbing service")
	assert.Contains(t, out.Text, "drain cleaning")
}

func TestSlotRetryExhaustionForcesEscalation(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:        domain.StagePreLLM,
		CallerText:   "it's oh four one two",
		SlotFailures: 3,
	})

	assert.True(t, out.Escalate)
	assert.Contains(t, out.EscalateReason, "failed validation")
}

func TestFailedTurnBudgetForcesEscalation(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:      domain.StagePreLLM,
		CallerText: "can we try that again?",
		ErrorCount: 3,
	})

	assert.True(t, out.Escalate)
	assert.Contains(t, out.EscalateReason, "failed turns")
}

func TestHallucinationBlockUsesSafeRewrite(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:     domain.StagePostLLM,
		AgentText: "We guarantee same-day repairs, best in the city!",
	})

	assert.True(t, out.Blocked)
	assert.Contains(t, out.Text, "standard pricing")
}

func TestHallucinationFlagOnlyKeepsReply(t *testing.T) {
	p := testPipeline(false)
	out := p.Run(context.Background(), Input{
		Stage:     domain.StagePostLLM,
		AgentText: "We guarantee you'll be happy with the work.",
	})

	assert.False(t, out.Blocked)
	assert.Equal(t, "We guarantee you'll be happy with the work.", out.Text)

	var hall *domain.Verdict
	for i := range out.Verdicts {
		if out.Verdicts[i].Guardrail == "hallucination" {
			hall = &out.Verdicts[i]
		}
	}
	require.NotNil(t, hall)
	assert.Equal(t, domain.VerdictFlag, hall.Decision)
}

func TestPersonaRewritesFormattingForVoice(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:     domain.StagePostLLM,
		AgentText: "We offer: **plumbing** and **electrical** services.",
	})

	assert.False(t, out.Blocked)
	assert.NotContains(t, out.Text, "**")
	assert.Contains(t, out.Text, "plumbing")
}

func TestPersonaStripsModelSelfReference(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:     domain.StagePostLLM,
		AgentText: "As an AI I cannot smell gas. A technician can inspect the line.",
	})

	assert.NotContains(t, strings.ToLower(out.Text), "as an ai")
	assert.Contains(t, out.Text, "technician")
}

func TestAllVerdictsRetainedIncludingPasses(t *testing.T) {
	p := testPipeline(true)
	out := p.Run(context.Background(), Input{
		Stage:     domain.StagePostLLM,
		AgentText: "A plumber can be there tomorrow between nine and eleven.",
	})

	require.Len(t, out.Verdicts, 4, "all four guardrails run post-model")
	for _, v := range out.Verdicts {
		assert.Equal(t, domain.VerdictPass, v.Decision)
	}
}
