// Package agent implements the four conversational policies and the tool
// dispatch loop around the model. Each agent owns a closed tool catalog;
// a model call can only ever execute tools from the catalog of the agent
// active for the current state.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/catalog"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/llm"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/slots"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/tools"
)

// TurnContext exposes the session surfaces a tool handler may read or
// mutate during one turn. Handlers run on the turn's goroutine, so no
// locking is needed here.
type TurnContext struct {
	SessionID string
	State     domain.State
	Slots     *slots.Manager
	Catalog   *catalog.Catalog
	Business  *config.BusinessConfig

	Availability *tools.AvailabilityService
	Bookings     *tools.BookingService
	Customers    *tools.CustomerService

	// Outputs a handler may set for the session to pick up after the turn.
	Event             domain.Event
	BookingRef        string
	EscalationReason  string
	SlotRetryExceeded bool
}

// ToolResult is what a handler returns: the payload fed back to the model
// and optionally the event that should drive the state machine.
type ToolResult struct {
	Output string
	Event  domain.Event
}

// ToolDef binds a model-visible tool spec to its handler.
type ToolDef struct {
	Spec   llm.ToolSpec
	Handle func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error)
}

// Agent is one conversational policy: a system prompt plus a closed tool
// catalog.
type Agent interface {
	Role() domain.AgentRole
	SystemPrompt(tc *TurnContext) string
	Tools() []ToolDef
}

// Reply is the outcome of one model exchange before guardrails see it.
type Reply struct {
	Text        string
	Event       domain.Event
	Invocations []domain.ToolInvocation
}

// Runner drives the tool loop for whichever agent is active.
type Runner struct {
	client      *llm.Client
	log         *logrus.Logger
	model       string
	temperature float64
	maxTokens   int
	maxToolHops int
}

func NewRunner(client *llm.Client, cfg *config.LLMConfig, guard *config.GuardrailConfig, log *logrus.Logger) *Runner {
	maxHops := guard.MaxToolAttempts
	if maxHops <= 0 {
		maxHops = 4
	}
	return &Runner{
		client:      client,
		log:         log,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxToolHops: maxHops,
	}
}

// Run sends the conversation to the model and resolves tool calls until the
// model produces plain text or the hop limit is reached. Tool calls outside
// the agent's catalog are rejected and never executed; the rejection is
// surfaced to the model so it can correct itself within the same turn.
func (r *Runner) Run(ctx context.Context, ag Agent, tc *TurnContext, history []llm.Message, callerText string) (*Reply, error) {
	defs := ag.Tools()
	byName := make(map[string]*ToolDef, len(defs))
	specs := make([]llm.ToolSpec, len(defs))
	for i := range defs {
		byName[defs[i].Spec.Name] = &defs[i]
		specs[i] = defs[i].Spec
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: ag.SystemPrompt(tc)})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: callerText})

	reply := &Reply{}

	for hop := 0; hop < r.maxToolHops; hop++ {
		resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
			Model:       r.model,
			Messages:    messages,
			Tools:       specs,
			MaxTokens:   r.maxTokens,
			Temperature: r.temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %s completion: %w", ag.Role(), err)
		}

		if len(resp.ToolCalls) == 0 {
			reply.Text = resp.Content
			return reply, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			inv := domain.ToolInvocation{
				Name:      call.Name,
				Arguments: json.RawMessage(call.Arguments),
			}

			def, ok := byName[call.Name]
			if !ok {
				inv.Status = "rejected"
				inv.Result = domain.ErrUnknownTool.Error()
				reply.Invocations = append(reply.Invocations, inv)
				r.log.WithFields(logrus.Fields{
					"session_id": tc.SessionID,
					"agent":      ag.Role(),
					"tool":       call.Name,
				}).Warn("rejected tool call outside agent catalog")
				messages = append(messages, toolMessage(call.ID,
					fmt.Sprintf("error: tool %q is not available to you", call.Name)))
				continue
			}

			args, err := decodeArgs(call.Arguments)
			if err != nil {
				inv.Status = "error"
				inv.Result = err.Error()
				reply.Invocations = append(reply.Invocations, inv)
				messages = append(messages, toolMessage(call.ID, "error: "+err.Error()))
				continue
			}

			result, err := def.Handle(ctx, tc, args)
			if err != nil {
				inv.Status = "error"
				inv.Result = err.Error()
				reply.Invocations = append(reply.Invocations, inv)
				messages = append(messages, toolMessage(call.ID, "error: "+err.Error()))
				continue
			}

			inv.Status = "ok"
			inv.Result = result.Output
			reply.Invocations = append(reply.Invocations, inv)
			if result.Event != "" {
				reply.Event = result.Event
				tc.Event = result.Event
			}
			messages = append(messages, toolMessage(call.ID, result.Output))
		}
	}

	// The model kept calling tools past the hop limit; ask for a plain
	// reply without tools so the caller is never left hanging.
	resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s final completion: %w", ag.Role(), err)
	}
	reply.Text = resp.Content
	return reply, nil
}

func toolMessage(callID, content string) llm.Message {
	return llm.Message{Role: "tool", ToolCallID: callID, Content: content}
}

func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	return args, nil
}

// stringArg fetches a string argument, tolerating absence.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// objectSchema builds a JSON Schema object for a tool's parameters.
func objectSchema(props map[string]any, required ...string) json.RawMessage {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	out, _ := json.Marshal(schema)
	return out
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func toolSpec(name, description string, params json.RawMessage) llm.ToolSpec {
	return llm.ToolSpec{Name: name, Description: description, Parameters: params}
}
