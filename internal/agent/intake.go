package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Intake greets the caller, classifies intent, and routes to a specialist.
// It also fronts ERROR_RECOVERY, where its job is a single clarifying
// question.
type Intake struct{}

func NewIntake() *Intake { return &Intake{} }

func (a *Intake) Role() domain.AgentRole { return domain.RoleIntake }

func (a *Intake) SystemPrompt(tc *TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone receptionist for %s, a home services company. ", tc.Business.Name)
	b.WriteString("You are speaking aloud on a phone call: keep replies to one or two short sentences, ")
	b.WriteString("never use lists or formatting, and never mention being an AI or a system.\n\n")

	switch tc.State {
	case domain.StateGreeting:
		b.WriteString("Greet the caller warmly and ask how you can help.")
	case domain.StateErrorRecovery:
		b.WriteString("The conversation has gone off track. Apologize briefly and ask one simple clarifying question about what the caller needs.")
	case domain.StateFarewell:
		b.WriteString("Wrap up the call politely and say goodbye.")
	default:
		b.WriteString("Work out what the caller needs and route them with exactly one routing tool: ")
		b.WriteString("booking a technician, a question about services or pricing, an emergency, or a human. ")
		b.WriteString("If you genuinely cannot tell, call mark_intent_unclear and ask them to rephrase.")
	}

	fmt.Fprintf(&b, "\n\nBusiness hours: %s weekdays, %s weekends. Emergency line: %s.",
		tc.Business.HoursWeekday, tc.Business.HoursWeekend, tc.Business.EmergencyLine)
	return b.String()
}

func (a *Intake) Tools() []ToolDef {
	return []ToolDef{
		{
			Spec: toolSpec("identify_caller",
				"Look up the caller in the customer records by phone number.",
				objectSchema(map[string]any{
					"phone": strProp("The caller's phone number"),
				}, "phone")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				phone := stringArg(args, "phone")
				cust := tc.Customers.Lookup(phone)
				if cust == nil {
					return ToolResult{Output: "no existing customer record"}, nil
				}
				return ToolResult{Output: fmt.Sprintf(
					"returning customer: name=%s address=%s past_bookings=%d",
					cust.Name, cust.Address, len(cust.PastBookings))}, nil
			},
		},
		{
			Spec: toolSpec("route_to_booking",
				"The caller wants to book a technician visit.",
				objectSchema(map[string]any{
					"service_hint": strProp("The service mentioned, if any"),
				})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				if hint := stringArg(args, "service_hint"); hint != "" {
					if id := tc.Catalog.MatchService(hint); id != "" {
						_, _ = tc.Slots.Set("service_type", hint)
						return ToolResult{
							Output: fmt.Sprintf("routed to booking, service %s pre-selected", id),
							Event:  domain.EventIntentBook,
						}, nil
					}
				}
				return ToolResult{Output: "routed to booking", Event: domain.EventIntentBook}, nil
			},
		},
		{
			Spec: toolSpec("route_to_info",
				"The caller has a question about services, pricing, or hours.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "routed to information", Event: domain.EventIntentInfo}, nil
			},
		},
		{
			Spec: toolSpec("route_to_emergency",
				"The caller reports a safety emergency such as a gas leak, flooding, or sparking.",
				objectSchema(map[string]any{
					"description": strProp("What the emergency is"),
				}, "description")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				tc.EscalationReason = "emergency: " + stringArg(args, "description")
				return ToolResult{Output: "escalating as emergency", Event: domain.EventIntentEmergency}, nil
			},
		},
		{
			Spec: toolSpec("route_to_human",
				"The caller explicitly asks for a human or is too frustrated to continue.",
				objectSchema(map[string]any{
					"reason": strProp("Why the caller needs a human"),
				}, "reason")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				tc.EscalationReason = stringArg(args, "reason")
				return ToolResult{Output: "escalating to human", Event: domain.EventIntentHuman}, nil
			},
		},
		{
			Spec: toolSpec("mark_intent_unclear",
				"The caller's request cannot be classified yet.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "intent marked unclear", Event: domain.EventIntentUnclear}, nil
			},
		},
	}
}

