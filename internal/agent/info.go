package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// InfoAgent answers questions about services, pricing, and hours using only
// catalog facts.
type InfoAgent struct{}

func NewInfo() *InfoAgent { return &InfoAgent{} }

func (a *InfoAgent) Role() domain.AgentRole { return domain.RoleInfo }

func (a *InfoAgent) SystemPrompt(tc *TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You answer questions for %s, a home services company. ", tc.Business.Name)
	b.WriteString("You are speaking aloud on a phone call: one or two short sentences, no lists, no formatting, never mention being an AI.\n\n")
	b.WriteString("Only state facts returned by your tools. Never invent prices, guarantees, or credentials. ")
	b.WriteString("If the caller decides to book, call route_to_booking. ")
	fmt.Fprintf(&b, "Hours: %s weekdays, %s weekends. Service area: %s.",
		tc.Business.HoursWeekday, tc.Business.HoursWeekend, tc.Business.ServiceArea)
	return b.String()
}

func (a *InfoAgent) Tools() []ToolDef {
	return []ToolDef{
		{
			Spec: toolSpec("get_service_info",
				"Fetch description, price range, and call-out fee for one service.",
				objectSchema(map[string]any{
					"service": strProp("The service asked about"),
				}, "service")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				query := stringArg(args, "service")
				id := tc.Catalog.MatchService(query)
				if id == "" {
					return ToolResult{Output: fmt.Sprintf("%q is not a service we offer", query)}, nil
				}
				svc := tc.Catalog.ServiceByID(id)
				return ToolResult{Output: fmt.Sprintf(
					"%s: %s Price range %s, call-out fee %s, typically %s.",
					svc.Name, svc.Description, svc.PriceRange, svc.CallOutFee, svc.TypicalDuration)}, nil
			},
		},
		{
			Spec: toolSpec("list_services",
				"List every service the business offers.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				names := make([]string, len(tc.Catalog.Services))
				for i, s := range tc.Catalog.Services {
					names[i] = s.Name
				}
				return ToolResult{Output: "services: " + strings.Join(names, ", ")}, nil
			},
		},
		{
			Spec: toolSpec("route_to_booking",
				"The caller wants to go ahead and book.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "routing to booking", Event: domain.EventWantsToBook}, nil
			},
		},
		{
			Spec: toolSpec("escalate_to_human",
				"Hand the call to a human.",
				objectSchema(map[string]any{
					"reason": strProp("Why a human is needed"),
				}, "reason")),
			Handle: handleEscalate,
		},
		{
			Spec: toolSpec("end_call",
				"The caller has their answer and is done.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "ending call", Event: domain.EventSatisfied}, nil
			},
		},
	}
}
