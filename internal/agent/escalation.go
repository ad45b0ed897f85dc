package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// EscalationAgent manages the handoff to a human: it collects a callback
// number, gives safety guidance for emergencies, and closes the handoff.
type EscalationAgent struct{}

func NewEscalation() *EscalationAgent { return &EscalationAgent{} }

func (a *EscalationAgent) Role() domain.AgentRole { return domain.RoleEscalation }

func (a *EscalationAgent) SystemPrompt(tc *TurnContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are handing this call to a human at %s. ", tc.Business.Name)
	b.WriteString("You are speaking aloud on a phone call: calm, brief, no lists, no formatting, never mention being an AI.\n\n")
	if tc.EscalationReason != "" {
		fmt.Fprintf(&b, "Reason for escalation: %s. ", tc.EscalationReason)
	}
	if strings.HasPrefix(tc.EscalationReason, "emergency") {
		fmt.Fprintf(&b, "This is an emergency: give safety guidance first, then the emergency line %s. ", tc.Business.EmergencyLine)
	}
	fmt.Fprintf(&b, "Make sure you have a callback number, tell the caller someone will ring back within %d minutes, then call complete_handoff.",
		tc.Business.CallbackSLAMinutes)
	return b.String()
}

func (a *EscalationAgent) Tools() []ToolDef {
	return []ToolDef{
		{
			Spec: toolSpec("record_callback_number",
				"Record the number a human should call back.",
				objectSchema(map[string]any{
					"phone": strProp("The callback phone number"),
				}, "phone")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				res, err := tc.Slots.Set("customer_phone", stringArg(args, "phone"))
				if err != nil {
					return ToolResult{}, err
				}
				if res.Rejected {
					return ToolResult{Output: "that does not look like a valid phone number; ask again"}, nil
				}
				return ToolResult{Output: "callback number recorded: " + res.Value}, nil
			},
		},
		{
			Spec: toolSpec("provide_emergency_guidance",
				"Fetch the safety guidance for an emergency type.",
				objectSchema(map[string]any{
					"emergency_type": strProp("gas, electrical, or water"),
				}, "emergency_type")),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				switch strings.ToLower(stringArg(args, "emergency_type")) {
				case "gas":
					return ToolResult{Output: "Advise: do not touch any switches, open windows, leave the building, and call the emergency line from outside."}, nil
				case "electrical":
					return ToolResult{Output: "Advise: switch off power at the switchboard if safe to reach, and keep clear of any sparking or exposed wiring."}, nil
				case "water":
					return ToolResult{Output: "Advise: turn off the water at the main shut-off valve, usually near the water meter, and move valuables clear."}, nil
				default:
					return ToolResult{Output: "Advise: keep everyone clear of the hazard and wait for the technician's call."}, nil
				}
			},
		},
		{
			Spec: toolSpec("complete_handoff",
				"The callback details are captured and the caller is briefed.",
				objectSchema(map[string]any{})),
			Handle: func(ctx context.Context, tc *TurnContext, args map[string]any) (ToolResult, error) {
				return ToolResult{Output: "handoff complete", Event: domain.EventHandoffComplete}, nil
			},
		},
	}
}
