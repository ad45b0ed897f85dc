package agent

import (
	"fmt"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// stateRoles maps each conversation state to the policy that fronts it.
// The active agent is a pure function of state; nothing else may choose it.
var stateRoles = map[domain.State]domain.AgentRole{
	domain.StateGreeting:          domain.RoleIntake,
	domain.StateIntentDetection:   domain.RoleIntake,
	domain.StateErrorRecovery:     domain.RoleIntake,
	domain.StateFarewell:          domain.RoleIntake,
	domain.StateServiceSelection:  domain.RoleBooking,
	domain.StateSlotFilling:       domain.RoleBooking,
	domain.StateSlotConfirmation:  domain.RoleBooking,
	domain.StateAvailabilityCheck: domain.RoleBooking,
	domain.StateBookingCreation:   domain.RoleBooking,
	domain.StateConfirmation:      domain.RoleBooking,
	domain.StateInfoResponse:      domain.RoleInfo,
	domain.StateEscalation:        domain.RoleEscalation,
}

// Registry holds the four agents and resolves which one fronts a state.
type Registry struct {
	agents map[domain.AgentRole]Agent
}

func NewRegistry() *Registry {
	r := &Registry{agents: make(map[domain.AgentRole]Agent)}
	for _, a := range []Agent{NewIntake(), NewBooking(), NewInfo(), NewEscalation()} {
		r.agents[a.Role()] = a
	}
	return r
}

// RoleFor returns the agent role that fronts a state.
func RoleFor(state domain.State) domain.AgentRole {
	return stateRoles[state]
}

// ForState returns the agent active for a state.
func (r *Registry) ForState(state domain.State) (Agent, error) {
	role, ok := stateRoles[state]
	if !ok {
		return nil, fmt.Errorf("no agent fronts state %q", state)
	}
	return r.agents[role], nil
}
