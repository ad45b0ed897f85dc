package slots

import (
	"fmt"
	"sort"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Manager tracks slot state for one session. It is not safe for concurrent
// use; turns within a session are strictly sequential, so each session owns
// exactly one Manager.
type Manager struct {
	defs  []Definition
	byDef map[string]*Definition
	state map[string]*domain.SlotState
}

// SetResult reports one Set call.
type SetResult struct {
	Slot       string
	Status     domain.SlotStatus
	Value      string
	Rejected   bool
	Correction bool
	// RetriesExhausted is true when the slot has failed validation
	// MaxAttempts times. The caller escalates via the state machine.
	RetriesExhausted bool
}

func NewManager(defs []Definition) *Manager {
	m := &Manager{
		defs:  defs,
		byDef: make(map[string]*Definition, len(defs)),
		state: make(map[string]*domain.SlotState, len(defs)),
	}
	for i := range defs {
		d := &defs[i]
		m.byDef[d.Name] = d
		m.state[d.Name] = &domain.SlotState{
			Name:     d.Name,
			Required: d.Required,
			Status:   domain.SlotUncollected,
		}
	}
	return m
}

// Set records a raw value for a slot and runs validation immediately.
// A value that fails validation moves the slot to REJECTED and then back to
// UNCOLLECTED, preserving the bad value in History. A value that passes
// moves the slot to VALIDATED with the normalized form in Value.
func (m *Manager) Set(name, raw string) (SetResult, error) {
	def, ok := m.byDef[name]
	if !ok {
		return SetResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownSlot, name)
	}
	s := m.state[name]

	correction := s.Status == domain.SlotValidated || s.Status == domain.SlotConfirmed
	if correction {
		s.History = append(s.History, s.Value)
		s.Corrections++
	}

	s.RawValue = raw
	s.Attempts++
	s.Status = domain.SlotCollected

	if def.Validate != nil && !def.Validate(raw) {
		s.Status = domain.SlotRejected
		s.History = append(s.History, raw)
		s.Value = ""
		// A rejected overwrite was already counted above.
		if !correction {
			s.Corrections++
		}
		// REJECTED is transient; the slot is immediately reopened so the
		// agent can re-prompt.
		s.Status = domain.SlotUncollected
		return SetResult{
			Slot:             name,
			Status:           s.Status,
			Rejected:         true,
			Correction:       correction,
			RetriesExhausted: def.MaxAttempts > 0 && s.Corrections >= def.MaxAttempts,
		}, nil
	}

	value := raw
	if def.Normalize != nil {
		value = def.Normalize(raw)
	}
	s.Value = value
	s.Status = domain.SlotValidated
	return SetResult{Slot: name, Status: s.Status, Value: value, Correction: correction}, nil
}

// Reopen moves a previously confirmed or validated slot back to UNCOLLECTED
// so the caller can supply a new value. The old value goes to History.
func (m *Manager) Reopen(name string) error {
	s, ok := m.state[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSlot, name)
	}
	if s.Value != "" {
		s.History = append(s.History, s.Value)
		s.Corrections++
	}
	s.Value = ""
	s.RawValue = ""
	s.Status = domain.SlotUncollected
	return nil
}

// ConfirmAll promotes every VALIDATED slot to CONFIRMED after the caller
// accepts the read-back. Slots not yet validated are left untouched.
func (m *Manager) ConfirmAll() {
	for _, s := range m.state {
		if s.Status == domain.SlotValidated {
			s.Status = domain.SlotConfirmed
		}
	}
}

// AllValidated reports whether every required slot is VALIDATED or better.
func (m *Manager) AllValidated() bool {
	for _, d := range m.defs {
		if !d.Required {
			continue
		}
		st := m.state[d.Name].Status
		if st != domain.SlotValidated && st != domain.SlotConfirmed {
			return false
		}
	}
	return true
}

// AllConfirmed reports whether every required slot is CONFIRMED. This is
// the precondition for executing a booking.
func (m *Manager) AllConfirmed() bool {
	for _, d := range m.defs {
		if !d.Required {
			continue
		}
		if m.state[d.Name].Status != domain.SlotConfirmed {
			return false
		}
	}
	return true
}

// NextEmpty returns the first required slot still waiting for a value, in
// definition order, or nil when none remain.
func (m *Manager) NextEmpty() *Definition {
	for i := range m.defs {
		d := &m.defs[i]
		if !d.Required {
			continue
		}
		if m.state[d.Name].Status == domain.SlotUncollected {
			return d
		}
	}
	return nil
}

// Missing lists the required slots not yet validated, in definition order.
func (m *Manager) Missing() []string {
	var out []string
	for _, d := range m.defs {
		if !d.Required {
			continue
		}
		st := m.state[d.Name].Status
		if st != domain.SlotValidated && st != domain.SlotConfirmed {
			out = append(out, d.Name)
		}
	}
	return out
}

// Get returns a copy of one slot's state.
func (m *Manager) Get(name string) (domain.SlotState, error) {
	s, ok := m.state[name]
	if !ok {
		return domain.SlotState{}, fmt.Errorf("%w: %s", domain.ErrUnknownSlot, name)
	}
	return *s, nil
}

// Value returns the normalized value of a slot, or "" when unset.
func (m *Manager) Value(name string) string {
	if s, ok := m.state[name]; ok {
		return s.Value
	}
	return ""
}

// Snapshot captures the full slot state so a failed turn can roll back.
func (m *Manager) Snapshot() map[string]domain.SlotState {
	snap := make(map[string]domain.SlotState, len(m.state))
	for name, s := range m.state {
		cp := *s
		cp.History = append([]string(nil), s.History...)
		snap[name] = cp
	}
	return snap
}

// Restore replaces the slot state with a previously taken snapshot.
func (m *Manager) Restore(snap map[string]domain.SlotState) {
	for name, s := range snap {
		cp := s
		cp.History = append([]string(nil), s.History...)
		m.state[name] = &cp
	}
}

// States returns a copy of all slot states keyed by name, for freezing
// into a transcript.
func (m *Manager) States() map[string]domain.SlotState {
	return m.Snapshot()
}

// Summary renders the confirmation read-back of every filled slot that
// requires confirmation, in definition order.
func (m *Manager) Summary() string {
	var parts []string
	for _, d := range m.defs {
		if !d.ConfirmationRequired {
			continue
		}
		s := m.state[d.Name]
		if s.Value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", d.DisplayName, s.Value))
	}
	return strings.Join(parts, ", ")
}

// MaxCorrections returns the highest correction count of any single slot,
// feeding the escalation guardrail's retry trigger.
func (m *Manager) MaxCorrections() int {
	var max int
	for _, s := range m.state {
		if s.Corrections > max {
			max = s.Corrections
		}
	}
	return max
}

// Stats aggregates attempt and correction counters across all slots.
func (m *Manager) Stats() (attempts, corrections int) {
	names := make([]string, 0, len(m.state))
	for name := range m.state {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		attempts += m.state[name].Attempts
		corrections += m.state[name].Corrections
	}
	return attempts, corrections
}
