package domain

// SlotStatus is the lifecycle position of one slot within one session.
type SlotStatus string

const (
	SlotUncollected SlotStatus = "uncollected"
	SlotCollected   SlotStatus = "collected"
	SlotValidated   SlotStatus = "validated"
	SlotConfirmed   SlotStatus = "confirmed"
	SlotRejected    SlotStatus = "rejected"
)

// SlotState is the per-session state of a single slot. Values only move
// forward through COLLECTED -> VALIDATED -> CONFIRMED; a rejection returns
// the slot to UNCOLLECTED with the bad value preserved in History.
type SlotState struct {
	Name        string     `json:"name"`
	Required    bool       `json:"required"`
	RawValue    string     `json:"raw_value,omitempty"`
	Value       string     `json:"value,omitempty"`
	Status      SlotStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	Corrections int        `json:"corrections"`
	History     []string   `json:"history,omitempty"`
}
