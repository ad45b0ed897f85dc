package domain

import "errors"

var (
	// ErrNoTransition is returned when an event has no declared transition
	// from the current state. It is fatal to the turn, never a silent no-op.
	ErrNoTransition = errors.New("no declared transition for event from current state")

	// ErrSessionTerminated is returned when a turn or a late model result
	// arrives after the session reached a terminal state or was aborted.
	ErrSessionTerminated = errors.New("session already terminated")

	// ErrUnknownTool is returned when the model invokes a tool outside the
	// active agent's catalog. The call is rejected, never executed.
	ErrUnknownTool = errors.New("tool not in active agent catalog")

	// ErrSlotsNotConfirmed guards booking execution: every required slot
	// must be CONFIRMED before create_booking may run.
	ErrSlotsNotConfirmed = errors.New("required slots not confirmed")

	// ErrUnknownSlot is returned for a slot name outside the definitions
	// catalog.
	ErrUnknownSlot = errors.New("unknown slot")

	// ErrSessionNotFound is returned by the session registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTurnInProgress is returned when a turn arrives while the previous
	// turn of the same session has not committed yet.
	ErrTurnInProgress = errors.New("previous turn still in progress")
)
