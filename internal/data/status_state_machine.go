package data

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition flags a status write that would move a deposit
// backwards in its lifecycle, or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid deposit status transition")

type StatusState string

const (
	PendingStatus    StatusState = "PENDING"
	ConfirmingStatus StatusState = "CONFIRMING"
	CompletedStatus  StatusState = "COMPLETED"
	FailedStatus     StatusState = "FAILED"
)

// statusTransitions encodes the deposit lifecycle. Refreshes to the same
// state are legal so the watcher can re-run any step after a crash without
// tripping the machine; terminal states only accept their own refresh.
var statusTransitions = map[StatusState]map[StatusState]bool{
	PendingStatus: {
		PendingStatus:    true, // no observation yet, refreshed each pass
		ConfirmingStatus: true, // first observation landed
		CompletedStatus:  true, // settled externally via the callback endpoint
		FailedStatus:     true,
	},
	ConfirmingStatus: {
		ConfirmingStatus: true, // confirmation count moved
		CompletedStatus:  true, // webhook accepted
		FailedStatus:     true, // retry window exhausted
	},
	CompletedStatus: {
		CompletedStatus: true,
	},
	FailedStatus: {
		FailedStatus: true,
	},
}

// StatusStates returns a list of all possible deposit status states.
func StatusStates() []StatusState {
	return []StatusState{PendingStatus, ConfirmingStatus, CompletedStatus, FailedStatus}
}

// Validate validates the deposit status state.
func (s StatusState) Validate() error {
	switch StatusState(strings.ToUpper(string(s))) {
	case PendingStatus, ConfirmingStatus, CompletedStatus, FailedStatus:
		return nil
	default:
		return fmt.Errorf("invalid deposit status %q", s)
	}
}

// ToStatusState converts a string to a StatusState.
func ToStatusState(s string) (StatusState, error) {
	if err := StatusState(s).Validate(); err != nil {
		return "", err
	}
	return StatusState(strings.ToUpper(s)), nil
}

// IsTerminal reports whether the state accepts no further progress.
func (s StatusState) IsTerminal() bool {
	return s == CompletedStatus || s == FailedStatus
}

func (s StatusState) CanTransitionTo(target StatusState) bool {
	return statusTransitions[s][target]
}

// TransitionTo validates the transition from s to the target state.
func (s StatusState) TransitionTo(target StatusState) error {
	if s.CanTransitionTo(target) {
		return nil
	}
	return fmt.Errorf("%w: cannot transition deposit status from %s to %s", ErrInvalidTransition, s, target)
}
