package appointment

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStateTransition = errors.New("invalid status transition")

// transitions lists the legal moves out of each non-terminal status.
// Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves a to the target status, or leaves it untouched and
// returns ErrInvalidStateTransition.
func Transition(a *Appointment, to Status, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}
