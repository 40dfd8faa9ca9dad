// Package lock serialises booking decisions per doctor.
package lock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the doctor lock could not be taken
// within the configured wait.
var ErrNotAcquired = errors.New("doctor lock not acquired")

// Locker is used by the scheduling service to guard the
// check-then-create section of a booking for one doctor.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}
