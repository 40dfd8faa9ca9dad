package appointment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrSlotUnavailable = errors.New("slot unavailable")

// IsFree reports whether instant is clear of every non-cancelled
// appointment of the doctor by strictly less than sep on either side.
// Cancelled appointments never conflict, so a cancelled slot is free again
// immediately.
func IsFree(doctorID uuid.UUID, instant time.Time, existing []Appointment, sep time.Duration) bool {
	for _, a := range existing {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if absDuration(a.Instant.Sub(instant)) < sep {
			return false
		}
		// With a zero separation only an exact collision conflicts.
		if sep == 0 && a.Instant.Equal(instant) {
			return false
		}
	}
	return true
}

// ExclusionRange is the span of existing appointment instants that can
// conflict with instant. Stores are queried with it before IsFree.
func ExclusionRange(instant time.Time, sep time.Duration) (start, end time.Time) {
	return instant.Add(-sep), instant.Add(sep)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
