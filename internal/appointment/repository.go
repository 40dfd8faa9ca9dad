package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository contains all appointment persistence the scheduler needs.
// Appointments are never deleted; cancellation is a status.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks and listings. Both bounds are inclusive and the
	// result is ordered by instant.
	FindByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateAppointmentStatus only applies when the stored status still
	// equals from; otherwise it returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Completion worker
	FindConfirmedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
