// Package notify publishes appointment lifecycle events for downstream
// consumers such as reminder and notification services.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentCancelled = "appointment.cancelled"
)

type Event struct {
	EventID       uuid.UUID `json:"event_id"`
	EventType     string    `json:"event_type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Instant       time.Time `json:"instant"`
	NewStatus     string    `json:"new_status"`
	ActorID       string    `json:"actor_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher hands events off without blocking the caller. Delivery is best
// effort; a committed appointment is never rolled back because of it.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
