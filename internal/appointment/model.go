package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// ParseStatus accepts any letter case.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Terminal statuses admit no further transition.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Appointment struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Instant   time.Time
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
