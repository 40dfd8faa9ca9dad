package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps appointments in an arena keyed by doctor. It backs
// the service when no database is configured and is used by tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]Appointment
	byDoctor     map[uuid.UUID][]uuid.UUID
	events       []EventLog
	now          func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]Appointment),
		byDoctor:     make(map[uuid.UUID][]uuid.UUID),
		now:          time.Now,
	}
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) FindByDoctorAndRange(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, id := range r.byDoctor[doctorID] {
		a := r.appointments[id]
		if a.Instant.Before(start) || a.Instant.After(end) {
			continue
		}
		out = append(out, a)
	}
	sortByInstant(out)
	return out, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sortByInstant(out)

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	r.appointments[a.ID] = a
	r.byDoctor[a.DoctorID] = append(r.byDoctor[a.DoctorID], a.ID)
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = r.now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) FindConfirmedBefore(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.Instant.Before(cutoff) {
			out = append(out, a)
		}
	}
	sortByInstant(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}

func sortByInstant(as []Appointment) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].Instant.Equal(as[j].Instant) {
			return as[i].CreatedAt.Before(as[j].CreatedAt)
		}
		return as[i].Instant.Before(as[j].Instant)
	})
}
