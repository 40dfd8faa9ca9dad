// Package scheduling answers which slots a doctor can still offer and
// admits bookings one doctor at a time.
package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/notify"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

// ErrBusy means the doctor's booking lock could not be taken in time.
var ErrBusy = errors.New("doctor is busy, please retry")

type Config struct {
	MinSeparation time.Duration
	// Location interprets window clock times and calendar dates.
	Location *time.Location
}

// Slot is one entry of a doctor's day as offered to patients.
type Slot struct {
	Instant   time.Time
	Available bool
}

type Service struct {
	windows   availability.Store
	repo      appointment.Repository
	directory directory.Directory
	locker    lock.Locker
	publisher notify.Publisher
	cfg       Config
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(
	windows availability.Store,
	repo appointment.Repository,
	dir directory.Directory,
	locker lock.Locker,
	publisher notify.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &Service{
		windows:   windows,
		repo:      repo,
		directory: dir,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "scheduling").Logger(),
		tracer:    otel.Tracer("github.com/hackgods/hospital-scheduling/internal/scheduling"),
		now:       time.Now,
	}
}

// Location is the zone used to read calendar dates.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

// ListAvailableSlots returns the doctor's candidate slots for the calendar
// date of date, ordered by instant. Instants offered by several windows
// appear once and are available if any window offers them free. Runs
// without the doctor lock; booking re-validates.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.ListAvailableSlots",
		trace.WithAttributes(attribute.String("doctor.id", doctorID.String())))
	defer span.End()

	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, s.fail(span, err)
	}

	day := availability.DateOnly(date, s.cfg.Location)
	windows, err := s.windows.GetActiveWindows(ctx, doctorID, day)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load windows: %w", err))
	}

	slots := mergeCandidates(availability.Generate(windows, day))
	if len(slots) == 0 {
		return slots, nil
	}

	from, _ := appointment.ExclusionRange(slots[0].Instant, s.cfg.MinSeparation)
	_, to := appointment.ExclusionRange(slots[len(slots)-1].Instant, s.cfg.MinSeparation)
	existing, err := s.repo.FindByDoctorAndRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load appointments: %w", err))
	}

	// Past instants are refused by BookAppointment, so never offer them.
	now := s.now()
	for i := range slots {
		if !slots[i].Instant.After(now) {
			slots[i].Available = false
			continue
		}
		if slots[i].Available {
			slots[i].Available = appointment.IsFree(doctorID, slots[i].Instant, existing, s.cfg.MinSeparation)
		}
	}

	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

func mergeCandidates(cands []availability.Candidate) []Slot {
	slots := make([]Slot, 0, len(cands))
	seen := make(map[int64]int, len(cands))
	for _, c := range cands {
		key := c.Instant.UnixNano()
		if i, ok := seen[key]; ok {
			slots[i].Available = slots[i].Available || c.Available
			continue
		}
		seen[key] = len(slots)
		slots = append(slots, Slot{Instant: c.Instant, Available: c.Available})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Instant.Before(slots[j].Instant)
	})
	return slots
}

// IsFree reports whether no live appointment of the doctor lies within the
// minimum separation of instant. Windows are not consulted.
func (s *Service) IsFree(ctx context.Context, doctorID uuid.UUID, instant time.Time) (bool, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return false, err
	}
	return s.isFree(ctx, doctorID, instant)
}

func (s *Service) isFree(ctx context.Context, doctorID uuid.UUID, instant time.Time) (bool, error) {
	from, to := appointment.ExclusionRange(instant, s.cfg.MinSeparation)
	existing, err := s.repo.FindByDoctorAndRange(ctx, doctorID, from, to)
	if err != nil {
		return false, fmt.Errorf("load appointments: %w", err)
	}
	return appointment.IsFree(doctorID, instant, existing, s.cfg.MinSeparation), nil
}

// BookAppointment creates a PENDING appointment at instant. The conflict
// check and the insert run under the doctor's lock, so of several racing
// requests for conflicting instants exactly one succeeds.
func (s *Service) BookAppointment(ctx context.Context, actor auth.Actor, doctorID, patientID uuid.UUID, instant time.Time) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.BookAppointment",
		trace.WithAttributes(
			attribute.String("doctor.id", doctorID.String()),
			attribute.String("patient.id", patientID.String()),
			attribute.String("appointment.instant", instant.UTC().Format(time.RFC3339)),
		))
	defer span.End()

	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, s.fail(span, err)
	}

	local := instant.In(s.cfg.Location)
	if !local.After(s.now()) {
		return nil, s.fail(span, fmt.Errorf("%w: %s is in the past", appointment.ErrSlotUnavailable, local.Format(time.RFC3339)))
	}

	windows, err := s.windows.GetActiveWindows(ctx, doctorID, availability.DateOnly(local, s.cfg.Location))
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("load windows: %w", err))
	}
	if !availability.Offers(windows, local) {
		return nil, s.fail(span, fmt.Errorf("%w: %s is not offered by any active window", appointment.ErrSlotUnavailable, local.Format(time.RFC3339)))
	}

	var created *appointment.Appointment

	err = s.locker.WithDoctorLock(ctx, doctorID, func(lockCtx context.Context) error {
		// Inside the critical section re-check against committed appointments
		free, err := s.isFree(lockCtx, doctorID, local)
		if err != nil {
			return err
		}
		if !free {
			return fmt.Errorf("%w: doctor already has an appointment near %s", appointment.ErrSlotUnavailable, local.Format(time.RFC3339))
		}

		appt, err := s.repo.CreateAppointment(lockCtx, appointment.Appointment{
			DoctorID:  doctorID,
			PatientID: patientID,
			Instant:   local.UTC(),
			Status:    appointment.StatusPending,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"instant":    appt.Instant,
			"actor":      actor.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, s.fail(span, ErrBusy)
		}
		return nil, s.fail(span, err)
	}

	s.publish(ctx, actor, created, notify.EventAppointmentCreated)

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("patient_id", patientID.String()).
		Time("instant", created.Instant).
		Str("actor", actor.String()).
		Msg("appointment booked")

	span.SetAttributes(attribute.String("appointment.id", created.ID.String()))
	return created, nil
}

// ChangeStatus applies one state machine transition and persists it with a
// compare-and-set on the previous status.
func (s *Service) ChangeStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.ChangeStatus",
		trace.WithAttributes(
			attribute.String("appointment.id", id.String()),
			attribute.String("appointment.status", string(to)),
		))
	defer span.End()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, s.fail(span, err)
		}
		return nil, s.fail(span, fmt.Errorf("load appointment: %w", err))
	}

	from := appt.Status
	next := *appt
	if err := appointment.Transition(&next, to, s.now()); err != nil {
		return nil, s.fail(span, err)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			// Someone else moved it first.
			current, getErr := s.repo.GetAppointmentByID(ctx, id)
			if getErr != nil {
				return nil, s.fail(span, fmt.Errorf("reload appointment: %w", getErr))
			}
			return nil, s.fail(span, fmt.Errorf("%w: %s -> %s (status changed concurrently)", appointment.ErrInvalidStateTransition, current.Status, to))
		}
		return nil, s.fail(span, fmt.Errorf("update appointment status: %w", err))
	}

	s.logEvent(ctx, updated.ID, statusEvent(to), map[string]any{
		"from":  from,
		"to":    to,
		"actor": actor.String(),
	})

	switch to {
	case appointment.StatusConfirmed:
		s.publish(ctx, actor, updated, notify.EventAppointmentConfirmed)
	case appointment.StatusCancelled:
		s.publish(ctx, actor, updated, notify.EventAppointmentCancelled)
	}

	s.logger.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.String()).
		Msg("appointment status changed")

	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// ListByDoctor returns the doctor's appointments with from <= instant < to.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return []appointment.Appointment{}, nil
	}

	appts, err := s.repo.FindByDoctorAndRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}

	out := make([]appointment.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Instant.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	return appts, nil
}

// CompletePastAppointments moves CONFIRMED appointments whose instant is
// older than grace to COMPLETED and returns how many were moved.
func (s *Service) CompletePastAppointments(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.now().Add(-grace)

	appts, err := s.repo.FindConfirmedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find confirmed appointments: %w", err)
	}

	completed := 0
	for _, a := range appts {
		if _, err := s.ChangeStatus(ctx, auth.System, a.ID, appointment.StatusCompleted); err != nil {
			if errors.Is(err, appointment.ErrInvalidStateTransition) {
				// Cancelled or completed meanwhile.
				continue
			}
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// Helpers

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.directory.GetDoctorByID(ctx, id); err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	return nil
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	if _, err := s.directory.GetPatientByID(ctx, id); err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			return err
		}
		return fmt.Errorf("load patient: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, actor auth.Actor, a *appointment.Appointment, eventType string) {
	s.publisher.Publish(ctx, notify.Event{
		EventType:     eventType,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Instant:       a.Instant,
		NewStatus:     string(a.Status),
		ActorID:       actor.String(),
		OccurredAt:    s.now().UTC(),
	})
}

// logEvent writes to the event log. Failures are logged, not returned.
func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload")
		return
	}

	id := appointmentID
	ev := appointment.EventLog{
		EventType:     eventType,
		AppointmentID: &id,
		Payload:       raw,
		CreatedAt:     s.now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func statusEvent(to appointment.Status) string {
	switch to {
	case appointment.StatusConfirmed:
		return EventAppointmentConfirmed
	case appointment.StatusCancelled:
		return EventAppointmentCancelled
	case appointment.StatusCompleted:
		return EventAppointmentCompleted
	}
	return "APPOINTMENT_" + string(to)
}
