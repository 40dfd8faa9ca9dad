package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/directory"
)

// Service is the doctor-facing side of availability: it validates windows
// before any store write and never deletes them.
type Service struct {
	store   Store
	doctors directory.Directory
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store Store, doctors directory.Directory, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		doctors: doctors,
		logger:  logger.With().Str("component", "availability").Logger(),
		now:     time.Now,
	}
}

// CreateWindow validates and stores a new active window.
func (s *Service) CreateWindow(ctx context.Context, w Window) (*Window, error) {
	if err := s.requireDoctor(ctx, w.DoctorID); err != nil {
		return nil, err
	}

	s.prepareNew(&w)
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveWindow(ctx, &w); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", w.DoctorID.String()).
		Str("window_id", w.ID.String()).
		Str("day", w.DayOfWeek.String()).
		Str("start", w.Start.String()).
		Str("end", w.End.String()).
		Msg("availability window created")
	return &w, nil
}

// CreateBulk creates the template window on every listed weekday. All
// windows are validated first, then stored together or not at all.
func (s *Service) CreateBulk(ctx context.Context, doctorID uuid.UUID, days []time.Weekday, tmpl Window) ([]Window, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: at least one day is required", ErrInvalidWindow)
	}
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	seen := make(map[time.Weekday]bool, len(days))
	windows := make([]Window, 0, len(days))
	for _, day := range days {
		if seen[day] {
			continue
		}
		seen[day] = true

		w := tmpl
		w.DoctorID = doctorID
		w.DayOfWeek = day
		w.SpecificDate = nil
		s.prepareNew(&w)
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		windows = append(windows, w)
	}

	if err := s.store.SaveWindows(ctx, windows); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", doctorID.String()).
		Int("count", len(windows)).
		Msg("bulk schedule created")
	return windows, nil
}

// UpdateWindow replaces the mutable fields of a stored window.
func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, upd Window) (*Window, error) {
	w, err := s.store.GetWindow(ctx, id)
	if err != nil {
		return nil, err
	}

	w.Start = upd.Start
	w.End = upd.End
	w.SlotDurationMinutes = upd.SlotDurationMinutes
	w.BreakStart = upd.BreakStart
	w.BreakEnd = upd.BreakEnd
	w.Active = upd.Active
	w.UpdatedAt = s.now()

	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveWindow(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// DeactivateWindow soft-deletes a window.
func (s *Service) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeactivateWindow(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("window_id", id.String()).Msg("availability window deactivated")
	return nil
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	return s.store.GetWindow(ctx, id)
}

func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]Window, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.store.ListWindows(ctx, doctorID)
}

// AvailableDays lists the weekdays with at least one active recurring
// window, Monday first.
func (s *Service) AvailableDays(ctx context.Context, doctorID uuid.UUID) ([]time.Weekday, error) {
	windows, err := s.ListWindows(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	var present [7]bool
	for _, w := range windows {
		if w.Active && w.SpecificDate == nil {
			present[w.DayOfWeek] = true
		}
	}

	days := []time.Weekday{}
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if present[d] {
			days = append(days, d)
		}
	}
	return days, nil
}

func (s *Service) prepareNew(w *Window) {
	now := s.now()
	w.ID = uuid.New()
	w.Active = true
	w.CreatedAt = now
	w.UpdatedAt = now
	if w.SpecificDate != nil {
		d := time.Date(w.SpecificDate.Year(), w.SpecificDate.Month(), w.SpecificDate.Day(), 0, 0, 0, 0, time.UTC)
		w.SpecificDate = &d
		w.DayOfWeek = d.Weekday()
	}
}

func (s *Service) requireDoctor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.doctors.GetDoctorByID(ctx, id); err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return err
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	return nil
}
