package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists availability windows. Windows are never physically
// deleted; DeactivateWindow flips Active so historical slots stay auditable.
type Store interface {
	// GetActiveWindows returns the doctor's active windows applying on the
	// calendar date of date: recurring windows for its weekday first, then
	// one-off windows for that exact date.
	GetActiveWindows(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Window, error)
	ListWindows(ctx context.Context, doctorID uuid.UUID) ([]Window, error)
	GetWindow(ctx context.Context, id uuid.UUID) (*Window, error)
	SaveWindow(ctx context.Context, w *Window) error
	// SaveWindows stores all of ws or none of them.
	SaveWindows(ctx context.Context, ws []Window) error
	DeactivateWindow(ctx context.Context, id uuid.UUID) error
}

// MemoryStore is an arena of windows keyed by doctor.
type MemoryStore struct {
	mu       sync.RWMutex
	byDoctor map[uuid.UUID][]uuid.UUID
	windows  map[uuid.UUID]Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDoctor: make(map[uuid.UUID][]uuid.UUID),
		windows:  make(map[uuid.UUID]Window),
	}
}

func (s *MemoryStore) GetActiveWindows(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var weekly, oneOff []Window
	for _, id := range s.byDoctor[doctorID] {
		w := s.windows[id]
		if !w.AppliesOn(date) {
			continue
		}
		if w.SpecificDate != nil {
			oneOff = append(oneOff, w)
		} else {
			weekly = append(weekly, w)
		}
	}
	sortWindows(weekly)
	sortWindows(oneOff)
	return append(weekly, oneOff...), nil
}

func (s *MemoryStore) ListWindows(_ context.Context, doctorID uuid.UUID) ([]Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Window, 0, len(s.byDoctor[doctorID]))
	for _, id := range s.byDoctor[doctorID] {
		out = append(out, s.windows[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return isoDay(out[i].DayOfWeek) < isoDay(out[j].DayOfWeek)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (s *MemoryStore) GetWindow(_ context.Context, id uuid.UUID) (*Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return &w, nil
}

func (s *MemoryStore) SaveWindow(_ context.Context, w *Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.windows[w.ID]; !exists {
		s.byDoctor[w.DoctorID] = append(s.byDoctor[w.DoctorID], w.ID)
	}
	s.windows[w.ID] = *w
	return nil
}

func (s *MemoryStore) SaveWindows(_ context.Context, ws []Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range ws {
		if _, exists := s.windows[w.ID]; !exists {
			s.byDoctor[w.DoctorID] = append(s.byDoctor[w.DoctorID], w.ID)
		}
		s.windows[w.ID] = w
	}
	return nil
}

func (s *MemoryStore) DeactivateWindow(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return ErrWindowNotFound
	}
	w.Active = false
	w.UpdatedAt = time.Now()
	s.windows[id] = w
	return nil
}

// sortWindows orders by start time, keeping insertion order for ties, which
// matches the ORDER BY of the postgres store.
func sortWindows(ws []Window) {
	sort.SliceStable(ws, func(i, j int) bool {
		return ws[i].Start < ws[j].Start
	})
}

// isoDay maps Sunday to 7 so weeks sort Monday first.
func isoDay(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
