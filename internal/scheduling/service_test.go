package scheduling

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/notify"
)

// 2026-10-19 is a Monday.
var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	svc       *Service
	store     *availability.MemoryStore
	repo      *appointment.MemoryRepository
	dir       *directory.Memory
	locker    *lock.Local
	pub       *recordingPublisher
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func clockPtr(h, m int) *availability.ClockTime {
	c := availability.NewClockTime(h, m)
	return &c
}

// mondayWindow is Mon 09:00-17:00, 30 minute slots, break 12:00-13:00.
func mondayWindow(doctorID uuid.UUID) *availability.Window {
	return &availability.Window{
		ID:                  uuid.New(),
		DoctorID:            doctorID,
		DayOfWeek:           time.Monday,
		Start:               availability.NewClockTime(9, 0),
		End:                 availability.NewClockTime(17, 0),
		SlotDurationMinutes: 30,
		Active:              true,
		BreakStart:          clockPtr(12, 0),
		BreakEnd:            clockPtr(13, 0),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     availability.NewMemoryStore(),
		repo:      appointment.NewMemoryRepository(),
		dir:       directory.NewMemory(),
		locker:    lock.NewLocal(5 * time.Second),
		pub:       &recordingPublisher{},
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
	f.dir.AddDoctor(directory.Doctor{ID: f.doctorID, Name: "Dr. Okafor"})
	f.dir.AddPatient(directory.Patient{ID: f.patientID, Name: "Ama Mensah"})

	if err := f.store.SaveWindow(context.Background(), mondayWindow(f.doctorID)); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}

	f.svc = f.newService(f.repo, time.UTC)
	return f
}

func (f *fixture) newService(repo appointment.Repository, loc *time.Location) *Service {
	svc := NewService(f.store, repo, f.dir, f.locker, f.pub, Config{
		MinSeparation: 30 * time.Minute,
		Location:      loc,
	}, zerolog.Nop())
	// Sunday morning before the Monday under test.
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC) }
	return svc
}

func (f *fixture) addPatient() uuid.UUID {
	id := uuid.New()
	f.dir.AddPatient(directory.Patient{ID: id, Name: "patient " + id.String()[:8]})
	return id
}

var admin = auth.Actor{Role: auth.RoleAdmin}

func TestListAvailableSlots_MondayWithBreak(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctorID, monday)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}

	blocked := map[time.Time]bool{at(12, 0): true, at(12, 30): true, at(13, 0): true}
	available := 0
	for i, s := range slots {
		want := at(9, 0).Add(time.Duration(i) * 30 * time.Minute)
		if !s.Instant.Equal(want) {
			t.Fatalf("slot %d: expected %s, got %s", i, want.Format("15:04"), s.Instant.Format("15:04"))
		}
		if s.Available == blocked[s.Instant] {
			t.Errorf("slot %s: available=%v", s.Instant.Format("15:04"), s.Available)
		}
		if s.Available {
			available++
			if !s.Instant.Before(at(12, 0)) && !s.Instant.After(at(13, 0)) {
				t.Errorf("slot %s inside the break is available", s.Instant.Format("15:04"))
			}
		}
	}
	if available != 13 {
		t.Fatalf("expected 13 available slots, got %d", available)
	}
}

func TestListAvailableSlots_PastSlotsAreUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.now = func() time.Time { return at(14, 5) }

	slots, err := f.svc.ListAvailableSlots(ctx, f.doctorID, monday)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	byInstant := make(map[time.Time]bool, len(slots))
	for _, s := range slots {
		byInstant[s.Instant] = s.Available
		if !s.Instant.After(at(14, 5)) && s.Available {
			t.Errorf("past slot %s is available", s.Instant.Format("15:04"))
		}
	}
	if byInstant[at(9, 0)] || byInstant[at(14, 0)] {
		t.Fatalf("expected 09:00 and 14:00 to be unavailable")
	}
	if !byInstant[at(14, 30)] {
		t.Fatalf("expected 14:30 to be available")
	}

	// The listing and the booking guard agree.
	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(14, 0)); !errors.Is(err, appointment.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for a past slot, got %v", err)
	}
	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(14, 30)); err != nil {
		t.Fatalf("BookAppointment on a listed slot failed: %v", err)
	}
}

func TestListAvailableSlots_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(10, 0)); err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}

	first, err := f.svc.ListAvailableSlots(ctx, f.doctorID, monday)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	second, _ := f.svc.ListAvailableSlots(ctx, f.doctorID, monday)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("listing is not idempotent:\n%v\n%v", first, second)
	}
}

func TestListAvailableSlots_NoWindowsIsEmpty(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.ListAvailableSlots(context.Background(), f.doctorID, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on Tuesday, got %d", len(slots))
	}
}

func TestListAvailableSlots_OverlappingWindowsPreferAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// extra blocks 10:00 which the main window offers free; lunch offers
	// 12:00 and 12:30 which the main window blocks.
	extra := &availability.Window{
		ID:                  uuid.New(),
		DoctorID:            f.doctorID,
		DayOfWeek:           time.Monday,
		Start:               availability.NewClockTime(9, 30),
		End:                 availability.NewClockTime(11, 0),
		SlotDurationMinutes: 30,
		Active:              true,
		BreakStart:          clockPtr(10, 0),
		BreakEnd:            clockPtr(10, 15),
	}
	if err := f.store.SaveWindow(ctx, extra); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}
	lunch := &availability.Window{
		ID:                  uuid.New(),
		DoctorID:            f.doctorID,
		DayOfWeek:           time.Monday,
		Start:               availability.NewClockTime(12, 0),
		End:                 availability.NewClockTime(13, 0),
		SlotDurationMinutes: 30,
		Active:              true,
	}
	if err := f.store.SaveWindow(ctx, lunch); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}

	slots, err := f.svc.ListAvailableSlots(ctx, f.doctorID, monday)
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected duplicates merged into 16 slots, got %d", len(slots))
	}
	for _, s := range slots {
		switch {
		case s.Instant.Equal(at(10, 0)), s.Instant.Equal(at(12, 0)), s.Instant.Equal(at(12, 30)):
			if !s.Available {
				t.Errorf("%s should be available via another window", s.Instant.Format("15:04"))
			}
		case s.Instant.Equal(at(13, 0)):
			if s.Available {
				t.Errorf("13:00 is only offered by the break-bound window")
			}
		}
	}
}

func TestBookAppointment_ThenConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(10, 0))
	if err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	if appt.Status != appointment.StatusPending {
		t.Fatalf("expected PENDING, got %s", appt.Status)
	}

	tests := []struct {
		instant time.Time
		want    bool
	}{
		{at(10, 0), false},
		{at(10, 15), false},
		{at(9, 45), false},
		{at(10, 45), true},
		{at(9, 30), true},
	}
	for _, tt := range tests {
		free, err := f.svc.IsFree(ctx, f.doctorID, tt.instant)
		if err != nil {
			t.Fatalf("IsFree failed: %v", err)
		}
		if free != tt.want {
			t.Errorf("IsFree(%s) = %v, want %v", tt.instant.Format("15:04"), free, tt.want)
		}
	}

	slots, _ := f.svc.ListAvailableSlots(ctx, f.doctorID, monday)
	for _, s := range slots {
		if s.Instant.Equal(at(10, 0)) && s.Available {
			t.Fatal("booked slot still listed as available")
		}
		if s.Instant.Equal(at(10, 30)) && !s.Available {
			t.Fatal("adjacent 10:30 slot should stay available")
		}
	}

	other := f.addPatient()
	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, other, at(10, 15)); !errors.Is(err, appointment.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for 10:15, got %v", err)
	}
}

func TestBookAppointment_CancelFreesInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(11, 0))
	if err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, admin, appt.ID, appointment.StatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	free, _ := f.svc.IsFree(ctx, f.doctorID, at(11, 0))
	if !free {
		t.Fatal("cancelled instant should be free again")
	}
	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.addPatient(), at(11, 0)); err != nil {
		t.Fatalf("rebooking after cancel failed: %v", err)
	}
}

func TestBookAppointment_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		doctorID  uuid.UUID
		patientID uuid.UUID
		instant   time.Time
		want      error
	}{
		{"inside break", f.doctorID, f.patientID, at(12, 30), appointment.ErrSlotUnavailable},
		{"break end", f.doctorID, f.patientID, at(13, 0), appointment.ErrSlotUnavailable},
		{"overruns window end", f.doctorID, f.patientID, at(16, 45), appointment.ErrSlotUnavailable},
		{"after hours", f.doctorID, f.patientID, at(18, 0), appointment.ErrSlotUnavailable},
		{"no window that day", f.doctorID, f.patientID, at(10, 0).AddDate(0, 0, 1), appointment.ErrSlotUnavailable},
		{"in the past", f.doctorID, f.patientID, at(10, 0).AddDate(0, 0, -7), appointment.ErrSlotUnavailable},
		{"unknown doctor", uuid.New(), f.patientID, at(10, 0), directory.ErrDoctorNotFound},
		{"unknown patient", f.doctorID, uuid.New(), at(10, 0), directory.ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.BookAppointment(ctx, admin, tt.doctorID, tt.patientID, tt.instant)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if got, _ := f.repo.FindByDoctorAndRange(ctx, f.doctorID, monday.AddDate(0, 0, -8), monday.AddDate(0, 0, 2)); len(got) != 0 {
		t.Fatalf("rejected bookings must not persist, found %d", len(got))
	}
}

func TestBookAppointment_OffGridInstantInsideWindow(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.BookAppointment(context.Background(), admin, f.doctorID, f.patientID, at(9, 10))
	if err != nil {
		t.Fatalf("expected off-grid booking inside window to succeed, got %v", err)
	}
	if !appt.Instant.Equal(at(9, 10)) {
		t.Fatalf("unexpected instant %s", appt.Instant)
	}
}

func TestBookAppointment_ConcurrentSameInstant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = f.addPatient()
	}

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
		other       []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(pid uuid.UUID) {
			defer wg.Done()
			<-start
			_, err := f.svc.BookAppointment(ctx, admin, f.doctorID, pid, at(14, 0))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appointment.ErrSlotUnavailable):
				unavailable++
			default:
				other = append(other, err)
			}
		}(patients[i])
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if successes != 1 || unavailable != n-1 {
		t.Fatalf("expected 1 success and %d unavailable, got %d and %d", n-1, successes, unavailable)
	}
}

func TestBookAppointment_ConcurrentRegions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	book := func(instants ...time.Time) int {
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for _, in := range instants {
			wg.Add(1)
			go func(in time.Time, pid uuid.UUID) {
				defer wg.Done()
				if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, pid, in); err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				}
			}(in, f.addPatient())
		}
		wg.Wait()
		return ok
	}

	if got := book(at(9, 0), at(9, 15)); got != 1 {
		t.Fatalf("overlapping exclusion windows: expected 1 winner, got %d", got)
	}
	if got := book(at(15, 0), at(16, 0)); got != 2 {
		t.Fatalf("disjoint exclusion windows: expected 2 winners, got %d", got)
	}
}

func TestBookAppointment_DifferentDoctorsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := uuid.New()
	f.dir.AddDoctor(directory.Doctor{ID: second, Name: "Dr. Mensah"})
	if err := f.store.SaveWindow(ctx, mondayWindow(second)); err != nil {
		t.Fatalf("SaveWindow failed: %v", err)
	}

	// Hold the first doctor's lock; the second doctor must still book.
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.locker.WithDoctorLock(ctx, f.doctorID, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	if _, err := f.svc.BookAppointment(ctx, admin, second, f.patientID, at(10, 0)); err != nil {
		t.Fatalf("booking for another doctor blocked: %v", err)
	}
}

func TestBookAppointment_BusyWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.locker = lock.NewLocal(20 * time.Millisecond)
	f.svc = f.newService(f.repo, time.UTC)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.locker.WithDoctorLock(ctx, f.doctorID, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	_, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(10, 0))
	close(release)
	<-done

	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestChangeStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(14, 0))
	if err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	if appt.Status != appointment.StatusPending {
		t.Fatalf("expected PENDING, got %s", appt.Status)
	}

	confirmed, err := f.svc.ChangeStatus(ctx, admin, appt.ID, appointment.StatusConfirmed)
	if err != nil || confirmed.Status != appointment.StatusConfirmed {
		t.Fatalf("confirm: %v, %+v", err, confirmed)
	}
	cancelled, err := f.svc.ChangeStatus(ctx, admin, appt.ID, appointment.StatusCancelled)
	if err != nil || cancelled.Status != appointment.StatusCancelled {
		t.Fatalf("cancel: %v, %+v", err, cancelled)
	}
	if _, err := f.svc.ChangeStatus(ctx, admin, appt.ID, appointment.StatusCompleted); !errors.Is(err, appointment.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	stored, _ := f.repo.GetAppointmentByID(ctx, appt.ID)
	if stored.Status != appointment.StatusCancelled {
		t.Fatalf("failed transition mutated state to %s", stored.Status)
	}

	want := []string{notify.EventAppointmentCreated, notify.EventAppointmentConfirmed, notify.EventAppointmentCancelled}
	if got := f.pub.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}

	logged := f.repo.Events()
	if len(logged) != 3 || logged[0].EventType != EventAppointmentCreated || logged[2].EventType != EventAppointmentCancelled {
		t.Fatalf("unexpected event log %+v", logged)
	}
}

func TestChangeStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ChangeStatus(context.Background(), admin, uuid.New(), appointment.StatusConfirmed); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got %v", err)
	}
}

// staleRepo serves one outdated read to simulate a concurrent writer.
type staleRepo struct {
	*appointment.MemoryRepository
	stale *appointment.Appointment
}

func (r *staleRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if r.stale != nil {
		a := *r.stale
		r.stale = nil
		return &a, nil
	}
	return r.MemoryRepository.GetAppointmentByID(ctx, id)
}

func TestChangeStatus_LosesCompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(15, 0))
	if err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	pending := *appt
	if _, err := f.repo.UpdateAppointmentStatus(ctx, appt.ID, appointment.StatusPending, appointment.StatusCancelled); err != nil {
		t.Fatalf("direct cancel failed: %v", err)
	}

	svc := f.newService(&staleRepo{MemoryRepository: f.repo, stale: &pending}, time.UTC)
	_, err = svc.ChangeStatus(ctx, admin, appt.ID, appointment.StatusConfirmed)
	if !errors.Is(err, appointment.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	stored, _ := f.repo.GetAppointmentByID(ctx, appt.ID)
	if stored.Status != appointment.StatusCancelled {
		t.Fatalf("expected CANCELLED to stick, got %s", stored.Status)
	}
}

func TestCompletePastAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done, _ := f.repo.CreateAppointment(ctx, appointment.Appointment{DoctorID: f.doctorID, PatientID: f.patientID, Instant: at(9, 0), Status: appointment.StatusConfirmed})
	recent, _ := f.repo.CreateAppointment(ctx, appointment.Appointment{DoctorID: f.doctorID, PatientID: f.patientID, Instant: at(11, 30), Status: appointment.StatusConfirmed})
	pending, _ := f.repo.CreateAppointment(ctx, appointment.Appointment{DoctorID: f.doctorID, PatientID: f.patientID, Instant: at(9, 30), Status: appointment.StatusPending})

	f.svc.now = func() time.Time { return at(12, 0) }
	n, err := f.svc.CompletePastAppointments(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CompletePastAppointments failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completed, got %d", n)
	}

	for id, want := range map[uuid.UUID]appointment.Status{
		done.ID:    appointment.StatusCompleted,
		recent.ID:  appointment.StatusConfirmed,
		pending.ID: appointment.StatusPending,
	} {
		got, _ := f.repo.GetAppointmentByID(ctx, id)
		if got.Status != want {
			t.Errorf("appointment %s: expected %s, got %s", id, want, got.Status)
		}
	}
}

func TestListByDoctor_HalfOpenRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []time.Time{at(9, 0), at(10, 0), at(11, 0)} {
		if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.addPatient(), in); err != nil {
			t.Fatalf("BookAppointment failed: %v", err)
		}
	}

	got, err := f.svc.ListByDoctor(ctx, f.doctorID, at(9, 0), at(11, 0))
	if err != nil {
		t.Fatalf("ListByDoctor failed: %v", err)
	}
	if len(got) != 2 || !got[0].Instant.Equal(at(9, 0)) || !got[1].Instant.Equal(at(10, 0)) {
		t.Fatalf("unexpected appointments %+v", got)
	}

	if _, err := f.svc.ListByDoctor(ctx, uuid.New(), at(9, 0), at(11, 0)); !errors.Is(err, directory.ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.ListByPatient(ctx, f.patientID, 10, 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v, %v", empty, err)
	}

	if _, err := f.svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, at(9, 0)); err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	got, _ := f.svc.ListByPatient(ctx, f.patientID, 10, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(got))
	}

	if _, err := f.svc.ListByPatient(ctx, uuid.New(), 10, 0); !errors.Is(err, directory.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestBookAppointment_WindowsReadInServiceLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	est := time.FixedZone("EST", -5*3600)
	svc := f.newService(f.repo, est)

	// 09:00 in EST is 14:00 UTC on the same Monday.
	instant := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	appt, err := svc.BookAppointment(ctx, admin, f.doctorID, f.patientID, instant)
	if err != nil {
		t.Fatalf("BookAppointment failed: %v", err)
	}
	if appt.Instant.Location() != time.UTC || !appt.Instant.Equal(instant) {
		t.Fatalf("expected instant stored as UTC %s, got %s", instant, appt.Instant)
	}

	// 08:00 EST is before the window opens.
	early := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	if _, err := svc.BookAppointment(ctx, admin, f.doctorID, f.addPatient(), early); !errors.Is(err, appointment.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}

	slots, err := svc.ListAvailableSlots(ctx, f.doctorID, time.Date(2026, 10, 19, 0, 0, 0, 0, est))
	if err != nil {
		t.Fatalf("ListAvailableSlots failed: %v", err)
	}
	if len(slots) != 16 || !slots[0].Instant.Equal(instant) || slots[0].Available {
		t.Fatalf("expected first EST slot at 14:00 UTC and booked, got %+v", slots[0])
	}
}
