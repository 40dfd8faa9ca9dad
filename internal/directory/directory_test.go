package directory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestMemory_Lookup(t *testing.T) {
	m := NewMemory()
	doctor := Doctor{ID: uuid.New(), Name: "Dr. House"}
	patient := Patient{ID: uuid.New(), Name: "Jane Doe"}
	m.AddDoctor(doctor)
	m.AddPatient(patient)

	gotD, err := m.GetDoctorByID(context.Background(), doctor.ID)
	if err != nil {
		t.Fatalf("GetDoctorByID: %v", err)
	}
	if gotD.Name != doctor.Name {
		t.Errorf("doctor name = %q, want %q", gotD.Name, doctor.Name)
	}

	gotP, err := m.GetPatientByID(context.Background(), patient.ID)
	if err != nil {
		t.Fatalf("GetPatientByID: %v", err)
	}
	if gotP.Name != patient.Name {
		t.Errorf("patient name = %q, want %q", gotP.Name, patient.Name)
	}
}

func TestMemory_NotFound(t *testing.T) {
	m := NewMemory()

	if _, err := m.GetDoctorByID(context.Background(), uuid.New()); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := m.GetPatientByID(context.Background(), uuid.New()); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}

	// A doctor id is not a patient id.
	d := Doctor{ID: uuid.New()}
	m.AddDoctor(d)
	if _, err := m.GetPatientByID(context.Background(), d.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound for doctor id, got %v", err)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	d := Doctor{ID: uuid.New(), Name: "original"}
	m.AddDoctor(d)

	got, _ := m.GetDoctorByID(context.Background(), d.ID)
	got.Name = "changed"

	again, _ := m.GetDoctorByID(context.Background(), d.ID)
	if again.Name != "original" {
		t.Fatalf("stored doctor was mutated through returned pointer")
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			m.AddPatient(Patient{ID: id})
			if _, err := m.GetPatientByID(context.Background(), id); err != nil {
				t.Errorf("GetPatientByID: %v", err)
			}
		}()
	}
	wg.Wait()
}
