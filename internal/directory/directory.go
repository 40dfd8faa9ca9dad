// Package directory resolves the doctors and patients that windows and
// appointments refer to. Doctor and patient records are owned by other
// services; scheduling only needs to know that an id exists.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type Doctor struct {
	ID         uuid.UUID
	Name       string
	Specialty  *string
	HospitalID *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Memory is a Directory backed by maps.
type Memory struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]Doctor
	patients map[uuid.UUID]Patient
}

func NewMemory() *Memory {
	return &Memory{
		doctors:  make(map[uuid.UUID]Doctor),
		patients: make(map[uuid.UUID]Patient),
	}
}

func (m *Memory) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = d
}

func (m *Memory) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *Memory) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *Memory) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}
