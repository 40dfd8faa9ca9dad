package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.HospitalID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgDirectory) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, hospital_id, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}
