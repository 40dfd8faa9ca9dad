package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, doctor_id, patient_id, appointment_instant, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Instant,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_instant >= $2
		  AND appointment_instant <= $3
		ORDER BY appointment_instant, created_at
	`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_instant
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, appointment_instant, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.DoctorID, a.PatientID, a.Instant, a.Status)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindConfirmedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'CONFIRMED'
		  AND appointment_instant < $1
		ORDER BY appointment_instant
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
