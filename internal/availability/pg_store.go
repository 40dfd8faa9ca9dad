package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const windowColumns = `id, doctor_id, day_of_week, specific_date, start_minute, end_minute,
	slot_duration_minutes, active, break_start_minute, break_end_minute, created_at, updated_at`

func scanWindow(row pgx.Row) (*Window, error) {
	var (
		w                    Window
		day                  int16
		start, end           int
		breakStart, breakEnd *int
	)

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&day,
		&w.SpecificDate,
		&start,
		&end,
		&w.SlotDurationMinutes,
		&w.Active,
		&breakStart,
		&breakEnd,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}

	w.DayOfWeek = time.Weekday(day)
	w.Start = ClockTime(start)
	w.End = ClockTime(end)
	if breakStart != nil && breakEnd != nil {
		bs, be := ClockTime(*breakStart), ClockTime(*breakEnd)
		w.BreakStart, w.BreakEnd = &bs, &be
	}
	return &w, nil
}

func scanWindows(rows pgx.Rows) ([]Window, error) {
	defer rows.Close()

	var result []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PgStore) GetActiveWindows(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1
		  AND active
		  AND ((specific_date IS NULL AND day_of_week = $2) OR specific_date = $3::date)
		ORDER BY specific_date IS NOT NULL, start_minute, created_at
	`, doctorID, int16(date.Weekday()), date.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query active windows: %w", err)
	}
	return scanWindows(rows)
}

func (s *PgStore) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY (day_of_week + 6) % 7, start_minute, created_at
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}
	return scanWindows(rows)
}

func (s *PgStore) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanWindow(row)
}

// SaveWindow upserts by id.
func (s *PgStore) SaveWindow(ctx context.Context, w *Window) error {
	return upsertWindow(ctx, s.pool, w)
}

// SaveWindows upserts every window in one transaction.
func (s *PgStore) SaveWindows(ctx context.Context, ws []Window) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i := range ws {
			if err := upsertWindow(ctx, tx, &ws[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save windows: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertWindow(ctx context.Context, db execer, w *Window) error {
	var specificDate *string
	if w.SpecificDate != nil {
		d := w.SpecificDate.Format(time.DateOnly)
		specificDate = &d
	}
	var breakStart, breakEnd *int
	if w.HasBreak() {
		bs, be := int(*w.BreakStart), int(*w.BreakEnd)
		breakStart, breakEnd = &bs, &be
	}

	_, err := db.Exec(ctx, `
		INSERT INTO availability_windows (`+windowColumns+`)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET day_of_week = EXCLUDED.day_of_week,
		    specific_date = EXCLUDED.specific_date,
		    start_minute = EXCLUDED.start_minute,
		    end_minute = EXCLUDED.end_minute,
		    slot_duration_minutes = EXCLUDED.slot_duration_minutes,
		    active = EXCLUDED.active,
		    break_start_minute = EXCLUDED.break_start_minute,
		    break_end_minute = EXCLUDED.break_end_minute,
		    updated_at = EXCLUDED.updated_at
	`, w.ID, w.DoctorID, int16(w.DayOfWeek), specificDate, int(w.Start), int(w.End),
		w.SlotDurationMinutes, w.Active, breakStart, breakEnd, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save window: %w", err)
	}
	return nil
}

func (s *PgStore) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE availability_windows
		SET active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}
