package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/directory"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// shift is one of the weekly templates a seeded doctor works.
type shift struct {
	days       []time.Weekday
	start, end availability.ClockTime
	breakStart *availability.ClockTime
	breakEnd   *availability.ClockTime
	slot       int
}

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	patients := flag.Int("patients", 500, "number of patients to create")
	hospitals := flag.Int("hospitals", 3, "number of hospitals doctors are spread over")
	runMigrations := flag.Bool("migrate", true, "apply migrations before seeding")
	tokens := flag.Int("tokens", 3, "print this many dev tokens per role (needs JWT_SECRET)")
	flag.Parse()

	boot := config.BootLogger()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config load error")
	}
	if err := cfg.RequirePostgres(); err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}
	logger := config.NewLogger(cfg, "seed")

	if *runMigrations {
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(0)

	doctorIDs, err := seedDoctors(ctx, pool, faker, *doctors, *hospitals)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	logger.Info().Int("count", len(doctorIDs)).Msg("doctors seeded")

	patientIDs, err := seedPatients(ctx, pool, faker, *patients, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	logger.Info().Int("count", len(patientIDs)).Msg("patients seeded")

	windows := availability.NewService(availability.NewPgStore(pool), directory.NewPgDirectory(pool), logger)
	total := 0
	for _, id := range doctorIDs {
		n, err := seedWindows(ctx, windows, faker, id)
		if err != nil {
			logger.Fatal().Err(err).Str("doctor_id", id.String()).Msg("seed windows")
		}
		total += n
	}
	logger.Info().Int("count", total).Msg("availability windows seeded")

	if cfg.JWTSecret != "" && *tokens > 0 {
		printTokens([]byte(cfg.JWTSecret), doctorIDs, patientIDs, *tokens)
	}

	logger.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count, hospitals int) ([]uuid.UUID, error) {
	if hospitals <= 0 {
		hospitals = 1
	}
	hospitalIDs := make([]uuid.UUID, hospitals)
	for i := range hospitalIDs {
		hospitalIDs[i] = uuid.New()
	}

	ids := make([]uuid.UUID, 0, count)
	batch := &pgx.Batch{}
	for i := 0; i < count; i++ {
		id := uuid.New()
		ids = append(ids, id)
		batch.Queue(`
			INSERT INTO doctors (id, name, specialty, hospital_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, "Dr. "+faker.Name(), faker.RandomString(specialties), hospitalIDs[i%hospitals])
	}

	if err := sendBatch(ctx, pool, batch); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			id := uuid.New()
			ids = append(ids, id)
			batch.Queue(`
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, faker.Name(), faker.Email())
		}

		if err := sendBatch(ctx, pool, batch); err != nil {
			return nil, err
		}
		logger.Debug().Int("done", end).Int("total", count).Msg("patients batch")
	}
	return ids, nil
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// seedWindows gives a doctor a weekday shift and, for some, a Saturday
// morning.
func seedWindows(ctx context.Context, svc *availability.Service, faker *gofakeit.Faker, doctorID uuid.UUID) (int, error) {
	shifts := []shift{
		{
			days:       []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			start:      availability.NewClockTime(faker.Number(8, 9), 0),
			end:        availability.NewClockTime(faker.Number(16, 17), 0),
			breakStart: clock(12, 0),
			breakEnd:   clock(13, 0),
			slot:       faker.RandomInt([]int{15, 20, 30}),
		},
	}
	if faker.Bool() {
		shifts = append(shifts, shift{
			days:  []time.Weekday{time.Saturday},
			start: availability.NewClockTime(9, 0),
			end:   availability.NewClockTime(12, 0),
			slot:  30,
		})
	}

	n := 0
	for _, s := range shifts {
		created, err := svc.CreateBulk(ctx, doctorID, s.days, availability.Window{
			Start:               s.start,
			End:                 s.end,
			SlotDurationMinutes: s.slot,
			BreakStart:          s.breakStart,
			BreakEnd:            s.breakEnd,
		})
		if err != nil {
			return n, err
		}
		n += len(created)
	}
	return n, nil
}

func clock(h, m int) *availability.ClockTime {
	c := availability.NewClockTime(h, m)
	return &c
}

func printTokens(secret []byte, doctorIDs, patientIDs []uuid.UUID, perRole int) {
	now := time.Now()
	issue := func(a auth.Actor) string {
		tok, err := auth.IssueToken(secret, a, 24*time.Hour, now)
		if err != nil {
			return "error: " + err.Error()
		}
		return tok
	}

	fmt.Printf("admin\t-\t%s\n", issue(auth.Actor{Role: auth.RoleAdmin}))
	for i := 0; i < perRole && i < len(doctorIDs); i++ {
		fmt.Printf("doctor\t%s\t%s\n", doctorIDs[i], issue(auth.Actor{ID: doctorIDs[i], Role: auth.RoleDoctor}))
	}
	for i := 0; i < perRole && i < len(patientIDs); i++ {
		fmt.Printf("patient\t%s\t%s\n", patientIDs[i], issue(auth.Actor{ID: patientIDs[i], Role: auth.RolePatient}))
	}
}
