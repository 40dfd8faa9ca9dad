package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	HotRacers    int
	BookingRatio float64
	StatusRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	DaysAhead    int
	PostgresDSN  string
	JWTSecret    []byte
	AuthDisabled bool
	Location     *time.Location
}

// target is a bookable (doctor, instant) pair taken from the slots endpoint.
type target struct {
	DoctorID uuid.UUID
	Instant  time.Time
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID
	Targets  []target

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(f *gofakeit.Faker) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[f.Number(0, len(dp.appointments)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Busy      int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusServiceUnavailable:
		atomic.AddInt64(&om.Busy, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pick(50), pick(95)
}

type Metrics struct {
	HotRace       OperationMetrics
	Booking       OperationMetrics
	StatusChange  OperationMetrics
	ListSlots     OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("status", cfg.StatusRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.pool, err = sim.loadDataPool(ctx, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("doctors", len(sim.pool.Doctors)).
		Int("patients", len(sim.pool.Patients)).
		Int("targets", len(sim.pool.Targets)).
		Msg("data pool loaded")

	sim.RaceHotSlot()
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	boot := config.BootLogger()
	baseCfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := config.NewLogger(baseCfg, "simulate")

	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		HotRacers:    getInt("SIM_HOT_RACERS", 50),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 20),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 7),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    []byte(baseCfg.JWTSecret),
		AuthDisabled: baseCfg.AuthDisabled,
		Location:     baseCfg.Location,
	}

	total := cfg.BookingRatio + cfg.StatusRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, logger
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	var err error
	dp.Doctors, err = loadIDs(ctx, pool, `SELECT id FROM doctors ORDER BY created_at LIMIT $1`, s.config.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	dp.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, s.config.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	// Targets come from the API so they match what patients are offered.
	today := time.Now().In(s.config.Location)
	for _, doctorID := range dp.Doctors {
		for d := 1; d <= s.config.DaysAhead; d++ {
			date := today.AddDate(0, 0, d).Format("2006-01-02")
			slots, err := s.fetchSlots(ctx, doctorID, date)
			if err != nil {
				return nil, err
			}
			for _, sl := range slots {
				if sl.Available {
					dp.Targets = append(dp.Targets, target{DoctorID: doctorID, Instant: sl.Instant})
				}
			}
		}
	}
	if len(dp.Targets) == 0 {
		return nil, fmt.Errorf("no available slots in the next %d days", s.config.DaysAhead)
	}

	return dp, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type slotDTO struct {
	Instant   time.Time `json:"instant"`
	Available bool      `json:"available"`
}

func (s *Simulator) fetchSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]slotDTO, error) {
	var out struct {
		Slots []slotDTO `json:"slots"`
	}
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), nil, adminActor(), &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list slots for %s on %s: status %d", doctorID, date, status)
	}
	return out.Slots, nil
}

// RaceHotSlot fires HotRacers concurrent bookings at one instant. Exactly
// one of them should win.
func (s *Simulator) RaceHotSlot() {
	if s.config.HotRacers <= 0 {
		return
	}
	t := s.pool.Targets[0]
	s.pool.Targets = s.pool.Targets[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.HotRacers; i++ {
		patientID := s.pool.Patients[i%len(s.pool.Patients)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.book(ctx, t, patientID, &s.metrics.HotRace)
		}()
	}
	close(start)
	wg.Wait()

	won := atomic.LoadInt64(&s.metrics.HotRace.Success)
	ev := s.logger.Info()
	if won != 1 {
		ev = s.logger.Error()
	}
	ev.Int64("winners", won).
		Int64("conflicts", atomic.LoadInt64(&s.metrics.HotRace.Conflict)).
		Int64("busy", atomic.LoadInt64(&s.metrics.HotRace.Busy)).
		Str("doctor_id", t.DoctorID.String()).
		Time("instant", t.Instant).
		Msg("hot slot race finished")
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx)
		}()
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context) {
	f := gofakeit.New(0)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := f.Float64()
		switch {
		case r < s.config.BookingRatio:
			t := s.pool.Targets[f.Number(0, len(s.pool.Targets)-1)]
			patientID := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]
			s.book(ctx, t, patientID, &s.metrics.Booking)
		case r < s.config.BookingRatio+s.config.StatusRatio:
			s.changeStatus(ctx, f)
		default:
			if f.Bool() {
				s.listSlots(ctx, f)
			} else {
				s.listByPatient(ctx, f)
			}
		}
	}
}

func (s *Simulator) book(ctx context.Context, t target, patientID uuid.UUID, om *OperationMetrics) {
	body := map[string]string{
		"doctor_id":  t.DoctorID.String(),
		"patient_id": patientID.String(),
		"instant":    t.Instant.Format(time.RFC3339),
	}

	var out struct {
		ID uuid.UUID `json:"id"`
	}
	start := time.Now()
	status, err := s.do(ctx, http.MethodPost, "/appointments", body,
		auth.Actor{ID: patientID, Role: auth.RolePatient}, &out)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(time.Since(start), 0)
		}
		return
	}
	om.Record(time.Since(start), status)

	if status == http.StatusCreated && out.ID != uuid.Nil {
		s.pool.AddAppointment(out.ID)
	}
}

func (s *Simulator) changeStatus(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	next := f.RandomString([]string{"CONFIRMED", "CONFIRMED", "CANCELLED"})

	start := time.Now()
	status, err := s.do(ctx, http.MethodPatch, "/appointments/"+id.String()+"/status",
		map[string]string{"status": next}, adminActor(), nil)
	if err != nil {
		return
	}
	s.metrics.StatusChange.Record(time.Since(start), status)
}

func (s *Simulator) listSlots(ctx context.Context, f *gofakeit.Faker) {
	doctorID := s.pool.Doctors[f.Number(0, len(s.pool.Doctors)-1)]
	date := time.Now().In(s.config.Location).AddDate(0, 0, f.Number(1, s.config.DaysAhead)).Format("2006-01-02")

	start := time.Now()
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/doctors/%s/slots?date=%s", doctorID, date), nil, adminActor(), nil)
	if err != nil {
		return
	}
	s.metrics.ListSlots.Record(time.Since(start), status)
}

func (s *Simulator) listByPatient(ctx context.Context, f *gofakeit.Faker) {
	patientID := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]

	start := time.Now()
	status, err := s.do(ctx, http.MethodGet,
		fmt.Sprintf("/patients/%s/appointments?limit=20&offset=0", patientID), nil,
		auth.Actor{ID: patientID, Role: auth.RolePatient}, nil)
	if err != nil {
		return
	}
	s.metrics.ListByPatient.Record(time.Since(start), status)
}

// do sends a JSON request as actor and decodes a 2xx body into out when
// out is non-nil.
func (s *Simulator) do(ctx context.Context, method, path string, body any, actor auth.Actor, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := s.authorize(req, actor); err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) authorize(req *http.Request, actor auth.Actor) error {
	if s.config.AuthDisabled {
		req.Header.Set("X-Actor-Role", string(actor.Role))
		if actor.ID != uuid.Nil {
			req.Header.Set("X-Actor-ID", actor.ID.String())
		}
		return nil
	}
	tok, err := auth.IssueToken(s.config.JWTSecret, actor, time.Hour, time.Now())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func adminActor() auth.Actor {
	return auth.Actor{Role: auth.RoleAdmin}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Hot slot race", &s.metrics.HotRace)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Status change", &s.metrics.StatusChange)
	printOperationReport("List slots", &s.metrics.ListSlots)
	printOperationReport("List by patient", &s.metrics.ListByPatient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	busy := atomic.LoadInt64(&om.Busy)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if busy > 0 {
		fmt.Printf("  Busy: %d (%.1f%%)\n", busy, pct(busy))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
