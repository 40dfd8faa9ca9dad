package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/auth"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduling   *scheduling.Service
	Availability *availability.Service
	// PgPool and Redis are only used by readiness checks and may be nil.
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string

	JWTSecret          []byte
	AuthDisabled       bool
	DefaultSlotMinutes int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	var pg, rd Pinger
	if cfg.PgPool != nil {
		pg = cfg.PgPool
	}
	if cfg.Redis != nil {
		rd = redisPinger{client: cfg.Redis}
	}
	health := NewHealthHandler(pg, rd, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret, cfg.AuthDisabled))

		// Availability endpoints
		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Post("/windows", createWindowHandler(cfg.Availability, cfg.DefaultSlotMinutes))
			r.Post("/windows/bulk", createBulkWindowsHandler(cfg.Availability, cfg.DefaultSlotMinutes))
			r.Get("/windows", listWindowsHandler(cfg.Availability))
			r.Get("/days", availableDaysHandler(cfg.Availability))

			r.Get("/slots", listSlotsHandler(cfg.Scheduling))
			r.Get("/free", isFreeHandler(cfg.Scheduling))
			r.Get("/appointments", listDoctorAppointmentsHandler(cfg.Scheduling))
		})
		r.Put("/windows/{id}", updateWindowHandler(cfg.Availability))
		r.Delete("/windows/{id}", deactivateWindowHandler(cfg.Availability))

		// Appointment endpoints
		r.Get("/patients/{patientID}/appointments", listPatientAppointmentsHandler(cfg.Scheduling))
		r.Post("/appointments", createAppointmentHandler(cfg.Scheduling))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Scheduling))
	})

	return r
}
