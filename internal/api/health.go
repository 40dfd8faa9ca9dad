package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// HealthHandler checks the store and the lock backend. A nil dependency is
// not configured in this deployment and is skipped.
type HealthHandler struct {
	postgres Pinger
	redis    Pinger
	env      string
	version  string
}

func NewHealthHandler(postgres, redis Pinger, env, version string) *HealthHandler {
	return &HealthHandler{
		postgres: postgres,
		redis:    redis,
		env:      env,
		version:  version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	// Postgres holds every appointment; without it nothing works.
	if h.postgres != nil {
		if ping(ctx, h.postgres) != nil {
			deps["postgres"] = "down"
			status = "error"
		} else {
			deps["postgres"] = "ok"
		}
	}

	// Without Redis bookings fail with doctor_busy but reads still work.
	if h.redis != nil {
		if ping(ctx, h.redis) != nil {
			deps["redis"] = "down"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			deps["redis"] = "ok"
		}
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func ping(ctx context.Context, p Pinger) error {
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return p.Ping(pingCtx)
}
