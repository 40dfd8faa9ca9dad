package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/notify"
	redisclient "github.com/hackgods/hospital-scheduling/internal/redis"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
)

func main() {
	boot := config.BootLogger()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config load error")
	}
	if err := cfg.RequirePostgres(); err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}

	logger := config.NewLogger(cfg, "completion-worker")
	logger.Info().
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.CompletionGrace).
		Msg("completion worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Completion takes the same doctor lock as booking so it never races a
	// status change made through the API.
	var locker lock.Locker
	if cfg.LockBackend == "redis" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = lock.NewLocal(cfg.LockWait)
	}

	svc := scheduling.NewService(
		availability.NewPgStore(pgPool),
		appointment.NewPgRepository(pgPool),
		directory.NewPgDirectory(pgPool),
		locker,
		notify.NewLogPublisher(logger),
		scheduling.Config{MinSeparation: cfg.MinSeparation, Location: cfg.Location},
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.CompletionGrace, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.CompletionGrace, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, grace time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompletePastAppointments(runCtx, grace)
	if err != nil {
		logger.Error().Err(err).Int("completed", n).Msg("completion run error")
		return
	}
	logger.Info().
		Int("completed", n).
		Dur("took", time.Since(start)).
		Msg("completion run complete")
}
