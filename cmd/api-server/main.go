package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/hospital-scheduling/internal/api"
	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/availability"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/lock"
	"github.com/hackgods/hospital-scheduling/internal/notify"
	redisclient "github.com/hackgods/hospital-scheduling/internal/redis"
	"github.com/hackgods/hospital-scheduling/internal/scheduling"
	"github.com/hackgods/hospital-scheduling/internal/telemetry"
)

const (
	serviceName = "api-server"
	version     = "0.1.0"
)

func main() {
	boot := config.BootLogger()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := config.NewLogger(cfg, serviceName)
	logger.Info().Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelRatio,
		Version:      version,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry setup error")
	}

	// Stores
	var (
		pgPool  *pgxpool.Pool
		windows availability.Store
		repo    appointment.Repository
		dir     directory.Directory
	)
	switch {
	case cfg.PostgresDSN != "":
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		windows = availability.NewPgStore(pgPool)
		repo = appointment.NewPgRepository(pgPool)
		dir = directory.NewPgDirectory(pgPool)
	case !cfg.IsProd():
		logger.Warn().Msg("POSTGRES_DSN not set, using in-memory stores")
		windows = availability.NewMemoryStore()
		repo = appointment.NewMemoryRepository()
		mem := directory.NewMemory()
		seedMemoryDirectory(mem, 5, 20, logger)
		dir = mem
	default:
		logger.Fatal().Err(cfg.RequirePostgres()).Msg("config error")
	}

	// Doctor lock
	var (
		rdb    *redis.Client
		locker lock.Locker
	)
	switch cfg.LockBackend {
	case "redis":
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
	default:
		logger.Warn().Msg("using in-process doctor lock; do not run more than one replica")
		locker = lock.NewLocal(cfg.LockWait)
	}

	// Notifications
	var (
		publisher notify.Publisher
		kafkaDone chan struct{}
		stopKafka context.CancelFunc = func() {}
	)
	if cfg.KafkaBrokers != "" {
		kp := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Buffer:  cfg.NotifyBuffer,
		}, logger)
		// Outlives rootCtx so events from requests drained during shutdown
		// still go out.
		var kafkaCtx context.Context
		kafkaCtx, stopKafka = context.WithCancel(context.Background())
		kafkaDone = make(chan struct{})
		go func() {
			defer close(kafkaDone)
			kp.Run(kafkaCtx)
		}()
		publisher = kp
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("publishing notifications to Kafka")
	} else {
		publisher = notify.NewLogPublisher(logger)
	}

	availabilitySvc := availability.NewService(windows, dir, logger)
	schedulingSvc := scheduling.NewService(windows, repo, dir, locker, publisher, scheduling.Config{
		MinSeparation: cfg.MinSeparation,
		Location:      cfg.Location,
	}, logger)

	router := api.NewRouter(api.RouterConfig{
		Scheduling:         schedulingSvc,
		Availability:       availabilitySvc,
		PgPool:             pgPool,
		Redis:              rdb,
		Logger:             logger,
		Env:                cfg.Env,
		Version:            version,
		JWTSecret:          []byte(cfg.JWTSecret),
		AuthDisabled:       cfg.AuthDisabled,
		DefaultSlotMinutes: cfg.DefaultSlotMinutes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	stopKafka()
	if kafkaDone != nil {
		select {
		case <-kafkaDone:
		case <-shutdownCtx.Done():
			logger.Warn().Msg("timed out flushing notifications")
		}
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown error")
	}

	logger.Info().Msg("api-server stopped")
}

// seedMemoryDirectory fills an in-memory directory with fake doctors and
// patients so a dev server without Postgres is usable.
func seedMemoryDirectory(dir *directory.Memory, doctors, patients int, logger zerolog.Logger) {
	faker := gofakeit.New(0)
	for i := 0; i < doctors; i++ {
		specialty := faker.RandomString([]string{"Cardiology", "Dermatology", "General Practice", "Neurology"})
		d := directory.Doctor{ID: uuid.New(), Name: "Dr. " + faker.Name(), Specialty: &specialty}
		dir.AddDoctor(d)
		logger.Info().Str("doctor_id", d.ID.String()).Str("name", d.Name).Msg("dev doctor")
	}
	for i := 0; i < patients; i++ {
		email := faker.Email()
		p := directory.Patient{ID: uuid.New(), Name: faker.Name(), Email: &email}
		dir.AddPatient(p)
		if i < 3 {
			logger.Info().Str("patient_id", p.ID.String()).Str("name", p.Name).Msg("dev patient")
		}
	}
}
