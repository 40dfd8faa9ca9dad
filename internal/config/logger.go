package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger for a binary. Dev gets a console writer,
// everything else JSON on stdout.
func NewLogger(cfg Config, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsProd() {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", service).
		Str("env", cfg.Env).
		Logger()
}

// BootLogger is for failures before the config, and so the real logger,
// exists.
func BootLogger() zerolog.Logger {
	return newBootLogger(os.Stderr)
}

func newBootLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
