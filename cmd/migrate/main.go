package main

import (
	"flag"

	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	boot := config.BootLogger()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config load error")
	}
	if err := cfg.RequirePostgres(); err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}

	logger := config.NewLogger(cfg, "migrate")

	if *down > 0 {
		if err := db.MigrateDown(cfg.PostgresDSN, *down); err != nil {
			logger.Fatal().Err(err).Msg("rollback failed")
		}
	} else if err := db.Migrate(cfg.PostgresDSN); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	v, dirty, err := db.MigrationVersion(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("read migration version")
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("migrations applied")
}
