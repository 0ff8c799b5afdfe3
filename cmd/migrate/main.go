// migrate applies the embedded SQL migrations for the postgres session store (SESSION_STORE=postgres).
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"remindme/internal/config"
	"remindme/internal/db/migrate"
	"remindme/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Str("direction", *direction).Msg("migrate: no change")
			return
		}
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Str("direction", *direction).Msg("migrate: done")
}
