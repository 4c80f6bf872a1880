package main

import (
	"os"
	"time"

	"sketchdown/internal/config"
	"sketchdown/internal/db"
	"sketchdown/internal/server"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg := config.Load()

	var conn *gorm.DB
	if os.Getenv("DATABASE_URL") != "" {
		opened, err := db.Open(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		if err := db.Migrate(opened); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
		conn = opened
	} else {
		log.Info().Msg("DATABASE_URL not set, audit log disabled")
	}

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	srv := server.New(conn, cfg, clockwork.NewRealClock(), log.Logger)
	log.Info().Str("addr", addr).Str("ai_server_url", cfg.AIServerURL).Msg("sketchdown server listening")
	if err := srv.Router().Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
