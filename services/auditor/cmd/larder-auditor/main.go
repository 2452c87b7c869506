package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"larder/pkg/bus"
	"larder/pkg/config"
	"larder/pkg/db"
	"larder/pkg/telemetry"
	"larder/services/auditor"
	"larder/services/pantry/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadAuditor(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, err := telemetry.NewLogger("larder-auditor", cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	log.Logger = logger

	shutdownTracing, err := telemetry.InitTracing(ctx, "larder-auditor", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	store, err := auditor.NewPGStore(pool)
	if err != nil {
		log.Fatal().Err(err).Msg("init audit store")
	}

	eventBus, err := bus.New(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect nats")
	}
	defer eventBus.Close()

	if err := eventBus.EnsureStream("LARDER", app.SubjectPrefix+">"); err != nil {
		log.Fatal().Err(err).Msg("ensure stream")
	}

	a, err := auditor.New(store, eventBus, cfg.Durable, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init auditor")
	}
	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start auditor")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close auditor")
		}
	}()

	log.Info().Msg("larder-auditor running")
	<-ctx.Done()
}
