package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"larder/pkg/bus"
	"larder/pkg/config"
	"larder/pkg/db"
	"larder/pkg/render"
	gos3 "larder/pkg/s3"
	"larder/pkg/telemetry"
	"larder/services/api"
	"larder/services/pantry/app"
	"larder/services/pantry/store"
)

const streamName = "LARDER"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadAPI(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, err := telemetry.NewLogger("larder-api", cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	log.Logger = logger

	shutdownTracing, err := telemetry.InitTracing(ctx, "larder-api", cfg.OTLPEndpoint)
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

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("migrate database")
		}
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	reference, err := loadReference(cfg.ReferenceSeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load reference data")
	}
	if err := store.Seed(ctx, database, reference); err != nil {
		log.Fatal().Err(err).Msg("seed reference data")
	}

	st, err := store.New(database)
	if err != nil {
		log.Fatal().Err(err).Msg("init store")
	}

	svcCfg := app.Config{
		PhotoURLTTL: cfg.PhotoURLTTL,
		Logger:      logger,
	}
	var opts []api.Option
	opts = append(opts, api.WithLogger(logger), api.WithReadinessCheck("database", st.Ping))

	if cfg.NATSURL != "" {
		eventBus, err := bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer eventBus.Close()
		if err := eventBus.EnsureStream(streamName, app.SubjectPrefix+">"); err != nil {
			log.Fatal().Err(err).Msg("ensure stream")
		}
		svcCfg.Publisher = eventBus
		opts = append(opts, api.WithReadinessCheck("nats", func(context.Context) error {
			if !eventBus.Connected() {
				return errors.New("nats disconnected")
			}
			return nil
		}))
	} else {
		log.Warn().Msg("NATS_URL not set; lifecycle events are not published")
	}

	if cfg.S3.Enabled() && cfg.PhotoBucket != "" {
		client, err := gos3.NewClient(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("init s3 client")
		}
		bucket, err := gos3.NewBucket(client, cfg.PhotoBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("init photo bucket")
		}
		svcCfg.Photos = bucket
	}

	svc, err := app.NewService(st, svcCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init pantry service")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatal().Err(err).Msg("init renderer")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := api.NewMetrics(registry)
	if err != nil {
		log.Fatal().Err(err).Msg("init metrics")
	}

	handler, err := api.New(svc, renderer, metrics, api.Config{
		JWTSigningKey:  []byte(cfg.JWTSigningKey),
		JWTIssuer:      cfg.JWTIssuer,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.RequestTimeout,
	}, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting larder-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func loadReference(path string) (store.ReferenceData, error) {
	if path == "" {
		return store.DefaultReference()
	}
	return store.LoadReferenceFile(path)
}
