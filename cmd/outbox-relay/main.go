package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/sungwon/move-booking/internal/api"
	"github.com/sungwon/move-booking/internal/config"
	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/outbox"
	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/storage"
	"github.com/sungwon/move-booking/internal/tracing"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9091", "address for /metrics, /healthz and /readyz")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load("config")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig("outbox-relay", logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting outbox relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "outbox-relay")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	backend, err := queue.Open(ctx, cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Str("queue_type", cfg.Queue.Type).Msg("failed to open queue")
	}
	defer backend.Close()

	r := chi.NewRouter()
	r.Get("/healthz", api.HealthzHandler())
	r.Get("/readyz", api.ReadyzHandler(
		api.ReadinessCheck{Name: "database", Check: db.Ping},
		api.ReadinessCheck{Name: "queue", Check: backend.Ping},
	))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	srv := &http.Server{Addr: *metricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	relay := outbox.NewRelay(storage.NewStore(db), backend.Enqueuer, outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	}, log)

	// Run blocks until the signal context is cancelled.
	if err := relay.Run(ctx); err != nil {
		log.Error().Err(err).Msg("outbox relay failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("outbox relay stopped")
}
