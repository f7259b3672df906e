package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sungwon/move-booking/internal/api"
	"github.com/sungwon/move-booking/internal/auth"
	"github.com/sungwon/move-booking/internal/config"
	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/outbox"
	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/storage"
	"github.com/sungwon/move-booking/internal/tracing"
)

func main() {
	// A missing .env is normal outside local development.
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

	log := logger.NewFromConfig("api-server", logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "api-server")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := storage.NewDB(
		ctx,
		cfg.Database.URL,
		cfg.Database.PoolMin,
		cfg.Database.PoolMax,
		cfg.Database.ConnectTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	log.Info().Msg("database connection established")

	store := storage.NewStore(db)

	backend, err := queue.Open(ctx, cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Str("queue_type", cfg.Queue.Type).Msg("failed to open queue")
	}
	defer backend.Close()

	if cfg.Outbox.Embedded {
		relay := outbox.NewRelay(store, backend.Enqueuer, outbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
		}, log)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("embedded outbox relay stopped")
			}
		}()
		log.Info().Msg("embedded outbox relay started")
	}

	var admin *auth.AdminAuth
	if cfg.Admin.APIKeyHash != "" {
		admin = auth.NewAdminAuth(cfg.Admin.APIKeyHash, log)
	} else {
		log.Warn().Msg("admin.api_key_hash is not set; admin routes are disabled")
	}

	router := api.NewRouter(api.Deps{
		Bookings:     store,
		QueueName:    cfg.Queue.Name,
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		Ready: []api.ReadinessCheck{
			{Name: "database", Check: db.Ping},
			{Name: "queue", Check: backend.Ping},
		},
		DLQ:   backend.DLQ,
		Admin: admin,
		Log:   log,
	})

	srv := &http.Server{
		Addr:         cfg.API.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("server stopped")
}
