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

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/sungwon/move-booking/internal/api"
	"github.com/sungwon/move-booking/internal/config"
	"github.com/sungwon/move-booking/internal/enrich"
	"github.com/sungwon/move-booking/internal/httpclient"
	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/provider"
	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/storage"
	"github.com/sungwon/move-booking/internal/tracing"
	"github.com/sungwon/move-booking/internal/worker"
)

func main() {
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

	log := logger.NewFromConfig("queue-worker", logger.Config{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting queue worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "queue-worker")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := storage.NewDB(ctx, cfg.Database.URL, cfg.Database.PoolMin, cfg.Database.PoolMax, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	go db.ReportStats(ctx, 15*time.Second)

	store := storage.NewStore(db)

	// Enrichment and HTTP mail providers share one client; each call carries
	// its own deadline.
	httpClient := httpclient.New(30 * time.Second)

	enricher := enrich.New(httpClient, enrich.Config{
		Facts: enrich.FactsConfig{
			APIKey:   cfg.Enrichment.Facts.APIKey,
			Endpoint: cfg.Enrichment.Facts.Endpoint,
			Model:    cfg.Enrichment.Facts.Model,
			Timeout:  cfg.Enrichment.Facts.Timeout,
		},
		Images: enrich.ImagesConfig{
			APIKey:   cfg.Enrichment.Images.APIKey,
			Endpoint: cfg.Enrichment.Images.Endpoint,
			PerPage:  cfg.Enrichment.Images.PerPage,
			Timeout:  cfg.Enrichment.Images.Timeout,
		},
	}, log)
	if cfg.Enrichment.Facts.APIKey == "" {
		log.Warn().Msg("enrichment.facts.api_key is not set; emails will carry the fallback facts message")
	}
	if cfg.Enrichment.Images.APIKey == "" {
		log.Warn().Msg("enrichment.images.api_key is not set; emails will carry no images")
	}

	mailProvider, err := provider.NewProvider(provider.ProviderConfig{
		Type:         cfg.Mail.Provider,
		APIKey:       cfg.Mail.APIKey,
		Endpoint:     cfg.Mail.Endpoint,
		Timeout:      cfg.Mail.Timeout,
		Domain:       cfg.Mail.Domain,
		OutputDir:    cfg.Mail.OutputDir,
		SMTPHost:     cfg.Mail.SMTPHost,
		SMTPPort:     cfg.Mail.SMTPPort,
		SMTPUsername: cfg.Mail.SMTPUsername,
		SMTPPassword: cfg.Mail.SMTPPassword,
	}, httpClient)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Mail.Provider).Msg("failed to create mail provider")
	}

	registry := provider.NewRegistry()
	registry.Register(mailProvider)
	health := provider.NewHealthChecker(registry, cfg.Worker.HealthCheckInterval, log)
	health.Start(ctx)
	defer health.Stop()

	mailer := provider.NewMailer(mailProvider, cfg.Mail.From, cfg.Mail.Timeout, log)
	handler := worker.NewHandler(enricher, mailer, store, cfg.Mail.Subject, log)

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
		api.ReadinessCheck{Name: "mail_provider", Check: func(context.Context) error {
			if !health.AllHealthy() {
				return errors.New("mail provider unhealthy")
			}
			return nil
		}},
	))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("worker metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	// In-flight jobs must outlive the signal; Stop cancels the consumer and
	// waits for them.
	dequeuer := backend.Dequeuer(handler)
	if err := dequeuer.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().
		Str("queue", cfg.Queue.Name).
		Str("queue_type", backend.Type).
		Str("provider", mailProvider.GetName()).
		Msg("queue worker started")

	<-ctx.Done()
	log.Info().Msg("shutting down queue worker")

	shutdownTimeout := cfg.Queue.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := dequeuer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("consumer did not drain before timeout")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("queue worker stopped")
}
