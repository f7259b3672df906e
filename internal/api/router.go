package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/sungwon/move-booking/internal/auth"
	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/queue"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Bookings     bookingCreator
	QueueName    string
	MaxBodyBytes int64
	Ready        []ReadinessCheck
	// DLQ and Admin are optional; admin routes are only registered when
	// both are set.
	DLQ   queue.DeadLetterQueue
	Admin *auth.AdminAuth
	Log   zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers configured.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware(d.Log))
	r.Use(RecoverMiddleware(d.Log))

	// Health and metrics endpoints
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(d.Ready...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	bookings := NewBookingHandler(d.Bookings, d.QueueName, d.MaxBodyBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodPost, "/booking", bookings)
		r.Method(http.MethodPost, "/bookings", bookings)

		if d.DLQ != nil && d.Admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(d.Admin.Middleware)
				r.Get("/dlq", DLQListHandler(d.DLQ))
				r.Post("/dlq/reprocess", DLQReprocessHandler(d.DLQ))
			})
		}
	})

	return r
}
