package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Total number of admin API authentication failures",
		},
	)
)

// Booking metrics
var (
	BookingSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_submissions_total",
			Help: "Booking submissions by outcome",
		},
		[]string{"result"}, // created, invalid, error
	)

	CustomersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_customers_created_total",
			Help: "Customers created by first-time bookings",
		},
	)
)

// Outbox metrics
var (
	OutboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Outbox entries relayed to the queue",
		},
	)

	OutboxFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Outbox relay attempts that failed to enqueue",
		},
	)

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending",
			Help: "Outbox entries not yet relayed",
		},
	)
)

// Worker metrics
var (
	EnrichmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_requests_total",
			Help: "Enrichment lookups by source and result",
		},
		[]string{"source", "result"}, // facts|images, ok|empty|error|disabled
	)

	EnrichmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "Duration of enrichment lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_emails_total",
			Help: "Confirmation email attempts by logged status",
		},
		[]string{"status"}, // sent, failed
	)

	MailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_send_duration_seconds",
			Help:    "Duration of mail provider sends",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mail_provider_healthy",
			Help: "1 when the last provider health check passed",
		},
		[]string{"provider"},
	)
)

// Database metrics
var (
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of acquired database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"query"},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
