package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	MessagesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"backend"},
	)

	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_processed_total",
			Help: "Total number of jobs processed by outcome",
		},
		[]string{"status"}, // acked, retry, dlq
	)

	MessageProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_message_processing_duration_seconds",
			Help:    "Duration of job handling",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	MessagesReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_reclaimed_total",
			Help: "Pending jobs reclaimed from stalled consumers",
		},
	)

	DLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dlq_messages_total",
			Help: "Total number of jobs moved to the DLQ by reason",
		},
		[]string{"reason"}, // malformed, max_deliveries
	)
)

// DLQ reasons. Kept to a fixed set so they can be used as metric labels.
const (
	ReasonMalformed     = "malformed"
	ReasonMaxDeliveries = "max_deliveries"
)
