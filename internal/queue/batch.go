package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// outcome is what a backend should do with a delivery after handling it.
type outcome int

const (
	outcomeAck   outcome = iota // handled, acknowledge
	outcomeRetry                // leave for redelivery
	outcomeDead                 // undecodable, dead-letter then acknowledge
)

// runBatch calls fn for every item with at most limit running at once. A
// plain errgroup.Group is used so one item never cancels its siblings.
func runBatch[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T)) {
	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// handleDelivery decodes a payload and runs the handler under its own
// timeout. The handler context survives dequeuer shutdown so an in-flight
// job can finish writing its log row.
func handleDelivery(ctx context.Context, h JobHandler, timeout time.Duration, data []byte, log zerolog.Logger) (*Job, outcome, error) {
	job, err := DecodeJob(data)
	if err != nil {
		return nil, outcomeDead, err
	}

	start := time.Now()
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err = h.HandleJob(processCtx, job)
	MessageProcessingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error().Err(err).
			Str("job_id", job.ID).
			Int64("booking_id", job.BookingID).
			Msg("job failed, leaving for redelivery")
		MessagesProcessedTotal.WithLabelValues("retry").Inc()
		return job, outcomeRetry, err
	}

	MessagesProcessedTotal.WithLabelValues("acked").Inc()
	return job, outcomeAck, nil
}
