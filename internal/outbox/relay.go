// Package outbox moves confirmation jobs committed with their bookings onto
// the job queue.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/storage"
)

// Store is the part of storage.Store the relay needs.
type Store interface {
	RelayOutbox(ctx context.Context, limit int, publish storage.PublishFunc) (storage.RelayResult, error)
	CountPendingOutbox(ctx context.Context) (int64, error)
}

// Config controls polling.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay polls the outbox and enqueues pending jobs. Several relays may run
// against the same database; row locks keep them from publishing the same
// entry twice, but a crash between enqueue and commit can still cause a
// duplicate.
type Relay struct {
	store    Store
	enqueuer queue.Enqueuer
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

// NewRelay creates a Relay. Zero config values fall back to 1s and 50.
func NewRelay(store Store, enqueuer queue.Enqueuer, cfg Config, log zerolog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Relay{
		store:    store,
		enqueuer: enqueuer,
		interval: cfg.PollInterval,
		batch:    cfg.BatchSize,
		log:      log.With().Str("component", "outbox_relay").Logger(),
	}
}

// Run relays until ctx is cancelled. Full batches are followed immediately
// by another pass; otherwise the relay waits for the poll interval.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().
		Dur("poll_interval", r.interval).
		Int("batch_size", r.batch).
		Msg("outbox relay started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("outbox relay stopped")
			return nil
		case <-timer.C:
		}

		res, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("outbox relay pass failed")
		}

		next := r.interval
		if err == nil && res.Failed == 0 && res.Published == r.batch {
			next = 0
		}
		timer.Reset(next)
	}
}

// RunOnce performs a single relay pass and refreshes the pending gauge.
func (r *Relay) RunOnce(ctx context.Context) (storage.RelayResult, error) {
	res, err := r.store.RelayOutbox(ctx, r.batch, r.publish)

	metrics.OutboxPublishedTotal.Add(float64(res.Published))
	metrics.OutboxFailuresTotal.Add(float64(res.Failed))

	if pending, perr := r.store.CountPendingOutbox(ctx); perr == nil {
		metrics.OutboxPending.Set(float64(pending))
	}

	if err != nil {
		return res, fmt.Errorf("relay outbox: %w", err)
	}
	if res.Published > 0 || res.Failed > 0 {
		r.log.Debug().
			Int("published", res.Published).
			Int("failed", res.Failed).
			Msg("outbox relay pass complete")
	}
	return res, nil
}

func (r *Relay) publish(ctx context.Context, e storage.OutboxEntry) error {
	job, err := queue.DecodeJob(e.Payload)
	if err != nil {
		r.log.Error().Err(err).Int64("outbox_id", e.ID).Msg("outbox entry has an undecodable job")
		return err
	}

	messageID, err := r.enqueuer.Enqueue(ctx, job)
	if err != nil {
		r.log.Error().Err(err).
			Int64("outbox_id", e.ID).
			Str("job_id", job.ID).
			Int32("attempts", e.Attempts).
			Msg("failed to enqueue confirmation job")
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	r.log.Info().
		Int64("outbox_id", e.ID).
		Str("job_id", job.ID).
		Int64("booking_id", job.BookingID).
		Str("message_id", messageID).
		Msg("confirmation job enqueued")
	return nil
}
