package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RedisDequeuer consumes a Redis stream through a consumer group. It reads
// batches with XREADGROUP, acknowledges a job only after its handler
// succeeds, and periodically reclaims entries left pending by failed
// attempts or crashed consumers.
type RedisDequeuer struct {
	client  streamAPI
	dlq     DeadLetterQueue
	handler JobHandler
	config  Config
	log     zerolog.Logger
	stream  string

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRedisDequeuer creates a RedisDequeuer for cfg.Name.
func NewRedisDequeuer(client streamAPI, dlq DeadLetterQueue, handler JobHandler, cfg Config, log zerolog.Logger) *RedisDequeuer {
	cfg = cfg.withDefaults()
	return &RedisDequeuer{
		client:  client,
		dlq:     dlq,
		handler: handler,
		config:  cfg,
		log:     log.With().Str("component", "redis_dequeuer").Str("consumer", cfg.ConsumerName).Logger(),
		stream:  streamKey(cfg.Name),
	}
}

// Start creates the consumer group if needed and launches the read loop.
func (d *RedisDequeuer) Start(ctx context.Context) error {
	if err := d.client.EnsureGroup(ctx, d.stream, d.config.GroupName); err != nil {
		return err
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)

	d.log.Info().
		Str("stream", d.stream).
		Int("batch_size", d.config.BatchSize).
		Int("concurrency", d.config.Concurrency).
		Msg("redis dequeuer started")
	return nil
}

// Stop ends the read loop and waits, up to the shutdown timeout, for the
// current batch to finish.
func (d *RedisDequeuer) Stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Msg("redis dequeuer stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.config.ShutdownTimeout):
		d.log.Warn().Msg("redis dequeuer shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", d.config.ShutdownTimeout)
	}
}

func (d *RedisDequeuer) run(ctx context.Context) {
	defer d.wg.Done()

	nextReclaim := time.Now()
	for ctx.Err() == nil {
		if !time.Now().Before(nextReclaim) {
			d.reclaim(ctx)
			nextReclaim = time.Now().Add(d.config.ClaimIdle / 2)
		}

		entries, err := d.client.ReadGroup(ctx, d.stream, d.config.GroupName, d.config.ConsumerName,
			int64(d.config.BatchSize), d.config.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Msg("xreadgroup error")
			sleepCtx(ctx, time.Second)
			continue
		}

		d.processBatch(ctx, entries)
	}
}

func (d *RedisDequeuer) processBatch(ctx context.Context, entries []streamEntry) {
	if len(entries) == 0 {
		return
	}
	runBatch(ctx, entries, d.config.Concurrency, d.processEntry)
}

func (d *RedisDequeuer) processEntry(ctx context.Context, e streamEntry) {
	job, out, err := handleDelivery(ctx, d.handler, d.config.ProcessTimeout, []byte(e.Data), d.log)
	switch out {
	case outcomeRetry:
		return
	case outcomeDead:
		d.log.Error().Err(err).Str("entry_id", e.ID).Msg("undecodable job, moving to DLQ")
		d.deadLetter(ctx, e.ID, DeadLetter{Raw: e.Data, Reason: ReasonMalformed, Deliveries: 1})
		return
	}

	if err := d.client.Ack(context.WithoutCancel(ctx), d.stream, d.config.GroupName, e.ID); err != nil {
		d.log.Error().Err(err).Str("entry_id", e.ID).Str("job_id", job.ID).Msg("failed to acknowledge job")
	}
}

// reclaim takes over entries idle for at least ClaimIdle. Entries already
// delivered MaxDeliveries times are dead-lettered instead of retried.
func (d *RedisDequeuer) reclaim(ctx context.Context) {
	pending, err := d.client.Pending(ctx, d.stream, d.config.GroupName, d.config.ClaimIdle, int64(d.config.BatchSize))
	if err != nil {
		if ctx.Err() == nil {
			d.log.Error().Err(err).Msg("xpending error")
		}
		return
	}

	var ids []string
	for _, p := range pending {
		if p.Deliveries >= int64(d.config.MaxDeliveries) {
			d.exhaust(ctx, p)
			continue
		}
		ids = append(ids, p.ID)
	}
	if len(ids) == 0 {
		return
	}

	claimed, err := d.client.Claim(ctx, d.stream, d.config.GroupName, d.config.ConsumerName, d.config.ClaimIdle, ids)
	if err != nil {
		d.log.Error().Err(err).Msg("xclaim error")
		return
	}

	MessagesReclaimedTotal.Add(float64(len(claimed)))
	d.log.Info().Int("count", len(claimed)).Msg("reclaimed pending jobs")
	d.processBatch(ctx, claimed)
}

func (d *RedisDequeuer) exhaust(ctx context.Context, p pendingEntry) {
	entries, err := d.client.Range(ctx, d.stream, p.ID, p.ID, 1)
	if err != nil {
		d.log.Error().Err(err).Str("entry_id", p.ID).Msg("xrange error")
		return
	}

	dead := DeadLetter{Reason: ReasonMaxDeliveries, Deliveries: p.Deliveries}
	if len(entries) > 0 {
		if job, err := DecodeJob([]byte(entries[0].Data)); err == nil {
			dead.Job = job
		} else {
			dead.Raw = entries[0].Data
		}
	}

	d.log.Warn().
		Str("entry_id", p.ID).
		Int64("deliveries", p.Deliveries).
		Msg("max deliveries exhausted, moving to DLQ")
	d.deadLetter(ctx, p.ID, dead)
}

// deadLetter moves an entry to the DLQ and acknowledges it. When the DLQ
// write fails the entry stays pending and is retried on a later reclaim.
func (d *RedisDequeuer) deadLetter(ctx context.Context, entryID string, dead DeadLetter) {
	ctx = context.WithoutCancel(ctx)
	if err := d.dlq.MoveToDLQ(ctx, dead); err != nil {
		d.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to move to DLQ")
		return
	}
	if err := d.client.Ack(ctx, d.stream, d.config.GroupName, entryID); err != nil {
		d.log.Error().Err(err).Str("entry_id", entryID).Msg("failed to acknowledge dead-lettered entry")
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ Dequeuer = (*RedisDequeuer)(nil)
