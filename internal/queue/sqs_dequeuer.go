package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxSQSVisibility is the SQS upper bound for a visibility timeout (12h).
const maxSQSVisibility = 43200

// SQSDequeuer long-polls an SQS queue in batches. A message is deleted only
// after its handler succeeds; on failure its visibility is pushed out by
// the retry schedule so SQS redelivers it later.
type SQSDequeuer struct {
	client   sqsAPI
	queueURL string
	handler  JobHandler
	dlq      DeadLetterQueue
	retry    *RetryStrategy
	config   Config
	log      zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSQSDequeuer creates an SQSDequeuer configured from cfg.
func NewSQSDequeuer(client sqsAPI, handler JobHandler, dlq DeadLetterQueue, retry *RetryStrategy, cfg Config, log zerolog.Logger) *SQSDequeuer {
	cfg = cfg.withDefaults()
	return &SQSDequeuer{
		client:   client,
		queueURL: cfg.SQSQueueURL,
		handler:  handler,
		dlq:      dlq,
		retry:    retry,
		config:   cfg,
		log:      log.With().Str("component", "sqs_dequeuer").Logger(),
	}
}

// Start launches the receive loop.
func (d *SQSDequeuer) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)

	d.log.Info().
		Str("queue_url", d.queueURL).
		Int("batch_size", d.batchSize()).
		Int("concurrency", d.config.Concurrency).
		Msg("sqs dequeuer started")
	return nil
}

// Stop cancels the receive loop and waits for the current batch within the
// shutdown timeout.
func (d *SQSDequeuer) Stop(ctx context.Context) error {
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
		d.log.Info().Msg("sqs dequeuer stopped gracefully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.config.ShutdownTimeout):
		d.log.Warn().Msg("sqs dequeuer shutdown timed out")
		return fmt.Errorf("shutdown timed out after %s", d.config.ShutdownTimeout)
	}
}

// batchSize caps the configured batch at the SQS per-receive maximum.
func (d *SQSDequeuer) batchSize() int {
	return min(d.config.BatchSize, 10)
}

func (d *SQSDequeuer) run(ctx context.Context) {
	defer d.wg.Done()

	for ctx.Err() == nil {
		out, err := d.client.ReceiveMessage(ctx, &sqsReceiveInput{
			QueueURL:            d.queueURL,
			MaxNumberOfMessages: int32(d.batchSize()),
			WaitTimeSeconds:     d.config.SQSWaitTime,
			VisibilityTimeout:   d.config.SQSVisTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error().Err(err).Msg("sqs receive error")
			sleepCtx(ctx, time.Second)
			continue
		}

		if len(out.Messages) > 0 {
			runBatch(ctx, out.Messages, d.config.Concurrency, d.processMessage)
		}
	}
}

func (d *SQSDequeuer) processMessage(ctx context.Context, m sqsReceivedMessage) {
	ctx = context.WithoutCancel(ctx)

	if m.ReceiveCount > int64(d.config.MaxDeliveries) {
		dead := DeadLetter{Reason: ReasonMaxDeliveries, Deliveries: m.ReceiveCount - 1}
		if job, err := DecodeJob([]byte(m.Body)); err == nil {
			dead.Job = job
		} else {
			dead.Raw = m.Body
		}
		d.log.Warn().Str("sqs_message_id", m.MessageID).Int64("receive_count", m.ReceiveCount).
			Msg("max deliveries exhausted, moving to DLQ")
		d.deadLetter(ctx, m, dead)
		return
	}

	_, out, err := handleDelivery(ctx, d.handler, d.config.ProcessTimeout, []byte(m.Body), d.log)
	switch out {
	case outcomeDead:
		d.log.Error().Err(err).Str("sqs_message_id", m.MessageID).Msg("undecodable job, moving to DLQ")
		d.deadLetter(ctx, m, DeadLetter{Raw: m.Body, Reason: ReasonMalformed, Deliveries: m.ReceiveCount})
	case outcomeRetry:
		d.delay(ctx, m)
	default:
		d.delete(ctx, m)
	}
}

// delay hides a failed message for the next backoff interval.
func (d *SQSDequeuer) delay(ctx context.Context, m sqsReceivedMessage) {
	attempt := int(max(m.ReceiveCount-1, 0))
	secs := int32(d.retry.NextBackoff(attempt).Seconds())
	secs = max(1, min(secs, maxSQSVisibility))

	if err := d.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
		QueueURL:          d.queueURL,
		ReceiptHandle:     m.ReceiptHandle,
		VisibilityTimeout: secs,
	}); err != nil {
		d.log.Error().Err(err).Str("sqs_message_id", m.MessageID).Msg("failed to extend visibility")
	}
}

func (d *SQSDequeuer) deadLetter(ctx context.Context, m sqsReceivedMessage, dead DeadLetter) {
	if err := d.dlq.MoveToDLQ(ctx, dead); err != nil {
		d.log.Error().Err(err).Str("sqs_message_id", m.MessageID).Msg("failed to move to DLQ")
		return
	}
	d.delete(ctx, m)
}

func (d *SQSDequeuer) delete(ctx context.Context, m sqsReceivedMessage) {
	if err := d.client.DeleteMessage(ctx, &sqsDeleteInput{
		QueueURL:      d.queueURL,
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		d.log.Error().Err(err).Str("sqs_message_id", m.MessageID).Msg("failed to delete sqs message")
	}
}

var _ Dequeuer = (*SQSDequeuer)(nil)
