package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RabbitDequeuer consumes the primary queue with manual acknowledgement.
// Failed jobs are nacked with requeue; the broker's delivery limit moves
// them to the DLQ once they have been handed out MaxDeliveries times.
type RabbitDequeuer struct {
	rmq     *RabbitMQ
	handler JobHandler
	config  Config
	log     zerolog.Logger

	ch     *amqp.Channel
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRabbitDequeuer creates a RabbitDequeuer sharing rmq's connection.
func NewRabbitDequeuer(rmq *RabbitMQ, handler JobHandler, cfg Config, log zerolog.Logger) *RabbitDequeuer {
	cfg = cfg.withDefaults()
	return &RabbitDequeuer{
		rmq:     rmq,
		handler: handler,
		config:  cfg,
		log:     log.With().Str("component", "rabbitmq_dequeuer").Str("consumer", cfg.ConsumerName).Logger(),
	}
}

// Start opens a consumer channel with a prefetch of BatchSize and launches
// the delivery loop.
func (d *RabbitDequeuer) Start(ctx context.Context) error {
	ch, err := d.rmq.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(d.config.BatchSize, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}

	ctx, d.cancel = context.WithCancel(ctx)
	deliveries, err := ch.ConsumeWithContext(ctx, d.rmq.queue, d.config.ConsumerName, false, false, false, false, nil)
	if err != nil {
		d.cancel()
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", d.rmq.queue, err)
	}
	d.ch = ch

	d.wg.Add(1)
	go d.run(ctx, deliveries)

	d.log.Info().
		Str("queue", d.rmq.queue).
		Int("prefetch", d.config.BatchSize).
		Int("concurrency", d.config.Concurrency).
		Msg("rabbitmq dequeuer started")
	return nil
}

func (d *RabbitDequeuer) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer d.wg.Done()

	var g errgroup.Group
	g.SetLimit(d.config.Concurrency)
	defer func() { _ = g.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					d.log.Error().Msg("delivery channel closed by broker")
				}
				return
			}
			g.Go(func() error {
				d.process(ctx, delivery)
				return nil
			})
		}
	}
}

func (d *RabbitDequeuer) process(ctx context.Context, delivery amqp.Delivery) {
	log := d.log.With().
		Str("message_id", delivery.MessageId).
		Bool("redelivered", delivery.Redelivered).
		Logger()

	_, result, err := handleDelivery(ctx, d.handler, d.config.ProcessTimeout, delivery.Body, log)
	switch result {
	case outcomeAck:
		if err := delivery.Ack(false); err != nil {
			log.Error().Err(err).Msg("failed to ack delivery")
		}
	case outcomeRetry:
		if err := delivery.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("failed to nack delivery")
		}
	case outcomeDead:
		log.Warn().Err(err).Msg("malformed job, moving to dlq")
		dead := DeadLetter{Raw: string(delivery.Body), Reason: ReasonMalformed, Deliveries: 1, MovedAt: time.Now().UTC()}
		if err := d.rmq.MoveToDLQ(context.WithoutCancel(ctx), dead); err != nil {
			log.Error().Err(err).Msg("failed to dead-letter malformed job")
			_ = delivery.Nack(false, true)
			return
		}
		if err := delivery.Ack(false); err != nil {
			log.Error().Err(err).Msg("failed to ack dead-lettered delivery")
		}
	}
}

// Stop cancels the consumer and waits for in-flight jobs, bounded by the
// shutdown timeout. Unacked deliveries return to the queue when the channel
// closes.
func (d *RabbitDequeuer) Stop(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		d.log.Info().Msg("rabbitmq dequeuer stopped gracefully")
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(d.config.ShutdownTimeout):
		d.log.Warn().Msg("rabbitmq dequeuer shutdown timed out")
	}
	if d.ch != nil {
		_ = d.ch.Close()
	}
	return err
}

var _ Dequeuer = (*RabbitDequeuer)(nil)
