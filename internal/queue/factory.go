package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrUnsupportedQueueType is returned by Open for an unknown Config.Type.
var ErrUnsupportedQueueType = errors.New("unsupported queue type")

// Backend is an opened queue client. Producers use Enqueuer, the admin API
// uses DLQ, and workers build a Dequeuer for their handler. Close releases
// the underlying connection and must be called once the owner is done.
type Backend struct {
	Type     string
	Enqueuer Enqueuer
	DLQ      DeadLetterQueue

	newDequeuer func(JobHandler) Dequeuer
	ping        func(context.Context) error
	close       func() error
}

// Open connects to the backend selected by cfg.Type.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Backend, error) {
	cfg = cfg.withDefaults()

	switch cfg.Type {
	case "redis":
		client := newRedisStreams(cfg)
		enqueuer := NewRedisEnqueuer(client, cfg.Name)
		dlq := NewRedisDLQ(client, enqueuer, cfg.Name)
		return &Backend{
			Type:     cfg.Type,
			Enqueuer: enqueuer,
			DLQ:      dlq,
			newDequeuer: func(h JobHandler) Dequeuer {
				return NewRedisDequeuer(client, dlq, h, cfg, log)
			},
			ping:  client.Ping,
			close: client.Close,
		}, nil

	case "sqs":
		if cfg.SQSQueueURL == "" {
			return nil, errors.New("queue.sqs_queue_url is required for the sqs backend")
		}
		client, err := newAWSSQSClient(ctx, cfg.SQSRegion, cfg.SQSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		enqueuer := NewSQSEnqueuer(client, cfg.SQSQueueURL)
		dlq := NewSQSDLQ(client, cfg.SQSDLQueueURL, enqueuer, log)
		return &Backend{
			Type:     cfg.Type,
			Enqueuer: enqueuer,
			DLQ:      dlq,
			newDequeuer: func(h JobHandler) Dequeuer {
				return NewSQSDequeuer(client, h, dlq, NewRetryStrategy(), cfg, log)
			},
			ping:  func(context.Context) error { return nil },
			close: func() error { return nil },
		}, nil

	case "rabbitmq":
		rmq, err := DialRabbitMQ(cfg, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Type:     cfg.Type,
			Enqueuer: rmq,
			DLQ:      rmq,
			newDequeuer: func(h JobHandler) Dequeuer {
				return NewRabbitDequeuer(rmq, h, cfg, log)
			},
			ping: func(context.Context) error {
				if rmq.conn.IsClosed() {
					return errors.New("rabbitmq connection closed")
				}
				return nil
			},
			close: rmq.Close,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQueueType, cfg.Type)
	}
}

// Dequeuer returns a consumer that feeds jobs to h.
func (b *Backend) Dequeuer(h JobHandler) Dequeuer {
	return b.newDequeuer(h)
}

// Ping checks that the backend is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the backend connection.
func (b *Backend) Close() error {
	return b.close()
}
