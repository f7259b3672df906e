package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// maxDLQScan bounds how many dead letters one Reprocess call inspects.
const maxDLQScan = 1000

// RabbitMQ is the RabbitMQ backend. Jobs go to a durable quorum queue whose
// delivery limit dead-letters poison jobs to "<name>.dlq" through the
// "<name>.dlx" exchange. It implements Enqueuer and DeadLetterQueue.
type RabbitMQ struct {
	conn  *amqp.Connection
	mu    sync.Mutex // guards pub
	pub   *amqp.Channel
	queue string
	dlq   string
	log   zerolog.Logger
}

// DialRabbitMQ connects, declares the queue topology and opens a publisher
// channel in confirm mode.
func DialRabbitMQ(cfg Config, log zerolog.Logger) (*RabbitMQ, error) {
	cfg = cfg.withDefaults()

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitMQ{
		conn:  conn,
		pub:   ch,
		queue: cfg.Name,
		dlq:   dlqName(cfg.Name),
		log:   log.With().Str("component", "rabbitmq").Logger(),
	}, nil
}

func dlxName(queue string) string { return queue + ".dlx" }
func dlqName(queue string) string { return queue + ".dlq" }

// queueArgs configures the primary queue. x-delivery-limit counts returns
// to the queue, so the first delivery is not included.
func queueArgs(cfg Config) amqp.Table {
	return amqp.Table{
		"x-queue-type":              "quorum",
		"x-delivery-limit":          int64(cfg.MaxDeliveries - 1),
		"x-dead-letter-exchange":    dlxName(cfg.Name),
		"x-dead-letter-routing-key": cfg.Name,
	}
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(dlxName(cfg.Name), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlxName(cfg.Name), err)
	}
	if _, err := ch.QueueDeclare(dlqName(cfg.Name), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlqName(cfg.Name), err)
	}
	if err := ch.QueueBind(dlqName(cfg.Name), cfg.Name, dlxName(cfg.Name), false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", dlqName(cfg.Name), err)
	}
	if _, err := ch.QueueDeclare(cfg.Name, true, false, false, false, queueArgs(cfg)); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Name, err)
	}
	return nil
}

// Enqueue publishes the job persistently and waits for the broker confirm.
func (r *RabbitMQ) Enqueue(ctx context.Context, job *Job) (string, error) {
	data, err := job.Encode()
	if err != nil {
		return "", err
	}
	if err := r.publish(ctx, r.queue, job.ID, data, nil); err != nil {
		return "", err
	}
	MessagesEnqueuedTotal.WithLabelValues("rabbitmq").Inc()
	return job.ID, nil
}

func (r *RabbitMQ) publish(ctx context.Context, key, messageID string, body []byte, headers amqp.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc, err := r.pub.PublishWithDeferredConfirmWithContext(ctx, "", key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", key, err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm from %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("publish to %s: nacked by broker", key)
	}
	return nil
}

// MoveToDLQ publishes the dead letter envelope straight to the DLQ.
func (r *RabbitMQ) MoveToDLQ(ctx context.Context, dead DeadLetter) error {
	if dead.MovedAt.IsZero() {
		dead.MovedAt = time.Now().UTC()
	}
	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	id := uuid.New().String()
	if dead.Job != nil {
		id = dead.Job.ID
	}
	if err := r.publish(ctx, r.dlq, id, data, nil); err != nil {
		return err
	}

	DLQMessagesTotal.WithLabelValues(dead.Reason).Inc()
	MessagesProcessedTotal.WithLabelValues("dlq").Inc()
	return nil
}

// List peeks at up to limit dead letters. The messages are fetched on a
// throwaway channel and return to the DLQ when it closes.
func (r *RabbitMQ) List(ctx context.Context, limit int) ([]DLQEntry, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	var out []DLQEntry
	for len(out) < limit && ctx.Err() == nil {
		d, ok, err := ch.Get(r.dlq, false)
		if err != nil {
			return out, fmt.Errorf("get from %s: %w", r.dlq, err)
		}
		if !ok {
			break
		}
		out = append(out, DLQEntry{ID: d.MessageId, DeadLetter: parseDeadLetter(d.Body, d.Headers)})
	}
	return out, nil
}

// Reprocess moves the requested dead letters back onto the primary queue.
// Unrequested messages return to the DLQ when the scan channel closes.
func (r *RabbitMQ) Reprocess(ctx context.Context, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	reprocessed := 0
	for scanned := 0; scanned < maxDLQScan && reprocessed < len(messageIDs); scanned++ {
		d, ok, err := ch.Get(r.dlq, false)
		if err != nil {
			return reprocessed, fmt.Errorf("get from %s: %w", r.dlq, err)
		}
		if !ok {
			break
		}
		if !slices.Contains(messageIDs, d.MessageId) {
			continue
		}

		dead := parseDeadLetter(d.Body, d.Headers)
		if dead.Job == nil {
			r.log.Warn().Str("message_id", d.MessageId).Msg("skipping dead letter without a job")
			continue
		}
		if _, err := r.Enqueue(ctx, dead.Job); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue job %s: %w", dead.Job.ID, err)
		}
		if err := d.Ack(false); err != nil {
			return reprocessed, fmt.Errorf("ack dlq message %s: %w", d.MessageId, err)
		}
		reprocessed++
	}
	return reprocessed, nil
}

// Close closes the publisher channel and the connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.pub.Close(), r.conn.Close())
}

// parseDeadLetter reads a DLQ body. Envelopes written by MoveToDLQ are used
// as is; bodies dead-lettered by the broker are raw jobs with an x-death
// header.
func parseDeadLetter(body []byte, headers amqp.Table) DeadLetter {
	var dead DeadLetter
	if err := json.Unmarshal(body, &dead); err == nil && dead.Reason != "" {
		return dead
	}

	dead = DeadLetter{Reason: ReasonMaxDeliveries, Deliveries: deliveryCount(headers)}
	if job, err := DecodeJob(body); err == nil {
		dead.Job = job
	} else {
		dead.Raw = string(body)
		dead.Reason = ReasonMalformed
	}
	return dead
}

// deliveryCount reads the count from the first x-death record.
func deliveryCount(headers amqp.Table) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok || len(deaths) == 0 {
		return 0
	}
	death, ok := deaths[0].(amqp.Table)
	if !ok {
		return 0
	}
	count, _ := death["count"].(int64)
	return count
}

var (
	_ Enqueuer        = (*RabbitMQ)(nil)
	_ DeadLetterQueue = (*RabbitMQ)(nil)
)
