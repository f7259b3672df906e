package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// SQSDLQ keeps dead letters in a separate SQS queue.
type SQSDLQ struct {
	client   sqsAPI
	dlqURL   string
	enqueuer Enqueuer
	log      zerolog.Logger
}

// NewSQSDLQ creates an SQSDLQ targeting dlqURL. The enqueuer is used by
// Reprocess to put jobs back on the primary queue.
func NewSQSDLQ(client sqsAPI, dlqURL string, enqueuer Enqueuer, log zerolog.Logger) *SQSDLQ {
	return &SQSDLQ{client: client, dlqURL: dlqURL, enqueuer: enqueuer, log: log}
}

// MoveToDLQ sends the dead letter envelope to the DLQ.
func (d *SQSDLQ) MoveToDLQ(ctx context.Context, dead DeadLetter) error {
	if dead.MovedAt.IsZero() {
		dead.MovedAt = time.Now().UTC()
	}

	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if _, err := d.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:    d.dlqURL,
		MessageBody: string(data),
	}); err != nil {
		return fmt.Errorf("sqs send to dlq: %w", err)
	}

	DLQMessagesTotal.WithLabelValues(dead.Reason).Inc()
	MessagesProcessedTotal.WithLabelValues("dlq").Inc()
	return nil
}

// List peeks at up to 10 dead letters. Received messages are made visible
// again immediately.
func (d *SQSDLQ) List(ctx context.Context, limit int) ([]DLQEntry, error) {
	msgs, err := d.receive(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]DLQEntry, 0, len(msgs))
	for _, m := range msgs {
		entry := DLQEntry{ID: m.MessageID}
		if err := json.Unmarshal([]byte(m.Body), &entry.DeadLetter); err != nil {
			entry.Raw = m.Body
			entry.Reason = ReasonMalformed
		}
		out = append(out, entry)
		d.release(ctx, m)
	}
	return out, nil
}

// Reprocess receives one batch from the DLQ and re-enqueues the messages
// whose IDs were requested. SQS cannot fetch by ID, so IDs not in the batch
// are left for a later call.
func (d *SQSDLQ) Reprocess(ctx context.Context, messageIDs []string) (int, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	msgs, err := d.receive(ctx, 10)
	if err != nil {
		return 0, err
	}

	reprocessed := 0
	for _, m := range msgs {
		if !slices.Contains(messageIDs, m.MessageID) {
			d.release(ctx, m)
			continue
		}

		var dead DeadLetter
		if err := json.Unmarshal([]byte(m.Body), &dead); err != nil || dead.Job == nil {
			d.log.Warn().Str("sqs_message_id", m.MessageID).Msg("skipping dead letter without a job")
			d.release(ctx, m)
			continue
		}

		if _, err := d.enqueuer.Enqueue(ctx, dead.Job); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue job %s: %w", dead.Job.ID, err)
		}
		if err := d.client.DeleteMessage(ctx, &sqsDeleteInput{
			QueueURL:      d.dlqURL,
			ReceiptHandle: m.ReceiptHandle,
		}); err != nil {
			return reprocessed, fmt.Errorf("delete dlq message: %w", err)
		}
		reprocessed++
	}

	return reprocessed, nil
}

func (d *SQSDLQ) receive(ctx context.Context, limit int) ([]sqsReceivedMessage, error) {
	n := int32(max(1, min(limit, 10)))
	out, err := d.client.ReceiveMessage(ctx, &sqsReceiveInput{
		QueueURL:            d.dlqURL,
		MaxNumberOfMessages: n,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive from dlq: %w", err)
	}
	return out.Messages, nil
}

// release makes a received DLQ message visible again.
func (d *SQSDLQ) release(ctx context.Context, m sqsReceivedMessage) {
	if err := d.client.ChangeMessageVisibility(ctx, &sqsChangeVisibilityInput{
		QueueURL:      d.dlqURL,
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		d.log.Warn().Err(err).Str("sqs_message_id", m.MessageID).Msg("failed to release dlq message")
	}
}
