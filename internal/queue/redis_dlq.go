package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RedisDLQ keeps dead letters in a separate Redis stream per queue.
type RedisDLQ struct {
	client   streamAPI
	enqueuer Enqueuer
	stream   string
}

// NewRedisDLQ creates a RedisDLQ for the named queue. The enqueuer is used
// by Reprocess to put jobs back on the primary stream.
func NewRedisDLQ(client streamAPI, enqueuer Enqueuer, queueName string) *RedisDLQ {
	return &RedisDLQ{client: client, enqueuer: enqueuer, stream: dlqStreamKey(queueName)}
}

// MoveToDLQ appends the dead letter to the DLQ stream.
func (d *RedisDLQ) MoveToDLQ(ctx context.Context, dead DeadLetter) error {
	if dead.MovedAt.IsZero() {
		dead.MovedAt = time.Now().UTC()
	}

	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if _, err := d.client.Add(ctx, d.stream, string(data)); err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", d.stream, err)
	}

	DLQMessagesTotal.WithLabelValues(dead.Reason).Inc()
	MessagesProcessedTotal.WithLabelValues("dlq").Inc()
	return nil
}

// List returns up to limit dead letters, oldest first.
func (d *RedisDLQ) List(ctx context.Context, limit int) ([]DLQEntry, error) {
	entries, err := d.client.Range(ctx, d.stream, "-", "+", int64(limit))
	if err != nil {
		return nil, fmt.Errorf("xrange dlq stream %s: %w", d.stream, err)
	}

	out := make([]DLQEntry, 0, len(entries))
	for _, e := range entries {
		entry := DLQEntry{ID: e.ID}
		if err := json.Unmarshal([]byte(e.Data), &entry.DeadLetter); err != nil {
			entry.Raw = e.Data
			entry.Reason = ReasonMalformed
		}
		out = append(out, entry)
	}
	return out, nil
}

// Reprocess re-enqueues the given dead letters and removes them from the
// DLQ. Entries without a decodable job are skipped. It returns how many
// were re-enqueued.
func (d *RedisDLQ) Reprocess(ctx context.Context, messageIDs []string) (int, error) {
	reprocessed := 0

	for _, id := range messageIDs {
		entries, err := d.client.Range(ctx, d.stream, id, id, 1)
		if err != nil {
			return reprocessed, fmt.Errorf("xrange dlq entry %s: %w", id, err)
		}
		if len(entries) == 0 {
			continue
		}

		var dead DeadLetter
		if err := json.Unmarshal([]byte(entries[0].Data), &dead); err != nil || dead.Job == nil {
			continue
		}

		if _, err := d.enqueuer.Enqueue(ctx, dead.Job); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue job %s: %w", dead.Job.ID, err)
		}
		if err := d.client.Delete(ctx, d.stream, id); err != nil {
			return reprocessed, fmt.Errorf("xdel dlq entry %s: %w", id, err)
		}
		reprocessed++
	}

	return reprocessed, nil
}
