package queue

import (
	"context"
	"fmt"
)

// RedisEnqueuer publishes jobs to a Redis stream.
type RedisEnqueuer struct {
	client streamAPI
	stream string
}

// NewRedisEnqueuer creates a RedisEnqueuer for the named queue.
func NewRedisEnqueuer(client streamAPI, queueName string) *RedisEnqueuer {
	return &RedisEnqueuer{client: client, stream: streamKey(queueName)}
}

// Enqueue appends the job with XADD and returns the stream entry ID.
func (e *RedisEnqueuer) Enqueue(ctx context.Context, job *Job) (string, error) {
	data, err := job.Encode()
	if err != nil {
		return "", err
	}

	entryID, err := e.client.Add(ctx, e.stream, string(data))
	if err != nil {
		return "", fmt.Errorf("xadd to stream %s: %w", e.stream, err)
	}

	MessagesEnqueuedTotal.WithLabelValues("redis").Inc()
	return entryID, nil
}
