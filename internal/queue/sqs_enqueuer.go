package queue

import (
	"context"
	"fmt"
)

// SQSEnqueuer publishes jobs to an AWS SQS queue.
type SQSEnqueuer struct {
	client   sqsAPI
	queueURL string
}

// NewSQSEnqueuer creates a new SQSEnqueuer targeting the given queue URL.
func NewSQSEnqueuer(client sqsAPI, queueURL string) *SQSEnqueuer {
	return &SQSEnqueuer{client: client, queueURL: queueURL}
}

// Enqueue sends the job via SendMessage and returns the SQS message ID.
func (e *SQSEnqueuer) Enqueue(ctx context.Context, job *Job) (string, error) {
	data, err := job.Encode()
	if err != nil {
		return "", err
	}

	out, err := e.client.SendMessage(ctx, &sqsSendInput{
		QueueURL:    e.queueURL,
		MessageBody: string(data),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send message: %w", err)
	}

	MessagesEnqueuedTotal.WithLabelValues("sqs").Inc()
	return out.MessageID, nil
}
