package queue

import (
	"context"
	"time"
)

// Enqueuer publishes jobs to the queue and returns the backend message ID.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) (string, error)
}

// Dequeuer consumes jobs in the background.
// Start returns once consumption has begun; Stop waits for in-flight jobs.
type Dequeuer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DeadLetterQueue holds jobs that could not be processed.
type DeadLetterQueue interface {
	MoveToDLQ(ctx context.Context, dead DeadLetter) error
	List(ctx context.Context, limit int) ([]DLQEntry, error)
	Reprocess(ctx context.Context, messageIDs []string) (int, error)
}

// JobHandler processes one job. A nil return acknowledges the job; an error
// leaves it for redelivery.
type JobHandler interface {
	HandleJob(ctx context.Context, job *Job) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, job *Job) error

// HandleJob calls f(ctx, job).
func (f JobHandlerFunc) HandleJob(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// DeadLetter describes a job being moved to the DLQ. Raw is set instead of
// Job when the payload could not be decoded.
type DeadLetter struct {
	Job        *Job      `json:"job,omitempty"`
	Raw        string    `json:"raw,omitempty"`
	Reason     string    `json:"reason"`
	Deliveries int64     `json:"deliveries,omitempty"`
	MovedAt    time.Time `json:"moved_at"`
}

// DLQEntry is a dead letter as listed from a backend, with the ID accepted
// by Reprocess.
type DLQEntry struct {
	ID string `json:"id"`
	DeadLetter
}
