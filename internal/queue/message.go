package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the confirmation job carried by the queue from booking creation to
// the worker. The original wire keys (customerId, email, name, move_date,
// moving_address) are kept; consumers ignore fields they do not know.
type Job struct {
	ID            string            `json:"id"`
	BookingID     int64             `json:"bookingId"`
	CustomerID    int64             `json:"customerId"`
	Email         string            `json:"email"`
	Name          string            `json:"name"`
	MoveDate      string            `json:"move_date"`
	MovingAddress string            `json:"moving_address"`
	CreatedAt     time.Time         `json:"created_at"`
	Trace         map[string]string `json:"trace,omitempty"`
}

// ErrMalformedJob is returned by DecodeJob for payloads that can never be
// processed. Such jobs go to the DLQ instead of being redelivered.
var ErrMalformedJob = errors.New("malformed job payload")

// NewJob creates a Job with a generated ID and the current timestamp.
func NewJob(bookingID, customerID int64, email, name, moveDate, movingAddress string) *Job {
	return &Job{
		ID:            uuid.New().String(),
		BookingID:     bookingID,
		CustomerID:    customerID,
		Email:         email,
		Name:          name,
		MoveDate:      moveDate,
		MovingAddress: movingAddress,
		CreatedAt:     time.Now().UTC(),
	}
}

// Encode serializes the job for the wire.
func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a wire payload. It fails with ErrMalformedJob when the
// payload is not JSON or lacks the booking reference or recipient.
func DecodeJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if j.BookingID <= 0 {
		return nil, fmt.Errorf("%w: missing bookingId", ErrMalformedJob)
	}
	if j.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrMalformedJob)
	}
	return &j, nil
}

// streamKey returns the Redis stream key for a queue.
func streamKey(queue string) string {
	return "queue:" + queue
}

// dlqStreamKey returns the Redis DLQ stream key for a queue.
func dlqStreamKey(queue string) string {
	return "dlq:" + queue
}
