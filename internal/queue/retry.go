package queue

import (
	"math/rand/v2"
	"time"
)

// Default redelivery schedule for failed jobs.
var retrySchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
}

// RetryStrategy spaces out redeliveries of a failing job with jitter.
type RetryStrategy struct {
	Schedule []time.Duration
	// Jitter returns a value in [0, 1). Defaults to rand.Float64.
	Jitter func() float64
}

// NewRetryStrategy creates a RetryStrategy with the default schedule.
func NewRetryStrategy() *RetryStrategy {
	return &RetryStrategy{Schedule: retrySchedule, Jitter: rand.Float64}
}

// NextBackoff returns the wait before redelivery number attempt+1, as
// base * (0.5 + jitter*0.5). Attempts past the schedule reuse its last step.
func (r *RetryStrategy) NextBackoff(attempt int) time.Duration {
	idx := min(max(attempt, 0), len(r.Schedule)-1)

	jitter := rand.Float64
	if r.Jitter != nil {
		jitter = r.Jitter
	}
	base := r.Schedule[idx]
	return time.Duration(float64(base) * (0.5 + jitter()*0.5))
}
