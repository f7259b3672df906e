package queue

import (
	"testing"
	"time"
)

func TestNextBackoff_Bounds(t *testing.T) {
	rs := NewRetryStrategy()

	tests := []struct {
		name    string
		attempt int
		base    time.Duration
	}{
		{"first redelivery", 0, 30 * time.Second},
		{"second redelivery", 1, 1 * time.Minute},
		{"last step", 4, 15 * time.Minute},
		{"past schedule reuses last step", 12, 15 * time.Minute},
		{"negative attempt uses first step", -3, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 50 {
				got := rs.NextBackoff(tt.attempt)
				if got < tt.base/2 || got > tt.base {
					t.Fatalf("NextBackoff(%d) = %v, want within [%v, %v]", tt.attempt, got, tt.base/2, tt.base)
				}
			}
		})
	}
}

func TestNextBackoff_Deterministic(t *testing.T) {
	tests := []struct {
		jitter float64
		want   time.Duration
	}{
		{0, 15 * time.Second},
		{0.5, 22500 * time.Millisecond},
		{1, 30 * time.Second},
	}

	for _, tt := range tests {
		rs := &RetryStrategy{Schedule: retrySchedule, Jitter: func() float64 { return tt.jitter }}
		if got := rs.NextBackoff(0); got != tt.want {
			t.Errorf("jitter %v: NextBackoff(0) = %v, want %v", tt.jitter, got, tt.want)
		}
	}
}
