package api

import (
	"context"
	"sync"
	"time"

	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/storage"
)

// mockBookingStore records CreateBooking calls.
type mockBookingStore struct {
	mu    sync.Mutex
	calls []storage.NewBooking
	err   error
	out   storage.CreatedBooking
}

func (m *mockBookingStore) CreateBooking(_ context.Context, nb storage.NewBooking) (storage.CreatedBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, nb)
	if m.err != nil {
		return storage.CreatedBooking{}, m.err
	}
	return m.out, nil
}

func (m *mockBookingStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockDLQ implements queue.DeadLetterQueue.
type mockDLQ struct {
	mu           sync.Mutex
	entries      []queue.DLQEntry
	listErr      error
	reprocessErr error
	lastLimit    int
	reprocessed  []string
}

func (m *mockDLQ) MoveToDLQ(_ context.Context, _ queue.DeadLetter) error { return nil }

func (m *mockDLQ) List(_ context.Context, limit int) ([]queue.DLQEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.entries, nil
}

func (m *mockDLQ) Reprocess(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reprocessErr != nil {
		return 0, m.reprocessErr
	}
	found := 0
	for _, id := range ids {
		for _, e := range m.entries {
			if e.ID == id {
				found++
				m.reprocessed = append(m.reprocessed, id)
			}
		}
	}
	return found, nil
}

var fixedCreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
