package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockSQSClient implements sqsAPI for testing.
type mockSQSClient struct {
	mu          sync.Mutex
	messages    []sqsReceivedMessage // messages to return from ReceiveMessage
	sent        []sqsSendInput
	deleted     []sqsDeleteInput
	visibility  []sqsChangeVisibilityInput
	sendErr     error
	receiveErr  error
	receives    int
	receiveOnce bool // return messages only on the first call
}

func newMockSQSClient() *mockSQSClient {
	return &mockSQSClient{}
}

func (m *mockSQSClient) SendMessage(_ context.Context, input *sqsSendInput) (*sqsSendOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, *input)
	return &sqsSendOutput{MessageID: "mock-msg-id"}, nil
}

func (m *mockSQSClient) ReceiveMessage(_ context.Context, _ *sqsReceiveInput) (*sqsReceiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receives++

	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	if m.receiveOnce && m.receives > 1 {
		// stand-in for the long poll
		time.Sleep(5 * time.Millisecond)
		return &sqsReceiveOutput{}, nil
	}
	msgs := make([]sqsReceivedMessage, len(m.messages))
	copy(msgs, m.messages)
	return &sqsReceiveOutput{Messages: msgs}, nil
}

func (m *mockSQSClient) DeleteMessage(_ context.Context, input *sqsDeleteInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, *input)
	return nil
}

func (m *mockSQSClient) ChangeMessageVisibility(_ context.Context, input *sqsChangeVisibilityInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visibility = append(m.visibility, *input)
	return nil
}

func (m *mockSQSClient) getSent() []sqsSendInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sqsSendInput(nil), m.sent...)
}

func (m *mockSQSClient) getDeleted() []sqsDeleteInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sqsDeleteInput(nil), m.deleted...)
}

func (m *mockSQSClient) getVisibility() []sqsChangeVisibilityInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sqsChangeVisibilityInput(nil), m.visibility...)
}

// mockDLQ records dead letters in memory.
type mockDLQ struct {
	mu   sync.Mutex
	dead []DeadLetter
	err  error
}

func (d *mockDLQ) MoveToDLQ(_ context.Context, dead DeadLetter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.dead = append(d.dead, dead)
	return nil
}

func (d *mockDLQ) List(context.Context, int) ([]DLQEntry, error) { return nil, nil }

func (d *mockDLQ) Reprocess(context.Context, []string) (int, error) { return 0, nil }

func (d *mockDLQ) getDead() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeadLetter(nil), d.dead...)
}

// countingHandler records handled jobs and returns err for each.
type countingHandler struct {
	mu   sync.Mutex
	jobs []*Job
	err  error
}

func (h *countingHandler) HandleJob(_ context.Context, job *Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = append(h.jobs, job)
	return h.err
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs)
}

// testLogger returns a zerolog.Logger that discards all output.
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testJobBody(t *testing.T) string {
	t.Helper()
	data, err := NewJob(11, 5, "ann@example.com", "Ann", "2026-05-01", "12 Main St").Encode()
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	return string(data)
}

func testSQSConfig() Config {
	cfg := DefaultConfig()
	cfg.Type = "sqs"
	cfg.SQSQueueURL = "https://sqs.us-east-1.amazonaws.com/123/bookings"
	cfg.SQSDLQueueURL = "https://sqs.us-east-1.amazonaws.com/123/bookings-dlq"
	cfg.ConsumerName = "test"
	return cfg
}

func TestSQSEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	enqueuer := NewSQSEnqueuer(mock, "https://sqs.us-east-1.amazonaws.com/123/bookings")

	job := NewJob(11, 5, "ann@example.com", "Ann", "2026-05-01", "12 Main St")
	msgID, err := enqueuer.Enqueue(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgID != "mock-msg-id" {
		t.Errorf("message ID = %q, want mock-msg-id", msgID)
	}

	sent := mock.getSent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(sent))
	}
	got, err := DecodeJob([]byte(sent[0].MessageBody))
	if err != nil {
		t.Fatalf("sent body does not decode: %v", err)
	}
	if got.ID != job.ID || got.BookingID != 11 {
		t.Errorf("sent job = %+v, want %+v", got, job)
	}
}

func TestSQSEnqueuer_EnqueueError(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	mock.sendErr = errors.New("throttled")
	enqueuer := NewSQSEnqueuer(mock, "q")

	if _, err := enqueuer.Enqueue(context.Background(), NewJob(1, 1, "a@b.co", "A", "2026-05-01", "X")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSQSDequeuer_ProcessMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		receiveCount   int64
		handlerErr     error
		wantHandled    int
		wantDeleted    bool
		wantVisibility bool
		wantDLQReason  string
	}{
		{name: "success deletes", receiveCount: 1, wantHandled: 1, wantDeleted: true},
		{name: "failure delays", receiveCount: 2, handlerErr: errors.New("db down"), wantHandled: 1, wantVisibility: true},
		{name: "malformed dead-letters", body: "{", receiveCount: 1, wantDeleted: true, wantDLQReason: ReasonMalformed},
		{name: "exhausted dead-letters without handling", receiveCount: 6, wantDeleted: true, wantDLQReason: ReasonMaxDeliveries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body := tt.body
			if body == "" {
				body = testJobBody(t)
			}
			mock := newMockSQSClient()
			dlq := &mockDLQ{}
			handler := &countingHandler{err: tt.handlerErr}
			d := NewSQSDequeuer(mock, handler, dlq, NewRetryStrategy(), testSQSConfig(), testLogger())

			d.processMessage(context.Background(), sqsReceivedMessage{
				MessageID:     "m1",
				ReceiptHandle: "rh-1",
				Body:          body,
				ReceiveCount:  tt.receiveCount,
			})

			if got := handler.count(); got != tt.wantHandled {
				t.Errorf("handled = %d, want %d", got, tt.wantHandled)
			}
			if got := len(mock.getDeleted()) == 1; got != tt.wantDeleted {
				t.Errorf("deleted = %v, want %v", got, tt.wantDeleted)
			}
			if got := len(mock.getVisibility()) == 1; got != tt.wantVisibility {
				t.Errorf("visibility changed = %v, want %v", got, tt.wantVisibility)
			}

			dead := dlq.getDead()
			if tt.wantDLQReason == "" {
				if len(dead) != 0 {
					t.Errorf("unexpected dead letters: %+v", dead)
				}
				return
			}
			if len(dead) != 1 || dead[0].Reason != tt.wantDLQReason {
				t.Fatalf("dead letters = %+v, want one with reason %s", dead, tt.wantDLQReason)
			}
		})
	}
}

func TestSQSDequeuer_VisibilityWithinBounds(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	retry := NewRetryStrategy()
	retry.Jitter = func() float64 { return 1 }
	d := NewSQSDequeuer(mock, &countingHandler{err: errors.New("fail")}, &mockDLQ{}, retry, testSQSConfig(), testLogger())

	d.processMessage(context.Background(), sqsReceivedMessage{MessageID: "m1", ReceiptHandle: "rh", Body: testJobBody(t), ReceiveCount: 3})

	vis := mock.getVisibility()
	if len(vis) != 1 {
		t.Fatalf("expected 1 visibility change, got %d", len(vis))
	}
	want := int32(retry.NextBackoff(2).Seconds())
	if vis[0].VisibilityTimeout != want {
		t.Errorf("visibility = %d, want %d", vis[0].VisibilityTimeout, want)
	}
	if vis[0].VisibilityTimeout < 1 || vis[0].VisibilityTimeout > maxSQSVisibility {
		t.Errorf("visibility %d out of SQS bounds", vis[0].VisibilityTimeout)
	}
}

func TestSQSDequeuer_DLQFailureKeepsMessage(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	dlq := &mockDLQ{err: errors.New("dlq unavailable")}
	d := NewSQSDequeuer(mock, &countingHandler{}, dlq, NewRetryStrategy(), testSQSConfig(), testLogger())

	d.processMessage(context.Background(), sqsReceivedMessage{MessageID: "m1", ReceiptHandle: "rh", Body: "garbage", ReceiveCount: 1})

	if n := len(mock.getDeleted()); n != 0 {
		t.Errorf("message deleted %d times although DLQ write failed", n)
	}
}

func TestSQSDequeuer_StartStop(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	mock.receiveOnce = true
	mock.messages = []sqsReceivedMessage{
		{MessageID: "m1", ReceiptHandle: "rh-1", Body: testJobBody(t), ReceiveCount: 1},
		{MessageID: "m2", ReceiptHandle: "rh-2", Body: testJobBody(t), ReceiveCount: 1},
	}
	handler := &countingHandler{}
	cfg := testSQSConfig()
	cfg.SQSWaitTime = 1
	d := NewSQSDequeuer(mock, handler, &mockDLQ{}, NewRetryStrategy(), cfg, testLogger())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.getDeleted()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if handler.count() != 2 {
		t.Errorf("handled = %d, want 2", handler.count())
	}
	if n := len(mock.getDeleted()); n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
}

func TestSQSDLQ_MoveAndList(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	dlq := NewSQSDLQ(mock, "dlq-url", NewSQSEnqueuer(mock, "main-url"), testLogger())

	job := NewJob(11, 5, "ann@example.com", "Ann", "2026-05-01", "12 Main St")
	if err := dlq.MoveToDLQ(context.Background(), DeadLetter{Job: job, Reason: ReasonMaxDeliveries, Deliveries: 5}); err != nil {
		t.Fatalf("MoveToDLQ: %v", err)
	}

	sent := mock.getSent()
	if len(sent) != 1 || sent[0].QueueURL != "dlq-url" {
		t.Fatalf("sent = %+v, want one message to dlq-url", sent)
	}

	mock.messages = []sqsReceivedMessage{{MessageID: "d1", ReceiptHandle: "rh-d1", Body: sent[0].MessageBody}}
	entries, err := dlq.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "d1" || entries[0].Job == nil || entries[0].Job.ID != job.ID {
		t.Fatalf("entries = %+v", entries)
	}
	if len(mock.getVisibility()) != 1 {
		t.Error("listed message was not released")
	}
}

func TestSQSDLQ_Reprocess(t *testing.T) {
	t.Parallel()

	mock := newMockSQSClient()
	dlq := NewSQSDLQ(mock, "dlq-url", NewSQSEnqueuer(mock, "main-url"), testLogger())

	envelope, _ := json.Marshal(DeadLetter{Job: NewJob(11, 5, "a@b.co", "A", "2026-05-01", "X"), Reason: ReasonMaxDeliveries})
	mock.messages = []sqsReceivedMessage{
		{MessageID: "wanted", ReceiptHandle: "rh-1", Body: string(envelope)},
		{MessageID: "other", ReceiptHandle: "rh-2", Body: string(envelope)},
	}

	n, err := dlq.Reprocess(context.Background(), []string{"wanted"})
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if n != 1 {
		t.Errorf("reprocessed = %d, want 1", n)
	}

	sent := mock.getSent()
	if len(sent) != 1 || sent[0].QueueURL != "main-url" {
		t.Errorf("sent = %+v, want one message to main-url", sent)
	}
	deleted := mock.getDeleted()
	if len(deleted) != 1 || deleted[0].ReceiptHandle != "rh-1" {
		t.Errorf("deleted = %+v, want rh-1", deleted)
	}
	if vis := mock.getVisibility(); len(vis) != 1 || vis[0].ReceiptHandle != "rh-2" {
		t.Errorf("released = %+v, want rh-2", vis)
	}
}
