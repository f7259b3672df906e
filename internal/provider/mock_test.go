package provider

import (
	"context"
	"sync"

	"github.com/sungwon/move-booking/internal/httpclient"
)

// mockHTTPClient records requests and replays a fixed response.
type mockHTTPClient struct {
	mu       sync.Mutex
	requests []*httpclient.Request
	resp     *httpclient.Response
	err      error
}

func (m *mockHTTPClient) Do(_ context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.resp == nil {
		return &httpclient.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return m.resp, nil
}

func (m *mockHTTPClient) last() *httpclient.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// mockProvider implements Provider with configurable behavior.
type mockProvider struct {
	mu        sync.Mutex
	name      string
	sendErr   error
	healthErr error
	result    *DeliveryResult
	panicMsg  string
	sent      []*Message
	deadline  bool
}

func (m *mockProvider) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	_, m.deadline = ctx.Deadline()
	m.sent = append(m.sent, msg)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.result != nil {
		return m.result, nil
	}
	return &DeliveryResult{ProviderMessageID: "mock-" + msg.ID, Status: StatusSent}, nil
}

func (m *mockProvider) GetName() string {
	return m.name
}

func (m *mockProvider) HealthCheck(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthErr
}

func (m *mockProvider) setHealthErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
}

func testMessage() *Message {
	return &Message{
		ID:      "msg-123",
		From:    "Booking System <onboarding@resend.dev>",
		To:      []string{"jane@example.com"},
		Subject: "Booking Confirmation",
		HTML:    "<h2>Hello Jane!</h2>",
	}
}
