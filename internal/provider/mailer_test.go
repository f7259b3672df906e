package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMailer_Send(t *testing.T) {
	tests := []struct {
		name       string
		provider   *mockProvider
		wantStatus DeliveryStatus
		wantID     string
		wantErr    bool
	}{
		{
			name:       "accepted",
			provider:   &mockProvider{name: "mock", result: &DeliveryResult{ProviderMessageID: "re-1", Status: StatusSent}},
			wantStatus: StatusSent,
			wantID:     "re-1",
		},
		{
			name:       "provider error",
			provider:   &mockProvider{name: "mock", sendErr: ClassifyHTTPError("mock", 500, "boom")},
			wantStatus: StatusFailed,
			wantErr:    true,
		},
		{
			name:       "transport error",
			provider:   &mockProvider{name: "mock", sendErr: context.DeadlineExceeded},
			wantStatus: StatusFailed,
			wantErr:    true,
		},
		{
			name:       "panic is contained",
			provider:   &mockProvider{name: "mock", panicMsg: "nil map"},
			wantStatus: StatusFailed,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMailer(tt.provider, "Booking System <onboarding@resend.dev>", time.Second, zerolog.Nop())

			out := m.Send(context.Background(), "jane@example.com", "Booking Confirmation", "<p>hi</p>")

			if out.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", out.Status, tt.wantStatus)
			}
			if out.ProviderMessageID != tt.wantID {
				t.Errorf("ProviderMessageID = %q, want %q", out.ProviderMessageID, tt.wantID)
			}
			if (out.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", out.Err, tt.wantErr)
			}
			if out.Sent() != (tt.wantStatus == StatusSent) {
				t.Errorf("Sent() = %v", out.Sent())
			}
		})
	}
}

func TestMailer_Send_BuildsMessage(t *testing.T) {
	mp := &mockProvider{name: "mock"}
	m := NewMailer(mp, "Booking System <onboarding@resend.dev>", time.Second, zerolog.Nop())

	m.Send(context.Background(), "jane@example.com", "Booking Confirmation", "<p>hi</p>")

	if len(mp.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mp.sent))
	}
	msg := mp.sent[0]
	if msg.From != "Booking System <onboarding@resend.dev>" {
		t.Errorf("expected configured from, got %q", msg.From)
	}
	if len(msg.To) != 1 || msg.To[0] != "jane@example.com" {
		t.Errorf("unexpected to %v", msg.To)
	}
	if msg.HTML != "<p>hi</p>" || msg.Subject != "Booking Confirmation" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.ID == "" {
		t.Error("expected a generated message id")
	}
	if !mp.deadline {
		t.Error("expected the send context to carry the mail timeout")
	}
}

func TestMailer_Send_NilResult(t *testing.T) {
	mp := &mockProvider{name: "mock", result: nil}
	m := NewMailer(&nilResultProvider{mp}, "from@example.com", time.Second, zerolog.Nop())

	out := m.Send(context.Background(), "jane@example.com", "s", "b")
	if out.Status != StatusFailed || out.Err == nil {
		t.Errorf("expected failed outcome for nil result, got %+v", out)
	}
}

type nilResultProvider struct{ *mockProvider }

func (p *nilResultProvider) Send(context.Context, *Message) (*DeliveryResult, error) {
	return nil, nil
}

func TestMailer_Send_ErrorIsPreserved(t *testing.T) {
	sendErr := ClassifyHTTPError("mock", 403, "forbidden")
	m := NewMailer(&mockProvider{name: "mock", sendErr: sendErr}, "from@example.com", time.Second, zerolog.Nop())

	out := m.Send(context.Background(), "jane@example.com", "s", "b")

	var pe *ProviderError
	if !errors.As(out.Err, &pe) || !pe.Permanent {
		t.Errorf("expected permanent ProviderError, got %v", out.Err)
	}
}
