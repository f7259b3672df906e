package provider

import (
	"context"
	"time"

	"github.com/sungwon/move-booking/internal/httpclient"
)

// Provider defines the interface for sending email through an ESP.
type Provider interface {
	// Send delivers a message through the ESP and returns a delivery result.
	Send(ctx context.Context, msg *Message) (*DeliveryResult, error)
	// GetName returns the provider's identifier (e.g., "resend", "smtp").
	GetName() string
	// HealthCheck verifies the provider is reachable and functional.
	HealthCheck(ctx context.Context) error
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient = httpclient.Doer

// Message represents an email message to be delivered.
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	Headers map[string]string
	HTML    string
}

// DeliveryResult contains the outcome of a delivery attempt.
type DeliveryResult struct {
	ProviderMessageID string
	Status            DeliveryStatus
	Timestamp         time.Time
	Metadata          map[string]string
}

// DeliveryStatus represents the outcome of an ESP delivery.
type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)
