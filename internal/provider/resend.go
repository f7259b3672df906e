package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sungwon/move-booking/internal/httpclient"
)

const (
	resendDefaultEndpoint = "https://api.resend.com/emails"
	resendDomainsPath     = "/domains"
)

// Resend implements the Provider interface for the Resend emails API.
type Resend struct {
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewResend creates a Resend provider from the given configuration. Endpoint
// is the full URL of the send call.
func NewResend(cfg ProviderConfig, client HTTPClient) *Resend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = resendDefaultEndpoint
	}
	return &Resend{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   client,
	}
}

func (r *Resend) GetName() string { return "resend" }

type resendPayload struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Headers map[string]string `json:"headers,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

// Send delivers a message via POST /emails.
func (r *Resend) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	body, err := json.Marshal(resendPayload{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Headers: msg.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("resend: marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + r.apiKey,
		"Content-Type":  "application/json",
	}
	if msg.ID != "" {
		headers["Idempotency-Key"] = msg.ID
	}

	resp, err := r.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     r.endpoint,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("resend: send request: %w", err)
	}

	if !resp.OK() {
		return nil, ClassifyHTTPError("resend", resp.StatusCode, string(resp.Body))
	}

	var rr resendResponse
	if err := json.Unmarshal(resp.Body, &rr); err != nil {
		return nil, fmt.Errorf("resend: decode response: %w", err)
	}
	return &DeliveryResult{
		ProviderMessageID: rr.ID,
		Status:            StatusSent,
		Timestamp:         time.Now(),
		Metadata: map[string]string{
			"status_code": fmt.Sprintf("%d", resp.StatusCode),
		},
	}, nil
}

// HealthCheck lists domains, which only needs a valid key.
func (r *Resend) HealthCheck(ctx context.Context) error {
	resp, err := r.client.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    r.apiRoot() + resendDomainsPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
		},
	})
	if err != nil {
		return fmt.Errorf("resend: health check request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resend: health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Resend) apiRoot() string {
	return strings.TrimSuffix(r.endpoint, "/emails")
}
