package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sungwon/move-booking/internal/httpclient"
)

const (
	defaultFactsEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultFactsModel    = "gpt-4o-mini"
	maxFacts             = 3
)

// ErrMalformedResponse is returned when a service answers 2xx with a body
// that does not have the expected shape.
var ErrMalformedResponse = errors.New("malformed enrichment response")

const factsPrompt = `You are generating content for an email.

Task:
- Create exactly 3 short, fun, email-friendly facts about %q.
- Each fact must be one concise sentence.
- Do NOT add any explanations, intros, or outros.

Output format (very important):
- Return ONLY a valid JSON object.
- It must have exactly one property: "facts".
- "facts" must be an array of exactly 3 strings.
- Example:
  { "facts": ["Fact 1...", "Fact 2...", "Fact 3..."] }`

// FactsConfig configures the chat-completions service used for facts.
type FactsConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// FactsClient asks an OpenAI-compatible chat completions API for short facts
// about a location.
type FactsClient struct {
	client   httpclient.Doer
	apiKey   string
	endpoint string
	model    string
}

// NewFactsClient creates a FactsClient.
func NewFactsClient(client httpclient.Doer, cfg FactsConfig) *FactsClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultFactsEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultFactsModel
	}
	return &FactsClient{client: client, apiKey: cfg.APIKey, endpoint: endpoint, model: model}
}

type chatRequest struct {
	Model          string         `json:"model"`
	ResponseFormat responseFormat `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Facts returns up to three facts about location.
func (c *FactsClient) Facts(ctx context.Context, location string) ([]string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages:       []chatMessage{{Role: "user", Content: fmt.Sprintf(factsPrompt, location)}},
	})
	if err != nil {
		return nil, fmt.Errorf("facts: marshal request: %w", err)
	}

	resp, err := c.client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    c.endpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("facts: request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("facts: service returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body, &chat); err != nil {
		return nil, fmt.Errorf("facts: %w: %v", ErrMalformedResponse, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("facts: %w: no choices", ErrMalformedResponse)
	}
	return parseFacts(chat.Choices[0].Message.Content)
}

// parseFacts reads {"facts": [...]} from the model output. Non-string items
// are dropped and the list is cut to maxFacts.
func parseFacts(content string) ([]string, error) {
	var parsed struct {
		Facts json.RawMessage `json:"facts"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("facts: %w: %v", ErrMalformedResponse, err)
	}

	var items []any
	if err := json.Unmarshal(parsed.Facts, &items); err != nil {
		return nil, fmt.Errorf("facts: %w: facts is not an array", ErrMalformedResponse)
	}

	facts := make([]string, 0, maxFacts)
	for _, item := range items {
		if s, ok := item.(string); ok {
			facts = append(facts, s)
		}
		if len(facts) == maxFacts {
			break
		}
	}
	return facts, nil
}
