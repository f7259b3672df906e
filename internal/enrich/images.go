package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sungwon/move-booking/internal/httpclient"
)

const (
	defaultImagesEndpoint = "https://api.pexels.com/v1/search"
	maxImages             = 10
)

// ImagesConfig configures the photo search service.
type ImagesConfig struct {
	APIKey   string
	Endpoint string
	PerPage  int
	Timeout  time.Duration
}

// ImagesClient searches a Pexels-compatible API for photos of a location.
type ImagesClient struct {
	client   httpclient.Doer
	apiKey   string
	endpoint string
	perPage  int
}

// NewImagesClient creates an ImagesClient. PerPage is clamped to 1..10.
func NewImagesClient(client httpclient.Doer, cfg ImagesConfig) *ImagesClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultImagesEndpoint
	}
	perPage := cfg.PerPage
	if perPage <= 0 || perPage > maxImages {
		perPage = maxImages
	}
	return &ImagesClient{client: client, apiKey: cfg.APIKey, endpoint: endpoint, perPage: perPage}
}

type searchResponse struct {
	Photos []struct {
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Images returns up to perPage large-image URLs for location.
func (c *ImagesClient) Images(ctx context.Context, location string) ([]string, error) {
	q := url.Values{}
	q.Set("query", location)
	q.Set("per_page", fmt.Sprint(c.perPage))

	resp, err := c.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     c.endpoint + "?" + q.Encode(),
		Headers: map[string]string{"Authorization": c.apiKey},
	})
	if err != nil {
		return nil, fmt.Errorf("images: request: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("images: service returned status %d", resp.StatusCode)
	}

	var search searchResponse
	if err := json.Unmarshal(resp.Body, &search); err != nil {
		return nil, fmt.Errorf("images: %w: %v", ErrMalformedResponse, err)
	}

	urls := make([]string, 0, min(len(search.Photos), c.perPage))
	for _, p := range search.Photos {
		if len(urls) == c.perPage {
			break
		}
		if p.Src.Large != "" {
			urls = append(urls, p.Src.Large)
		}
	}
	return urls, nil
}
