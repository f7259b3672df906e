// Package enrich fetches the optional content of a confirmation email:
// facts about the destination and photos of it.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/sungwon/move-booking/internal/httpclient"
	"github.com/sungwon/move-booking/internal/metrics"
)

// ErrDisabled is reported for a source that has no API key configured.
var ErrDisabled = errors.New("enrichment source disabled")

const (
	sourceFacts  = "facts"
	sourceImages = "images"

	defaultFactsTimeout  = 10 * time.Second
	defaultImagesTimeout = 5 * time.Second
)

var tracer = otel.Tracer("github.com/sungwon/move-booking/internal/enrich")

// FactsSource returns short facts about a location.
type FactsSource interface {
	Facts(ctx context.Context, location string) ([]string, error)
}

// ImageSource returns image URLs for a location.
type ImageSource interface {
	Images(ctx context.Context, location string) ([]string, error)
}

// FactsResult is the outcome of the facts lookup. Facts is empty whenever
// Err is set.
type FactsResult struct {
	Facts []string
	Err   error
}

// ImagesResult is the outcome of the image lookup. URLs is empty whenever
// Err is set.
type ImagesResult struct {
	URLs []string
	Err  error
}

// Result holds both lookups. Either may have failed independently.
type Result struct {
	Facts  FactsResult
	Images ImagesResult
}

// Config configures both sources.
type Config struct {
	Facts  FactsConfig
	Images ImagesConfig
}

// Enricher runs both lookups concurrently, each under its own timeout.
type Enricher struct {
	facts         FactsSource
	images        ImageSource
	factsTimeout  time.Duration
	imagesTimeout time.Duration
	log           zerolog.Logger
}

// New builds an Enricher with HTTP-backed sources. A source without an API
// key is disabled.
func New(client httpclient.Doer, cfg Config, log zerolog.Logger) *Enricher {
	var facts FactsSource
	if cfg.Facts.APIKey != "" {
		facts = NewFactsClient(client, cfg.Facts)
	}
	var images ImageSource
	if cfg.Images.APIKey != "" {
		images = NewImagesClient(client, cfg.Images)
	}
	return NewEnricher(facts, images, cfg.Facts.Timeout, cfg.Images.Timeout, log)
}

// NewEnricher creates an Enricher over explicit sources. A nil source is
// reported as ErrDisabled; zero timeouts use the defaults.
func NewEnricher(facts FactsSource, images ImageSource, factsTimeout, imagesTimeout time.Duration, log zerolog.Logger) *Enricher {
	if factsTimeout <= 0 {
		factsTimeout = defaultFactsTimeout
	}
	if imagesTimeout <= 0 {
		imagesTimeout = defaultImagesTimeout
	}
	return &Enricher{
		facts:         facts,
		images:        images,
		factsTimeout:  factsTimeout,
		imagesTimeout: imagesTimeout,
		log:           log.With().Str("component", "enricher").Logger(),
	}
}

// Enrich looks up facts and images for location. It never fails as a whole;
// each part carries its own error.
func (e *Enricher) Enrich(ctx context.Context, location string) Result {
	var res Result
	var g errgroup.Group

	g.Go(func() error {
		var facts []string
		var err error
		if e.facts == nil {
			err = disabled(sourceFacts)
		} else {
			facts, err = e.lookup(ctx, sourceFacts, e.factsTimeout, location, e.facts.Facts)
		}
		res.Facts = FactsResult{Facts: facts, Err: err}
		return nil
	})
	g.Go(func() error {
		var urls []string
		var err error
		if e.images == nil {
			err = disabled(sourceImages)
		} else {
			urls, err = e.lookup(ctx, sourceImages, e.imagesTimeout, location, e.images.Images)
		}
		res.Images = ImagesResult{URLs: urls, Err: err}
		return nil
	})
	_ = g.Wait()

	return res
}

func disabled(source string) error {
	metrics.EnrichmentRequestsTotal.WithLabelValues(source, "disabled").Inc()
	return ErrDisabled
}

func (e *Enricher) lookup(ctx context.Context, source string, timeout time.Duration, location string,
	fetch func(context.Context, string) ([]string, error),
) ([]string, error) {
	ctx, span := tracer.Start(ctx, "enrich."+source)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := fetch(ctx, location)
	metrics.EnrichmentDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		result := "error"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		metrics.EnrichmentRequestsTotal.WithLabelValues(source, result).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		e.log.Warn().Err(err).Str("source", source).Dur("timeout", timeout).Msg("enrichment lookup failed")
		return nil, err
	}

	metrics.EnrichmentRequestsTotal.WithLabelValues(source, "ok").Inc()
	span.SetAttributes(attribute.Int("enrich.items", len(out)))
	return out, nil
}
