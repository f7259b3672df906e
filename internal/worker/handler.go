package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sungwon/move-booking/internal/enrich"
	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/provider"
	"github.com/sungwon/move-booking/internal/queue"
	"github.com/sungwon/move-booking/internal/render"
	"github.com/sungwon/move-booking/internal/storage"
)

var tracer = otel.Tracer("github.com/sungwon/move-booking/internal/worker")

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "Booking Confirmation"

// enricher looks up optional content for a location. It never fails; each
// source reports its own error in the result.
type enricher interface {
	Enrich(ctx context.Context, location string) enrich.Result
}

// mailer sends one HTML message and reports the outcome instead of erroring.
type mailer interface {
	Send(ctx context.Context, to, subject, html string) provider.Outcome
}

// emailLogWriter appends to the email log.
type emailLogWriter interface {
	CreateEmailLog(ctx context.Context, arg storage.CreateEmailLogParams) (storage.EmailLog, error)
}

// Handler implements queue.JobHandler. It enriches, renders and sends the
// confirmation for one booking and records the attempt in the email log.
type Handler struct {
	enricher enricher
	mailer   mailer
	logs     emailLogWriter
	subject  string
	log      zerolog.Logger
}

// NewHandler creates a Handler. An empty subject uses DefaultSubject.
func NewHandler(e enricher, m mailer, logs emailLogWriter, subject string, log zerolog.Logger) *Handler {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Handler{
		enricher: e,
		mailer:   m,
		logs:     logs,
		subject:  subject,
		log:      log,
	}
}

var _ queue.JobHandler = (*Handler)(nil)

// HandleJob runs enrichment, rendering, sending and logging in that order.
// Enrichment and send failures are not errors: the job is acknowledged once
// its log row is written, whatever the send outcome. It returns an error
// only when rendering or the log write fails, leaving the job for redelivery.
func (h *Handler) HandleJob(ctx context.Context, job *queue.Job) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(job.Trace))
	ctx, span := tracer.Start(ctx, "worker.HandleJob",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int64("booking.id", job.BookingID),
			attribute.Int64("customer.id", job.CustomerID),
			attribute.String("job.id", job.ID),
		),
	)
	defer span.End()

	log := h.log.With().
		Str("job_id", job.ID).
		Int64("booking_id", job.BookingID).
		Int64("customer_id", job.CustomerID).
		Logger()
	start := time.Now()

	result := h.enricher.Enrich(ctx, job.MovingAddress)

	body, err := render.Confirmation(render.Input{
		Name:          job.Name,
		CustomerID:    job.CustomerID,
		MoveDate:      job.MoveDate,
		MovingAddress: job.MovingAddress,
		Facts:         result.Facts.Facts,
		Images:        result.Images.URLs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		log.Error().Err(err).Msg("failed to render confirmation")
		return fmt.Errorf("render confirmation for booking %d: %w", job.BookingID, err)
	}

	outcome := h.mailer.Send(ctx, job.Email, h.subject, body)

	status := storage.EmailStatusSent
	if !outcome.Sent() {
		status = storage.EmailStatusFailed
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
		}
	}

	entry, err := h.logs.CreateEmailLog(ctx, storage.CreateEmailLogParams{
		BookingID: job.BookingID,
		EmailTo:   job.Email,
		Body:      body,
		Status:    status,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "email log write failed")
		log.Error().Err(err).
			Str("status", string(status)).
			Msg("failed to write email log, job will be redelivered")
		return fmt.Errorf("write email log for booking %d: %w", job.BookingID, err)
	}

	span.SetAttributes(attribute.String("email.status", string(status)))
	event := log.Info()
	if status == storage.EmailStatusFailed {
		event = log.Warn().Err(outcome.Err)
	}
	event.
		Int64("email_log_id", entry.ID).
		Str("to", logger.MaskEmail(job.Email)).
		Str("status", string(status)).
		Int("facts", len(result.Facts.Facts)).
		Int("images", len(result.Images.URLs)).
		Dur("duration", time.Since(start)).
		Msg("confirmation processed")

	return nil
}
