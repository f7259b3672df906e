package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/storage"
	"github.com/sungwon/move-booking/internal/validate"
)

// DefaultMaxBodyBytes caps submission bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// bookingCreator persists a validated booking together with its
// confirmation job.
type bookingCreator interface {
	CreateBooking(ctx context.Context, nb storage.NewBooking) (storage.CreatedBooking, error)
}

// bookingResponse is the 201 body.
type bookingResponse struct {
	BookingID  int64     `json:"booking_id"`
	CustomerID int64     `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// BookingHandler serves booking submissions.
type BookingHandler struct {
	store        bookingCreator
	queueName    string
	maxBodyBytes int64
	now          func() time.Time
}

// NewBookingHandler creates a BookingHandler writing jobs for queueName.
func NewBookingHandler(store bookingCreator, queueName string, maxBodyBytes int64) *BookingHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &BookingHandler{
		store:        store,
		queueName:    queueName,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// ServeHTTP handles POST /api/v1/booking.
// Returns 201 with the new ids, 400 with per-field messages, or a generic 500.
func (h *BookingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	// Decode into an untyped value so the validator sees exactly what was
	// sent, including wrong types.
	var payload any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		metrics.BookingSubmissionsTotal.WithLabelValues("invalid").Inc()
		respondFieldErrors(w, map[string]string{"general": validate.MsgInvalidBody})
		return
	}

	res := validate.Booking(payload, h.now())
	if !res.Valid {
		metrics.BookingSubmissionsTotal.WithLabelValues("invalid").Inc()
		log.Info().Interface("errors", res.Errors).Msg("booking rejected by validation")
		respondFieldErrors(w, res.Errors)
		return
	}

	sub := res.Submission
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	created, err := h.store.CreateBooking(ctx, storage.NewBooking{
		Name:          sub.Name,
		Email:         sub.Email,
		MoveDate:      sub.MoveDate,
		MovingAddress: sub.MovingAddress,
		QueueName:     h.queueName,
		Trace:         carrier,
	})
	if err != nil {
		metrics.BookingSubmissionsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).
			Str("email", logger.MaskEmail(sub.Email)).
			Msg("failed to create booking")
		respondError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("booking.id", created.BookingID),
		attribute.Int64("customer.id", created.CustomerID),
	)
	metrics.BookingSubmissionsTotal.WithLabelValues("created").Inc()
	log.Info().
		Int64("booking_id", created.BookingID).
		Int64("customer_id", created.CustomerID).
		Bool("new_customer", created.NewCustomer).
		Str("job_id", created.JobID).
		Str("email", logger.MaskEmail(sub.Email)).
		Msg("booking created")

	respondJSON(w, http.StatusCreated, bookingResponse{
		BookingID:  created.BookingID,
		CustomerID: created.CustomerID,
		CreatedAt:  created.CreatedAt,
	})
}
