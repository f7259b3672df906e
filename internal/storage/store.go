package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sungwon/move-booking/internal/metrics"
	"github.com/sungwon/move-booking/internal/queue"
)

// ErrCustomerConflict is returned when the customer row for an email could
// neither be read nor inserted within maxUpsertAttempts.
var ErrCustomerConflict = errors.New("customer upsert did not converge")

const (
	maxUpsertAttempts = 3
	maxLastErrorLen   = 1000
)

// Store runs the multi-statement operations that must be atomic.
type Store struct {
	db *DB
}

// NewStore creates a Store over db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Queries returns Queries bound to the pool, outside any transaction.
func (s *Store) Queries() *Queries {
	return New(s.db.Pool)
}

// NewBooking is a validated submission ready to persist.
type NewBooking struct {
	Name          string
	Email         string
	MoveDate      time.Time
	MovingAddress string
	// QueueName is the queue the confirmation job is relayed to.
	QueueName string
	// Trace is the propagation carrier stored on the job.
	Trace map[string]string
}

// CreatedBooking identifies the rows written by CreateBooking.
type CreatedBooking struct {
	BookingID   int64
	CustomerID  int64
	CreatedAt   time.Time
	JobID       string
	NewCustomer bool
}

// CreateBooking finds or creates the customer for nb.Email, inserts the
// booking and writes the confirmation job to the outbox, all in one
// transaction. Concurrent calls with the same new email converge on one
// customer row.
func (s *Store) CreateBooking(ctx context.Context, nb NewBooking) (CreatedBooking, error) {
	start := time.Now()
	var out CreatedBooking

	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		q := New(tx)

		customerID, created, err := upsertCustomer(ctx, q, nb.Name, nb.Email)
		if err != nil {
			return err
		}

		booking, err := q.CreateBooking(ctx, CreateBookingParams{
			CustomerID:    customerID,
			MoveDate:      pgtype.Date{Time: nb.MoveDate, Valid: true},
			MovingAddress: nb.MovingAddress,
		})
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		job := queue.NewJob(booking.ID, customerID, nb.Email, nb.Name, nb.MoveDate.Format(time.DateOnly), nb.MovingAddress)
		job.Trace = nb.Trace
		payload, err := job.Encode()
		if err != nil {
			return err
		}
		if _, err := q.CreateOutboxEntry(ctx, CreateOutboxEntryParams{QueueName: nb.QueueName, Payload: payload}); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}

		out = CreatedBooking{
			BookingID:   booking.ID,
			CustomerID:  customerID,
			CreatedAt:   booking.CreatedAt,
			JobID:       job.ID,
			NewCustomer: created,
		}
		return nil
	})
	observe("create_booking", start, err)
	if err != nil {
		return CreatedBooking{}, err
	}

	if out.NewCustomer {
		metrics.CustomersCreatedTotal.Inc()
	}
	return out, nil
}

// upsertCustomer reads the customer by email and inserts it when absent. An
// insert that loses a race to a concurrent transaction returns no row; the
// next read then sees the winner's committed row.
func upsertCustomer(ctx context.Context, q *Queries, name, email string) (int64, bool, error) {
	for range maxUpsertAttempts {
		id, err := q.GetCustomerIDByEmail(ctx, email)
		if err == nil {
			return id, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("look up customer: %w", err)
		}

		id, err = q.InsertCustomerIfAbsent(ctx, InsertCustomerIfAbsentParams{Name: name, Email: email})
		if err == nil {
			return id, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("insert customer: %w", err)
		}
	}
	return 0, false, ErrCustomerConflict
}

// RelayResult counts what one RelayOutbox call did.
type RelayResult struct {
	Published int
	Failed    int
}

// PublishFunc hands one outbox entry to the queue.
type PublishFunc func(ctx context.Context, entry OutboxEntry) error

// RelayOutbox locks up to limit unpublished outbox rows, publishes them in
// id order and marks each one published. The first publish failure is
// recorded on its row and ends the batch so later jobs are not sent ahead
// of it. Rows locked by a concurrent relay are skipped.
func (s *Store) RelayOutbox(ctx context.Context, limit int, publish PublishFunc) (RelayResult, error) {
	start := time.Now()
	var res RelayResult

	err := pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		q := New(tx)

		entries, err := q.ListPendingOutboxForUpdate(ctx, int32(limit))
		if err != nil {
			return fmt.Errorf("lock outbox entries: %w", err)
		}

		for _, e := range entries {
			if perr := publish(ctx, e); perr != nil {
				res.Failed++
				msg := perr.Error()
				if len(msg) > maxLastErrorLen {
					msg = msg[:maxLastErrorLen]
				}
				if err := q.RecordOutboxFailure(ctx, RecordOutboxFailureParams{
					ID:        e.ID,
					LastError: pgtype.Text{String: msg, Valid: true},
				}); err != nil {
					return fmt.Errorf("record outbox failure %d: %w", e.ID, err)
				}
				return nil
			}

			if err := q.MarkOutboxPublished(ctx, e.ID); err != nil {
				return fmt.Errorf("mark outbox entry %d published: %w", e.ID, err)
			}
			res.Published++
		}
		return nil
	})
	observe("relay_outbox", start, err)
	if err != nil {
		return RelayResult{}, err
	}
	return res, nil
}

// CountPendingOutbox returns how many outbox rows are waiting to be relayed.
func (s *Store) CountPendingOutbox(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.Queries().CountPendingOutbox(ctx)
	observe("count_pending_outbox", start, err)
	return n, err
}

// CreateEmailLog appends a delivery record.
func (s *Store) CreateEmailLog(ctx context.Context, arg CreateEmailLogParams) (EmailLog, error) {
	start := time.Now()
	log, err := s.Queries().CreateEmailLog(ctx, arg)
	observe("create_email_log", start, err)
	return log, err
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func observe(query string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues(query).Inc()
	}
}
