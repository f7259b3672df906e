package storage

import (
	"context"
)

// Querier is the full query surface of Queries, for mocking.
type Querier interface {
	GetCustomerIDByEmail(ctx context.Context, email string) (int64, error)
	InsertCustomerIfAbsent(ctx context.Context, arg InsertCustomerIfAbsentParams) (int64, error)
	CountCustomersByEmail(ctx context.Context, email string) (int64, error)
	CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error)
	GetBookingByID(ctx context.Context, id int64) (Booking, error)
	CreateOutboxEntry(ctx context.Context, arg CreateOutboxEntryParams) (int64, error)
	ListPendingOutboxForUpdate(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	RecordOutboxFailure(ctx context.Context, arg RecordOutboxFailureParams) error
	CountPendingOutbox(ctx context.Context) (int64, error)
	GetOutboxEntry(ctx context.Context, id int64) (OutboxEntry, error)
	CreateEmailLog(ctx context.Context, arg CreateEmailLogParams) (EmailLog, error)
	ListEmailLogsByBooking(ctx context.Context, bookingID int64) ([]EmailLog, error)
}

var _ Querier = (*Queries)(nil)
