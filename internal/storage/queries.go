package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getCustomerIDByEmail = `
SELECT id FROM customers WHERE email = $1
`

func (q *Queries) GetCustomerIDByEmail(ctx context.Context, email string) (int64, error) {
	row := q.db.QueryRow(ctx, getCustomerIDByEmail, email)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const insertCustomerIfAbsent = `
INSERT INTO customers (name, email)
VALUES ($1, $2)
ON CONFLICT (email) DO NOTHING
RETURNING id
`

type InsertCustomerIfAbsentParams struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// InsertCustomerIfAbsent returns pgx.ErrNoRows when another transaction
// already holds the email.
func (q *Queries) InsertCustomerIfAbsent(ctx context.Context, arg InsertCustomerIfAbsentParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertCustomerIfAbsent, arg.Name, arg.Email)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const countCustomersByEmail = `
SELECT count(*) FROM customers WHERE email = $1
`

func (q *Queries) CountCustomersByEmail(ctx context.Context, email string) (int64, error) {
	row := q.db.QueryRow(ctx, countCustomersByEmail, email)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createBooking = `
INSERT INTO bookings (customer_id, move_date, moving_address)
VALUES ($1, $2, $3)
RETURNING id, customer_id, move_date, moving_address, created_at
`

type CreateBookingParams struct {
	CustomerID    int64       `json:"customer_id"`
	MoveDate      pgtype.Date `json:"move_date"`
	MovingAddress string      `json:"moving_address"`
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	row := q.db.QueryRow(ctx, createBooking, arg.CustomerID, arg.MoveDate, arg.MovingAddress)
	var i Booking
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.MoveDate,
		&i.MovingAddress,
		&i.CreatedAt,
	)
	return i, err
}

const getBookingByID = `
SELECT id, customer_id, move_date, moving_address, created_at
FROM bookings WHERE id = $1
`

func (q *Queries) GetBookingByID(ctx context.Context, id int64) (Booking, error) {
	row := q.db.QueryRow(ctx, getBookingByID, id)
	var i Booking
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.MoveDate,
		&i.MovingAddress,
		&i.CreatedAt,
	)
	return i, err
}

const createOutboxEntry = `
INSERT INTO outbox (queue_name, payload)
VALUES ($1, $2)
RETURNING id
`

type CreateOutboxEntryParams struct {
	QueueName string `json:"queue_name"`
	Payload   []byte `json:"payload"`
}

func (q *Queries) CreateOutboxEntry(ctx context.Context, arg CreateOutboxEntryParams) (int64, error) {
	row := q.db.QueryRow(ctx, createOutboxEntry, arg.QueueName, arg.Payload)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listPendingOutboxForUpdate = `
SELECT id, queue_name, payload, created_at, published_at, attempts, last_error
FROM outbox
WHERE published_at IS NULL
ORDER BY id
LIMIT $1
FOR UPDATE SKIP LOCKED
`

// ListPendingOutboxForUpdate locks unpublished rows. Rows locked by another
// relay are skipped rather than waited for.
func (q *Queries) ListPendingOutboxForUpdate(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	rows, err := q.db.Query(ctx, listPendingOutboxForUpdate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OutboxEntry
	for rows.Next() {
		var i OutboxEntry
		if err := rows.Scan(
			&i.ID,
			&i.QueueName,
			&i.Payload,
			&i.CreatedAt,
			&i.PublishedAt,
			&i.Attempts,
			&i.LastError,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markOutboxPublished = `
UPDATE outbox
SET published_at = now(), attempts = attempts + 1, last_error = NULL
WHERE id = $1
`

func (q *Queries) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, markOutboxPublished, id)
	return err
}

const recordOutboxFailure = `
UPDATE outbox
SET attempts = attempts + 1, last_error = $2
WHERE id = $1
`

type RecordOutboxFailureParams struct {
	ID        int64       `json:"id"`
	LastError pgtype.Text `json:"last_error"`
}

func (q *Queries) RecordOutboxFailure(ctx context.Context, arg RecordOutboxFailureParams) error {
	_, err := q.db.Exec(ctx, recordOutboxFailure, arg.ID, arg.LastError)
	return err
}

const countPendingOutbox = `
SELECT count(*) FROM outbox WHERE published_at IS NULL
`

func (q *Queries) CountPendingOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countPendingOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getOutboxEntry = `
SELECT id, queue_name, payload, created_at, published_at, attempts, last_error
FROM outbox WHERE id = $1
`

func (q *Queries) GetOutboxEntry(ctx context.Context, id int64) (OutboxEntry, error) {
	row := q.db.QueryRow(ctx, getOutboxEntry, id)
	var i OutboxEntry
	err := row.Scan(
		&i.ID,
		&i.QueueName,
		&i.Payload,
		&i.CreatedAt,
		&i.PublishedAt,
		&i.Attempts,
		&i.LastError,
	)
	return i, err
}

const createEmailLog = `
INSERT INTO email_logs (booking_id, email_to, body, status)
VALUES ($1, $2, $3, $4)
RETURNING id, booking_id, email_to, body, sent_at, status
`

type CreateEmailLogParams struct {
	BookingID int64       `json:"booking_id"`
	EmailTo   string      `json:"email_to"`
	Body      string      `json:"body"`
	Status    EmailStatus `json:"status"`
}

func (q *Queries) CreateEmailLog(ctx context.Context, arg CreateEmailLogParams) (EmailLog, error) {
	row := q.db.QueryRow(ctx, createEmailLog, arg.BookingID, arg.EmailTo, arg.Body, string(arg.Status))
	var i EmailLog
	err := row.Scan(
		&i.ID,
		&i.BookingID,
		&i.EmailTo,
		&i.Body,
		&i.SentAt,
		&i.Status,
	)
	return i, err
}

const listEmailLogsByBooking = `
SELECT id, booking_id, email_to, body, sent_at, status
FROM email_logs
WHERE booking_id = $1
ORDER BY id
`

func (q *Queries) ListEmailLogsByBooking(ctx context.Context, bookingID int64) ([]EmailLog, error) {
	rows, err := q.db.Query(ctx, listEmailLogsByBooking, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EmailLog
	for rows.Next() {
		var i EmailLog
		if err := rows.Scan(
			&i.ID,
			&i.BookingID,
			&i.EmailTo,
			&i.Body,
			&i.SentAt,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
