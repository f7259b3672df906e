package storage

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Booking struct {
	ID            int64       `json:"id"`
	CustomerID    int64       `json:"customer_id"`
	MoveDate      pgtype.Date `json:"move_date"`
	MovingAddress string      `json:"moving_address"`
	CreatedAt     time.Time   `json:"created_at"`
}

// EmailStatus is the delivery outcome recorded in email_logs.
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// EmailLog is one append-only record of a confirmation attempt. Body is the
// exact HTML that was sent or attempted.
type EmailLog struct {
	ID        int64       `json:"id"`
	BookingID int64       `json:"booking_id"`
	EmailTo   string      `json:"email_to"`
	Body      string      `json:"body"`
	SentAt    time.Time   `json:"sent_at"`
	Status    EmailStatus `json:"status"`
}

// OutboxEntry is a queue message committed with the booking that produced
// it and relayed to the queue afterwards.
type OutboxEntry struct {
	ID          int64              `json:"id"`
	QueueName   string             `json:"queue_name"`
	Payload     []byte             `json:"payload"`
	CreatedAt   time.Time          `json:"created_at"`
	PublishedAt pgtype.Timestamptz `json:"published_at"`
	Attempts    int32              `json:"attempts"`
	LastError   pgtype.Text        `json:"last_error"`
}
