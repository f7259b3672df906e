// Package validate checks booking submissions before anything is persisted.
package validate

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Field error messages returned to the submitter.
const (
	MsgInvalidBody     = "Invalid request body format."
	MsgName            = "Name must be at least 2 characters."
	MsgEmail           = "Invalid email format."
	MsgMovingAddress   = "Moving address must be at least 5 characters."
	MsgMoveDateMissing = "Move date is required."
	MsgMoveDateFormat  = "Invalid move date format."
	MsgMoveDatePast    = "Move date must be in the future."
)

const dateLayout = "2006-01-02"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrMoveDateFormat is returned by ParseMoveDate for unparseable input.
var ErrMoveDateFormat = errors.New("invalid move date format")

// Submission is a booking request whose fields passed validation. String
// fields are trimmed.
type Submission struct {
	Name          string
	Email         string
	MoveDate      time.Time
	MovingAddress string
}

// Result is the outcome of validating one payload. Errors maps a field name
// (or "general") to a message. Submission is only populated when Valid.
type Result struct {
	Valid      bool
	Errors     map[string]string
	Submission Submission
}

// Booking validates a decoded JSON payload. Every field is checked so all
// failures are reported together. now anchors the "not in the past" rule.
func Booking(payload any, now time.Time) Result {
	body, ok := payload.(map[string]any)
	if !ok || body == nil {
		return Result{Errors: map[string]string{"general": MsgInvalidBody}}
	}

	errs := make(map[string]string)
	var sub Submission

	if name, ok := trimmedString(body, "name"); ok && utf8.RuneCountInString(name) >= 2 {
		sub.Name = name
	} else {
		errs["name"] = MsgName
	}

	if email, ok := trimmedString(body, "email"); ok && emailPattern.MatchString(email) {
		sub.Email = email
	} else {
		errs["email"] = MsgEmail
	}

	if addr, ok := trimmedString(body, "moving_address"); ok && utf8.RuneCountInString(addr) >= 5 {
		sub.MovingAddress = addr
	} else {
		errs["moving_address"] = MsgMovingAddress
	}

	raw, ok := trimmedString(body, "move_date")
	switch {
	case !ok || raw == "":
		errs["move_date"] = MsgMoveDateMissing
	default:
		d, err := ParseMoveDate(raw, now.Location())
		switch {
		case err != nil:
			errs["move_date"] = MsgMoveDateFormat
		case d.Before(midnight(now)):
			errs["move_date"] = MsgMoveDatePast
		default:
			sub.MoveDate = d
		}
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Valid: true, Errors: errs, Submission: sub}
}

// ParseMoveDate accepts a calendar date (YYYY-MM-DD, read in loc) or an
// RFC 3339 timestamp.
func ParseMoveDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, ErrMoveDateFormat
}

// FormatMoveDate renders a move date the way it is stored and queued.
func FormatMoveDate(d time.Time) string {
	return d.Format(dateLayout)
}

func trimmedString(body map[string]any, key string) (string, bool) {
	s, ok := body[key].(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
