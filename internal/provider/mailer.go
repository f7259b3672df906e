package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sungwon/move-booking/internal/logger"
	"github.com/sungwon/move-booking/internal/metrics"
)

// Outcome is the result of one Mailer.Send call. Err is set exactly when
// Status is StatusFailed.
type Outcome struct {
	Status            DeliveryStatus
	ProviderMessageID string
	Err               error
}

// Sent reports whether the provider accepted the message.
func (o Outcome) Sent() bool { return o.Status == StatusSent }

// Mailer wraps a Provider with the sender address, a per-send timeout and
// metrics. It never returns an error; failures are reported in the Outcome.
type Mailer struct {
	provider Provider
	from     string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewMailer creates a Mailer. A non-positive timeout uses the provider default.
func NewMailer(p Provider, from string, timeout time.Duration, log zerolog.Logger) *Mailer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Mailer{
		provider: p,
		from:     from,
		timeout:  timeout,
		log:      log.With().Str("component", "mailer").Str("provider", p.GetName()).Logger(),
	}
}

// Provider returns the wrapped provider.
func (m *Mailer) Provider() Provider { return m.provider }

// Send delivers an HTML message to a single recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) (out Outcome) {
	start := time.Now()
	name := m.provider.GetName()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Status: StatusFailed, Err: fmt.Errorf("%s: panic during send: %v", name, r)}
		}
		metrics.MailSendDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		metrics.EmailsTotal.WithLabelValues(string(out.Status)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	msg := &Message{
		ID:      uuid.NewString(),
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}

	res, err := m.provider.Send(ctx, msg)
	if err == nil && res == nil {
		err = errors.New(name + ": empty delivery result")
	}
	if err != nil {
		m.log.Warn().
			Err(err).
			Str("to", logger.MaskEmail(to)).
			Bool("permanent", IsPermanent(err)).
			Msg("mail send failed")
		return Outcome{Status: StatusFailed, Err: err}
	}

	m.log.Info().
		Str("to", logger.MaskEmail(to)).
		Str("provider_message_id", res.ProviderMessageID).
		Dur("duration", time.Since(start)).
		Msg("mail sent")
	return Outcome{Status: StatusSent, ProviderMessageID: res.ProviderMessageID}
}
