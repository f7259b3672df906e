package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTP implements the Provider interface by relaying through an SMTP
// submission server. STARTTLS is used whenever the server offers it.
type SMTP struct {
	addr     string
	host     string
	username string
	password string
	timeout  time.Duration
}

// NewSMTP creates an SMTP relay provider from the given configuration.
func NewSMTP(cfg ProviderConfig) *SMTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SMTP{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		timeout:  timeout,
	}
}

func (s *SMTP) GetName() string { return "smtp" }

// Send runs one SMTP transaction per message.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*DeliveryResult, error) {
	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	_, from := splitAddress(msg.From)
	if err := c.Mail(from, nil); err != nil {
		return nil, fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return nil, fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return nil, fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write(buildMIME(msg, time.Now())); err != nil {
		return nil, fmt.Errorf("smtp: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("smtp: close data: %w", err)
	}

	if err := c.Quit(); err != nil {
		return nil, fmt.Errorf("smtp: quit: %w", err)
	}

	return &DeliveryResult{
		ProviderMessageID: msg.ID,
		Status:            StatusSent,
		Timestamp:         time.Now(),
		Metadata:          map[string]string{"relay": s.addr},
	}, nil
}

// HealthCheck opens a session and issues NOOP.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Noop(); err != nil {
		return fmt.Errorf("smtp: noop: %w", err)
	}
	return c.Quit()
}

// dial connects, upgrades with STARTTLS when offered and authenticates when
// credentials are configured. The connection deadline follows ctx.
func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", s.addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp: set deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	if err := c.Hello("localhost"); err != nil {
		c.Close()
		return nil, fmt.Errorf("smtp: hello: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp: starttls: %w", err)
		}
	}

	if s.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			c.Close()
			return nil, fmt.Errorf("smtp: auth: %w", err)
		}
	}
	return c, nil
}
