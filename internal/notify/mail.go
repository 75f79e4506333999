// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog"
	gomail "github.com/wneessen/go-mail"

	"github.com/seedlab/seedlab/internal/config"
	xglog "github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/metrics"
	"github.com/seedlab/seedlab/internal/resilience"
)

// Mail is a plain-text message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// NewMailer returns an SMTP mailer when mail is enabled and a log mailer otherwise.
func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled {
		return LogMailer{logger: xglog.WithComponent("mail")}
	}
	return &SMTPMailer{
		cfg:    cfg,
		logger: xglog.WithComponent("mail"),
		breaker: resilience.NewCircuitBreaker("smtp", 5, time.Minute,
			resilience.WithIgnoredErrors(func(err error) bool {
				return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			})),
	}
}

// SMTPMailer delivers through an SMTP relay. After repeated relay failures
// sends fail fast with resilience.ErrCircuitOpen until the relay recovers.
type SMTPMailer struct {
	cfg     config.MailConfig
	logger  zerolog.Logger
	breaker *resilience.CircuitBreaker
}

func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("mail: invalid recipient: %w", err)
	}
	err := s.breaker.Execute(func() error { return s.deliver(ctx, m) })
	if errors.Is(err, resilience.ErrCircuitOpen) {
		s.logger.Warn().Str("subject", m.Subject).Msg("smtp relay unavailable, message dropped")
		return fmt.Errorf("mail: %w", err)
	}
	return err
}

func (s *SMTPMailer) deliver(ctx context.Context, m Mail) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, m.Body)

	opts := []gomail.Option{gomail.WithPort(s.cfg.Port), gomail.WithTLSPolicy(gomail.TLSOpportunistic)}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password))
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	metrics.IncNotification("mail")
	s.logger.Info().Str("subject", m.Subject).Msg("mail sent")
	return nil
}

// LogMailer logs messages instead of sending them. Bodies are not logged.
type LogMailer struct {
	logger zerolog.Logger
}

func (l LogMailer) Send(_ context.Context, m Mail) error {
	l.logger.Info().Str("to", m.To).Str("subject", m.Subject).Msg("mail delivery disabled, message not sent")
	return nil
}

// RecordingMailer keeps sent messages in memory.
type RecordingMailer struct {
	Sent []Mail
}

func (r *RecordingMailer) Send(_ context.Context, m Mail) error {
	r.Sent = append(r.Sent, m)
	return nil
}
