package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // optional - some servers allow unauthenticated relay
	Password string // optional
}

// SMTPSender implements Sender over SMTP using go-mail.
// TLS mode is derived from the port; authentication is auto-discovered
// when credentials are present. SMTP has no accept/reject distinction
// beyond the submission result, so a completed DialAndSend is an accept.
type SMTPSender struct {
	config *SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender creates a new SMTP mail sender.
func NewSMTPSender(config *SMTPConfig) *SMTPSender {
	return &SMTPSender{
		config: config,
		logger: slog.Default(),
	}
}

// Send submits one message through the configured SMTP server.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	if msg.From == "" {
		return nil, ErrInvalidFromAddress
	}
	if msg.To == "" {
		return nil, ErrInvalidToAddress
	}

	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)

	client, err := gomail.NewClient(s.config.Host, s.buildClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error("smtp: failed to send mail", "to", msg.To, "error", err)
		return nil, fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Info("smtp: mail sent", "to", msg.To)
	return &Result{Accepted: true}, nil
}

// buildClientOptions returns go-mail client options based on configuration.
func (s *SMTPSender) buildClientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.config.Port),
		gomail.WithTimeout(30 * time.Second),
	}

	switch s.config.Port {
	case 465:
		// Implicit TLS (SMTPS)
		opts = append(opts, gomail.WithSSL())
	case 587:
		// STARTTLS (submission port)
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		// Plain SMTP, local relays, Mailhog
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}

	if s.config.Username != "" && s.config.Password != "" {
		opts = append(opts,
			gomail.WithUsername(s.config.Username),
			gomail.WithPassword(s.config.Password),
			gomail.WithSMTPAuth(gomail.SMTPAuthAutoDiscover),
		)
	}

	return opts
}

// LookupUser is not supported over bare SMTP; there is no directory.
func (s *SMTPSender) LookupUser(ctx context.Context, email string) (*Identity, error) {
	return nil, ErrNotImplemented
}
