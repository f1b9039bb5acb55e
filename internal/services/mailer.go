package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/wrapped/internal/shared"
	"github.com/wneessen/go-mail"
)

// mailSender is satisfied by [mail.Client].
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer implements [Mailer] over SMTP with STARTTLS.
type SMTPMailer struct {
	client mailSender
	from   string
	to     string
}

// NewSMTPMailer creates a mailer that sends contact messages from cfg.From (or the SMTP user)
// to cfg.ContactEmail.
func NewSMTPMailer(cfg shared.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.ContactEmail == "" {
		return nil, fmt.Errorf("%w: mail host and contact_email are required", shared.ErrServiceDisabled)
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{client: client, from: from, to: cfg.ContactEmail}, nil
}

// Send delivers a plain text message to the contact address.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("%w: invalid sender: %v", shared.ErrMailFailed, err)
	}
	if err := msg.To(m.to); err != nil {
		return fmt.Errorf("%w: invalid recipient: %v", shared.ErrMailFailed, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMailFailed, err)
	}
	return nil
}
