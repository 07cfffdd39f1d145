package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"campus-bus-backend/config"
)

const smtpTimeout = 15 * time.Second

// Mailer sends a plain-text email.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMTPMailer delivers mail through an SMTP relay, authenticating with PLAIN
// when a username is configured.
type SMTPMailer struct {
	from string
	send func(msgs ...*mail.Msg) error
}

// NewSMTPMailer returns a nil mailer and no error when no SMTP host is
// configured.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return &SMTPMailer{from: from, send: client.DialAndSend}, nil
}

func (m *SMTPMailer) SendEmail(to, subject, body string) error {
	msg, err := buildMessage(m.from, to, subject, body)
	if err != nil {
		return err
	}
	return m.send(msg)
}

// buildMessage encodes non-ASCII headers and stamps Date and Message-ID.
func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(sanitizeHeader(subject))
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
