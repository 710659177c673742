package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

const defaultSMTPPort = 587

// SMTPTransport sends through the account's own SMTP server
type SMTPTransport struct {
	logger  logger.Logger
	dial    func(d *gomail.Dialer, m *gomail.Message) error
	connect func(d *gomail.Dialer) error
}

// NewSMTPTransport creates an SMTP transport
func NewSMTPTransport(log logger.Logger) *SMTPTransport {
	return &SMTPTransport{
		logger: log,
		dial: func(d *gomail.Dialer, m *gomail.Message) error {
			return d.DialAndSend(m)
		},
		connect: func(d *gomail.Dialer) error {
			sc, err := d.Dial()
			if err != nil {
				return err
			}
			return sc.Close()
		},
	}
}

// Deliver dials the account's server and sends msg. The returned id is the
// Message-ID header set on the outgoing mail.
func (t *SMTPTransport) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if acc.SMTPHost == "" {
		return "", domain.NewValidationError("smtp host is not configured")
	}

	messageID := newMessageID(acc.FromEmail)
	m := buildMessage(acc, msg, messageID)

	if err := t.dial(newDialer(acc), m); err != nil {
		t.logger.Warn("smtp delivery failed", "host", acc.SMTPHost, "to", msg.To, "error", err)
		return "", domain.NewTransportError(fmt.Errorf("smtp: %w", err))
	}

	t.logger.Debug("smtp delivery accepted", "to", msg.To, "message_id", messageID)
	return messageID, nil
}

// Verify connects and authenticates against the account's server
func (t *SMTPTransport) Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if acc.SMTPHost == "" {
		return nil, domain.NewValidationError("smtp host is not configured")
	}

	d := newDialer(acc)
	if err := t.connect(d); err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("smtp: %w", err))
	}
	return &Verification{
		Provider: models.ProviderSMTP,
		Message:  fmt.Sprintf("SMTP connection to %s:%d succeeded", d.Host, d.Port),
	}, nil
}

func newDialer(acc *models.EmailAccount) *gomail.Dialer {
	port := acc.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	d := gomail.NewDialer(acc.SMTPHost, port, acc.SMTPUser, acc.SMTPPassword)
	if acc.SMTPUseTLS {
		d.TLSConfig = &tls.Config{ServerName: acc.SMTPHost, MinVersion: tls.VersionTLS12}
	}
	return d
}

func buildMessage(acc *models.EmailAccount, msg Message, messageID string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", acc.FromEmail, acc.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)

	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}
	return m
}

func newMessageID(from string) string {
	domainPart := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domainPart = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domainPart)
}
