package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// ConsoleTransport only logs messages. Used in development.
type ConsoleTransport struct {
	logger logger.Logger
}

// NewConsoleTransport creates a console transport
func NewConsoleTransport(log logger.Logger) *ConsoleTransport {
	return &ConsoleTransport{logger: log}
}

// Deliver logs msg and returns a generated message id
func (t *ConsoleTransport) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	messageID := uuid.NewString()
	t.logger.Info("email not sent (console transport)",
		"from", acc.FromEmail,
		"to", msg.To,
		"subject", msg.Subject,
		"bytes", len(msg.HTMLBody),
		"message_id", messageID,
	)
	return messageID, nil
}

// Verify always succeeds
func (t *ConsoleTransport) Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Verification{Provider: models.ProviderConsole, Message: "console transport needs no credentials"}, nil
}

// Endpoints overrides provider API hosts. Empty fields select the public
// APIs.
type Endpoints struct {
	SendGrid string
	SES      string
}

// NewDefaultRouter registers the SMTP, SendGrid, SES and console transports
func NewDefaultRouter(endpoints Endpoints, log logger.Logger) *Router {
	return NewRouter().
		Register(models.ProviderSMTP, NewSMTPTransport(log)).
		Register(models.ProviderSendGrid, NewSendGridTransport(endpoints.SendGrid, log)).
		Register(models.ProviderSES, NewSESTransport(endpoints.SES, log)).
		Register(models.ProviderConsole, NewConsoleTransport(log))
}
