package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// DefaultSendGridHost is the public SendGrid API
const DefaultSendGridHost = "https://api.sendgrid.com"

const (
	sendGridEndpoint       = "/v3/mail/send"
	sendGridScopesEndpoint = "/v3/scopes"
)

// SendGridTransport sends through the SendGrid v3 API with the account's key
type SendGridTransport struct {
	host   string
	logger logger.Logger
}

// NewSendGridTransport creates a SendGrid transport. An empty host selects
// DefaultSendGridHost.
func NewSendGridTransport(host string, log logger.Logger) *SendGridTransport {
	if host == "" {
		host = DefaultSendGridHost
	}
	return &SendGridTransport{host: host, logger: log}
}

// Deliver posts msg to SendGrid. The returned id is the X-Message-Id
// response header, or a generated id when SendGrid omits it.
func (t *SendGridTransport) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	if acc.APIKey == "" {
		return "", domain.NewValidationError("sendgrid api key is not configured")
	}

	from := mail.NewEmail(acc.FromName, acc.FromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextBody, msg.HTMLBody)

	request := sendgrid.GetRequest(acc.APIKey, sendGridEndpoint, t.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		t.logger.Warn("sendgrid request failed", "to", msg.To, "error", err)
		return "", domain.NewTransportError(fmt.Errorf("sendgrid: %w", err))
	}
	if response.StatusCode >= 400 {
		t.logger.Warn("sendgrid rejected message", "to", msg.To, "status", response.StatusCode, "body", response.Body)
		return "", domain.NewTransportError(fmt.Errorf("sendgrid returned status %d", response.StatusCode))
	}

	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	t.logger.Debug("sendgrid accepted message", "to", msg.To, "status", response.StatusCode, "message_id", messageID)
	return messageID, nil
}

// Verify checks the API key by listing its scopes
func (t *SendGridTransport) Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error) {
	if acc.APIKey == "" {
		return nil, domain.NewValidationError("sendgrid api key is not configured")
	}

	request := sendgrid.GetRequest(acc.APIKey, sendGridScopesEndpoint, t.host)
	request.Method = "GET"

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("sendgrid: %w", err))
	}
	if response.StatusCode >= 400 {
		return nil, domain.NewTransportError(fmt.Errorf("sendgrid returned status %d", response.StatusCode))
	}
	return &Verification{Provider: models.ProviderSendGrid, Message: "SendGrid API key accepted"}, nil
}
