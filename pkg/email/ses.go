package email

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
)

const sesCharset = "UTF-8"

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// SESTransport sends through Amazon SES v2 with the account's own keys and
// region
type SESTransport struct {
	endpoint string
	logger   logger.Logger
}

// NewSESTransport creates an SES transport. A non-empty endpoint replaces
// the regional AWS endpoint.
func NewSESTransport(endpoint string, log logger.Logger) *SESTransport {
	return &SESTransport{endpoint: endpoint, logger: log}
}

// Deliver sends msg as a simple SES message and returns the SES message id
func (t *SESTransport) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	client, err := t.client(ctx, acc)
	if err != nil {
		return "", err
	}

	body := &types.Body{Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String(sesCharset)}}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String(sesCharset)}
	}
	to := (&mail.Address{Name: msg.ToName, Address: msg.To}).String()

	out, err := client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String((&mail.Address{Name: acc.FromName, Address: acc.FromEmail}).String()),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(sesCharset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		t.logger.Warn("ses delivery failed", "region", acc.SESRegion, "to", msg.To, "error", err)
		return "", domain.NewTransportError(fmt.Errorf("ses: %w", err))
	}

	messageID := aws.ToString(out.MessageId)
	t.logger.Debug("ses accepted message", "to", msg.To, "message_id", messageID)
	return messageID, nil
}

// Verify reads the SES account status, which fails on bad keys or region
func (t *SESTransport) Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error) {
	client, err := t.client(ctx, acc)
	if err != nil {
		return nil, err
	}

	out, err := client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return nil, domain.NewTransportError(fmt.Errorf("ses: %w", err))
	}

	production := out.ProductionAccessEnabled
	v := &Verification{
		Provider:          models.ProviderSES,
		Message:           fmt.Sprintf("SES account in %s reachable", acc.SESRegion),
		ProductionAccess:  &production,
		EnforcementStatus: aws.ToString(out.EnforcementStatus),
	}
	if q := out.SendQuota; q != nil {
		v.Max24HourSend = q.Max24HourSend
		v.MaxSendRate = q.MaxSendRate
		v.SentLast24Hours = q.SentLast24Hours
	}
	if !out.SendingEnabled {
		return v, domain.NewTransportError(fmt.Errorf("ses: sending is disabled for this account"))
	}
	return v, nil
}

func (t *SESTransport) client(ctx context.Context, acc *models.EmailAccount) (sesAPI, error) {
	if acc.SESAccessKey == "" || acc.SESSecretKey == "" {
		return nil, domain.NewValidationError("ses access key and secret are not configured")
	}
	if acc.SESRegion == "" {
		return nil, domain.NewValidationError("ses region is not configured")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(acc.SESRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			acc.SESAccessKey,
			acc.SESSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
		if t.endpoint != "" {
			o.BaseEndpoint = aws.String(t.endpoint)
		}
	}), nil
}
