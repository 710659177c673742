// Package email delivers rendered messages through an account's provider.
package email

import (
	"context"
	"fmt"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// Message is a fully rendered outbound email
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Transport hands a message to a mail provider and returns the provider's
// message id
type Transport interface {
	Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error)

// Deliver calls f
func (f TransportFunc) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	return f(ctx, acc, msg)
}

// Verification describes a successful credential check. Quota fields are
// only filled by providers that report them.
type Verification struct {
	Provider          string  `json:"provider"`
	Message           string  `json:"message"`
	ProductionAccess  *bool   `json:"productionAccess,omitempty"`
	Max24HourSend     float64 `json:"max24HourSend,omitempty"`
	MaxSendRate       float64 `json:"maxSendRate,omitempty"`
	SentLast24Hours   float64 `json:"sentLast24Hours,omitempty"`
	EnforcementStatus string  `json:"enforcementStatus,omitempty"`
}

// Verifier checks an account's credentials without sending mail
type Verifier interface {
	Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error)
}

// Router picks a transport by the account's provider
type Router struct {
	transports map[string]Transport
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{transports: make(map[string]Transport)}
}

// Register binds provider to t
func (r *Router) Register(provider string, t Transport) *Router {
	r.transports[provider] = t
	return r
}

// Deliver sends msg through the transport registered for acc.Provider
func (r *Router) Deliver(ctx context.Context, acc *models.EmailAccount, msg Message) (string, error) {
	t, err := r.lookup(acc)
	if err != nil {
		return "", err
	}
	return t.Deliver(ctx, acc, msg)
}

// Verify checks acc through its provider's transport
func (r *Router) Verify(ctx context.Context, acc *models.EmailAccount) (*Verification, error) {
	t, err := r.lookup(acc)
	if err != nil {
		return nil, err
	}
	v, ok := t.(Verifier)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("mail provider %q cannot be verified", acc.Provider))
	}
	return v.Verify(ctx, acc)
}

func (r *Router) lookup(acc *models.EmailAccount) (Transport, error) {
	if acc == nil {
		return nil, domain.NewValidationError("email account is required")
	}
	t, ok := r.transports[acc.Provider]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unsupported mail provider %q", acc.Provider))
	}
	return t, nil
}
