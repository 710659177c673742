// Package campaign runs email campaigns: it materializes sends for the
// leads a campaign's filter selects, dispatches them at a paced rate and
// tracks each send through its delivery states.
package campaign

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/effects"
	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/secrets"
)

// Defaults for Config
const (
	DefaultBatchSize      = 10
	DefaultPacingInterval = 2 * time.Second
)

// Lead history actions written for send activity
const (
	ActionEmailSent    = "E-Mail gesendet"
	ActionEmailOpened  = "E-Mail geöffnet"
	ActionLinkClicked  = "Link geklickt"
	ActionEmailBounced = "E-Mail unzustellbar"
)

// Config tunes the campaign engine
type Config struct {
	TrackingBaseURL string
	// PacingInterval is the minimum delay between two dispatch attempts
	PacingInterval time.Duration
	BatchSize      int
	// Credentials seals account secrets at rest. Nil falls back to
	// secrets.DevelopmentKey.
	Credentials *secrets.Sealer
}

// Service is the campaign engine
type Service struct {
	db        *gorm.DB
	leads     *leads.Service
	transport email.Transport
	queue     effects.Queue
	config    Config
	logger    logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates a campaign engine
func NewService(db *gorm.DB, leadStore *leads.Service, transport email.Transport, queue effects.Queue, cfg Config, log logger.Logger, m *metrics.Metrics) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PacingInterval < 0 {
		cfg.PacingInterval = 0
	}
	if cfg.Credentials == nil {
		cfg.Credentials, _ = secrets.NewSealer(secrets.DevelopmentKey)
	}
	return &Service{
		db:        db,
		leads:     leadStore,
		transport: transport,
		queue:     queue,
		config:    cfg,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func translate(err error, resource, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(resource)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
