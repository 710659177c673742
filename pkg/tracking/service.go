package tracking

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/effects"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// Pixel is a transparent 1x1 GIF
var Pixel, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// Event describes an inbound open, click, bounce or complaint
type Event struct {
	SendID    uint
	Type      models.EventType
	URL       string
	UserAgent string
	IP        string
	Metadata  map[string]string
}

// Service records tracking events
type Service struct {
	db      *gorm.DB
	queue   effects.Queue
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService creates a tracking service
func NewService(db *gorm.DB, queue effects.Queue, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, queue: queue, logger: log, metrics: m, now: time.Now}
}

// RecordEvent appends an immutable EmailEvent and, for the first event of
// its kind on the send, enqueues the matching status transition.
func (s *Service) RecordEvent(ctx context.Context, ev Event) (*models.EmailEvent, error) {
	target, ok := eventStatus[ev.Type]
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown event type %q", ev.Type))
	}

	var send models.EmailSend
	if err := s.db.WithContext(ctx).First(&send, ev.SendID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("send")
		}
		return nil, fmt.Errorf("failed to load send: %w", err)
	}

	now := s.now().UTC()
	event := &models.EmailEvent{
		ID:         uuid.NewString(),
		SendID:     send.ID,
		Type:       ev.Type,
		URL:        ev.URL,
		UserAgent:  ev.UserAgent,
		IP:         ev.IP,
		Metadata:   ev.Metadata,
		OccurredAt: now,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to record event: %w", err)
	}
	s.metrics.RecordTrackingEvent(string(ev.Type))

	if !firstOccurrence(&send, ev.Type) {
		s.logger.Debug("repeated tracking event", "send_id", send.ID, "type", ev.Type)
		return event, nil
	}
	if err := s.queue.Enqueue(ctx, effects.UpdateSendStatus(send.ID, target, now)); err != nil {
		return event, fmt.Errorf("failed to enqueue status update: %w", err)
	}
	return event, nil
}

// RecordOpen records a pixel fetch
func (s *Service) RecordOpen(ctx context.Context, sendID uint, userAgent, ip string) error {
	_, err := s.RecordEvent(ctx, Event{SendID: sendID, Type: models.EventOpen, UserAgent: userAgent, IP: ip})
	return err
}

// RecordClick records a tracked link visit
func (s *Service) RecordClick(ctx context.Context, sendID uint, target, userAgent, ip string) error {
	_, err := s.RecordEvent(ctx, Event{SendID: sendID, Type: models.EventClick, URL: target, UserAgent: userAgent, IP: ip})
	return err
}

// ListEvents returns the events of a send, newest first
func (s *Service) ListEvents(ctx context.Context, sendID uint, limit int) ([]models.EmailEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events := []models.EmailEvent{}
	err := s.db.WithContext(ctx).
		Where("send_id = ?", sendID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

var eventStatus = map[models.EventType]models.SendStatus{
	models.EventOpen:      models.SendOpened,
	models.EventClick:     models.SendClicked,
	models.EventBounce:    models.SendBounced,
	models.EventComplaint: models.SendComplained,
}

// firstOccurrence reports whether the send has not yet reached the state
// the event type leads to
func firstOccurrence(send *models.EmailSend, t models.EventType) bool {
	switch t {
	case models.EventOpen:
		return send.OpenedAt == nil
	case models.EventClick:
		return send.ClickedAt == nil
	case models.EventBounce:
		return send.BouncedAt == nil
	case models.EventComplaint:
		return send.Status != models.SendComplained
	}
	return false
}

// SafeRedirect returns target when it is an absolute http(s) URL and "/"
// otherwise
func SafeRedirect(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "/"
	}
	return u.String()
}
