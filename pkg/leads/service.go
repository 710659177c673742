package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/leadscoring"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// History actions written by the store
const (
	ActionCreated       = "Erstellt"
	ActionStatusChanged = "Status geändert"
	DetailCreated       = "Lead angelegt"
)

const listCachePattern = "leads:list:*"

// dedupScanPageSize bounds the rows loaded while indexing existing keys
const dedupScanPageSize = 1000

// Cache is the subset of the redis cache the store uses for list results
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Service owns lead records. Every mutation runs in one transaction
// together with its stats delta.
type Service struct {
	db       *gorm.DB
	stats    *analytics.Aggregator
	cache    Cache
	cacheTTL time.Duration
	logger   logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithCache enables list result caching
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics records mutation counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for history entries
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new lead service
func NewService(db *gorm.DB, stats *analytics.Aggregator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		stats:  stats,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a validated lead, deriving its score and segment
func (s *Service) Create(ctx context.Context, req *models.LeadRequest) (*models.Lead, error) {
	lead := s.prepareNew(req)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insert(tx, lead)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeadMutation("create", 1)
	s.invalidate(ctx)
	return lead, nil
}

// BulkCreate inserts every record that matches neither an existing lead
// nor an earlier record of the same batch by composite or email key.
func (s *Service) BulkCreate(ctx context.Context, reqs []models.LeadRequest) (*models.BulkLeadResponse, error) {
	result := &models.BulkLeadResponse{Inserted: make([]uint, 0, len(reqs))}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		index, err := s.loadDedupIndex(tx)
		if err != nil {
			return err
		}

		for i := range reqs {
			lead := s.prepareNew(&reqs[i])
			if index.contains(lead) {
				result.Skipped++
				continue
			}
			if err := s.insert(tx, lead); err != nil {
				return err
			}
			index.add(lead)
			result.Inserted = append(result.Inserted, lead.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLeadMutation("bulk_insert", len(result.Inserted))
	s.metrics.RecordLeadMutation("bulk_skip", result.Skipped)
	s.logger.Info("bulk import finished", "inserted", len(result.Inserted), "skipped", result.Skipped)
	if len(result.Inserted) > 0 {
		s.invalidate(ctx)
	}
	return result, nil
}

// Get returns a lead by id
func (s *Service) Get(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, translate(err, "failed to get lead")
	}
	return &lead, nil
}

// Update replaces every editable field of a lead. History, AI analysis
// and timestamps are kept.
func (s *Service) Update(ctx context.Context, id uint, req *models.LeadRequest) (*models.Lead, error) {
	lead, err := s.mutate(ctx, id, func(l *models.Lead) error {
		replaceEditable(l, req.ToLead())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLeadMutation("update", 1)
	return lead, nil
}

// Patch changes only the supplied allow-listed fields
func (s *Service) Patch(ctx context.Context, id uint, patch models.LeadPatch) (*models.Lead, error) {
	lead, err := s.mutate(ctx, id, func(l *models.Lead) error {
		applyPatch(l, patch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLeadMutation("patch", 1)
	return lead, nil
}

// AddHistory appends a manual entry to a lead's history
func (s *Service) AddHistory(ctx context.Context, id uint, action, details string) (*models.Lead, error) {
	return s.mutate(ctx, id, func(l *models.Lead) error {
		s.appendHistory(l, action, details)
		return nil
	})
}

// RecordActivity appends a history entry and, when the lead currently has
// status from (or from is empty), moves it to status to. An empty to only
// records the entry.
func (s *Service) RecordActivity(ctx context.Context, id uint, action, details string, from, to models.LeadStatus) error {
	_, err := s.mutate(ctx, id, func(l *models.Lead) error {
		s.appendHistory(l, action, details)
		if to != "" && (from == "" || l.Status == from) {
			l.Status = to
		}
		return nil
	})
	return err
}

// Remove deletes a lead and withdraws it from the stats
func (s *Service) Remove(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.Lead
		if err := tx.First(&old, id).Error; err != nil {
			return translate(err, "failed to load lead")
		}
		if err := tx.Delete(&models.Lead{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete lead: %w", err)
		}
		return s.stats.ApplyDelta(tx, &old, -1)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordLeadMutation("delete", 1)
	s.invalidate(ctx)
	return nil
}

// Purge deletes every lead and resets the stats
func (s *Service) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("1 = 1").Delete(&models.Lead{})
		if res.Error != nil {
			return fmt.Errorf("failed to purge leads: %w", res.Error)
		}
		deleted = res.RowsAffected
		return s.stats.Reset(tx)
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecordLeadMutation("delete", int(deleted))
	s.logger.Warn("all leads purged", "count", deleted)
	s.invalidate(ctx)
	return deleted, nil
}

// List returns one page of leads. Rows with equal sort values keep
// insertion order.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	q.normalize()

	key := q.cacheKey()
	if s.cache != nil {
		var cached Page
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheHit()
			return &cached, nil
		}
		s.metrics.RecordCacheMiss()
	}

	base := q.Filter.apply(s.db.WithContext(ctx).Model(&models.Lead{}))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}

	page := &Page{Page: q.Page, Limit: q.Limit, Leads: []models.Lead{}}
	err := base.Session(&gorm.Session{}).
		Order(sortColumns[q.SortBy] + " " + direction).
		Order("id ASC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&page.Leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	page.Total = total
	page.HasNext = int64(q.Page*q.Limit) < total

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, page, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache lead list", "error", err)
		}
	}
	return page, nil
}

// Count returns the number of leads matching f
func (s *Service) Count(ctx context.Context, f Filter) (int64, error) {
	var total int64
	if err := f.apply(s.db.WithContext(ctx).Model(&models.Lead{})).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return total, nil
}

// Each visits every lead matching f in insertion order, loading pageSize
// rows at a time.
func (s *Service) Each(ctx context.Context, f Filter, pageSize int, fn func(*models.Lead) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var lastID uint
	for {
		var page []models.Lead
		err := f.apply(s.db.WithContext(ctx)).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(pageSize).
			Find(&page).Error
		if err != nil {
			return fmt.Errorf("failed to scan leads: %w", err)
		}

		for i := range page {
			if err := fn(&page[i]); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
		lastID = page[len(page)-1].ID
	}
}

// mutate loads a lead, applies fn, rederives score and segment and stores
// the result with the matching stats delta in one transaction.
func (s *Service) mutate(ctx context.Context, id uint, fn func(*models.Lead) error) (*models.Lead, error) {
	var updated models.Lead

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.Lead
		if err := tx.First(&old, id).Error; err != nil {
			return translate(err, "failed to load lead")
		}

		updated = old
		updated.History = append([]models.HistoryEntry(nil), old.History...)
		updated.Tags = append([]string{}, old.Tags...)

		if err := fn(&updated); err != nil {
			return err
		}
		leadscoring.Apply(&updated)
		updated.SearchText = SearchText(&updated)
		if updated.Status != old.Status {
			s.appendHistory(&updated, ActionStatusChanged, fmt.Sprintf("%s → %s", old.Status, updated.Status))
		}

		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("failed to save lead: %w", err)
		}
		if err := s.stats.ApplyDelta(tx, &old, -1); err != nil {
			return err
		}
		return s.stats.ApplyDelta(tx, &updated, 1)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &updated, nil
}

func (s *Service) prepareNew(req *models.LeadRequest) *models.Lead {
	lead := req.ToLead()
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	leadscoring.Apply(lead)
	lead.SearchText = SearchText(lead)
	lead.History = nil
	s.appendHistory(lead, ActionCreated, DetailCreated)
	return lead
}

func (s *Service) insert(tx *gorm.DB, lead *models.Lead) error {
	if err := tx.Create(lead).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return s.stats.ApplyDelta(tx, lead, 1)
}

func (s *Service) loadDedupIndex(tx *gorm.DB) (*dedupIndex, error) {
	index := newDedupIndex()

	var lastID uint
	for {
		var page []models.Lead
		err := tx.Select("id", "company", "postal_code", "website", "email").
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(dedupScanPageSize).
			Find(&page).Error
		if err != nil {
			return nil, fmt.Errorf("failed to index existing leads: %w", err)
		}
		for i := range page {
			index.add(&page[i])
		}
		if len(page) < dedupScanPageSize {
			return index, nil
		}
		lastID = page[len(page)-1].ID
	}
}

func (s *Service) appendHistory(l *models.Lead, action, details string) {
	l.History = append(l.History, models.HistoryEntry{
		Timestamp: s.now().UTC(),
		Action:    action,
		Details:   details,
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, listCachePattern); err != nil {
		s.logger.Warn("failed to invalidate lead list cache", "error", err)
	}
}

// replaceEditable copies the caller-editable fields of src onto dst
func replaceEditable(dst, src *models.Lead) {
	dst.Company = src.Company
	dst.Website = src.Website
	dst.Industry = src.Industry
	dst.Size = src.Size
	dst.PostalCode = src.PostalCode
	dst.City = src.City
	dst.ContactPerson = src.ContactPerson
	dst.Position = src.Position
	dst.Email = src.Email
	dst.Phone = src.Phone
	dst.WebsiteQuality = src.WebsiteQuality
	dst.HasSocialMedia = src.HasSocialMedia
	dst.SocialMediaLinks = src.SocialMediaLinks
	dst.ReviewRating = src.ReviewRating
	dst.WebsiteText = src.WebsiteText
	dst.Summary = src.Summary
	dst.AIScore = src.AIScore
	dst.Segment = src.Segment
	dst.SegmentManual = src.SegmentManual
	dst.Tags = src.Tags
	if dst.Tags == nil {
		dst.Tags = []string{}
	}
	dst.Status = src.Status
	dst.Notes = src.Notes
}

// applyPatch applies the allow-listed fields of p. Setting a segment
// freezes it against automatic reclassification.
func applyPatch(l *models.Lead, p models.LeadPatch) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&l.Summary, p.Summary)
	setString(&l.AITargetGroup, p.AITargetGroup)
	setString(&l.AIOnlinePresence, p.AIOnlinePresence)
	setString(&l.AIWeaknesses, p.AIWeaknesses)
	setString(&l.AIOpportunities, p.AIOpportunities)
	setString(&l.AICompetition, p.AICompetition)
	setString(&l.AIPitch, p.AIPitch)
	setString(&l.AIPitchSignature, p.AIPitchSignature)
	setString(&l.AIScoreReason, p.AIScoreReason)
	setString(&l.AISegment, p.AISegment)
	setString(&l.Notes, p.Notes)

	if p.AIAnalyzed != nil {
		l.AIAnalyzed = *p.AIAnalyzed
	}
	if p.AIAnalyzedAt != nil {
		at := *p.AIAnalyzedAt
		l.AIAnalyzedAt = &at
	}
	if p.AIScore != nil {
		score := *p.AIScore
		l.AIScore = &score
	}
	if p.Tags != nil {
		l.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.SegmentManual != nil {
		l.SegmentManual = *p.SegmentManual
	}
	if p.Segment != nil {
		l.Segment = *p.Segment
		l.SegmentManual = true
	}
}

func translate(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError("lead")
	}
	return fmt.Errorf("%s: %w", msg, err)
}
