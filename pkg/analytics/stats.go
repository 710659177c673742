// Package analytics maintains the aggregated lead statistics.
//
// The snapshot is stored as named counter rows (total, score_sum,
// segment:HOT, industry:Gastronomie, ...). Every lead mutation applies its
// delta with atomic upserts inside the mutation's own transaction, so read
// never scans leads and rebuild can always recompute the same counters
// from scratch.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// HistogramBuckets is the number of score buckets of width 20
const HistogramBuckets = 5

// DefaultPageSize bounds the leads loaded per rebuild page
const DefaultPageSize = 500

const (
	keyTotal        = "total"
	keyScoreSum     = "score_sum"
	keyWithContact  = "with_contact"
	prefixSegment   = "segment:"
	prefixStatus    = "status:"
	prefixHistogram = "hist:"
	prefixIndustry  = "industry:"
)

// Snapshot is the aggregated view of all leads
type Snapshot struct {
	Total       int64                       `json:"total"`
	ScoreSum    int64                       `json:"scoreSum"`
	AvgScore    int64                       `json:"avgScore"`
	WithContact int64                       `json:"mitKontakt"`
	Segments    map[models.Segment]int64    `json:"segments"`
	Statuses    map[models.LeadStatus]int64 `json:"statuses"`
	Histogram   [HistogramBuckets]int64     `json:"scoreDistribution"`
	Industries  map[string]int64            `json:"branchen"`
}

// HistogramBucket returns the bucket of a score; 100 lands in the top bucket
func HistogramBucket(score int) int {
	b := score / 20
	if b < 0 {
		return 0
	}
	if b > HistogramBuckets-1 {
		return HistogramBuckets - 1
	}
	return b
}

// Aggregator owns the stats counters
type Aggregator struct {
	db       *gorm.DB
	pageSize int
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewAggregator creates an aggregator. pageSize <= 0 selects DefaultPageSize.
func NewAggregator(db *gorm.DB, pageSize int, log logger.Logger, m *metrics.Metrics) *Aggregator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{db: db, pageSize: pageSize, logger: log, metrics: m}
}

// ApplyDelta adds (sign=+1) or removes (sign=-1) one lead's contribution.
// tx must be the transaction of the lead mutation that caused it.
func (a *Aggregator) ApplyDelta(tx *gorm.DB, l *models.Lead, sign int) error {
	if sign != 1 && sign != -1 {
		return fmt.Errorf("invalid delta sign %d", sign)
	}

	deltas := make(map[string]int64, 8)
	addLead(deltas, l, int64(sign))

	for key, delta := range deltas {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"value": gorm.Expr("stats_counters.value + excluded.value"),
			}),
		}).Create(&models.StatsCounter{Key: key, Value: delta}).Error
		if err != nil {
			return fmt.Errorf("failed to apply stats delta for %s: %w", key, err)
		}
	}

	// An industry entry disappears once its last lead is gone
	if industry := strings.TrimSpace(l.Industry); industry != "" && sign < 0 {
		err := tx.Where("name = ? AND value <= 0", prefixIndustry+industry).
			Delete(&models.StatsCounter{}).Error
		if err != nil {
			return fmt.Errorf("failed to prune industry counter: %w", err)
		}
	}
	return nil
}

// Reset removes every counter. Used by purge inside its transaction.
func (a *Aggregator) Reset(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&models.StatsCounter{}).Error; err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

// Read returns the current snapshot without touching the leads table
func (a *Aggregator) Read(ctx context.Context) (*Snapshot, error) {
	var rows []models.StatsCounter
	if err := a.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	counters := make(map[string]int64, len(rows))
	for _, r := range rows {
		counters[r.Key] = r.Value
	}
	return snapshotFromCounters(counters), nil
}

// Rebuild recomputes every counter from a paged scan of all leads and
// replaces the stored counters in the same transaction.
func (a *Aggregator) Rebuild(ctx context.Context) (*Snapshot, error) {
	counters := make(map[string]int64)

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lastID uint
		for {
			var page []models.Lead
			if err := tx.Where("id > ?", lastID).Order("id ASC").Limit(a.pageSize).Find(&page).Error; err != nil {
				return fmt.Errorf("failed to scan leads: %w", err)
			}
			for i := range page {
				addLead(counters, &page[i], 1)
			}
			if len(page) < a.pageSize {
				break
			}
			lastID = page[len(page)-1].ID
		}

		if err := a.Reset(tx); err != nil {
			return err
		}

		rows := make([]models.StatsCounter, 0, len(counters))
		for key, value := range counters {
			if value != 0 {
				rows = append(rows, models.StatsCounter{Key: key, Value: value})
			}
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("failed to store rebuilt stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.RecordStatsRebuild()
	snap := snapshotFromCounters(counters)
	a.logger.Info("stats rebuilt", "total", snap.Total, "industries", len(snap.Industries))
	return snap, nil
}

// Compute derives a snapshot directly from a set of leads
func Compute(leads []models.Lead) *Snapshot {
	counters := make(map[string]int64)
	for i := range leads {
		addLead(counters, &leads[i], 1)
	}
	return snapshotFromCounters(counters)
}

func addLead(counters map[string]int64, l *models.Lead, sign int64) {
	counters[keyTotal] += sign
	counters[keyScoreSum] += sign * int64(l.Score)
	if l.HasContact() {
		counters[keyWithContact] += sign
	}
	if l.Segment != "" {
		counters[prefixSegment+string(l.Segment)] += sign
	}
	if l.Status != "" {
		counters[prefixStatus+string(l.Status)] += sign
	}
	counters[prefixHistogram+strconv.Itoa(HistogramBucket(l.Score))] += sign
	if industry := strings.TrimSpace(l.Industry); industry != "" {
		counters[prefixIndustry+industry] += sign
	}
}

func snapshotFromCounters(counters map[string]int64) *Snapshot {
	snap := &Snapshot{
		Segments:   make(map[models.Segment]int64, len(models.Segments)),
		Statuses:   make(map[models.LeadStatus]int64, len(models.LeadStatuses)),
		Industries: make(map[string]int64),
	}
	for _, s := range models.Segments {
		snap.Segments[s] = 0
	}
	for _, s := range models.LeadStatuses {
		snap.Statuses[s] = 0
	}

	for key, value := range counters {
		switch {
		case key == keyTotal:
			snap.Total = value
		case key == keyScoreSum:
			snap.ScoreSum = value
		case key == keyWithContact:
			snap.WithContact = value
		case strings.HasPrefix(key, prefixSegment):
			snap.Segments[models.Segment(strings.TrimPrefix(key, prefixSegment))] += value
		case strings.HasPrefix(key, prefixStatus):
			snap.Statuses[models.LeadStatus(strings.TrimPrefix(key, prefixStatus))] += value
		case strings.HasPrefix(key, prefixHistogram):
			b, err := strconv.Atoi(strings.TrimPrefix(key, prefixHistogram))
			if err == nil && b >= 0 && b < HistogramBuckets {
				snap.Histogram[b] += value
			}
		case strings.HasPrefix(key, prefixIndustry):
			if value > 0 {
				snap.Industries[SanitizeKey(strings.TrimPrefix(key, prefixIndustry))] += value
			}
		}
	}

	if snap.Total > 0 {
		snap.AvgScore = int64(math.Round(float64(snap.ScoreSum) / float64(snap.Total)))
	}
	return snap
}
