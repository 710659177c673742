package leads

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// SearchText is the case-folded text free-text search matches against.
// Fields are joined by newlines so a term never spans two of them.
func SearchText(l *models.Lead) string {
	fold := cases.Fold()
	return strings.Join([]string{
		fold.String(l.Company),
		fold.String(l.City),
		fold.String(l.Email),
	}, "\n")
}

func foldTerm(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ReindexSearch fills the search column of leads stored before it existed
func (s *Service) ReindexSearch(ctx context.Context) (int, error) {
	updated := 0
	var lastID uint
	for {
		var page []models.Lead
		err := s.db.WithContext(ctx).
			Select("id", "company", "city", "email").
			Where("id > ? AND (search_text IS NULL OR search_text = '')", lastID).
			Order("id ASC").
			Limit(dedupScanPageSize).
			Find(&page).Error
		if err != nil {
			return updated, fmt.Errorf("failed to load leads for reindex: %w", err)
		}

		for i := range page {
			text := SearchText(&page[i])
			if strings.TrimSpace(text) == "" {
				continue
			}
			err := s.db.WithContext(ctx).Model(&models.Lead{}).
				Where("id = ?", page[i].ID).
				UpdateColumn("search_text", text).Error
			if err != nil {
				return updated, fmt.Errorf("failed to reindex lead %d: %w", page[i].ID, err)
			}
			updated++
		}

		if len(page) < dedupScanPageSize {
			break
		}
		lastID = page[len(page)-1].ID
	}

	if updated > 0 {
		s.logger.Info("search index rebuilt", "leads", updated)
		s.invalidate(ctx)
	}
	return updated, nil
}
