package leads

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// Page sizes for List
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// Filter selects leads. Zero-valued fields are not applied.
type Filter struct {
	Segment          models.Segment
	Industry         string
	Status           models.LeadStatus
	PostalCodePrefix string
	ScoreMin         *int
	ScoreMax         *int
	Search           string // company, city or email contains
	HasEmail         bool
}

// Query is a filtered, sorted, paginated list request
type Query struct {
	Filter
	SortBy string // JSON field name, e.g. "score" or "firma"
	Desc   bool
	Page   int
	Limit  int
}

// Page is one page of a list result
type Page struct {
	Leads   []models.Lead `json:"leads"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasNext bool          `json:"hasNext"`
}

// sortColumns maps sortable JSON field names to columns
var sortColumns = map[string]string{
	"score":            "score",
	"firma":            "company",
	"branche":          "industry",
	"groesse":          "size",
	"plz":              "postal_code",
	"ort":              "city",
	"email":            "email",
	"status":           "status",
	"segment":          "segment",
	"websiteQualitaet": "website_quality",
	"erstelltAm":       "created_at",
	"bearbeitetAm":     "updated_at",
}

// IsSortable reports whether field can be used as SortBy
func IsSortable(field string) bool {
	_, ok := sortColumns[field]
	return ok
}

// FromRequest converts boundary list parameters into a Query. Without an
// explicit sort the list is ordered by score, highest first.
func FromRequest(req models.LeadListRequest) Query {
	q := Query{
		Filter: Filter{
			Segment:          models.Segment(req.Segment),
			Industry:         req.Industry,
			Status:           models.LeadStatus(req.Status),
			PostalCodePrefix: req.PostalCode,
			ScoreMin:         req.ScoreMin,
			ScoreMax:         req.ScoreMax,
			Search:           req.Search,
		},
		SortBy: req.SortBy,
		Desc:   req.Order != "asc",
		Page:   req.Page,
		Limit:  req.Limit,
	}
	if q.SortBy == "" {
		q.SortBy = "score"
	}
	return q
}

func (q *Query) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if !IsSortable(q.SortBy) {
		q.SortBy = "score"
		q.Desc = true
	}
}

// cacheKey generates a cache key from list parameters
func (q Query) cacheKey() string {
	scoreMin, scoreMax := "", ""
	if q.ScoreMin != nil {
		scoreMin = fmt.Sprintf("%d", *q.ScoreMin)
	}
	if q.ScoreMax != nil {
		scoreMax = fmt.Sprintf("%d", *q.ScoreMax)
	}
	return fmt.Sprintf("leads:list:%s:%s:%s:%s:%s:%s:%s:%t:%s:%t:%d:%d",
		q.Segment, q.Industry, q.Status, q.PostalCodePrefix, scoreMin, scoreMax,
		foldTerm(q.Search), q.HasEmail,
		q.SortBy, q.Desc, q.Page, q.Limit)
}

// apply adds the filter's WHERE clauses to db
func (f Filter) apply(db *gorm.DB) *gorm.DB {
	if f.Segment != "" {
		db = db.Where("segment = ?", f.Segment)
	}
	if f.Industry != "" {
		db = db.Where("industry = ?", f.Industry)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.PostalCodePrefix != "" {
		db = db.Where("postal_code LIKE ? ESCAPE '\\'", escapeLike(f.PostalCodePrefix)+"%")
	}
	if f.ScoreMin != nil {
		db = db.Where("score >= ?", *f.ScoreMin)
	}
	if f.ScoreMax != nil {
		db = db.Where("score <= ?", *f.ScoreMax)
	}
	if term := foldTerm(f.Search); term != "" {
		db = db.Where("search_text LIKE ? ESCAPE '\\'", "%"+escapeLike(term)+"%")
	}
	if f.HasEmail {
		db = db.Where("TRIM(email) <> ''")
	}
	return db
}

// Matches evaluates the filter in memory with the same semantics as apply
func (f Filter) Matches(l *models.Lead) bool {
	if f.Segment != "" && l.Segment != f.Segment {
		return false
	}
	if f.Industry != "" && l.Industry != f.Industry {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.PostalCodePrefix != "" && !strings.HasPrefix(l.PostalCode, f.PostalCodePrefix) {
		return false
	}
	if f.ScoreMin != nil && l.Score < *f.ScoreMin {
		return false
	}
	if f.ScoreMax != nil && l.Score > *f.ScoreMax {
		return false
	}
	if term := foldTerm(f.Search); term != "" && !strings.Contains(SearchText(l), term) {
		return false
	}
	if f.HasEmail && strings.TrimSpace(l.Email) == "" {
		return false
	}
	return true
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
