package leads

import (
	"strings"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// normalize lowercases, trims and collapses inner whitespace
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CompositeKey identifies a lead by company, postal code and website
func CompositeKey(l *models.Lead) string {
	return normalize(l.Company) + "|" + normalize(l.PostalCode) + "|" + normalize(l.Website)
}

// EmailKey identifies a lead by email address. Empty when there is none.
func EmailKey(l *models.Lead) string {
	return normalize(l.Email)
}

// dedupIndex holds the identity keys already present in the collection
type dedupIndex struct {
	composite map[string]struct{}
	email     map[string]struct{}
}

func newDedupIndex() *dedupIndex {
	return &dedupIndex{
		composite: make(map[string]struct{}),
		email:     make(map[string]struct{}),
	}
}

// contains reports whether l matches any known key
func (d *dedupIndex) contains(l *models.Lead) bool {
	if _, ok := d.composite[CompositeKey(l)]; ok {
		return true
	}
	if key := EmailKey(l); key != "" {
		if _, ok := d.email[key]; ok {
			return true
		}
	}
	return false
}

func (d *dedupIndex) add(l *models.Lead) {
	d.composite[CompositeKey(l)] = struct{}{}
	if key := EmailKey(l); key != "" {
		d.email[key] = struct{}{}
	}
}
