package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// Filter is the stored lead selection of a campaign. Absent dimensions
// are not applied.
type Filter struct {
	Industry   string            `json:"branche,omitempty"`
	PostalCode string            `json:"plz,omitempty"` // equality or prefix
	Segment    models.Segment    `json:"segment,omitempty"`
	Status     models.LeadStatus `json:"status,omitempty"`
	ScoreMin   *int              `json:"scoreMin,omitempty"`
	ScoreMax   *int              `json:"scoreMax,omitempty"`
}

// ParseFilter decodes and validates a stored filter. Empty input selects
// every lead with an email address.
func ParseFilter(raw string) (Filter, error) {
	var f Filter
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Filter{}, domain.NewValidationError(fmt.Sprintf("invalid campaign filter: %v", err))
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate checks enum values and the score range
func (f Filter) Validate() error {
	if f.Segment != "" && !models.IsValidSegment(f.Segment) {
		return domain.NewValidationError(fmt.Sprintf("invalid segment %q", f.Segment))
	}
	if f.Status != "" && !models.IsValidLeadStatus(f.Status) {
		return domain.NewValidationError(fmt.Sprintf("invalid status %q", f.Status))
	}
	for _, v := range []*int{f.ScoreMin, f.ScoreMax} {
		if v != nil && (*v < 0 || *v > 100) {
			return domain.NewValidationError("score bounds must be within 0-100")
		}
	}
	if f.ScoreMin != nil && f.ScoreMax != nil && *f.ScoreMin > *f.ScoreMax {
		return domain.NewValidationError("scoreMin must not exceed scoreMax")
	}
	return nil
}

// LeadFilter converts f into a lead store filter that also requires a
// non-empty email
func (f Filter) LeadFilter() leads.Filter {
	return leads.Filter{
		Industry:         f.Industry,
		PostalCodePrefix: strings.TrimSpace(f.PostalCode),
		Segment:          f.Segment,
		Status:           f.Status,
		ScoreMin:         f.ScoreMin,
		ScoreMax:         f.ScoreMax,
		HasEmail:         true,
	}
}
