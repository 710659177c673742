// Package phone normalizes lead phone numbers at the API boundary.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers without a country prefix
const DefaultRegion = "DE"

// Type is the kind of line a number belongs to
type Type string

const (
	TypeFixedLine         Type = "FIXED_LINE"
	TypeMobile            Type = "MOBILE"
	TypeFixedLineOrMobile Type = "FIXED_LINE_OR_MOBILE"
	TypeTollFree          Type = "TOLL_FREE"
	TypeVoip              Type = "VOIP"
	TypeUnknown           Type = "UNKNOWN"
)

// Result describes a parsed number
type Result struct {
	Valid         bool   `json:"valid"`
	E164          string `json:"e164"`
	International string `json:"international"`
	National      string `json:"national"`
	Region        string `json:"region"`
	Type          Type   `json:"type"`
}

// Normalizer parses numbers relative to a default region
type Normalizer struct {
	region string
}

// NewNormalizer creates a Normalizer. An empty region means DefaultRegion.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Region returns the default region
func (n *Normalizer) Region() string {
	return n.region
}

// Parse validates a number and returns its formats
func (n *Normalizer) Parse(raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("phone number cannot be empty")
	}

	parsed, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	return &Result{
		Valid:         phonenumbers.IsValidNumber(parsed),
		E164:          phonenumbers.Format(parsed, phonenumbers.E164),
		International: phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL),
		National:      phonenumbers.Format(parsed, phonenumbers.NATIONAL),
		Region:        phonenumbers.GetRegionCodeForNumber(parsed),
		Type:          typeOf(phonenumbers.GetNumberType(parsed)),
	}, nil
}

// Normalize returns the E.164 form of a valid number. Anything that does
// not parse to a valid number is returned trimmed but otherwise unchanged,
// so free-text entries like "nur vormittags" survive an import.
func (n *Normalizer) Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	res, err := n.Parse(trimmed)
	if err != nil || !res.Valid {
		return trimmed
	}
	return res.E164
}

func typeOf(t phonenumbers.PhoneNumberType) Type {
	switch t {
	case phonenumbers.FIXED_LINE:
		return TypeFixedLine
	case phonenumbers.MOBILE:
		return TypeMobile
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return TypeFixedLineOrMobile
	case phonenumbers.TOLL_FREE:
		return TypeTollFree
	case phonenumbers.VOIP:
		return TypeVoip
	default:
		return TypeUnknown
	}
}
