package testdata

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// Industries used for generated leads. A few carry umlauts and accents so
// generated data exercises key sanitizing.
var Industries = []string{
	"Gastronomie", "Handwerk", "Einzelhandel", "Dienstleistung", "IT/Tech",
	"Gesundheit", "Immobilien", "Bildung", "Tourismus", "Automotive",
	"Bäckerei", "Café & Bistro", "Logistik", "Sonstiges",
}

// Sizes used for generated leads
var Sizes = []string{"1-9", "10-49", "50-249", "250+"}

// Cities with their postal code prefix
var Cities = map[string]string{
	"Berlin":     "10",
	"München":    "80",
	"Hamburg":    "20",
	"Köln":       "50",
	"Frankfurt":  "60",
	"Stuttgart":  "70",
	"Düsseldorf": "40",
	"Leipzig":    "04",
}

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Industry       string  // empty picks a random industry
	EmailChance    float64 // 0.0-1.0 (probability of having email)
	PhoneChance    float64
	WebsiteChance  float64
	ContactChance  float64
	AIScoreChance  float64
	ManualSegments float64 // probability of a manually frozen segment
}

// DefaultConfig returns a mixed-completeness configuration
func DefaultConfig() LeadGeneratorConfig {
	return LeadGeneratorConfig{
		EmailChance:    0.7,
		PhoneChance:    0.6,
		WebsiteChance:  0.6,
		ContactChance:  0.5,
		AIScoreChance:  0.2,
		ManualSegments: 0.1,
	}
}

// Generator produces deterministic fake leads for a given seed
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a generator. The same seed yields the same leads.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Faker exposes the underlying faker for ad-hoc random choices
func (g *Generator) Faker() *gofakeit.Faker {
	return g.faker
}

// Lead generates one unsaved lead request
func (g *Generator) Lead(config LeadGeneratorConfig) models.LeadRequest {
	f := g.faker

	industry := config.Industry
	if industry == "" {
		industry = f.RandomString(Industries)
	}

	city := f.RandomString(cityNames())
	company := f.Company()
	slug := slugify(company)

	req := models.LeadRequest{
		Company:        company,
		Industry:       industry,
		Size:           f.RandomString(Sizes),
		PostalCode:     fmt.Sprintf("%s%03d", Cities[city], f.IntRange(0, 999)),
		City:           city,
		WebsiteQuality: f.IntRange(0, 5),
		HasSocialMedia: f.Bool(),
		Status:         models.LeadStatuses[f.IntRange(0, len(models.LeadStatuses)-1)],
	}

	if g.chance(config.WebsiteChance) {
		req.Website = "https://www." + slug + ".de"
	}
	if g.chance(config.EmailChance) {
		req.Email = fmt.Sprintf("info%d@%s.de", f.IntRange(1, 99999), slug)
	}
	if g.chance(config.PhoneChance) {
		req.Phone = fmt.Sprintf("+49 %d %d", f.IntRange(30, 999), f.IntRange(100000, 9999999))
	}
	if g.chance(config.ContactChance) {
		req.ContactPerson = f.Name()
		req.Position = f.JobTitle()
	}
	if f.Bool() {
		req.ReviewRating = fmt.Sprintf("%.1f (%d Bewertungen)", f.Float64Range(1, 5), f.IntRange(1, 500))
	}
	if g.chance(0.3) {
		req.Notes = f.Sentence(8)
	}
	if g.chance(config.AIScoreChance) {
		score := f.IntRange(0, 100)
		req.AIScore = &score
	}
	if g.chance(config.ManualSegments) {
		req.SegmentManual = true
		req.Segment = models.Segments[f.IntRange(0, len(models.Segments)-1)]
	}
	if g.chance(0.4) {
		req.Tags = []string{f.BuzzWord(), f.BuzzWord()}
	}

	return req
}

// Leads generates n lead requests
func (g *Generator) Leads(config LeadGeneratorConfig, n int) []models.LeadRequest {
	out := make([]models.LeadRequest, n)
	for i := range out {
		out[i] = g.Lead(config)
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "firma"
	}
	return slug
}

func (g *Generator) chance(p float64) bool {
	return g.faker.Float64Range(0, 1) < p
}

func cityNames() []string {
	names := make([]string, 0, len(Cities))
	for name := range Cities {
		names = append(names, name)
	}
	// map order is random; keep generation deterministic per seed
	sort.Strings(names)
	return names
}
