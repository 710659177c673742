// Package leadscoring derives a lead's score and segment. Every function is
// pure so create, update and stats rebuild classify leads identically.
package leadscoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jordanlanch/leadflow/pkg/models"
)

// Scoring weights for the additive model. They sum to MaxTotalScore.
const (
	// Web presence (40 points max)
	ScoreHasWebsite       = 10
	ScorePerQualityTier   = 4 // websiteQualitaet 0-5
	ScoreHasSocialMedia   = 10
	MaxWebsiteQualityTier = 5

	// Reachability (35 points max)
	ScoreHasContactPerson = 10
	ScoreHasEmail         = 15
	ScoreHasPhone         = 10

	// Firmographics (10 points max)
	ScoreIndustryKnown = 5
	ScoreSizeKnown     = 5

	// Reputation and research (15 points max)
	ScoreHasReview  = 5
	ScoreGoodReview = 5 // rating >= GoodReviewRating
	ScoreHasNotes   = 5

	GoodReviewRating = 4.0

	// Maximum possible score
	MaxTotalScore = 100
)

// Segment thresholds
const (
	HotThreshold  = 70
	WarmThreshold = 40
	ColdThreshold = 15
)

var ratingRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ComputeScore returns the lead's score in [0,100]. A positive AI score is
// authoritative; otherwise the additive model applies.
func ComputeScore(l *models.Lead) int {
	if l.AIScore != nil && *l.AIScore > 0 {
		return clamp(*l.AIScore)
	}

	total := 0
	for _, item := range Breakdown(l) {
		total += item.Points
	}
	return clamp(total)
}

// ComputeSegment maps a score to its segment
func ComputeSegment(score int) models.Segment {
	switch {
	case score >= HotThreshold:
		return models.SegmentHot
	case score >= WarmThreshold:
		return models.SegmentWarm
	case score >= ColdThreshold:
		return models.SegmentCold
	default:
		return models.SegmentDisqualified
	}
}

// Apply stores the derived score on l and resegments it unless the segment
// was set manually.
func Apply(l *models.Lead) {
	l.Score = ComputeScore(l)
	if !l.SegmentManual || !models.IsValidSegment(l.Segment) {
		l.Segment = ComputeSegment(l.Score)
	}
}

// BreakdownItem explains one signal of the additive model
type BreakdownItem struct {
	Label     string `json:"label"`
	Points    int    `json:"punkte"`
	MaxPoints int    `json:"maxPunkte"`
	Met       bool   `json:"erfuellt"`
}

// Breakdown lists every signal of the additive model with the points l earns
func Breakdown(l *models.Lead) []BreakdownItem {
	tier := l.WebsiteQuality
	if tier < 0 {
		tier = 0
	}
	if tier > MaxWebsiteQualityTier {
		tier = MaxWebsiteQualityTier
	}
	rating, hasRating := ParseRating(l.ReviewRating)

	return []BreakdownItem{
		item("Website vorhanden", ScoreHasWebsite, present(l.Website)),
		{
			Label:     "Website-Qualität",
			Points:    tier * ScorePerQualityTier,
			MaxPoints: MaxWebsiteQualityTier * ScorePerQualityTier,
			Met:       tier > 0,
		},
		item("Social Media vorhanden", ScoreHasSocialMedia, l.HasSocialMedia),
		item("Ansprechpartner bekannt", ScoreHasContactPerson, present(l.ContactPerson)),
		item("Email vorhanden", ScoreHasEmail, present(l.Email)),
		item("Telefon vorhanden", ScoreHasPhone, present(l.Phone)),
		item("Branche bekannt", ScoreIndustryKnown, present(l.Industry)),
		item("Größe bekannt", ScoreSizeKnown, present(l.Size)),
		item("Bewertung vorhanden", ScoreHasReview, present(l.ReviewRating)),
		item("Gute Bewertung", ScoreGoodReview, hasRating && rating >= GoodReviewRating),
		item("Notizen oder Zusammenfassung", ScoreHasNotes, present(l.Notes) || present(l.Summary)),
	}
}

// ParseRating extracts the numeric rating from review text such as
// "4,6 (212 Bewertungen)".
func ParseRating(text string) (float64, bool) {
	m := ratingRegex.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func item(label string, points int, met bool) BreakdownItem {
	earned := 0
	if met {
		earned = points
	}
	return BreakdownItem{Label: label, Points: earned, MaxPoints: points, Met: met}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxTotalScore {
		return MaxTotalScore
	}
	return score
}
