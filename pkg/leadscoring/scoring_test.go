package leadscoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/models"
)

func intPtr(v int) *int { return &v }

func completeLead() *models.Lead {
	return &models.Lead{
		Company:        "Bäckerei Huber",
		Website:        "https://baeckerei-huber.de",
		WebsiteQuality: 5,
		HasSocialMedia: true,
		ContactPerson:  "Anna Huber",
		Email:          "anna@baeckerei-huber.de",
		Phone:          "+49 89 123456",
		Industry:       "Gastronomie",
		Size:           "10-49",
		ReviewRating:   "4,6 (212 Bewertungen)",
		Notes:          "Kennt uns von der Messe",
	}
}

func TestComputeScore_CompleteLeadIsMax(t *testing.T) {
	assert.Equal(t, MaxTotalScore, ComputeScore(completeLead()))
}

func TestComputeScore_EmptyLeadIsZero(t *testing.T) {
	assert.Equal(t, 0, ComputeScore(&models.Lead{Company: "Unbekannt"}))
}

func TestComputeScore_AdditiveSignals(t *testing.T) {
	tests := []struct {
		name string
		lead models.Lead
		want int
	}{
		{"website only", models.Lead{Website: "x.de"}, ScoreHasWebsite},
		{"quality tier 3", models.Lead{WebsiteQuality: 3}, 3 * ScorePerQualityTier},
		{"quality tier above max is capped", models.Lead{WebsiteQuality: 9}, MaxWebsiteQualityTier * ScorePerQualityTier},
		{"email and phone", models.Lead{Email: "a@b.de", Phone: "0301234"}, ScoreHasEmail + ScoreHasPhone},
		{"whitespace does not count", models.Lead{Email: "   ", Notes: "\n"}, 0},
		{"mediocre review", models.Lead{ReviewRating: "3.2"}, ScoreHasReview},
		{"good review", models.Lead{ReviewRating: "4.0"}, ScoreHasReview + ScoreGoodReview},
		{"summary counts as notes", models.Lead{Summary: "Familienbetrieb"}, ScoreHasNotes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeScore(&tt.lead))
		})
	}
}

func TestComputeScore_AIScoreIsAuthoritative(t *testing.T) {
	l := completeLead()
	l.AIScore = intPtr(35)
	assert.Equal(t, 35, ComputeScore(l))

	l.AIScore = intPtr(0)
	assert.Equal(t, MaxTotalScore, ComputeScore(l), "zero AI score falls back to the additive model")

	l.AIScore = intPtr(140)
	assert.Equal(t, MaxTotalScore, ComputeScore(l))
}

func TestComputeSegment_Thresholds(t *testing.T) {
	tests := []struct {
		score int
		want  models.Segment
	}{
		{100, models.SegmentHot},
		{70, models.SegmentHot},
		{69, models.SegmentWarm},
		{40, models.SegmentWarm},
		{39, models.SegmentCold},
		{15, models.SegmentCold},
		{14, models.SegmentDisqualified},
		{0, models.SegmentDisqualified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeSegment(tt.score), "score %d", tt.score)
	}
}

func TestApply_IsStable(t *testing.T) {
	l := completeLead()
	l.Phone = ""

	Apply(l)
	first := l.Segment
	firstScore := l.Score
	Apply(l)

	assert.Equal(t, first, l.Segment)
	assert.Equal(t, firstScore, l.Score)
	assert.Equal(t, ComputeSegment(ComputeScore(l)), ComputeSegment(ComputeScore(l)))
}

func TestApply_ManualSegmentIsFrozen(t *testing.T) {
	l := completeLead()
	l.Segment = models.SegmentCold
	l.SegmentManual = true

	Apply(l)
	assert.Equal(t, MaxTotalScore, l.Score)
	assert.Equal(t, models.SegmentCold, l.Segment)

	l.Email, l.Phone, l.Website = "", "", ""
	Apply(l)
	assert.Equal(t, models.SegmentCold, l.Segment)
}

func TestApply_ManualFlagWithoutSegmentFallsBack(t *testing.T) {
	l := &models.Lead{SegmentManual: true}
	Apply(l)
	assert.Equal(t, models.SegmentDisqualified, l.Segment)
}

func TestBreakdown_SumsToScore(t *testing.T) {
	l := completeLead()
	l.ReviewRating = ""
	l.Size = ""

	items := Breakdown(l)
	require.Len(t, items, 11)

	sum, max := 0, 0
	for _, it := range items {
		sum += it.Points
		max += it.MaxPoints
	}
	assert.Equal(t, ComputeScore(l), sum)
	assert.Equal(t, MaxTotalScore, max)
}

func TestParseRating(t *testing.T) {
	v, ok := ParseRating("4,6 (212 Bewertungen)")
	require.True(t, ok)
	assert.InDelta(t, 4.6, v, 0.0001)

	v, ok = ParseRating("Bewertung: 3.9/5")
	require.True(t, ok)
	assert.InDelta(t, 3.9, v, 0.0001)

	_, ok = ParseRating("keine")
	assert.False(t, ok)
}
