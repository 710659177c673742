package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.SendStatus
		want     bool
	}{
		{models.SendQueued, models.SendSending, true},
		{models.SendQueued, models.SendClicked, true},
		{models.SendSent, models.SendDelivered, true},
		{models.SendOpened, models.SendClicked, true},
		{models.SendClicked, models.SendOpened, false},
		{models.SendDelivered, models.SendSent, false},
		{models.SendSent, models.SendSent, false},
		{models.SendQueued, models.SendFailed, true},
		{models.SendSending, models.SendFailed, true},
		{models.SendDelivered, models.SendFailed, false},
		{models.SendSent, models.SendBounced, true},
		{models.SendQueued, models.SendBounced, false},
		{models.SendOpened, models.SendBounced, false},
		{models.SendClicked, models.SendComplained, true},
		{models.SendQueued, models.SendComplained, false},
		{models.SendFailed, models.SendSent, false},
		{models.SendBounced, models.SendDelivered, false},
		{models.SendComplained, models.SendOpened, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestImpliedReached(t *testing.T) {
	assert.True(t, impliedReached(models.SendClicked, models.SendOpened))
	assert.True(t, impliedReached(models.SendOpened, models.SendDelivered))
	assert.False(t, impliedReached(models.SendSent, models.SendOpened))
	assert.False(t, impliedReached(models.SendBounced, models.SendSent))
}

func TestIsValidSendStatus(t *testing.T) {
	for _, s := range []models.SendStatus{
		models.SendQueued, models.SendSending, models.SendSent, models.SendDelivered,
		models.SendOpened, models.SendClicked, models.SendBounced, models.SendComplained, models.SendFailed,
	} {
		assert.True(t, IsValidSendStatus(s), s)
	}
	assert.False(t, IsValidSendStatus("read"))
	assert.False(t, IsValidSendStatus(""))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(`{"branche": "Gastronomie", "plz": " 50 ", "segment": "HOT", "scoreMin": 60}`)
	require.NoError(t, err)
	assert.Equal(t, "Gastronomie", f.Industry)
	require.NotNil(t, f.ScoreMin)
	assert.Equal(t, 60, *f.ScoreMin)

	lf := f.LeadFilter()
	assert.Equal(t, "50", lf.PostalCodePrefix)
	assert.Equal(t, models.SegmentHot, lf.Segment)
	assert.True(t, lf.HasEmail)

	empty, err := ParseFilter("  ")
	require.NoError(t, err)
	assert.Equal(t, Filter{}, empty)

	for _, raw := range []string{
		`{"ort": "Köln"}`,
		`{"segment": "LUKEWARM"}`,
		`{"status": "Offen"}`,
		`{"scoreMin": 80, "scoreMax": 20}`,
		`{"scoreMax": 101}`,
		`not json`,
	} {
		_, err := ParseFilter(raw)
		assert.True(t, domain.IsValidation(err), raw)
	}
}

func TestRatio(t *testing.T) {
	assert.Zero(t, ratio(3, 0))
	assert.InDelta(t, 0.25, ratio(1, 4), 1e-9)
}
