package analytics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/analytics"
	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/leads"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/testdata"
)

func setup(t *testing.T) (*leads.Service, *analytics.Aggregator, *database.Client) {
	t.Helper()
	client, err := database.NewInMemoryClient(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	agg := analytics.NewAggregator(client.DB, 4, logger.Nop(), nil)
	return leads.NewService(client.DB, agg, logger.Nop()), agg, client
}

func allLeads(t *testing.T, client *database.Client) []models.Lead {
	t.Helper()
	var out []models.Lead
	require.NoError(t, client.DB.Order("id ASC").Find(&out).Error)
	return out
}

func TestHistogramBucket(t *testing.T) {
	cases := map[int]int{0: 0, 19: 0, 20: 1, 39: 1, 40: 2, 79: 3, 80: 4, 99: 4, 100: 4}
	for score, want := range cases {
		assert.Equal(t, want, analytics.HistogramBucket(score), "score %d", score)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Gastronomie", "Gastronomie"},
		{"Bäckerei", "Baeckerei"},
		{"Straßenbau", "Strassenbau"},
		{"Café & Bistro", "Cafe & Bistro"},
		{"IT/Tech", "IT/Tech"},
		{"Tab\there", "Tab_here"},
		{"日本", "__"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, analytics.SanitizeKey(tt.in))
		})
	}
}

func TestCompute(t *testing.T) {
	snap := analytics.Compute([]models.Lead{
		{Score: 81, Segment: models.SegmentHot, Status: models.StatusNew, Industry: "Bäckerei", ContactPerson: "Anna"},
		{Score: 40, Segment: models.SegmentWarm, Status: models.StatusWon, Industry: "Baeckerei"},
		{Score: 0, Segment: models.SegmentDisqualified, Status: models.StatusNew},
	})

	assert.EqualValues(t, 3, snap.Total)
	assert.EqualValues(t, 121, snap.ScoreSum)
	assert.EqualValues(t, 40, snap.AvgScore)
	assert.EqualValues(t, 1, snap.WithContact)
	assert.EqualValues(t, 1, snap.Segments[models.SegmentHot])
	assert.EqualValues(t, 0, snap.Segments[models.SegmentCold])
	assert.EqualValues(t, 2, snap.Statuses[models.StatusNew])
	assert.EqualValues(t, 0, snap.Statuses[models.StatusLost])
	assert.Equal(t, [analytics.HistogramBuckets]int64{1, 0, 1, 0, 1}, snap.Histogram)
	assert.Equal(t, map[string]int64{"Baeckerei": 2}, snap.Industries)
}

func TestCompute_Empty(t *testing.T) {
	snap := analytics.Compute(nil)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.AvgScore)
	assert.Len(t, snap.Segments, len(models.Segments))
	assert.Len(t, snap.Statuses, len(models.LeadStatuses))
	assert.Empty(t, snap.Industries)
}

func TestAggregator_IndustryDisappearsWithLastLead(t *testing.T) {
	svc, agg, _ := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, &models.LeadRequest{Company: "A", Industry: "Handwerk"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, &models.LeadRequest{Company: "B", Industry: "Handwerk"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, first.ID))
	snap, err := agg.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Handwerk": 1}, snap.Industries)

	_, err = svc.Update(ctx, second.ID, &models.LeadRequest{Company: "B", Industry: "Handel"})
	require.NoError(t, err)
	snap, err = agg.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Handel": 1}, snap.Industries)
}

func TestAggregator_ReadMatchesRebuildAfterRandomMutations(t *testing.T) {
	svc, agg, client := setup(t)
	ctx := context.Background()
	gen := testdata.NewGenerator(42)
	f := gen.Faker()

	var ids []uint
	for step := 0; step < 120; step++ {
		switch op := f.Number(0, 9); {
		case op < 5 || len(ids) == 0:
			req := gen.Lead(testdata.DefaultConfig())
			lead, err := svc.Create(ctx, &req)
			require.NoError(t, err)
			ids = append(ids, lead.ID)
		case op < 7:
			id := ids[f.Number(0, len(ids)-1)]
			req := gen.Lead(testdata.DefaultConfig())
			_, err := svc.Update(ctx, id, &req)
			require.NoError(t, err)
		case op < 8:
			id := ids[f.Number(0, len(ids)-1)]
			status := models.LeadStatuses[f.Number(0, len(models.LeadStatuses)-1)]
			score := f.Number(0, 100)
			_, err := svc.Patch(ctx, id, models.LeadPatch{Status: &status, AIScore: &score})
			require.NoError(t, err)
		default:
			i := f.Number(0, len(ids)-1)
			require.NoError(t, svc.Remove(ctx, ids[i]))
			ids = append(ids[:i], ids[i+1:]...)
		}
	}

	read, err := agg.Read(ctx)
	require.NoError(t, err)
	expected := analytics.Compute(allLeads(t, client))
	assert.Equal(t, expected, read)
	assert.EqualValues(t, len(ids), read.Total)

	rebuilt, err := agg.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, rebuilt)

	again, err := agg.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, again)
}

func TestAggregator_RebuildRepairsDrift(t *testing.T) {
	svc, agg, client := setup(t)
	ctx := context.Background()

	gen := testdata.NewGenerator(7)
	for _, req := range gen.Leads(testdata.DefaultConfig(), 10) {
		req := req
		_, err := svc.Create(ctx, &req)
		require.NoError(t, err)
	}

	// out-of-band edit that bypasses the store
	require.NoError(t, client.DB.Model(&models.Lead{}).
		Where("1 = 1").
		Updates(map[string]interface{}{"score": 100, "segment": models.SegmentHot, "industry": "Drift"}).Error)

	stale, err := agg.Read(ctx)
	require.NoError(t, err)
	expected := analytics.Compute(allLeads(t, client))
	assert.NotEqual(t, expected, stale)

	rebuilt, err := agg.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, rebuilt)
	assert.EqualValues(t, 10, rebuilt.Segments[models.SegmentHot])
	assert.Equal(t, map[string]int64{"Drift": 10}, rebuilt.Industries)

	read, err := agg.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, read)
}

func TestAggregator_RebuildEmpty(t *testing.T) {
	_, agg, _ := setup(t)

	snap, err := agg.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analytics.Compute(nil), snap)
}
