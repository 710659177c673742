package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/leadflow/pkg/database"
	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/effects"
	"github.com/jordanlanch/leadflow/pkg/logger"
	"github.com/jordanlanch/leadflow/pkg/metrics"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// stampingHandler marks the first-reached timestamp the way the campaign
// engine does, so repeated events can be observed.
func stampingHandler(client *database.Client, seen *[]effects.Effect) effects.Handler {
	return func(ctx context.Context, e effects.Effect) error {
		*seen = append(*seen, e)
		column := map[models.SendStatus]string{
			models.SendOpened:  "opened_at",
			models.SendClicked: "clicked_at",
			models.SendBounced: "bounced_at",
		}[e.Status]
		updates := map[string]interface{}{"status": e.Status}
		if column != "" {
			updates[column] = e.At
		}
		return client.DB.Model(&models.EmailSend{}).Where("id = ?", e.SendID).Updates(updates).Error
	}
}

func setup(t *testing.T) (*Service, *database.Client, *[]effects.Effect, *metrics.Metrics) {
	t.Helper()
	client, err := database.NewInMemoryClient(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	var seen []effects.Effect
	q := effects.NewInlineQueue(logger.Nop())
	q.SetHandler(stampingHandler(client, &seen))

	m := metrics.New()
	svc := NewService(client.DB, q, logger.Nop(), m)
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, client, &seen, m
}

func createSend(t *testing.T, client *database.Client) *models.EmailSend {
	t.Helper()
	send := &models.EmailSend{CampaignID: 1, LeadID: 1, To: "a@b.de", Status: models.SendSent, QueuedAt: time.Now()}
	require.NoError(t, client.DB.Create(send).Error)
	return send
}

func TestRecordEvent_OpenOnlyTransitionsOnce(t *testing.T) {
	svc, client, seen, m := setup(t)
	ctx := context.Background()
	send := createSend(t, client)

	require.NoError(t, svc.RecordOpen(ctx, send.ID, "Mail/1.0", "10.0.0.1"))
	require.NoError(t, svc.RecordOpen(ctx, send.ID, "Mail/1.0", "10.0.0.1"))

	require.Len(t, *seen, 1)
	assert.Equal(t, effects.KindUpdateSendStatus, (*seen)[0].Kind)
	assert.Equal(t, models.SendOpened, (*seen)[0].Status)

	events, err := svc.ListEvents(ctx, send.ID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "Mail/1.0", events[0].UserAgent)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrackingEvents.WithLabelValues("open")))
}

func TestRecordEvent_ClickKeepsURL(t *testing.T) {
	svc, client, seen, _ := setup(t)
	ctx := context.Background()
	send := createSend(t, client)

	require.NoError(t, svc.RecordClick(ctx, send.ID, "https://roma.de", "", ""))

	events, err := svc.ListEvents(ctx, send.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventClick, events[0].Type)
	assert.Equal(t, "https://roma.de", events[0].URL)
	assert.Len(t, *seen, 1)
}

func TestRecordEvent_ComplaintGatedOnStatus(t *testing.T) {
	svc, client, seen, _ := setup(t)
	ctx := context.Background()
	send := createSend(t, client)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordEvent(ctx, Event{SendID: send.ID, Type: models.EventComplaint, Metadata: map[string]string{"feedback": "abuse"}})
		require.NoError(t, err)
	}
	require.Len(t, *seen, 1)
	assert.Equal(t, models.SendComplained, (*seen)[0].Status)
}

func TestRecordEvent_Errors(t *testing.T) {
	svc, client, seen, _ := setup(t)
	ctx := context.Background()

	_, err := svc.RecordEvent(ctx, Event{SendID: 404, Type: models.EventOpen})
	assert.True(t, domain.IsNotFound(err))

	send := createSend(t, client)
	_, err = svc.RecordEvent(ctx, Event{SendID: send.ID, Type: "forward"})
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, *seen)
}
