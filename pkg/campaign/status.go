package campaign

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/effects"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// StatusUpdate is a requested send transition
type StatusUpdate struct {
	Status            models.SendStatus
	At                *time.Time
	ProviderMessageID string
	ErrorMessage      string
}

// UpdateSendStatus applies a monotonic transition to a send. The
// first-reached timestamp of the target state is written only once, so
// repeated updates are no-ops. It reports whether anything changed; when
// it did, a campaign stats recompute is enqueued.
func (s *Service) UpdateSendStatus(ctx context.Context, id uint, upd StatusUpdate) (*models.EmailSend, bool, error) {
	if !IsValidSendStatus(upd.Status) {
		return nil, false, domain.NewValidationError(fmt.Sprintf("invalid send status %q", upd.Status))
	}
	at := s.timestamp()
	if upd.At != nil && !upd.At.IsZero() {
		at = upd.At.UTC()
	}

	var send models.EmailSend
	var firstReached bool
	applied := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&send, id).Error; err != nil {
			return translate(err, "send", "failed to load send")
		}

		move := CanTransition(send.Status, upd.Status)
		column, hasColumn := timestampColumns[upd.Status]
		stamp := hasColumn && !hasTimestamp(&send, upd.Status) &&
			(move || impliedReached(send.Status, upd.Status))
		if !move && !stamp {
			return nil
		}

		updates := map[string]interface{}{"updated_at": at}
		q := tx.Model(&models.EmailSend{}).Where("id = ? AND status = ?", id, send.Status)
		if move {
			updates["status"] = upd.Status
		}
		if stamp {
			updates[column] = at
			q = q.Where(column + " IS NULL")
		}
		if upd.ProviderMessageID != "" {
			updates["provider_message_id"] = upd.ProviderMessageID
		}
		if upd.ErrorMessage != "" {
			updates["error_message"] = upd.ErrorMessage
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update send: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		applied = true
		firstReached = stamp
		return tx.First(&send, id).Error
	})
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return &send, false, nil
	}

	s.logger.Debug("send status updated", "send_id", id, "campaign_id", send.CampaignID, "status", send.Status)
	if firstReached {
		s.recordLeadActivity(ctx, &send, upd.Status)
	}
	if err := s.queue.Enqueue(ctx, effects.RecomputeCampaignStats(send.CampaignID, at)); err != nil {
		return &send, true, fmt.Errorf("failed to enqueue campaign stats: %w", err)
	}
	return &send, true, nil
}

// recordLeadActivity writes the lead history for a first-reached state.
// The first send promotes a new lead to contacted.
func (s *Service) recordLeadActivity(ctx context.Context, send *models.EmailSend, status models.SendStatus) {
	var err error
	switch status {
	case models.SendSent:
		err = s.leads.RecordActivity(ctx, send.LeadID, ActionEmailSent, send.Subject, models.StatusNew, models.StatusContacted)
	case models.SendOpened:
		err = s.leads.RecordActivity(ctx, send.LeadID, ActionEmailOpened, send.Subject, "", "")
	case models.SendClicked:
		err = s.leads.RecordActivity(ctx, send.LeadID, ActionLinkClicked, send.Subject, "", "")
	case models.SendBounced:
		err = s.leads.RecordActivity(ctx, send.LeadID, ActionEmailBounced, send.To, "", "")
	default:
		return
	}
	if err != nil {
		s.logger.Warn("failed to record lead activity", "lead_id", send.LeadID, "send_id", send.ID, "status", status, "error", err)
	}
}

// RecomputeCampaignStats derives a campaign's counters and rates from its
// sends and completes a sending campaign once nothing is left to dispatch
func (s *Service) RecomputeCampaignStats(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recompute(tx, id)
	})
}

type statusCount struct {
	Status models.SendStatus
	Count  int
}

func (s *Service) recompute(tx *gorm.DB, id uint) error {
	var c models.EmailCampaign
	if err := tx.First(&c, id).Error; err != nil {
		return translate(err, "campaign", "failed to load campaign")
	}

	var rows []statusCount
	err := tx.Model(&models.EmailSend{}).
		Select("status, COUNT(*) AS count").
		Where("campaign_id = ?", id).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to count sends: %w", err)
	}
	counts := make(map[models.SendStatus]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	clicked := counts[models.SendClicked]
	opened := counts[models.SendOpened] + clicked
	delivered := counts[models.SendDelivered] + opened
	sent := counts[models.SendSent] + delivered
	bounced := counts[models.SendBounced]

	updates := map[string]interface{}{
		"total_queued":     counts[models.SendQueued],
		"total_sent":       sent,
		"total_delivered":  delivered,
		"total_opened":     opened,
		"total_clicked":    clicked,
		"total_bounced":    bounced,
		"total_complained": counts[models.SendComplained],
		"total_failed":     counts[models.SendFailed],
		"open_rate":        ratio(opened, delivered),
		"click_rate":       ratio(clicked, opened),
		"bounce_rate":      ratio(bounced, sent),
	}

	pending := counts[models.SendQueued] + counts[models.SendSending]
	if pending == 0 && (c.Status == models.CampaignSending || c.Status == models.CampaignQueued) {
		updates["status"] = models.CampaignSent
		updates["completed_at"] = s.timestamp()
		s.logger.Info("campaign completed", "campaign_id", id, "sent", sent, "failed", counts[models.SendFailed])
	}

	if err := tx.Model(&models.EmailCampaign{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store campaign stats: %w", err)
	}
	return nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// HandleEffect performs a queued effect
func (s *Service) HandleEffect(ctx context.Context, e effects.Effect) error {
	switch e.Kind {
	case effects.KindUpdateSendStatus:
		at := e.At
		_, _, err := s.UpdateSendStatus(ctx, e.SendID, StatusUpdate{
			Status:            e.Status,
			At:                &at,
			ProviderMessageID: e.ProviderMessageID,
			ErrorMessage:      e.ErrorMessage,
		})
		return err
	case effects.KindRecomputeCampaignStats:
		return s.RecomputeCampaignStats(ctx, e.CampaignID)
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
}
