package campaign

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// SendResult is the dispatch outcome of one send
type SendResult struct {
	SendID     uint              `json:"sendId"`
	CampaignID uint              `json:"campaignId"`
	Status     models.SendStatus `json:"status"`
	MessageID  string            `json:"messageId,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ProcessResult summarizes one dispatch batch
type ProcessResult struct {
	Processed int          `json:"processed"`
	Results   []SendResult `json:"results"`
}

// ProcessSendQueue dispatches up to batchSize queued sends of queued or
// sending campaigns in creation order, waiting at least the pacing
// interval between two attempts. A transport failure marks that send
// failed and the batch goes on. Paused campaigns are skipped because the
// batch is selected up front.
func (s *Service) ProcessSendQueue(ctx context.Context, batchSize int) (*ProcessResult, error) {
	if batchSize <= 0 {
		batchSize = s.config.BatchSize
	}

	var sends []models.EmailSend
	err := s.db.WithContext(ctx).
		Joins("JOIN email_campaigns ON email_campaigns.id = email_sends.campaign_id").
		Where("email_sends.status = ?", models.SendQueued).
		Where("email_campaigns.status IN ?", []models.CampaignStatus{models.CampaignQueued, models.CampaignSending}).
		Order("email_sends.id ASC").
		Limit(batchSize).
		Find(&sends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load send queue: %w", err)
	}

	result := &ProcessResult{Results: make([]SendResult, 0, len(sends))}
	if len(sends) == 0 {
		return result, nil
	}

	var limiter *rate.Limiter
	if s.config.PacingInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.config.PacingInterval), 1)
	}
	accounts := make(map[uint]*models.EmailAccount)

	for i := range sends {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.logger.Warn("send batch interrupted", "processed", result.Processed, "error", err)
				return result, err
			}
		}

		res := s.dispatch(ctx, &sends[i], accounts)
		result.Results = append(result.Results, res)
		result.Processed++
	}

	s.logger.Info("send batch processed", "processed", result.Processed)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, send *models.EmailSend, accounts map[uint]*models.EmailAccount) SendResult {
	res := SendResult{SendID: send.ID, CampaignID: send.CampaignID}
	started := time.Now()

	if err := s.markCampaignSending(ctx, send.CampaignID); err != nil {
		s.logger.Warn("failed to mark campaign sending", "campaign_id", send.CampaignID, "error", err)
	}

	current, applied, err := s.UpdateSendStatus(ctx, send.ID, StatusUpdate{Status: models.SendSending})
	if err != nil || !applied {
		// someone else picked it up or it vanished
		res.Status = send.Status
		if current != nil {
			res.Status = current.Status
		}
		if err != nil {
			res.Error = err.Error()
		}
		return res
	}

	messageID, err := s.deliver(ctx, send, accounts)
	if err != nil {
		res.Status = models.SendFailed
		res.Error = err.Error()
		if _, _, uerr := s.UpdateSendStatus(ctx, send.ID, StatusUpdate{Status: models.SendFailed, ErrorMessage: err.Error()}); uerr != nil {
			s.logger.Error("failed to mark send failed", "send_id", send.ID, "error", uerr)
		}
		s.metrics.RecordSend("failed", time.Since(started))
		s.logger.Warn("send failed", "send_id", send.ID, "campaign_id", send.CampaignID, "error", err)
		return res
	}

	res.Status = models.SendSent
	res.MessageID = messageID
	if _, _, err := s.UpdateSendStatus(ctx, send.ID, StatusUpdate{Status: models.SendSent, ProviderMessageID: messageID}); err != nil {
		s.logger.Error("failed to mark send sent", "send_id", send.ID, "error", err)
	}
	err = s.db.WithContext(ctx).Model(&models.EmailAccount{}).
		Where("id = ?", send.AccountID).
		UpdateColumn("total_sent", gorm.Expr("total_sent + ?", 1)).Error
	if err != nil {
		s.logger.Warn("failed to count account send", "account_id", send.AccountID, "error", err)
	}

	s.metrics.RecordSend("sent", time.Since(started))
	s.logger.Info("send dispatched", "send_id", send.ID, "campaign_id", send.CampaignID, "message_id", messageID)
	return res
}

func (s *Service) deliver(ctx context.Context, send *models.EmailSend, accounts map[uint]*models.EmailAccount) (string, error) {
	acc, ok := accounts[send.AccountID]
	if !ok {
		var err error
		acc, err = s.GetAccount(ctx, send.AccountID)
		if err != nil {
			return "", err
		}
		accounts[send.AccountID] = acc
	}
	if !acc.Active {
		return "", fmt.Errorf("email account %d is inactive", acc.ID)
	}

	return s.transport.Deliver(ctx, acc, email.Message{
		To:       send.To,
		Subject:  send.Subject,
		HTMLBody: send.HTMLBody,
	})
}

// markCampaignSending moves a queued campaign to sending on its first
// dispatch
func (s *Service) markCampaignSending(ctx context.Context, campaignID uint) error {
	return s.db.WithContext(ctx).Model(&models.EmailCampaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignQueued).
		Update("status", models.CampaignSending).Error
}
