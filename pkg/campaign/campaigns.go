package campaign

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// CreateCampaign stores a draft campaign after checking its filter,
// template and account
func (s *Service) CreateCampaign(ctx context.Context, req *models.CampaignRequest) (*models.EmailCampaign, error) {
	if _, err := ParseFilter(req.Filter); err != nil {
		return nil, err
	}

	c := &models.EmailCampaign{
		Name:       req.Name,
		TemplateID: req.TemplateID,
		AccountID:  req.AccountID,
		Filter:     req.Filter,
		Status:     models.CampaignDraft,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.EmailTemplate{}, req.TemplateID).Error; err != nil {
			return translate(err, "template", "failed to load template")
		}
		if err := tx.First(&models.EmailAccount{}, req.AccountID).Error; err != nil {
			return translate(err, "account", "failed to load account")
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign created", "campaign_id", c.ID, "name", c.Name)
	return c, nil
}

// UpdateCampaign replaces a draft's name, filter, template and account.
// Campaigns that were started keep their settings.
func (s *Service) UpdateCampaign(ctx context.Context, id uint, req *models.CampaignRequest) (*models.EmailCampaign, error) {
	if _, err := ParseFilter(req.Filter); err != nil {
		return nil, err
	}

	var c models.EmailCampaign
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return translate(err, "campaign", "failed to load campaign")
		}
		if c.Status != models.CampaignDraft {
			return domain.NewPreconditionError(fmt.Sprintf("campaign is %s, only drafts can be edited", c.Status))
		}
		if err := tx.First(&models.EmailTemplate{}, req.TemplateID).Error; err != nil {
			return translate(err, "template", "failed to load template")
		}
		if err := tx.First(&models.EmailAccount{}, req.AccountID).Error; err != nil {
			return translate(err, "account", "failed to load account")
		}

		res := tx.Model(&models.EmailCampaign{}).
			Where("id = ? AND status = ?", id, models.CampaignDraft).
			Updates(map[string]interface{}{
				"name":        req.Name,
				"template_id": req.TemplateID,
				"account_id":  req.AccountID,
				"filter":      req.Filter,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewPreconditionError("campaign was started concurrently")
		}
		return tx.First(&c, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign updated", "campaign_id", id)
	return &c, nil
}

// ListCampaigns returns campaigns newest first, optionally by status
func (s *Service) ListCampaigns(ctx context.Context, status models.CampaignStatus) ([]models.EmailCampaign, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	campaigns := []models.EmailCampaign{}
	if err := q.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// GetCampaign returns a campaign by id
func (s *Service) GetCampaign(ctx context.Context, id uint) (*models.EmailCampaign, error) {
	var c models.EmailCampaign
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err, "campaign", "failed to get campaign")
	}
	return &c, nil
}

// DeleteCampaign removes a campaign that is not queued or sending,
// together with its sends and their events
func (s *Service) DeleteCampaign(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.EmailCampaign
		if err := tx.First(&c, id).Error; err != nil {
			return translate(err, "campaign", "failed to load campaign")
		}
		if c.Status == models.CampaignQueued || c.Status == models.CampaignSending {
			return domain.NewPreconditionError("pause the campaign before deleting it")
		}

		sendIDs := tx.Model(&models.EmailSend{}).Select("id").Where("campaign_id = ?", id)
		if err := tx.Where("send_id IN (?)", sendIDs).Delete(&models.EmailEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		if err := tx.Where("campaign_id = ?", id).Delete(&models.EmailSend{}).Error; err != nil {
			return fmt.Errorf("failed to delete sends: %w", err)
		}
		if err := tx.Delete(&c).Error; err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		return nil
	})
}

// PreviewLeadLimit caps the sample leads a preview lists
const PreviewLeadLimit = 10

// PreviewLead is the summary of one lead a campaign would send to
type PreviewLead struct {
	ID       uint   `json:"id"`
	Company  string `json:"firma"`
	Email    string `json:"email"`
	City     string `json:"ort"`
	Industry string `json:"branche"`
}

// CampaignPreview is the audience a campaign would reach if started now
type CampaignPreview struct {
	MatchingLeads int64         `json:"matchingLeads"`
	Leads         []PreviewLead `json:"leads"`
}

var errPreviewFull = errors.New("preview full")

// Preview counts the leads the campaign would send to if started now and
// lists the first PreviewLeadLimit of them in start order
func (s *Service) Preview(ctx context.Context, id uint) (*CampaignPreview, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := ParseFilter(c.Filter)
	if err != nil {
		return nil, err
	}
	lf := f.LeadFilter()

	n, err := s.leads.Count(ctx, lf)
	if err != nil {
		return nil, err
	}

	preview := &CampaignPreview{MatchingLeads: n, Leads: []PreviewLead{}}
	err = s.leads.Each(ctx, lf, PreviewLeadLimit, func(l *models.Lead) error {
		preview.Leads = append(preview.Leads, PreviewLead{
			ID:       l.ID,
			Company:  l.Company,
			Email:    l.Email,
			City:     l.City,
			Industry: l.Industry,
		})
		if len(preview.Leads) == PreviewLeadLimit {
			return errPreviewFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPreviewFull) {
		return nil, err
	}
	return preview, nil
}

// Pause stops further dispatch. Sends already handed to the transport in
// the running batch are not recalled.
func (s *Service) Pause(ctx context.Context, id uint) (*models.EmailCampaign, error) {
	return s.moveCampaign(ctx, id,
		[]models.CampaignStatus{models.CampaignQueued, models.CampaignSending},
		models.CampaignPaused)
}

// Resume continues dispatch of a paused campaign
func (s *Service) Resume(ctx context.Context, id uint) (*models.EmailCampaign, error) {
	if _, err := s.moveCampaign(ctx, id, []models.CampaignStatus{models.CampaignPaused}, models.CampaignSending); err != nil {
		return nil, err
	}
	// a campaign paused after its last dispatch completes right away
	if err := s.RecomputeCampaignStats(ctx, id); err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, id)
}

func (s *Service) moveCampaign(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (*models.EmailCampaign, error) {
	var c models.EmailCampaign
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, id).Error; err != nil {
			return translate(err, "campaign", "failed to load campaign")
		}
		res := tx.Model(&models.EmailCampaign{}).
			Where("id = ? AND status IN ?", id, from).
			Update("status", to)
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewPreconditionError(fmt.Sprintf("campaign is %s, cannot move to %s", c.Status, to))
		}
		c.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign status changed", "campaign_id", id, "status", to)
	return &c, nil
}

// ListSends returns a campaign's sends in creation order, optionally by
// status
func (s *Service) ListSends(ctx context.Context, campaignID uint, status models.SendStatus, limit int) ([]models.EmailSend, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id ASC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	sends := []models.EmailSend{}
	if err := q.Find(&sends).Error; err != nil {
		return nil, fmt.Errorf("failed to list sends: %w", err)
	}
	return sends, nil
}

// GetSend returns a send by id
func (s *Service) GetSend(ctx context.Context, id uint) (*models.EmailSend, error) {
	var send models.EmailSend
	if err := s.db.WithContext(ctx).First(&send, id).Error; err != nil {
		return nil, translate(err, "send", "failed to get send")
	}
	return &send, nil
}
