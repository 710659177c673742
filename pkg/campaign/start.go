package campaign

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/mailtemplate"
	"github.com/jordanlanch/leadflow/pkg/models"
	"github.com/jordanlanch/leadflow/pkg/tracking"
)

// StartResult reports the sends a campaign start created
type StartResult struct {
	TotalLeads int    `json:"totalLeads"`
	SendIDs    []uint `json:"sendIds"`
}

// StartCampaign materializes one queued send per matching lead with the
// rendered, tracked content and moves the campaign from draft to queued.
func (s *Service) StartCampaign(ctx context.Context, id uint) (*StartResult, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignDraft {
		return nil, domain.NewPreconditionError(fmt.Sprintf("campaign is %s, only drafts can be started", c.Status))
	}
	tmpl, err := s.GetTemplate(ctx, c.TemplateID)
	if err != nil {
		return nil, err
	}
	acc, err := s.GetAccount(ctx, c.AccountID)
	if err != nil {
		return nil, err
	}
	if !acc.Active {
		return nil, domain.NewPreconditionError("email account is inactive")
	}
	f, err := ParseFilter(c.Filter)
	if err != nil {
		return nil, err
	}

	var matched []models.Lead
	err = s.leads.Each(ctx, f.LeadFilter(), 0, func(l *models.Lead) error {
		matched = append(matched, *l)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &StartResult{TotalLeads: len(matched), SendIDs: make([]uint, 0, len(matched))}
	now := s.timestamp()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EmailCampaign{}).
			Where("id = ? AND status = ?", id, models.CampaignDraft).
			Updates(map[string]interface{}{
				"status":      models.CampaignQueued,
				"total_leads": len(matched),
				"started_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to queue campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.NewPreconditionError("campaign was started concurrently")
		}

		for i := range matched {
			send, err := s.buildSend(tx, c, tmpl, acc, &matched[i])
			if err != nil {
				return err
			}
			result.SendIDs = append(result.SendIDs, send.ID)
		}

		return s.recompute(tx, id)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign started", "campaign_id", id, "sends", len(result.SendIDs))
	return result, nil
}

// buildSend renders the template for one lead, stores the send and then
// rewrites its body for tracking, which needs the send id
func (s *Service) buildSend(tx *gorm.DB, c *models.EmailCampaign, tmpl *models.EmailTemplate, acc *models.EmailAccount, lead *models.Lead) (*models.EmailSend, error) {
	rendered, err := render(tmpl, acc, lead)
	if err != nil {
		return nil, err
	}

	send := &models.EmailSend{
		CampaignID: c.ID,
		LeadID:     lead.ID,
		AccountID:  acc.ID,
		To:         rendered.To,
		Subject:    rendered.Subject,
		HTMLBody:   rendered.HTMLBody,
		Status:     models.SendQueued,
		QueuedAt:   s.timestamp(),
	}
	if err := tx.Create(send).Error; err != nil {
		return nil, fmt.Errorf("failed to create send: %w", err)
	}

	tracked, err := tracking.InjectTracking(send.HTMLBody, send.ID, s.config.TrackingBaseURL)
	if err != nil {
		return nil, err
	}
	send.HTMLBody = tracked
	if err := tx.Model(send).Update("html_body", tracked).Error; err != nil {
		return nil, fmt.Errorf("failed to store tracked body: %w", err)
	}
	return send, nil
}

// RenderedEmail is a template rendered for one lead, before tracking
type RenderedEmail struct {
	LeadID   uint   `json:"leadId"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlBody"`
}

// PreviewEmail renders a template for a lead exactly as a campaign start
// would, minus tracking. A zero accountID leaves out the signature.
func (s *Service) PreviewEmail(ctx context.Context, templateID, leadID, accountID uint) (*RenderedEmail, error) {
	tmpl, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	acc := &models.EmailAccount{}
	if accountID != 0 {
		if acc, err = s.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return render(tmpl, acc, lead)
}

func render(tmpl *models.EmailTemplate, acc *models.EmailAccount, lead *models.Lead) (*RenderedEmail, error) {
	data, err := mailtemplate.DataFromJSON(lead)
	if err != nil {
		return nil, err
	}
	return &RenderedEmail{
		LeadID:   lead.ID,
		To:       lead.Email,
		Subject:  mailtemplate.Render(tmpl.Subject, data),
		HTMLBody: mailtemplate.Render(tmpl.HTMLBody, data) + acc.SignatureHTML,
	}, nil
}
