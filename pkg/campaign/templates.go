package campaign

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/mailtemplate"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// CreateTemplate stores a template. Without an explicit variable list the
// placeholders used in subject and body are recorded.
func (s *Service) CreateTemplate(ctx context.Context, req *models.TemplateRequest) (*models.EmailTemplate, error) {
	tmpl := &models.EmailTemplate{}
	applyTemplate(tmpl, req)

	if err := s.db.WithContext(ctx).Create(tmpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return tmpl, nil
}

// ListTemplates returns every template in creation order
func (s *Service) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	templates := []models.EmailTemplate{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// GetTemplate returns a template by id
func (s *Service) GetTemplate(ctx context.Context, id uint) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, id).Error; err != nil {
		return nil, translate(err, "template", "failed to get template")
	}
	return &tmpl, nil
}

// UpdateTemplate replaces a template. Sends already created keep the
// content rendered at campaign start.
func (s *Service) UpdateTemplate(ctx context.Context, id uint, req *models.TemplateRequest) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tmpl, id).Error; err != nil {
			return translate(err, "template", "failed to load template")
		}
		applyTemplate(&tmpl, req)
		if err := tx.Save(&tmpl).Error; err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// DeleteTemplate removes a template that no running campaign uses
func (s *Service) DeleteTemplate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl models.EmailTemplate
		if err := tx.First(&tmpl, id).Error; err != nil {
			return translate(err, "template", "failed to load template")
		}
		if err := ensureUnused(tx, "template_id", id); err != nil {
			return err
		}
		if err := tx.Delete(&tmpl).Error; err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
}

func applyTemplate(tmpl *models.EmailTemplate, req *models.TemplateRequest) {
	tmpl.Name = req.Name
	tmpl.Subject = req.Subject
	tmpl.HTMLBody = req.HTMLBody
	tmpl.Variables = req.Variables
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = mailtemplate.Variables(req.Subject, req.HTMLBody)
	}
}
