package campaign

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jordanlanch/leadflow/pkg/domain"
	"github.com/jordanlanch/leadflow/pkg/email"
	"github.com/jordanlanch/leadflow/pkg/models"
)

// AccountCheck is the outcome of an account connection test
type AccountCheck struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
	Details *email.Verification  `json:"details,omitempty"`
	Account *models.EmailAccount `json:"account"`
}

// CreateAccount stores a new sending account. Accounts start active,
// unverified and with no sends.
func (s *Service) CreateAccount(ctx context.Context, req *models.AccountRequest) (*models.EmailAccount, error) {
	acc := &models.EmailAccount{Active: true}
	applyAccount(acc, req)
	if req.Active != nil {
		acc.Active = *req.Active
	}

	if err := s.sealAccount(acc); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(acc).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if err := s.openAccount(acc); err != nil {
		return nil, err
	}
	s.logger.Info("email account created", "account_id", acc.ID, "provider", acc.Provider)
	return acc, nil
}

// ListAccounts returns every account in creation order
func (s *Service) ListAccounts(ctx context.Context) ([]models.EmailAccount, error) {
	accounts := []models.EmailAccount{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	for i := range accounts {
		if err := s.openAccount(&accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// GetAccount returns an account by id
func (s *Service) GetAccount(ctx context.Context, id uint) (*models.EmailAccount, error) {
	var acc models.EmailAccount
	if err := s.db.WithContext(ctx).First(&acc, id).Error; err != nil {
		return nil, translate(err, "account", "failed to get account")
	}
	if err := s.openAccount(&acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdateAccount replaces an account's settings. Empty secrets keep the
// stored ones.
func (s *Service) UpdateAccount(ctx context.Context, id uint, req *models.AccountRequest) (*models.EmailAccount, error) {
	var acc models.EmailAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&acc, id).Error; err != nil {
			return translate(err, "account", "failed to load account")
		}
		if err := s.openAccount(&acc); err != nil {
			return err
		}
		applyAccount(&acc, req)
		if req.Active != nil {
			acc.Active = *req.Active
		}
		if err := s.sealAccount(&acc); err != nil {
			return err
		}
		if err := tx.Save(&acc).Error; err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.openAccount(&acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// DeleteAccount removes an account that no running campaign uses
func (s *Service) DeleteAccount(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc models.EmailAccount
		if err := tx.First(&acc, id).Error; err != nil {
			return translate(err, "account", "failed to load account")
		}
		if err := ensureUnused(tx, "account_id", id); err != nil {
			return err
		}
		if err := tx.Delete(&acc).Error; err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
}

// VerifyAccount checks the account's credentials against its provider
// without sending mail and records the outcome in Verified. A failed check
// is reported in the result, not as an error.
func (s *Service) VerifyAccount(ctx context.Context, id uint) (*AccountCheck, error) {
	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	verifier, ok := s.transport.(email.Verifier)
	if !ok {
		return nil, domain.NewPreconditionError("mail transport cannot verify accounts")
	}

	details, verr := verifier.Verify(ctx, acc)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	verified := verr == nil
	err = s.db.WithContext(ctx).Model(&models.EmailAccount{}).
		Where("id = ?", id).
		Update("verified", verified).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record account verification: %w", err)
	}
	acc.Verified = verified

	check := &AccountCheck{Success: verified, Details: details, Account: acc}
	if verr != nil {
		check.Error = verr.Error()
		s.logger.Warn("email account verification failed", "account_id", id, "provider", acc.Provider, "error", verr)
	} else {
		s.logger.Info("email account verified", "account_id", id, "provider", acc.Provider)
	}
	return check, nil
}

// sealAccount encrypts the credential fields of acc in place
func (s *Service) sealAccount(acc *models.EmailAccount) error {
	for _, field := range credentialFields(acc) {
		sealed, err := s.config.Credentials.Seal(*field)
		if err != nil {
			return fmt.Errorf("failed to seal account credentials: %w", err)
		}
		*field = sealed
	}
	return nil
}

// openAccount decrypts the credential fields of acc in place
func (s *Service) openAccount(acc *models.EmailAccount) error {
	for _, field := range credentialFields(acc) {
		plain, err := s.config.Credentials.Open(*field)
		if err != nil {
			return fmt.Errorf("failed to open credentials of account %d: %w", acc.ID, err)
		}
		*field = plain
	}
	return nil
}

func credentialFields(acc *models.EmailAccount) []*string {
	return []*string{&acc.SMTPPassword, &acc.APIKey, &acc.SESAccessKey, &acc.SESSecretKey}
}

func applyAccount(acc *models.EmailAccount, req *models.AccountRequest) {
	acc.Name = req.Name
	acc.FromEmail = req.FromEmail
	acc.FromName = req.FromName
	acc.SignatureHTML = req.SignatureHTML
	acc.Provider = req.Provider
	acc.SMTPHost = req.SMTPHost
	acc.SMTPPort = req.SMTPPort
	acc.SMTPUser = req.SMTPUser
	acc.SMTPUseTLS = req.SMTPUseTLS
	if req.SMTPPassword != "" {
		acc.SMTPPassword = req.SMTPPassword
	}
	if req.APIKey != "" {
		acc.APIKey = req.APIKey
	}
	acc.SESRegion = req.SESRegion
	if req.SESAccessKey != "" {
		acc.SESAccessKey = req.SESAccessKey
	}
	if req.SESSecretKey != "" {
		acc.SESSecretKey = req.SESSecretKey
	}
}

// ensureUnused rejects deleting a template or account that a queued,
// sending or paused campaign still references
func ensureUnused(tx *gorm.DB, column string, id uint) error {
	var n int64
	err := tx.Model(&models.EmailCampaign{}).
		Where(column+" = ?", id).
		Where("status IN ?", []models.CampaignStatus{models.CampaignQueued, models.CampaignSending, models.CampaignPaused}).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("failed to check campaign references: %w", err)
	}
	if n > 0 {
		return domain.NewConflictError(fmt.Sprintf("still used by %d active campaign(s)", n))
	}
	return nil
}
