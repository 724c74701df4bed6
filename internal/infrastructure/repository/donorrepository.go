package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/persistence/mappers"
	"plexward/internal/infrastructure/persistence/models"
	"plexward/internal/shared/utils"
)

type DonorRepository struct {
	db *gorm.DB
}

func NewDonorRepository(db *gorm.DB) *DonorRepository {
	return &DonorRepository{db: db}
}

var _ donor.Repository = (*DonorRepository)(nil)

// paypalAmbiguousStatuses are local statuses that require a provider refresh
// to resolve. They correspond to PayPal's pending/approval_pending/approved
// subscription states.
var paypalAmbiguousStatuses = []string{string(donor.StatusPending), string(donor.StatusTrial)}

func (r *DonorRepository) UpsertBySubscription(ctx context.Context, provider donor.Provider, subscriptionID string, fields donor.UpsertFields) (*donor.Donor, error) {
	var model models.DonorModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("provider = ? AND subscription_id = ?", string(provider), subscriptionID).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d, derr := donor.NewDonor(provider, subscriptionID, fields.Email, fields.Name)
			if derr != nil {
				return derr
			}
			model = *mappers.DonorToModel(d)
			model.StripeCustomerID = fields.StripeCustomerID
			return tx.Create(&model).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if fields.Email != "" {
			updates["email"] = utils.NormalizeEmail(fields.Email)
		}
		if fields.Name != "" {
			updates["name"] = fields.Name
		}
		if fields.StripeCustomerID != "" {
			updates["stripe_customer_id"] = fields.StripeCustomerID
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&model, model.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert donor: %w", err)
	}

	return mappers.DonorToDomain(&model)
}

func (r *DonorRepository) GetByID(ctx context.Context, id uint) (*donor.Donor, error) {
	var model models.DonorModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, donor.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return mappers.DonorToDomain(&model)
}

func (r *DonorRepository) GetBySubscriptionID(ctx context.Context, provider donor.Provider, subscriptionID string) (*donor.Donor, error) {
	var model models.DonorModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND subscription_id = ?", string(provider), subscriptionID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, donor.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get donor by subscription: %w", err)
	}
	return mappers.DonorToDomain(&model)
}

func (r *DonorRepository) GetByEmail(ctx context.Context, email string) (*donor.Donor, error) {
	var model models.DonorModel
	err := r.db.WithContext(ctx).
		Where("email = ?", utils.NormalizeEmail(email)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, donor.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get donor by email: %w", err)
	}
	return mappers.DonorToDomain(&model)
}

func (r *DonorRepository) Update(ctx context.Context, d *donor.Donor) error {
	model := mappers.DonorToModel(d)

	result := r.db.WithContext(ctx).
		Model(&models.DonorModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"email":                  model.Email,
			"name":                   model.Name,
			"stripe_customer_id":     model.StripeCustomerID,
			"plex_account_id":        model.PlexAccountID,
			"plex_email":             model.PlexEmail,
			"status":                 model.Status,
			"access_expires_at":      model.AccessExpiresAt,
			"had_preexisting_access": model.HadPreexistingAccess,
			"last_payment_at":        model.LastPaymentAt,
			"refresh_error":          model.RefreshError,
			"status_refreshed_at":    model.StatusRefreshedAt,
			"updated_at":             model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update donor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&models.DonorModel{}).Where("id = ?", model.ID).Count(&count)
		if count == 0 {
			return donor.ErrNotFound
		}
	}
	return nil
}

func (r *DonorRepository) List(ctx context.Context) ([]*donor.Donor, error) {
	var rows []models.DonorModel
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return r.toDomainList(rows)
}

func (r *DonorRepository) ListExpiredAccess(ctx context.Context, now time.Time) ([]*donor.Donor, error) {
	statuses := []string{
		string(donor.StatusCancelled),
		string(donor.StatusSuspended),
		string(donor.StatusExpired),
		string(donor.StatusTrial),
	}
	var rows []models.DonorModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND access_expires_at IS NOT NULL AND access_expires_at < ?", statuses, now).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired-access donors: %w", err)
	}
	return r.toDomainList(rows)
}

func (r *DonorRepository) ListForStatusRefresh(ctx context.Context, staleBefore time.Time) ([]*donor.Donor, error) {
	var rows []models.DonorModel
	err := r.db.WithContext(ctx).
		Where("provider = ?", string(donor.ProviderPayPal)).
		Where("status IN ? OR status_refreshed_at IS NULL OR status_refreshed_at < ?",
			paypalAmbiguousStatuses, staleBefore).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donors for status refresh: %w", err)
	}
	return r.toDomainList(rows)
}

func (r *DonorRepository) ListWithPlexIdentity(ctx context.Context) ([]*donor.Donor, error) {
	var rows []models.DonorModel
	err := r.db.WithContext(ctx).
		Where("plex_account_id <> '' OR plex_email <> ''").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list donors with plex identity: %w", err)
	}
	return r.toDomainList(rows)
}

func (r *DonorRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Cascade mirrors the FK constraints for drivers with them disabled.
		if err := tx.Where("donor_id = ?", id).Delete(&models.InviteModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("donor_id = ?", id).Delete(&models.PaymentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("donor_id = ?", id).Delete(&models.ShareLinkModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.DonorModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete donor: %w", err)
	}
	return deleted, nil
}

func (r *DonorRepository) toDomainList(rows []models.DonorModel) ([]*donor.Donor, error) {
	donors := make([]*donor.Donor, 0, len(rows))
	for i := range rows {
		d, err := mappers.DonorToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		donors = append(donors, d)
	}
	return donors, nil
}
