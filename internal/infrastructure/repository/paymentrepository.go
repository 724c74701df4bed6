package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"plexward/internal/domain/donor"
	"plexward/internal/domain/payment"
	"plexward/internal/infrastructure/persistence/mappers"
	"plexward/internal/infrastructure/persistence/models"
	apperrors "plexward/internal/shared/errors"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

var _ payment.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Record(ctx context.Context, p *payment.Payment) (*payment.Payment, bool, error) {
	model := mappers.PaymentToModel(p)

	err := r.db.WithContext(ctx).Create(model).Error
	if err == nil {
		p.SetID(model.ID)
		return p, true, nil
	}

	if apperrors.IsDuplicateError(err) {
		existing, lookupErr := r.GetByProviderPaymentID(ctx, p.Provider(), p.ProviderPaymentID())
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}

	return nil, false, fmt.Errorf("failed to record payment: %w", err)
}

func (r *PaymentRepository) ListForDonor(ctx context.Context, donorID uint) ([]*payment.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("paid_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		payments = append(payments, mappers.PaymentToDomain(&rows[i]))
	}
	return payments, nil
}

func (r *PaymentRepository) GetByProviderPaymentID(ctx context.Context, provider donor.Provider, providerPaymentID string) (*payment.Payment, error) {
	var model models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_payment_id = ?", string(provider), providerPaymentID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return mappers.PaymentToDomain(&model), nil
}
