package mappers

import (
	"plexward/internal/domain/donor"
	"plexward/internal/domain/payment"
	"plexward/internal/infrastructure/persistence/models"
)

// PaymentToModel converts a payment to its persistence model.
func PaymentToModel(p *payment.Payment) *models.PaymentModel {
	return &models.PaymentModel{
		ID:                p.ID(),
		DonorID:           p.DonorID(),
		Provider:          string(p.Provider()),
		ProviderPaymentID: p.ProviderPaymentID(),
		Amount:            p.Amount(),
		Currency:          p.Currency(),
		PaidAt:            p.PaidAt(),
		CreatedAt:         p.CreatedAt(),
	}
}

// PaymentToDomain converts a persistence model back into the domain type.
func PaymentToDomain(m *models.PaymentModel) *payment.Payment {
	return payment.ReconstructPayment(
		m.ID,
		m.DonorID,
		donor.Provider(m.Provider),
		m.ProviderPaymentID,
		m.Amount,
		m.Currency,
		m.PaidAt,
		m.CreatedAt,
	)
}
