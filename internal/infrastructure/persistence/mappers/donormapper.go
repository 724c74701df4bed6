package mappers

import (
	"plexward/internal/domain/donor"
	"plexward/internal/infrastructure/persistence/models"
)

// DonorToModel converts a donor aggregate to its persistence model.
func DonorToModel(d *donor.Donor) *models.DonorModel {
	return &models.DonorModel{
		ID:                   d.ID(),
		Email:                d.Email(),
		Name:                 d.Name(),
		Provider:             string(d.Provider()),
		SubscriptionID:       d.SubscriptionID(),
		StripeCustomerID:     d.StripeCustomerID(),
		PlexAccountID:        d.PlexAccountID(),
		PlexEmail:            d.PlexEmail(),
		Status:               string(d.Status()),
		AccessExpiresAt:      d.AccessExpiresAt(),
		HadPreexistingAccess: d.HadPreexistingAccess(),
		LastPaymentAt:        d.LastPaymentAt(),
		RefreshError:         d.RefreshError(),
		StatusRefreshedAt:    d.StatusRefreshedAt(),
		CreatedAt:            d.CreatedAt(),
		UpdatedAt:            d.UpdatedAt(),
	}
}

// DonorToDomain converts a persistence model back into the aggregate.
func DonorToDomain(m *models.DonorModel) (*donor.Donor, error) {
	return donor.ReconstructDonor(
		m.ID,
		m.Email,
		m.Name,
		donor.Provider(m.Provider),
		m.SubscriptionID,
		m.StripeCustomerID,
		m.PlexAccountID,
		m.PlexEmail,
		donor.Status(m.Status),
		m.AccessExpiresAt,
		m.HadPreexistingAccess,
		m.LastPaymentAt,
		m.RefreshError,
		m.StatusRefreshedAt,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
