package models

import (
	"time"

	"plexward/internal/shared/constants"
)

// DonorModel is the persistence model for donors, the anti-corruption layer
// between the donor aggregate and the database.
type DonorModel struct {
	ID    uint   `gorm:"primarykey"`
	Email string `gorm:"size:255;index:idx_donor_email"`
	Name  string `gorm:"size:255"`

	Provider string `gorm:"not null;size:16;uniqueIndex:idx_provider_subscription,priority:1"`
	// SubscriptionID is the provider's subscription identifier, unique per
	// provider.
	SubscriptionID   string `gorm:"not null;size:128;uniqueIndex:idx_provider_subscription,priority:2"`
	StripeCustomerID string `gorm:"size:128;index:idx_stripe_customer"`

	PlexAccountID string `gorm:"size:64"`
	PlexEmail     string `gorm:"size:255"`

	Status               string     `gorm:"not null;size:20;index:idx_donor_status"`
	AccessExpiresAt      *time.Time `gorm:"index:idx_access_expires"`
	HadPreexistingAccess bool       `gorm:"not null;default:false"`
	LastPaymentAt        *time.Time
	RefreshError         string `gorm:"size:500"`
	StatusRefreshedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Invites    []InviteModel    `gorm:"foreignKey:DonorID;constraint:OnDelete:CASCADE"`
	Payments   []PaymentModel   `gorm:"foreignKey:DonorID;constraint:OnDelete:CASCADE"`
	ShareLinks []ShareLinkModel `gorm:"foreignKey:DonorID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (DonorModel) TableName() string {
	return constants.TableDonors
}
