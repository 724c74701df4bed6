package models

import (
	"time"

	"plexward/internal/shared/constants"
)

// PaymentModel is the persistence model for payments. Rows are append-only;
// (provider, provider_payment_id) is the dedup key.
type PaymentModel struct {
	ID                uint    `gorm:"primarykey"`
	DonorID           uint    `gorm:"not null;index:idx_payment_donor"`
	Provider          string  `gorm:"not null;size:16;uniqueIndex:idx_provider_payment,priority:1"`
	ProviderPaymentID string  `gorm:"not null;size:128;uniqueIndex:idx_provider_payment,priority:2"`
	Amount            float64 `gorm:"not null"`
	Currency          string  `gorm:"not null;size:8"`
	PaidAt            time.Time
	CreatedAt         time.Time
}

// TableName specifies the table name for GORM
func (PaymentModel) TableName() string {
	return constants.TablePayments
}
