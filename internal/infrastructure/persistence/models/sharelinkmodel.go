package models

import (
	"time"

	"plexward/internal/shared/constants"
)

// ShareLinkModel is the persistence model for onboarding share links.
// DonorID is nullable; prospect links carry only an email. The partial
// unique indexes over non-null donor_id and prospect_email are created by
// a data migration.
type ShareLinkModel struct {
	ID            uint   `gorm:"primarykey"`
	Token         string `gorm:"not null;size:36;uniqueIndex:idx_sharelink_token"`
	DonorID       *uint  `gorm:"index:idx_sharelink_donor"`
	ProspectEmail string `gorm:"size:255"`
	Note          string `gorm:"size:500"`
	ExpiresAt     *time.Time
	RedeemedAt    *time.Time
	CreatedAt     time.Time
}

// TableName specifies the table name for GORM
func (ShareLinkModel) TableName() string {
	return constants.TableShareLinks
}
