package models

import (
	"time"

	"gorm.io/datatypes"

	"plexward/internal/shared/constants"
)

// InviteModel is the persistence model for Plex invites. The partial unique
// index on (donor_id) WHERE revoked_at IS NULL backs the at-most-one-active
// invariant; it is created by a data migration since gorm tags cannot express
// partial indexes.
type InviteModel struct {
	ID      uint  `gorm:"primarykey"`
	DonorID *uint `gorm:"index:idx_invite_donor"`

	PlexInviteID    string `gorm:"size:64"`
	InviteURL       string `gorm:"size:1024"`
	InviteStatus    string `gorm:"size:32"`
	InvitedAt       *time.Time
	PlexInvitedAt   *time.Time
	SharedLibraries datatypes.JSON
	RecipientEmail  string `gorm:"size:255"`
	PlexAccountID   string `gorm:"size:64"`
	PlexEmail       string `gorm:"size:255"`
	Note            string `gorm:"size:500"`
	EmailSentAt     *time.Time
	RevokedAt       *time.Time
	PlexRevokedAt   *time.Time
	CreatedAt       time.Time
}

// TableName specifies the table name for GORM
func (InviteModel) TableName() string {
	return constants.TableInvites
}
