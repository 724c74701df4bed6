package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"plexward/internal/domain/invite"
	"plexward/internal/infrastructure/persistence/models"
)

// InviteToModel converts an invite aggregate to its persistence model.
func InviteToModel(inv *invite.Invite) (*models.InviteModel, error) {
	var libs datatypes.JSON
	if sections := inv.SharedLibraries(); len(sections) > 0 {
		raw, err := json.Marshal(sections)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal shared libraries: %w", err)
		}
		libs = raw
	}

	donorID := inv.DonorID()
	return &models.InviteModel{
		ID:              inv.ID(),
		DonorID:         &donorID,
		PlexInviteID:    inv.PlexInviteID(),
		InviteURL:       inv.InviteURL(),
		InviteStatus:    inv.InviteStatus(),
		InvitedAt:       inv.InvitedAt(),
		PlexInvitedAt:   inv.PlexInvitedAt(),
		SharedLibraries: libs,
		RecipientEmail:  inv.RecipientEmail(),
		PlexAccountID:   inv.PlexAccountID(),
		PlexEmail:       inv.PlexEmail(),
		Note:            inv.Note(),
		EmailSentAt:     inv.EmailSentAt(),
		RevokedAt:       inv.RevokedAt(),
		PlexRevokedAt:   inv.PlexRevokedAt(),
		CreatedAt:       inv.CreatedAt(),
	}, nil
}

// InviteToDomain converts a persistence model back into the aggregate.
func InviteToDomain(m *models.InviteModel) (*invite.Invite, error) {
	var libs []string
	if len(m.SharedLibraries) > 0 {
		if err := json.Unmarshal(m.SharedLibraries, &libs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shared libraries: %w", err)
		}
	}

	var donorID uint
	if m.DonorID != nil {
		donorID = *m.DonorID
	}

	return invite.ReconstructInvite(
		m.ID,
		donorID,
		m.PlexInviteID,
		m.InviteURL,
		m.InviteStatus,
		m.InvitedAt,
		m.PlexInvitedAt,
		libs,
		m.RecipientEmail,
		m.PlexAccountID,
		m.PlexEmail,
		m.Note,
		m.EmailSentAt,
		m.RevokedAt,
		m.PlexRevokedAt,
		m.CreatedAt,
	)
}
