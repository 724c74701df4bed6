package mappers

import (
	"plexward/internal/domain/sharelink"
	"plexward/internal/infrastructure/persistence/models"
)

// ShareLinkToModel converts a share link to its persistence model.
func ShareLinkToModel(s *sharelink.ShareLink) *models.ShareLinkModel {
	return &models.ShareLinkModel{
		ID:            s.ID(),
		Token:         s.Token(),
		DonorID:       s.DonorID(),
		ProspectEmail: s.ProspectEmail(),
		Note:          s.Note(),
		ExpiresAt:     s.ExpiresAt(),
		RedeemedAt:    s.RedeemedAt(),
		CreatedAt:     s.CreatedAt(),
	}
}

// ShareLinkToDomain converts a persistence model back into the domain type.
func ShareLinkToDomain(m *models.ShareLinkModel) *sharelink.ShareLink {
	return sharelink.ReconstructShareLink(
		m.ID,
		m.Token,
		m.DonorID,
		m.ProspectEmail,
		m.Note,
		m.ExpiresAt,
		m.RedeemedAt,
		m.CreatedAt,
	)
}
