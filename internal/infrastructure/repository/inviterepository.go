package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"plexward/internal/domain/invite"
	"plexward/internal/infrastructure/persistence/mappers"
	"plexward/internal/infrastructure/persistence/models"
	"plexward/internal/shared/biztime"
	apperrors "plexward/internal/shared/errors"
)

type InviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

var _ invite.Repository = (*InviteRepository)(nil)

func (r *InviteRepository) Create(ctx context.Context, inv *invite.Invite) error {
	model, err := mappers.InviteToModel(inv)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Revoke any prior active invite so the partial unique index admits
		// the new row. Concurrent creates race on the index; the loser
		// surfaces ErrActiveInviteExists and re-reads the winner's row.
		now := biztime.NowUTC()
		if err := tx.Model(&models.InviteModel{}).
			Where("donor_id = ? AND revoked_at IS NULL", inv.DonorID()).
			Update("revoked_at", now).Error; err != nil {
			return err
		}
		return tx.Create(model).Error
	})
	if err != nil {
		if apperrors.IsDuplicateError(err) {
			return invite.ErrActiveInviteExists
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}

	inv.SetID(model.ID)
	return nil
}

func (r *InviteRepository) GetByID(ctx context.Context, id uint) (*invite.Invite, error) {
	var model models.InviteModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invite.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return mappers.InviteToDomain(&model)
}

func (r *InviteRepository) LatestActiveForDonor(ctx context.Context, donorID uint) (*invite.Invite, error) {
	var model models.InviteModel
	err := r.db.WithContext(ctx).
		Where("donor_id = ? AND revoked_at IS NULL", donorID).
		Order("created_at desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invite.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest active invite: %w", err)
	}
	return mappers.InviteToDomain(&model)
}

func (r *InviteRepository) Update(ctx context.Context, inv *invite.Invite) error {
	model, err := mappers.InviteToModel(inv)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.InviteModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"plex_invite_id":   model.PlexInviteID,
			"invite_url":       model.InviteURL,
			"invite_status":    model.InviteStatus,
			"invited_at":       model.InvitedAt,
			"plex_invited_at":  model.PlexInvitedAt,
			"shared_libraries": model.SharedLibraries,
			"recipient_email":  model.RecipientEmail,
			"plex_account_id":  model.PlexAccountID,
			"plex_email":       model.PlexEmail,
			"note":             model.Note,
			"email_sent_at":    model.EmailSentAt,
			"revoked_at":       model.RevokedAt,
			"plex_revoked_at":  model.PlexRevokedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update invite: %w", result.Error)
	}
	return nil
}

func (r *InviteRepository) MarkEmailSent(ctx context.Context, id uint) (*invite.Invite, error) {
	now := biztime.NowUTC()
	result := r.db.WithContext(ctx).
		Model(&models.InviteModel{}).
		Where("id = ?", id).
		Update("email_sent_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark invite email sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, invite.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *InviteRepository) Revoke(ctx context.Context, id uint, plexRevoked bool) error {
	now := biztime.NowUTC()
	updates := map[string]interface{}{"revoked_at": now}
	if plexRevoked {
		updates["plex_revoked_at"] = now
	}
	result := r.db.WithContext(ctx).
		Model(&models.InviteModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return invite.ErrNotFound
	}
	return nil
}

func (r *InviteRepository) ListForDonor(ctx context.Context, donorID uint) ([]*invite.Invite, error) {
	var rows []models.InviteModel
	err := r.db.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}

	invites := make([]*invite.Invite, 0, len(rows))
	for i := range rows {
		inv, err := mappers.InviteToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, nil
}
