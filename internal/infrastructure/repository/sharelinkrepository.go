package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"plexward/internal/domain/sharelink"
	"plexward/internal/infrastructure/persistence/mappers"
	"plexward/internal/infrastructure/persistence/models"
)

type ShareLinkRepository struct {
	db *gorm.DB
}

func NewShareLinkRepository(db *gorm.DB) *ShareLinkRepository {
	return &ShareLinkRepository{db: db}
}

var _ sharelink.Repository = (*ShareLinkRepository)(nil)

func (r *ShareLinkRepository) Create(ctx context.Context, link *sharelink.ShareLink) error {
	model := mappers.ShareLinkToModel(link)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	link.SetID(model.ID)
	return nil
}

func (r *ShareLinkRepository) GetByToken(ctx context.Context, token string) (*sharelink.ShareLink, error) {
	var model models.ShareLinkModel
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sharelink.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return mappers.ShareLinkToDomain(&model), nil
}

func (r *ShareLinkRepository) Update(ctx context.Context, link *sharelink.ShareLink) error {
	updates := map[string]interface{}{
		"donor_id":    link.DonorID(),
		"note":        link.Note(),
		"expires_at":  link.ExpiresAt(),
		"redeemed_at": link.RedeemedAt(),
	}
	result := r.db.WithContext(ctx).
		Model(&models.ShareLinkModel{}).
		Where("id = ?", link.ID()).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update share link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return sharelink.ErrNotFound
	}
	return nil
}

func (r *ShareLinkRepository) List(ctx context.Context) ([]*sharelink.ShareLink, error) {
	var rows []models.ShareLinkModel
	if err := r.db.WithContext(ctx).Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	links := make([]*sharelink.ShareLink, 0, len(rows))
	for i := range rows {
		links = append(links, mappers.ShareLinkToDomain(&rows[i]))
	}
	return links, nil
}

func (r *ShareLinkRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ShareLinkModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete share link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return sharelink.ErrNotFound
	}
	return nil
}
