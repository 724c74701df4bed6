package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plexward/internal/domain/setting"
	"plexward/internal/infrastructure/persistence/mappers"
	"plexward/internal/infrastructure/persistence/models"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

var _ setting.Repository = (*SettingRepository)(nil)

func (r *SettingRepository) GetByKey(ctx context.Context, category, key string) (*setting.SystemSetting, error) {
	var model models.SystemSettingModel
	err := r.db.WithContext(ctx).
		Where("category = ? AND `key` = ?", category, key).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, setting.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	return mappers.SettingToDomain(&model), nil
}

func (r *SettingRepository) GetByCategory(ctx context.Context, category string) ([]*setting.SystemSetting, error) {
	var rows []models.SystemSettingModel
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("`key` asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	settings := make([]*setting.SystemSetting, 0, len(rows))
	for i := range rows {
		settings = append(settings, mappers.SettingToDomain(&rows[i]))
	}
	return settings, nil
}

func (r *SettingRepository) Upsert(ctx context.Context, s *setting.SystemSetting) error {
	model := mappers.SettingToModel(s)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "value_type", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	s.SetID(model.ID)
	return nil
}

func (r *SettingRepository) Delete(ctx context.Context, category, key string) error {
	result := r.db.WithContext(ctx).
		Where("category = ? AND `key` = ?", category, key).
		Delete(&models.SystemSettingModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete setting: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return setting.ErrNotFound
	}
	return nil
}
