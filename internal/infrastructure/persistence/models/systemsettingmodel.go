package models

import (
	"time"

	"plexward/internal/shared/constants"
)

// SystemSettingModel is the persistence model for system settings.
type SystemSettingModel struct {
	ID        uint   `gorm:"primarykey"`
	Category  string `gorm:"not null;size:64;uniqueIndex:idx_setting_category_key,priority:1"`
	Key       string `gorm:"not null;size:128;uniqueIndex:idx_setting_category_key,priority:2"`
	Value     string `gorm:"type:text"`
	ValueType string `gorm:"not null;size:16;default:string"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (SystemSettingModel) TableName() string {
	return constants.TableSystemSettings
}
