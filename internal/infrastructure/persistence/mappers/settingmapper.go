package mappers

import (
	"plexward/internal/domain/setting"
	"plexward/internal/infrastructure/persistence/models"
)

// SettingToModel converts a system setting to its persistence model.
func SettingToModel(s *setting.SystemSetting) *models.SystemSettingModel {
	return &models.SystemSettingModel{
		ID:        s.ID(),
		Category:  s.Category(),
		Key:       s.Key(),
		Value:     s.Value(),
		ValueType: string(s.Type()),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	}
}

// SettingToDomain converts a persistence model back into the domain type.
func SettingToDomain(m *models.SystemSettingModel) *setting.SystemSetting {
	return setting.ReconstructSystemSetting(
		m.ID,
		m.Category,
		m.Key,
		m.Value,
		setting.ValueType(m.ValueType),
		m.CreatedAt,
		m.UpdatedAt,
	)
}
