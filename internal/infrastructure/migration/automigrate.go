package migration

import (
	"plexward/internal/infrastructure/persistence/models"
)

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.DonorModel{},
		&models.InviteModel{},
		&models.PaymentModel{},
		&models.ShareLinkModel{},
		&models.EventModel{},
		&models.SystemSettingModel{},
	}
}
