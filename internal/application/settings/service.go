package settings

import (
	"context"
	"fmt"
	"strings"

	"plexward/internal/domain/setting"
	"plexward/internal/shared/constants"
	"plexward/internal/shared/errors"
	"plexward/internal/shared/logger"
)

var validCategories = map[string]bool{
	constants.SettingCategoryPayPal:        true,
	constants.SettingCategoryStripe:        true,
	constants.SettingCategoryPlex:          true,
	constants.SettingCategorySMTP:          true,
	constants.SettingCategoryNotifications: true,
	constants.SettingCategoryAnnouncement:  true,
}

// secretKeys are masked when settings are read back over the API.
var secretKeys = map[string]bool{
	"client_secret":  true,
	"secret_key":     true,
	"webhook_secret": true,
	"password":       true,
	"token":          true,
}

// Service manages the system settings store and fans out change notifications.
type Service struct {
	settingRepo setting.Repository
	provider    *Provider
	logger      logger.Interface
}

func NewService(settingRepo setting.Repository, provider *Provider, log logger.Interface) *Service {
	return &Service{
		settingRepo: settingRepo,
		provider:    provider,
		logger:      log,
	}
}

// Update upserts the given key/value pairs under category and notifies
// subscribers so dependent services reinitialize.
func (s *Service) Update(ctx context.Context, category string, values map[string]string) error {
	if !validCategories[category] {
		return errors.NewValidationError(fmt.Sprintf("unknown settings category: %s", category))
	}
	if len(values) == 0 {
		return errors.NewValidationError("no settings provided")
	}

	changes := make(map[string]any, len(values))
	for key, value := range values {
		entry, err := setting.NewSystemSetting(category, key, value, setting.ValueTypeString)
		if err != nil {
			return errors.NewValidationError(err.Error())
		}
		if err := s.settingRepo.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("failed to save setting %s.%s: %w", category, key, err)
		}
		changes[key] = value
	}

	s.logger.Infow("settings updated", "category", category, "keys", len(changes))

	if err := s.provider.NotifyChange(ctx, category, changes); err != nil {
		s.logger.Warnw("settings saved but reload notification failed",
			"category", category,
			"error", err,
		)
	}
	return nil
}

// Get returns the stored settings for a category with secret values masked.
func (s *Service) Get(ctx context.Context, category string) (map[string]string, error) {
	if !validCategories[category] {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown settings category: %s", category))
	}
	rows, err := s.settingRepo.GetByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		value := row.Value()
		if isSecretKey(row.Key()) && value != "" {
			value = "********"
		}
		out[row.Key()] = value
	}
	return out, nil
}

func isSecretKey(key string) bool {
	if secretKeys[key] {
		return true
	}
	return strings.HasSuffix(key, "_secret") || strings.HasSuffix(key, "_password")
}
