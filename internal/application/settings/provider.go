package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"plexward/internal/domain/setting"
	sharedConfig "plexward/internal/shared/config"
	"plexward/internal/shared/constants"
	"plexward/internal/shared/logger"
)

// ChangeSubscriber is notified after a settings category is updated.
type ChangeSubscriber interface {
	OnSettingChange(ctx context.Context, category string, changes map[string]any) error
}

// ProviderConfig holds the environment-sourced fallback configurations.
type ProviderConfig struct {
	Email         sharedConfig.EmailConfig
	PayPal        sharedConfig.PayPalConfig
	Stripe        sharedConfig.StripeConfig
	Plex          sharedConfig.PlexConfig
	Notifications sharedConfig.NotificationsConfig
}

// Provider serves hot-reloadable provider configuration. Database values take
// precedence over environment values on a per-key basis.
type Provider struct {
	settingRepo setting.Repository
	fallback    ProviderConfig
	logger      logger.Interface

	subscribers []ChangeSubscriber
	mu          sync.RWMutex
}

// NewProvider creates a settings provider with env-sourced fallbacks.
func NewProvider(settingRepo setting.Repository, fallback ProviderConfig, log logger.Interface) *Provider {
	return &Provider{
		settingRepo: settingRepo,
		fallback:    fallback,
		logger:      log,
		subscribers: make([]ChangeSubscriber, 0),
	}
}

// Subscribe registers a subscriber for setting changes.
func (p *Provider) Subscribe(subscriber ChangeSubscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, subscriber)
}

// NotifyChange notifies all subscribers of configuration changes.
func (p *Provider) NotifyChange(ctx context.Context, category string, changes map[string]any) error {
	p.mu.RLock()
	subscribers := make([]ChangeSubscriber, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.RUnlock()

	var errs []error
	for _, subscriber := range subscribers {
		if err := subscriber.OnSettingChange(ctx, category, changes); err != nil {
			p.logger.Errorw("subscriber failed to handle setting change",
				"category", category,
				"subscriber", fmt.Sprintf("%T", subscriber),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to notify %d/%d subscribers, first error: %w", len(errs), len(subscribers), errs[0])
	}
	return nil
}

// categoryValues loads all DB overrides for a category keyed by setting key.
func (p *Provider) categoryValues(ctx context.Context, category string) map[string]*setting.SystemSetting {
	rows, err := p.settingRepo.GetByCategory(ctx, category)
	if err != nil {
		p.logger.Warnw("failed to load settings from database, using env config",
			"category", category,
			"error", err,
		)
		return nil
	}
	values := make(map[string]*setting.SystemSetting, len(rows))
	for _, s := range rows {
		values[s.Key()] = s
	}
	return values
}

func override(values map[string]*setting.SystemSetting, key string, dst *string) {
	if s, ok := values[key]; ok && s.Value() != "" {
		*dst = s.Value()
	}
}

func overrideInt(values map[string]*setting.SystemSetting, key string, dst *int) {
	if s, ok := values[key]; ok && s.Value() != "" {
		*dst = s.IntValue(*dst)
	}
}

// GetEmailConfig returns the merged SMTP configuration.
func (p *Provider) GetEmailConfig(ctx context.Context) sharedConfig.EmailConfig {
	cfg := p.fallback.Email
	values := p.categoryValues(ctx, constants.SettingCategorySMTP)
	override(values, "host", &cfg.SMTPHost)
	overrideInt(values, "port", &cfg.SMTPPort)
	override(values, "username", &cfg.SMTPUser)
	override(values, "password", &cfg.SMTPPass)
	override(values, "from_address", &cfg.FromAddress)
	override(values, "from_name", &cfg.FromName)
	return cfg
}

// GetPayPalConfig returns the merged PayPal configuration.
func (p *Provider) GetPayPalConfig(ctx context.Context) sharedConfig.PayPalConfig {
	cfg := p.fallback.PayPal
	values := p.categoryValues(ctx, constants.SettingCategoryPayPal)
	override(values, "client_id", &cfg.ClientID)
	override(values, "client_secret", &cfg.ClientSecret)
	override(values, "webhook_id", &cfg.WebhookID)
	override(values, "environment", &cfg.Environment)
	override(values, "plan_id", &cfg.PlanID)
	return cfg
}

// GetStripeConfig returns the merged Stripe configuration.
func (p *Provider) GetStripeConfig(ctx context.Context) sharedConfig.StripeConfig {
	cfg := p.fallback.Stripe
	values := p.categoryValues(ctx, constants.SettingCategoryStripe)
	override(values, "secret_key", &cfg.SecretKey)
	override(values, "webhook_secret", &cfg.WebhookSecret)
	override(values, "price_id", &cfg.PriceID)
	return cfg
}

// GetPlexConfig returns the merged Plex configuration.
func (p *Provider) GetPlexConfig(ctx context.Context) sharedConfig.PlexConfig {
	cfg := p.fallback.Plex
	values := p.categoryValues(ctx, constants.SettingCategoryPlex)
	override(values, "token", &cfg.Token)
	override(values, "base_url", &cfg.BaseURL)
	override(values, "server_identifier", &cfg.ServerIdentifier)
	if s, ok := values["library_section_ids"]; ok && s.Value() != "" {
		parts := strings.Split(s.Value(), ",")
		sections := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				sections = append(sections, trimmed)
			}
		}
		cfg.LibrarySectionIDs = sections
	}
	return cfg
}

// GetNotificationsConfig returns the merged notification settings.
func (p *Provider) GetNotificationsConfig(ctx context.Context) sharedConfig.NotificationsConfig {
	cfg := p.fallback.Notifications
	values := p.categoryValues(ctx, constants.SettingCategoryNotifications)
	override(values, "admin_email", &cfg.AdminEmail)
	override(values, "dashboard_url", &cfg.DashboardURL)
	override(values, "server_name", &cfg.ServerName)
	return cfg
}

// GetString retrieves a string setting value, database first.
func (p *Provider) GetString(ctx context.Context, category, key, defaultValue string) string {
	s, err := p.settingRepo.GetByKey(ctx, category, key)
	if err != nil || s == nil || s.Value() == "" {
		return defaultValue
	}
	return s.Value()
}

// GetBool retrieves a bool setting value, database first.
func (p *Provider) GetBool(ctx context.Context, category, key string, defaultValue bool) bool {
	s, err := p.settingRepo.GetByKey(ctx, category, key)
	if err != nil || s == nil || s.Value() == "" {
		return defaultValue
	}
	return s.BoolValue(defaultValue)
}
