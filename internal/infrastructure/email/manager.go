package email

import (
	"context"
	"sync"

	"plexward/internal/application/settings"
	"plexward/internal/shared/constants"
	"plexward/internal/shared/logger"
)

// Manager holds the active SMTP service and rebuilds it when the smtp
// settings category changes.
type Manager struct {
	provider *settings.Provider
	logger   logger.Interface

	mu      sync.RWMutex
	service *SMTPEmailService
}

func NewManager(provider *settings.Provider, log logger.Interface) *Manager {
	return &Manager{
		provider: provider,
		logger:   log,
	}
}

// Initialize builds the email service from the current configuration.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) error {
	cfg := m.provider.GetEmailConfig(ctx)
	if !cfg.Configured() {
		m.service = nil
		m.logger.Debugw("email service not configured, smtp host or from address is empty")
		return nil
	}

	m.service = NewSMTPEmailService(SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
	})
	m.logger.Infow("email service initialized",
		"host", cfg.SMTPHost,
		"port", cfg.SMTPPort,
		"from", cfg.FromAddress,
	)
	return nil
}

// OnSettingChange implements settings.ChangeSubscriber.
func (m *Manager) OnSettingChange(ctx context.Context, category string, changes map[string]any) error {
	if category != constants.SettingCategorySMTP {
		return nil
	}
	m.logger.Infow("smtp configuration changed, reinitializing email service")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

// Send delivers a message through the current service.
func (m *Manager) Send(msg Message) error {
	m.mu.RLock()
	service := m.service
	m.mu.RUnlock()
	if service == nil {
		m.logger.Warnw("email service not configured, dropping message",
			"to", msg.To,
			"subject", msg.Subject,
		)
		return ErrEmailServiceNotConfigured
	}
	return service.Send(msg)
}

// SendTestEmail verifies the current configuration end to end.
func (m *Manager) SendTestEmail(to string) error {
	m.mu.RLock()
	service := m.service
	m.mu.RUnlock()
	if service == nil {
		return ErrEmailServiceNotConfigured
	}
	return service.SendTestEmail(to)
}

// IsConfigured reports whether a service is active.
func (m *Manager) IsConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.service != nil
}
