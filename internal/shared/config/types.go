package config

import "fmt"

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	// DrainTimeoutSeconds bounds graceful shutdown of in-flight handlers.
	DrainTimeoutSeconds int `mapstructure:"drain_timeout_seconds"`
}

// GetAddr returns the server address in host:port format
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection configuration.
// Driver "sqlite" (default) uses File; driver "mysql" uses the host fields.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	File            string `mapstructure:"file"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RedisConfig holds Redis configuration (webhook rate limiting)
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GetAddr returns the Redis address in host:port format
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost    string `mapstructure:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	SMTPUser    string `mapstructure:"smtp_user"`
	SMTPPass    string `mapstructure:"smtp_password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// Configured reports whether SMTP delivery can be attempted.
func (c *EmailConfig) Configured() bool {
	return c.SMTPHost != "" && c.FromAddress != ""
}

// PayPalConfig holds PayPal REST credentials and webhook verification settings
type PayPalConfig struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	WebhookID      string `mapstructure:"webhook_id"`
	Environment    string `mapstructure:"environment"` // "live" or "sandbox"
	PlanID         string `mapstructure:"plan_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Configured reports whether API credentials are present.
func (c *PayPalConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// BaseURL returns the REST API base URL for the configured environment.
func (c *PayPalConfig) BaseURL() string {
	if c.Environment == "sandbox" {
		return "https://api-m.sandbox.paypal.com"
	}
	return "https://api-m.paypal.com"
}

// StripeConfig holds Stripe API credentials and webhook secret
type StripeConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	PriceID        string `mapstructure:"price_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Configured reports whether API credentials are present.
func (c *StripeConfig) Configured() bool {
	return c.SecretKey != ""
}

// PlexConfig holds Plex server access configuration
type PlexConfig struct {
	Token string `mapstructure:"token"`
	// BaseURL is the owned server's address, used to disambiguate
	// auto-detected resources.
	BaseURL string `mapstructure:"base_url"`
	// ServerIdentifier is the 40-char machine identifier. Empty triggers
	// auto-detection against plex.tv resources.
	ServerIdentifier string `mapstructure:"server_identifier"`
	// LibrarySectionIDs are the sections shared with donors. At least one is
	// required before any invite is attempted.
	LibrarySectionIDs []string `mapstructure:"library_section_ids"`
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
}

// Configured reports whether the Plex integration can be used.
func (c *PlexConfig) Configured() bool {
	return c.Token != ""
}

// NotificationsConfig controls user-facing and admin email notifications
type NotificationsConfig struct {
	AdminEmail   string `mapstructure:"admin_email"`
	DashboardURL string `mapstructure:"dashboard_url"`
	ServerName   string `mapstructure:"server_name"`
}

// AdminConfig holds the admin API auth settings
type AdminConfig struct {
	// SessionSecret signs admin bearer tokens. Sourced from SESSION_SECRET.
	SessionSecret string `mapstructure:"session_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

// SweeperConfig holds periodic reconciliation settings
type SweeperConfig struct {
	IntervalMinutes        int `mapstructure:"interval_minutes"`
	RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes"`
	// InviteStaleDays is the staleness threshold for existing invites.
	// 0 disables staleness checks. Sourced from PLEX_INVITE_STALE_DAYS.
	InviteStaleDays int `mapstructure:"invite_stale_days"`
	// LockTimeoutSeconds bounds per-subscription lock acquisition.
	LockTimeoutSeconds int `mapstructure:"lock_timeout_seconds"`
	// DriftRepair enables clearing Plex identities of donors who removed
	// themselves from the server.
	DriftRepair bool `mapstructure:"drift_repair"`
}

// RateLimitConfig controls webhook endpoint rate limiting
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}
