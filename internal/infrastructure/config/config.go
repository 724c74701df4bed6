package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sharedConfig "plexward/internal/shared/config"
)

type Config struct {
	Server        sharedConfig.ServerConfig        `mapstructure:"server"`
	Database      sharedConfig.DatabaseConfig      `mapstructure:"database"`
	Logger        sharedConfig.LoggerConfig        `mapstructure:"logger"`
	Redis         sharedConfig.RedisConfig         `mapstructure:"redis"`
	Email         sharedConfig.EmailConfig         `mapstructure:"email"`
	PayPal        sharedConfig.PayPalConfig        `mapstructure:"paypal"`
	Stripe        sharedConfig.StripeConfig        `mapstructure:"stripe"`
	Plex          sharedConfig.PlexConfig          `mapstructure:"plex"`
	Notifications sharedConfig.NotificationsConfig `mapstructure:"notifications"`
	Admin         sharedConfig.AdminConfig         `mapstructure:"admin"`
	Sweeper       sharedConfig.SweeperConfig       `mapstructure:"sweeper"`
	RateLimit     sharedConfig.RateLimitConfig     `mapstructure:"rate_limit"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// A .env file is honored for local development.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("PLEXWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindLegacyEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env and defaults carry a full setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// bindLegacyEnv maps the historical bare environment names onto their viper
// keys so existing deployments keep working without the PLEXWARD_ prefix.
func bindLegacyEnv() {
	if v := os.Getenv("DATABASE_FILE"); v != "" {
		viper.Set("database.file", v)
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		viper.Set("admin.session_secret", v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		viper.Set("logger.level", v)
	}
	if v := os.Getenv("PLEX_INVITE_STALE_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			viper.Set("sweeper.invite_stale_days", days)
		}
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.public_base_url", "")
	viper.SetDefault("server.drain_timeout_seconds", 15)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.file", "plexward.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.conn_max_lifetime", 60)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("email.smtp_host", "")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("email.from_address", "noreply@plexward.local")
	viper.SetDefault("email.from_name", "Plexward")

	viper.SetDefault("paypal.environment", "live")
	viper.SetDefault("paypal.timeout_seconds", 30)
	viper.SetDefault("stripe.timeout_seconds", 30)
	viper.SetDefault("plex.timeout_seconds", 30)

	viper.SetDefault("admin.token_ttl_hours", 24)

	viper.SetDefault("sweeper.interval_minutes", 5)
	viper.SetDefault("sweeper.refresh_interval_minutes", 720)
	viper.SetDefault("sweeper.invite_stale_days", 0)
	viper.SetDefault("sweeper.lock_timeout_seconds", 60)
	viper.SetDefault("sweeper.drift_repair", false)

	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_minute", 100)
}
