package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DBConfig holds the optional PostgreSQL connection settings. When Host is
// empty the application falls back to the in-memory store.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Enabled reports whether a database connection is configured.
func (c *DBConfig) Enabled() bool {
	return c.Host != ""
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort string
	LogLevel   slog.Level

	GitHubAppID          int64
	GitHubWebhookSecret  string
	GitHubPrivateKeyPath string

	JulesAPIKey  string
	JulesBaseURL string
	JulesModel   string

	PromptTemplatePath string
	DiffLimitBytes     int
	DeliveryTTL        time.Duration
	MaxWorkers         int

	Database DBConfig
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JULES_BASE_URL", "https://jules.googleapis.com/v1alpha")
	viper.SetDefault("JULES_MODEL", "jules-v1")
	viper.SetDefault("DIFF_LIMIT_BYTES", 50000)
	viper.SetDefault("DELIVERY_TTL_MINUTES", 60)
	viper.SetDefault("MAX_WORKERS", 1)
	viper.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/jules-warden-app.private-key.pem")
	viper.SetDefault("DATABASE_PORT", 5432)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("DATABASE_CONN_MAX_IDLE_MINUTES", 5)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", "error", err)
		}
	}

	if viper.GetInt64("GITHUB_APP_ID") == 0 {
		return nil, fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	if viper.GetString("JULES_API_KEY") == "" {
		return nil, fmt.Errorf("JULES_API_KEY must be set")
	}
	if viper.GetInt("DIFF_LIMIT_BYTES") <= 0 {
		return nil, fmt.Errorf("DIFF_LIMIT_BYTES must be positive")
	}

	return &Config{
		ServerPort:           viper.GetString("SERVER_PORT"),
		LogLevel:             parseLogLevel(viper.GetString("LOG_LEVEL")),
		GitHubAppID:          viper.GetInt64("GITHUB_APP_ID"),
		GitHubWebhookSecret:  viper.GetString("GITHUB_WEBHOOK_SECRET"),
		GitHubPrivateKeyPath: viper.GetString("GITHUB_PRIVATE_KEY_PATH"),
		JulesAPIKey:          viper.GetString("JULES_API_KEY"),
		JulesBaseURL:         strings.TrimSuffix(viper.GetString("JULES_BASE_URL"), "/"),
		JulesModel:           viper.GetString("JULES_MODEL"),
		PromptTemplatePath:   viper.GetString("PROMPT_TEMPLATE_PATH"),
		DiffLimitBytes:       viper.GetInt("DIFF_LIMIT_BYTES"),
		DeliveryTTL:          time.Duration(viper.GetInt("DELIVERY_TTL_MINUTES")) * time.Minute,
		MaxWorkers:           viper.GetInt("MAX_WORKERS"),
		Database: DBConfig{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			Username:        viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			Database:        viper.GetString("DATABASE_NAME"),
			ConnMaxLifetime: time.Duration(viper.GetInt("DATABASE_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
			ConnMaxIdleTime: time.Duration(viper.GetInt("DATABASE_CONN_MAX_IDLE_MINUTES")) * time.Minute,
		},
	}, nil
}

// parseLogLevel maps the config string onto a slog.Level, defaulting to info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		slog.Warn("unrecognized log level, defaulting to info", "provided", s)
		return slog.LevelInfo
	}
}
