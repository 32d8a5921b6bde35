package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Config stores all configuration for the worker.
type Config struct {
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	ServiceKey       string `mapstructure:"SERVICE_KEY"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	ServerPort       string `mapstructure:"SERVER_PORT"`
	PageSpeedAPIKey  string `mapstructure:"PAGESPEED_API_KEY"`
	UserAgent        string `mapstructure:"CRAWLER_USER_AGENT"`
	NavTimeoutSec    int    `mapstructure:"NAV_TIMEOUT_SEC"`
	MaxFetchRetries  int    `mapstructure:"MAX_FETCH_RETRIES"`
	RetryBaseDelayMs int    `mapstructure:"RETRY_BASE_DELAY_MS"`
	PollIntervalSec  int    `mapstructure:"POLL_INTERVAL_SEC"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// Production deployments configure purely through the environment.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("CRAWLER_USER_AGENT", "SiteAuditBot/1.0 (+https://siteaudit.example/bot)")
	viper.SetDefault("NAV_TIMEOUT_SEC", 30)
	viper.SetDefault("MAX_FETCH_RETRIES", 2)
	viper.SetDefault("RETRY_BASE_DELAY_MS", 1000)
	viper.SetDefault("POLL_INTERVAL_SEC", 30)
	viper.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("SERVICE_KEY is required")
	}
	return &cfg, nil
}
