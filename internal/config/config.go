// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Market   MarketConfig   `mapstructure:"market"`
	Gallery  GalleryConfig  `mapstructure:"gallery"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// GeminiConfig holds the prediction backend configuration. The API key is the
// only credential the application needs and is normally supplied through the
// GEMINI_API_KEY environment variable rather than the config file.
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MarketConfig holds the synthetic market data provider configuration.
type MarketConfig struct {
	LatencyMin time.Duration `mapstructure:"latency_min"`
	LatencyMax time.Duration `mapstructure:"latency_max"`
}

// GalleryConfig holds gallery persistence configuration.
type GalleryConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// UploadsConfig holds chart image intake configuration.
type UploadsConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
}

// TelegramConfig holds optional trading plan notification configuration.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// UIConfig holds terminal dashboard configuration.
type UIConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	StaleGuard bool `mapstructure:"stale_guard"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	// CHARTORACLE_GEMINI_MODEL and friends override file values; the API key
	// additionally binds to the conventional GEMINI_API_KEY variable.
	v.SetEnvPrefix("CHARTORACLE")
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind API key env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.5-pro")
	v.SetDefault("gemini.api_base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "60s")

	// Market defaults (simulated feed latency)
	v.SetDefault("market.latency_min", "300ms")
	v.SetDefault("market.latency_max", "800ms")

	// Gallery defaults
	v.SetDefault("gallery.file_path", "./data/gallery.json")

	// Uploads defaults
	v.SetDefault("uploads.max_file_size_mb", 8)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// UI defaults
	v.SetDefault("ui.enabled", true)
	v.SetDefault("ui.stale_guard", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	// Validate Gemini config
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required (set GEMINI_API_KEY)")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini.model is required")
	}
	if c.Gemini.APIBaseURL == "" {
		return fmt.Errorf("gemini.api_base_url is required")
	}
	if c.Gemini.Timeout < time.Second {
		return fmt.Errorf("gemini.timeout must be at least 1 second")
	}

	// Validate Market config
	if c.Market.LatencyMin < 0 {
		return fmt.Errorf("market.latency_min must not be negative")
	}
	if c.Market.LatencyMax < c.Market.LatencyMin {
		return fmt.Errorf("market.latency_max must be >= market.latency_min")
	}

	// Validate Gallery config
	if c.Gallery.FilePath == "" {
		return fmt.Errorf("gallery.file_path is required")
	}

	// Validate Uploads config
	if c.Uploads.MaxFileSizeMB < 1 {
		return fmt.Errorf("uploads.max_file_size_mb must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// MaxImageBytes returns the upload size cap in bytes.
func (c *Config) MaxImageBytes() int64 {
	return int64(c.Uploads.MaxFileSizeMB) * 1024 * 1024
}
