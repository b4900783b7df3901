// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// GeminiConfig configures the critique generation client.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CaptureConfig governs the headless screenshot backend.
type CaptureConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleMs          int    `mapstructure:"settle_ms"`
	MaxWidth          int    `mapstructure:"max_width"`
	JPEGQuality       int    `mapstructure:"jpeg_quality"`
}

// RateLimitConfig controls per-address admission.
type RateLimitConfig struct {
	WindowMinutes int      `mapstructure:"window_minutes"`
	MaxRequests   int      `mapstructure:"max_requests"`
	AllowList     []string `mapstructure:"allow_list"`
}

// StorageConfig selects and configures the blob backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // gcs | local | memory
	GCSBucket     string `mapstructure:"gcs_bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	LocalDir      string `mapstructure:"local_dir"`
	Prefix        string `mapstructure:"prefix"`
	ContentType   string `mapstructure:"content_type"`
}

// DBConfig controls the record store. An empty DSN selects the in-memory
// store for local development.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout_seconds", 60)
	v.SetDefault("capture.user_agent", "siteroast-bot/0.1")
	v.SetDefault("capture.nav_timeout_seconds", 30)
	v.SetDefault("capture.settle_ms", 500)
	v.SetDefault("capture.max_width", 1440)
	v.SetDefault("capture.jpeg_quality", 80)
	v.SetDefault("ratelimit.window_minutes", 15)
	v.SetDefault("ratelimit.max_requests", 3)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("storage.content_type", "image/jpeg")
	v.SetDefault("db.table", "roasts")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required")
	}
	if c.Capture.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("capture.nav_timeout_seconds must be > 0")
	}
	if c.RateLimit.WindowMinutes <= 0 || c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit.window_minutes and ratelimit.max_requests must be > 0")
	}
	switch c.Storage.Backend {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// NavTimeout converts the capture timeout config into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Capture.NavTimeoutSeconds) * time.Second
}

// RateWindow converts the rate-limit window config into a duration.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowMinutes) * time.Minute
}
