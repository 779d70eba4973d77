// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Provider names accepted in VIDEO_PROVIDER.
const (
	ProviderStability = "stability"
	ProviderFAL       = "fal"
	ProviderGemini    = "gemini"
)

// Static errors for configuration validation.
var (
	// ErrUnknownProvider is returned when VIDEO_PROVIDER names an unsupported provider.
	ErrUnknownProvider = errors.New("config: VIDEO_PROVIDER must be one of stability, fal, gemini")
	// ErrProviderCredentialMissing is returned when the active provider has no API key.
	ErrProviderCredentialMissing = errors.New("config: credential for the active provider is not set")
	// ErrInvalidTimeout is returned when UPSTREAM_TIMEOUT is not positive.
	ErrInvalidTimeout = errors.New("config: UPSTREAM_TIMEOUT must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	StaticDir      string   `env:"STATIC_DIR" json:"static_dir,omitempty"`
	MaxBodyBytes   int64    `env:"MAX_BODY_BYTES, default=10485760" json:"max_body_bytes"`

	// Provider selection
	Provider        string        `env:"VIDEO_PROVIDER, default=stability" json:"provider"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT, default=30s" json:"upstream_timeout"`

	// Stability AI settings
	StabilityAPIKey         string  `env:"STABILITY_API_KEY" json:"-"` // Masked in JSON
	StabilityBaseURL        string  `env:"STABILITY_BASE_URL, default=https://api.stability.ai" json:"stability_base_url"`
	StabilityCfgScale       float64 `env:"STABILITY_CFG_SCALE, default=1.8" json:"stability_cfg_scale"`
	StabilityMotionBucketID int     `env:"STABILITY_MOTION_BUCKET_ID, default=127" json:"stability_motion_bucket_id"`
	StabilitySeed           int     `env:"STABILITY_SEED, default=0" json:"stability_seed"`

	// FAL settings
	FalKey      string `env:"FAL_KEY" json:"-"` // Masked in JSON
	FalModel    string `env:"FAL_MODEL, default=fal-ai/kling-video/v1/standard/image-to-video" json:"fal_model"`
	FalSync     bool   `env:"FAL_SYNC, default=false" json:"fal_sync"`
	FalQueueURL string `env:"FAL_QUEUE_URL, default=https://queue.fal.run" json:"fal_queue_url"`
	FalSyncURL  string `env:"FAL_SYNC_URL, default=https://fal.run" json:"fal_sync_url"`

	// Gemini settings
	GeminiAPIKey  string `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GeminiModel   string `env:"GEMINI_MODEL, default=veo-2.0-generate-001" json:"gemini_model"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" json:"gemini_base_url,omitempty"`

	// Optional S3 settings for staging inline images as URLs
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PresignTTL       time.Duration `env:"S3_PRESIGN_TTL, default=1h" json:"s3_presign_ttl"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Provider credentials are optional here: a missing key is reported per
// request rather than preventing startup.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings that must be correct for the process to start.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderStability, ProviderFAL, ProviderGemini:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownProvider, c.Provider)
	}
	if c.UpstreamTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// ProviderCredential returns the API key for the active provider, or
// ErrProviderCredentialMissing when it is empty.
func (c *Config) ProviderCredential() (string, error) {
	var key string
	switch c.Provider {
	case ProviderStability:
		key = c.StabilityAPIKey
	case ProviderFAL:
		key = c.FalKey
	case ProviderGemini:
		key = c.GeminiAPIKey
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrProviderCredentialMissing
	}
	return key, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	_, credErr := c.ProviderCredential()
	return fmt.Sprintf(
		"Config{Port: %d, Provider: %s, CredentialSet: %t, UpstreamTimeout: %s, FalModel: %s, FalSync: %t, GeminiModel: %s, S3Bucket: %s, S3Region: %s, StaticDir: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.Provider,
		credErr == nil,
		c.UpstreamTimeout,
		c.FalModel,
		c.FalSync,
		c.GeminiModel,
		c.S3Bucket,
		c.S3Region,
		c.StaticDir,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
