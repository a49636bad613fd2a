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

	"github.com/maauso/zoomclip-api/internal/zoom"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidResolution is returned when DEFAULT_OUTPUT_RESOLUTION is malformed.
	ErrInvalidResolution = errors.New("config: DEFAULT_OUTPUT_RESOLUTION must be <width>x<height>")
	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
	// ErrStorageDirRequired is returned when STORAGE_DIR is empty.
	ErrStorageDirRequired = errors.New("config: STORAGE_DIR is required")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	StorageDir string `env:"STORAGE_DIR, default=/tmp/" json:"storage_dir"`

	// Rendering settings
	FFmpegPath              string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath             string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	DefaultOutputResolution string `env:"DEFAULT_OUTPUT_RESOLUTION, default=1024x1024" json:"default_output_resolution"`
	CleanupOnFailure        bool   `env:"CLEANUP_ON_FAILURE, default=false" json:"cleanup_on_failure"`

	// Network settings
	FetchTimeoutSec   int `env:"FETCH_TIMEOUT_SEC, default=60" json:"fetch_timeout_sec"`
	WebhookTimeoutSec int `env:"WEBHOOK_TIMEOUT_SEC, default=10" json:"webhook_timeout_sec"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX" json:"s3_key_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// FetchTimeout returns the source image download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// WebhookTimeout returns the webhook delivery timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return ErrStorageDirRequired
	}
	if _, err := zoom.ParseResolution(c.DefaultOutputResolution); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResolution, err)
	}
	if c.FetchTimeoutSec <= 0 || c.WebhookTimeoutSec <= 0 {
		return ErrInvalidTimeout
	}
	return nil
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
	return fmt.Sprintf(
		"Config{Port: %d, StorageDir: %s, FFmpegPath: %s, FFprobePath: %s, DefaultOutputResolution: %s, CleanupOnFailure: %t, FetchTimeoutSec: %d, WebhookTimeoutSec: %d, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, S3KeyPrefix: %s, AWSAccessKeyID: %s, AWSSecretAccessKey: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.StorageDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.DefaultOutputResolution,
		c.CleanupOnFailure,
		c.FetchTimeoutSec,
		c.WebhookTimeoutSec,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.S3KeyPrefix,
		mask(c.AWSAccessKeyID),
		mask(c.AWSSecretAccessKey),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides a secret, reporting only whether it is set.
func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
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
