// Package config loads runtime settings from the environment. Command-line
// flags override the loaded values before Validate is called.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oukeidos/bstudio/internal/input"
	"github.com/oukeidos/bstudio/internal/language"
)

const DefaultServiceURL = "http://localhost:8000"

type Config struct {
	// Service
	ServiceURL string
	Timeout    time.Duration

	// Submission defaults
	Mode           input.Mode
	TargetLanguage string

	// Limits
	MaxImageBytes int64

	// Batch
	Concurrency int
	QPS         float64

	// Logging
	LogLevel string
}

func Load() Config {
	cfg := Config{
		ServiceURL: envStr("BSTUDIO_SERVICE_URL", DefaultServiceURL),
		Timeout:    envDur("BSTUDIO_TIMEOUT", 60*time.Second),

		Mode:           input.ModeDigitalDots,
		TargetLanguage: resolveLanguage(envStr("BSTUDIO_TARGET_LANG", "")),

		MaxImageBytes: int64(envInt("BSTUDIO_MAX_IMAGE_BYTES", int(input.DefaultMaxImageBytes))),

		Concurrency: envInt("BSTUDIO_CONCURRENCY", 4),
		QPS:         envFloat("BSTUDIO_QPS", 2),

		LogLevel: envStr("BSTUDIO_LOG_LEVEL", "warn"),
	}
	if m, err := input.ParseMode(envStr("BSTUDIO_MODE", "")); err == nil {
		cfg.Mode = m
	}
	return cfg
}

func (c Config) Validate() error {
	u, err := url.Parse(c.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service URL must be an absolute http(s) URL: %q", c.ServiceURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.TargetLanguage != "" && !language.IsSupported(c.TargetLanguage) {
		return fmt.Errorf("unsupported target language %q (see 'bstudio list')", c.TargetLanguage)
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive")
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64")
	}
	if c.QPS <= 0 {
		return fmt.Errorf("qps must be positive")
	}
	return nil
}

// Parameters returns the submission defaults.
func (c Config) Parameters() input.Parameters {
	return input.Parameters{Mode: c.Mode, TargetLanguage: c.TargetLanguage}
}

// resolveLanguage maps a code or display name to its code. Unknown values
// are kept so Validate can report them.
func resolveLanguage(v string) string {
	if v == "" {
		return ""
	}
	if code, err := language.Resolve(v); err == nil {
		return code
	}
	return strings.ToLower(v)
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
