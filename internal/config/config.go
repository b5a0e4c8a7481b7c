// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Keys are flat snake_case, except the nested validator.* thresholds.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/okian/wpmrank/internal/domain/validation"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the score store: memory or postgres.
	StoreDriver string `koanf:"store_driver"`
	// DatabaseURL is the Postgres DSN, required for the postgres driver.
	DatabaseURL string `koanf:"database_url"`
	DBMaxConns  int    `koanf:"db_max_conns"`
	DBMinConns  int    `koanf:"db_min_conns"`

	// InsertTimeoutMS bounds a score insert once it has been detached from the request.
	InsertTimeoutMS int `koanf:"insert_timeout_ms"`

	CacheTTLSeconds   int `koanf:"cache_ttl_seconds"`
	CacheSweepSeconds int `koanf:"cache_sweep_seconds"`

	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`
	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
	// SubmissionLeaderboardSize is the top-N snapshot returned with a submission.
	SubmissionLeaderboardSize int `koanf:"submission_leaderboard_size"`

	// RateLimitRPS is the per-client submission rate; 0 disables limiting.
	RateLimitRPS   float64  `koanf:"rate_limit_rps"`
	RateLimitBurst int      `koanf:"rate_limit_burst"`
	CORSOrigins    []string `koanf:"cors_origins"`
	// TrustedProxies lists addresses or CIDR prefixes whose X-Forwarded-For
	// header is believed when identifying a client. Empty ignores the header.
	TrustedProxies []string `koanf:"trusted_proxies"`

	AuditQueueSize int `koanf:"audit_queue_size"`
	AuditWorkers   int `koanf:"audit_workers"`
	// ReplayWindow is how many keystroke fingerprints replay detection remembers.
	ReplayWindow int `koanf:"replay_window"`

	// Metrics naming: families are <namespace>_<subsystem>_<name>.
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsBucketsMS []float64         `koanf:"metrics_buckets_ms"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`

	Validator ValidatorConfig `koanf:"validator"`
}

// ValidatorConfig holds the anti-cheat thresholds.
type ValidatorConfig struct {
	// MaxWPM of zero disables the speed ceiling.
	MaxWPM                  float64 `koanf:"max_wpm"`
	MinKeystrokes           int     `koanf:"min_keystrokes"`
	MinElapsedMS            int64   `koanf:"min_elapsed_ms"`
	WPMEpsilon              float64 `koanf:"wpm_epsilon"`
	KeystrokeRatioTolerance float64 `koanf:"keystroke_ratio_tolerance"`
	PromptOverrunTolerance  float64 `koanf:"prompt_overrun_tolerance"`
	MinImpliedChars         float64 `koanf:"min_implied_chars"`
	CharsPerWord            float64 `koanf:"chars_per_word"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	t := validation.DefaultThresholds()
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":8080",
		StoreDriver:               DriverMemory,
		DBMaxConns:                25,
		DBMinConns:                2,
		InsertTimeoutMS:           5000,
		CacheTTLSeconds:           1800,
		CacheSweepSeconds:         60,
		DefaultLeaderboardLimit:   20,
		MaxLeaderboardLimit:       100,
		SubmissionLeaderboardSize: 20,
		RateLimitRPS:              5,
		RateLimitBurst:            10,
		CORSOrigins:               []string{"*"},
		AuditQueueSize:            1024,
		AuditWorkers:              2,
		ReplayWindow:              10_000,
		MetricsNamespace:          "wpmrank",
		MetricsSubsystem:          "leaderboard",
		Validator: ValidatorConfig{
			MaxWPM:                  t.MaxWPM,
			MinKeystrokes:           t.MinKeystrokes,
			MinElapsedMS:            t.MinElapsedMS,
			WPMEpsilon:              t.WPMEpsilon,
			KeystrokeRatioTolerance: t.KeystrokeRatioTolerance,
			PromptOverrunTolerance:  t.PromptOverrunTolerance,
			MinImpliedChars:         t.MinImpliedChars,
			CharsPerWord:            t.CharsPerWord,
		},
	}
}

// InsertTimeout returns InsertTimeoutMS as a duration.
func (c *Config) InsertTimeout() time.Duration {
	return time.Duration(c.InsertTimeoutMS) * time.Millisecond
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// CacheSweepInterval returns CacheSweepSeconds as a duration; zero disables the janitor.
func (c *Config) CacheSweepInterval() time.Duration {
	return time.Duration(c.CacheSweepSeconds) * time.Second
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, e := range c.TrustedProxies {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Thresholds converts the validator section for validation.WithThresholds.
// Every field is carried over as configured.
func (v ValidatorConfig) Thresholds() validation.Thresholds {
	return validation.Thresholds{
		MaxWPM:                  v.MaxWPM,
		MinKeystrokes:           v.MinKeystrokes,
		MinElapsedMS:            v.MinElapsedMS,
		WPMEpsilon:              v.WPMEpsilon,
		KeystrokeRatioTolerance: v.KeystrokeRatioTolerance,
		PromptOverrunTolerance:  v.PromptOverrunTolerance,
		MinImpliedChars:         v.MinImpliedChars,
		CharsPerWord:            v.CharsPerWord,
	}
}
