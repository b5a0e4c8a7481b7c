package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read directly by the loader.
const (
	EnvPrefix  = "WPMRANK_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvEnvFile = EnvPrefix + "ENV_FILE"

	defaultEnvFile  = ".env"
	validatorPrefix = "validator_"
)

// Load builds a Config by layering defaults, an optional .env file, an
// optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. .env (WPMRANK_ENV_FILE, or ./.env when present); never overrides the real environment
//  3. file (YAML) if WPMRANK_CONFIG is set
//  4. env (prefix WPMRANK_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// WPMRANK_RATE_LIMIT_RPS -> rate_limit_rps (flat keys keep their
	// underscores), WPMRANK_VALIDATOR_MAX_WPM -> validator.max_wpm.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "config" || key == "env_file" {
			return "", nil
		}
		if rest, ok := strings.CutPrefix(key, validatorPrefix); ok {
			key = "validator." + rest
		}
		switch key {
		case "cors_origins", "trusted_proxies", "metrics_buckets_ms":
			return key, splitList(value)
		case "metrics_labels":
			return key, splitLabels(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv copies a .env file into the process environment. An explicitly
// named file must exist; the default one is optional.
func loadDotEnv() error {
	path := os.Getenv(EnvEnvFile)
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	case c.StoreDriver != DriverMemory && c.StoreDriver != DriverPostgres:
		return invalid("store_driver must be %s or %s, got %q", DriverMemory, DriverPostgres, c.StoreDriver)
	case c.StoreDriver == DriverPostgres && c.DatabaseURL == "":
		return invalid("database_url is required for the postgres store")
	case c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns:
		return invalid("db_min_conns must be within 0..db_max_conns and db_max_conns positive")
	case c.InsertTimeoutMS <= 0:
		return invalid("insert_timeout_ms must be positive")
	case c.CacheTTLSeconds <= 0 || c.CacheSweepSeconds < 0:
		return invalid("cache_ttl_seconds must be positive and cache_sweep_seconds non-negative")
	case c.DefaultLeaderboardLimit < 1 || c.MaxLeaderboardLimit < c.DefaultLeaderboardLimit:
		return invalid("need 1 <= default_leaderboard_limit <= max_leaderboard_limit")
	case c.SubmissionLeaderboardSize < 1:
		return invalid("submission_leaderboard_size must be positive")
	case c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1):
		return invalid("rate_limit_rps must be non-negative with a positive rate_limit_burst")
	case len(c.CORSOrigins) == 0:
		return invalid("cors_origins must not be empty")
	case c.AuditQueueSize < 1 || c.AuditWorkers < 1 || c.ReplayWindow < 1:
		return invalid("audit_queue_size, audit_workers and replay_window must be positive")
	case c.MetricsNamespace == "":
		return invalid("metrics_namespace must not be empty")
	case !ascending(c.MetricsBucketsMS):
		return invalid("metrics_buckets_ms must be positive and strictly increasing")
	case c.Validator.MaxWPM < 0 || c.Validator.CharsPerWord <= 0:
		return invalid("validator.max_wpm must be non-negative and validator.chars_per_word positive")
	case c.Validator.WPMEpsilon < 0 || c.Validator.MinImpliedChars < 0:
		return invalid("validator.wpm_epsilon and validator.min_implied_chars must be non-negative")
	case c.Validator.MinKeystrokes < 2 || c.Validator.MinElapsedMS < 1:
		return invalid("validator.min_keystrokes must be at least 2 and validator.min_elapsed_ms positive")
	case c.Validator.KeystrokeRatioTolerance <= 1 || c.Validator.PromptOverrunTolerance < 1:
		return invalid("validator tolerances must be at least 1")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return invalid("trusted_proxies: %v", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitLabels parses "k1=v1,k2=v2".
func splitLabels(s string) map[string]any {
	out := make(map[string]any)
	for _, pair := range splitList(s) {
		k, v, _ := strings.Cut(pair, "=")
		if k = strings.TrimSpace(k); k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

func ascending(bounds []float64) bool {
	for i, b := range bounds {
		if b <= 0 || (i > 0 && b <= bounds[i-1]) {
			return false
		}
	}
	return true
}
