package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/wpmrank/internal/config"
	"github.com/okian/wpmrank/internal/domain/validation"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnv(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.AuditQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.Validator.MaxWPM, convey.ShouldEqual, 350)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("WPMRANK_ADDR", ":9090")
			t.Setenv("WPMRANK_AUDIT_WORKERS", "8")
			t.Setenv("WPMRANK_RATE_LIMIT_RPS", "2.5")
			t.Setenv("WPMRANK_CORS_ORIGINS", "http://localhost:5173, https://typing.example.com")
			t.Setenv("WPMRANK_VALIDATOR_MAX_WPM", "400")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.AuditWorkers, convey.ShouldEqual, 8)
				convey.So(cfg.RateLimitRPS, convey.ShouldEqual, 2.5)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"http://localhost:5173", "https://typing.example.com"})
				convey.So(cfg.Validator.MaxWPM, convey.ShouldEqual, 400)
				convey.So(cfg.Validator.CharsPerWord, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeFile(t, "wpmrank.yaml", `
# comments are fine
addr: ":7070"
store_driver: postgres
database_url: postgres://db/wpmrank
max_leaderboard_limit: 50
cors_origins: ["https://a.example.com"]
validator:
  keystroke_ratio_tolerance: 4
`)
			t.Setenv("WPMRANK_CONFIG", path)
			t.Setenv("WPMRANK_MAX_LEADERBOARD_LIMIT", "60")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars win over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 60)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example.com"})
				convey.So(cfg.Validator.KeystrokeRatioTolerance, convey.ShouldEqual, 4)
				convey.So(cfg.Validator.PromptOverrunTolerance, convey.ShouldEqual, 1.5)
			})
		})

		convey.Convey("When a .env file is named", func() {
			path := writeFile(t, "test.env", "WPMRANK_ADDR=:6060\nWPMRANK_LOG_FORMAT=json\n")
			t.Setenv("WPMRANK_ENV_FILE", path)
			t.Setenv("WPMRANK_LOG_FORMAT", "text")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills in what the environment does not set", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			})
			_ = os.Unsetenv("WPMRANK_ADDR")
		})

		convey.Convey("When the named .env file is missing", func() {
			t.Setenv("WPMRANK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the validator ceiling and epsilon are set to zero", func() {
			t.Setenv("WPMRANK_VALIDATOR_MAX_WPM", "0")
			t.Setenv("WPMRANK_VALIDATOR_WPM_EPSILON", "0")
			t.Setenv("WPMRANK_VALIDATOR_MIN_KEYSTROKES", "4")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the validator applies them as configured", func() {
				got := validation.New(validation.WithThresholds(cfg.Validator.Thresholds())).Thresholds()
				convey.So(got.MaxWPM, convey.ShouldEqual, 0)
				convey.So(got.WPMEpsilon, convey.ShouldEqual, 0)
				convey.So(got.MinKeystrokes, convey.ShouldEqual, 4)
				convey.So(got.MinElapsedMS, convey.ShouldEqual, validation.DefaultThresholds().MinElapsedMS)
			})
		})

		convey.Convey("When trusted proxies come from the environment", func() {
			t.Setenv("WPMRANK_TRUSTED_PROXIES", "10.0.0.1, 192.168.0.0/16")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the list is split", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TrustedProxies, convey.ShouldResemble, []string{"10.0.0.1", "192.168.0.0/16"})
			})
		})

		convey.Convey("When metrics naming comes from the environment", func() {
			t.Setenv("WPMRANK_METRICS_NAMESPACE", "typing")
			t.Setenv("WPMRANK_METRICS_BUCKETS_MS", "1, 10, 100")
			t.Setenv("WPMRANK_METRICS_LABELS", "env=staging, region=eu")

			cfg, err := config.Load(ctx)

			convey.Convey("Then buckets and labels are parsed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "typing")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "leaderboard")
				convey.So(cfg.MetricsBucketsMS, convey.ShouldResemble, []float64{1, 10, 100})
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"env": "staging", "region": "eu"})
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			t.Setenv("WPMRANK_CONFIG", writeFile(t, "bad.yaml", `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			t.Setenv("WPMRANK_CONFIG", "/non/existent/wpmrank.yaml")

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When a loaded value is invalid", func() {
			t.Setenv("WPMRANK_STORE_DRIVER", "postgres")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "database_url")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// clearConfigEnv unsets every WPMRANK_ variable for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
