package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/wpmrank/internal/adapters/cache"
	"github.com/okian/wpmrank/internal/adapters/http/api"
	"github.com/okian/wpmrank/internal/adapters/http/swagger"
	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/adapters/repository/postgres"
	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/config"
	"github.com/okian/wpmrank/internal/domain/validation"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	initMetrics(cfg)

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "wpmrank exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service from cfg and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()

	lbCache := cache.New(
		cache.WithDefaultTTL(cfg.CacheTTL()),
		cache.WithSweepInterval(cfg.CacheSweepInterval()),
		cache.WithLogger(log.Named("cache")),
	)
	defer func() { _ = lbCache.Close() }()

	svc := newService(cfg, store, lbCache, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store_driver", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// closableStore is a score store the process owns and must release.
type closableStore interface {
	repository.Store
	io.Closer
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (closableStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL,
			postgres.WithMaxConns(int32(cfg.DBMaxConns)), //nolint:gosec // validated small
			postgres.WithMinConns(int32(cfg.DBMinConns)), //nolint:gosec // validated small
			postgres.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		return repository.NewMemoryStore(ctx), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

func newService(cfg *config.Config, store repository.Store, c cache.Cache, log logger.Logger) *service.Service {
	return service.New(store,
		service.WithLogger(log.Named("service")),
		service.WithCache(c),
		service.WithValidator(newValidator(cfg)),
		service.WithWorkerCount(cfg.AuditWorkers),
		service.WithQueueSize(cfg.AuditQueueSize),
		service.WithReplayWindow(cfg.ReplayWindow),
		service.WithInsertTimeout(cfg.InsertTimeout()),
		service.WithSubmissionLeaderboardSize(cfg.SubmissionLeaderboardSize),
		service.WithLeaderboardLimits(cfg.DefaultLeaderboardLimit, cfg.MaxLeaderboardLimit),
	)
}

// newValidator applies the configured thresholds; a zero max_wpm turns the
// speed ceiling off.
func newValidator(cfg *config.Config) *validation.Validator {
	opts := []validation.Option{validation.WithThresholds(cfg.Validator.Thresholds())}
	if cfg.Validator.MaxWPM == 0 {
		opts = append(opts, validation.WithoutSpeedCeiling())
	}
	return validation.New(opts...)
}

// newHandler builds the full HTTP handler: docs, API routes, CORS and recovery.
func newHandler(ctx context.Context, cfg *config.Config, svc api.Dependencies, log logger.Logger) http.Handler {
	r := mux.NewRouter()
	swagger.Register(ctx, r)

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Warn(ctx, "ignoring trusted_proxies", logger.Error(err))
	}
	apiServer := api.NewServer(svc,
		api.WithLogger(log.Named("http")),
		api.WithTrustedProxies(proxies),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithCORSOrigins(cfg.CORSOrigins),
	)
	apiServer.Register(ctx, r)
	return apiServer.Handler(r)
}

// initMetrics names the exported metric families from cfg.
func initMetrics(cfg *config.Config) {
	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBucketsMS),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
