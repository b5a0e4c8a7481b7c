package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/wpmrank/pkg/logger"
)

const directoryPermission = 0750

// ErrInconsistent is returned by Run when the served state disagrees with
// what was submitted.
var ErrInconsistent = errors.New("served state is inconsistent")

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	cfg.applyDefaults()
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	tag := runTag()

	logger.Get().Info(ctx, "starting wpmrank load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("tag", tag),
		logger.Int("users", cfg.Users),
		logger.Int("attemptsPerUser", cfg.AttemptsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	attempts, err := generateAttempts(ctx, cfg, tag, stats)
	if err != nil {
		return stats, fmt.Errorf("attempt generation failed: %w", err)
	}

	committed := submitAttempts(ctx, cfg, client, attempts, stats)

	if err := verify(ctx, cfg, client, tag, committed, stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveAttempts(ctx, cfg.OutputFile, attempts); err != nil {
			logger.Get().Warn(ctx, "failed to save attempts to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Mismatches > 0 {
		return stats, fmt.Errorf("%w: %d mismatches", ErrInconsistent, stats.Mismatches)
	}
	logger.Get().Info(ctx, "load run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	logger.Get().Info(ctx, "checking service health")
	status, _, err := client.get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != 200 {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveAttempts writes the generated attempts to filename as a JSON array.
func saveAttempts(ctx context.Context, filename string, attempts []Attempt) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(attempts); err != nil {
		return fmt.Errorf("failed to write attempts: %w", err)
	}

	logger.Get().Info(ctx, "attempts saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.AttemptsGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("attemptsGenerated", stats.AttemptsGenerated),
		logger.Int("committed", stats.Committed),
		logger.Int("degraded", stats.Degraded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate(stats)),
		logger.Float64("attemptsPerSecond", perSecond))
}
