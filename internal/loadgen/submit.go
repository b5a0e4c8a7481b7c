package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// submitAttempts posts attempts concurrently and returns the committed ones.
func submitAttempts(ctx context.Context, cfg *Config, client *httpClient, attempts []Attempt, stats *Stats) []Attempt {
	logger.Get().Info(ctx, "submitting attempts",
		logger.Int("attempts", len(attempts)),
		logger.Int("workers", cfg.Workers))

	var (
		counts    [5]atomic.Int64
		mu        sync.Mutex
		committed = make([]Attempt, 0, len(attempts))
		wg        sync.WaitGroup
	)
	index := map[string]int{
		outcomeCommitted: 0, outcomeDegraded: 1, outcomeRejected: 2, outcomeRateLimited: 3, outcomeFailed: 4,
	}

	jobs := make(chan Attempt, cfg.Workers*2)
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				outcome := submitWithRetry(ctx, cfg, client, a)
				counts[index[outcome]].Add(1)
				if outcome == outcomeCommitted || outcome == outcomeDegraded {
					mu.Lock()
					committed = append(committed, a)
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, a := range attempts {
			select {
			case <-ctx.Done():
				return
			case jobs <- a:
			}
		}
	}()
	wg.Wait()

	stats.Committed = int(counts[0].Load())
	stats.Degraded = int(counts[1].Load())
	stats.Rejected = int(counts[2].Load())
	stats.RateLimited = int(counts[3].Load())
	stats.Failed = int(counts[4].Load())

	logger.Get().Info(ctx, "submission completed",
		logger.Int("committed", stats.Committed),
		logger.Int("degraded", stats.Degraded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed))
	return committed
}

// submitWithRetry posts one attempt, backing off while the server answers 429.
func submitWithRetry(ctx context.Context, cfg *Config, client *httpClient, a Attempt) string {
	for try := 0; ; try++ {
		var resp types.SubmitResponse
		status, body, err := client.post(ctx, "/api/submit-score", a.Request, &resp)
		switch {
		case err != nil:
			if cfg.Verbose {
				logger.Get().Warn(ctx, "submission failed", logger.String("username", a.Username), logger.Error(err))
			}
			return outcomeFailed
		case status == 201 && resp.Degraded:
			return outcomeDegraded
		case status == 201:
			return outcomeCommitted
		case status == 429 && try < cfg.MaxRetries:
			select {
			case <-ctx.Done():
				return outcomeRateLimited
			case <-time.After(cfg.RetryBackoff * time.Duration(try+1)):
			}
		case status == 429:
			return outcomeRateLimited
		case status == 400:
			if cfg.Verbose {
				logger.Get().Warn(ctx, "submission rejected",
					logger.String("username", a.Username), logger.String("body", string(body)))
			}
			return outcomeRejected
		default:
			if cfg.Verbose {
				logger.Get().Warn(ctx, "submission failed",
					logger.String("username", a.Username), logger.Int("status", status))
			}
			return outcomeFailed
		}
	}
}
