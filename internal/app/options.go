package service

import (
	"time"

	"github.com/okian/wpmrank/internal/adapters/cache"
	"github.com/okian/wpmrank/internal/domain/validation"
	"github.com/okian/wpmrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache injects the leaderboard cache. Without it the service owns a MemoryCache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithValidator sets the score validator.
func WithValidator(v *validation.Validator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithWorkerCount sets the number of audit workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the audit queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithReplayWindow sets how many keystroke fingerprints are remembered.
func WithReplayWindow(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.replayWindow = size
		}
	}
}

// WithInsertTimeout bounds a store insert. The insert ignores request cancellation.
func WithInsertTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.insertTimeout = d
		}
	}
}

// WithSubmissionLeaderboardSize sets how many entries a submission response carries.
func WithSubmissionLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.snapshotSize = n
		}
	}
}

// WithLeaderboardLimits sets the default and maximum page sizes.
func WithLeaderboardLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}
