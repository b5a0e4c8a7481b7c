package cache

import (
	"time"

	"github.com/okian/wpmrank/pkg/logger"
)

// Option applies a configuration option to the MemoryCache.
type Option func(*MemoryCache)

// WithDefaultTTL sets the TTL used when Set is given none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *MemoryCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithSweepInterval sets how often expired entries are removed in the background.
// Zero disables the janitor; expired entries are still dropped on read.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *MemoryCache) {
		if interval >= 0 {
			c.sweepInterval = interval
		}
	}
}

// WithClock replaces the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *MemoryCache) {
		if l != nil {
			c.log = l
		}
	}
}
