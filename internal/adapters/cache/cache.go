// Package cache is an in-process TTL cache with prefix invalidation.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

// DefaultTTL applies when neither Set nor the options give one.
const DefaultTTL = 30 * time.Minute

// Cache is advisory: every value it holds can be recomputed by the caller.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl ...time.Duration)
	Delete(key string) int
	DeleteByPrefix(prefix string) int
	Flush()
	Len() int
}

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a Cache on a mutex-guarded map. Expired entries are
// dropped on read and by a background janitor.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]entry

	defaultTTL    time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           logger.Logger

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Cache = (*MemoryCache)(nil)

// New creates a MemoryCache and starts its janitor.
func New(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		items:         make(map[string]entry),
		defaultTTL:    DefaultTTL,
		sweepInterval: time.Minute,
		now:           time.Now,
		log:           logger.Nop(),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.janitor()
	}
	return c
}

// Get returns the value for key unless it is missing or expired.
func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// re-check: a concurrent Set may have refreshed it
		if cur, still := c.items[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl, or the default TTL.
func (c *MemoryCache) Set(key string, value any, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}
	c.mu.Lock()
	c.items[key] = entry{value: value, expiresAt: c.now().Add(d)}
	n := len(c.items)
	c.mu.Unlock()
	metrics.UpdateCacheEntries(n)
}

// Delete removes key and returns how many entries were removed.
func (c *MemoryCache) Delete(key string) int {
	c.mu.Lock()
	_, ok := c.items[key]
	delete(c.items, key)
	n := len(c.items)
	c.mu.Unlock()

	removed := 0
	if ok {
		removed = 1
	}
	metrics.RecordCacheInvalidation("key", removed)
	metrics.UpdateCacheEntries(n)
	return removed
}

// DeleteByPrefix removes every key starting with prefix. The scan holds the
// write lock, so a concurrent Set lands either before (and is removed) or after.
func (c *MemoryCache) DeleteByPrefix(prefix string) int {
	c.mu.Lock()
	removed := 0
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			removed++
		}
	}
	n := len(c.items)
	c.mu.Unlock()

	metrics.RecordCacheInvalidation("prefix", removed)
	metrics.UpdateCacheEntries(n)
	return removed
}

// Flush removes everything.
func (c *MemoryCache) Flush() {
	c.mu.Lock()
	removed := len(c.items)
	c.items = make(map[string]entry)
	c.mu.Unlock()
	metrics.RecordCacheInvalidation("flush", removed)
	metrics.UpdateCacheEntries(0)
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	return nil
}

func (c *MemoryCache) janitor() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug(context.Background(), "expired cache entries swept", logger.Int("removed", n))
			}
		}
	}
}

// sweep removes expired entries and returns how many it removed.
func (c *MemoryCache) sweep() int {
	now := c.now()
	c.mu.Lock()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	n := len(c.items)
	c.mu.Unlock()

	metrics.RecordCacheInvalidation("expired", removed)
	metrics.UpdateCacheEntries(n)
	return removed
}
