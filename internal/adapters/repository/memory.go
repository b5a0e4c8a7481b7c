package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/pkg/metrics"
)

// MemoryStore is an in-process Store: an append-only event log plus an
// order-statistic treap holding each user's best row. All operations take
// one RWMutex, so writes are totally ordered.
type MemoryStore struct {
	mu     sync.RWMutex
	root   *node
	best   map[string]model.BestScore
	log    []model.ScoreEvent
	byUser map[string][]int
	lastID int64
	now    func() time.Time

	metricsUpdateInterval time.Duration

	wg        sync.WaitGroup
	stopChan  chan struct{}
	closeOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		best:                  make(map[string]model.BestScore),
		byUser:                make(map[string][]int),
		now:                   time.Now,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutines. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Insert appends e in O(log n) expected time.
func (s *MemoryStore) Insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreInsertLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	e.Keystrokes = slices.Clone(e.Keystrokes)
	e.Words = slices.Clone(e.Words)

	s.mu.Lock()
	s.lastID++
	e.ID = s.lastID
	e.Timestamp = s.now().UTC()
	s.log = append(s.log, e)
	s.byUser[e.Username] = append(s.byUser[e.Username], len(s.log)-1)

	cur, ok := s.best[e.Username]
	if !ok || model.Improves(e.WPM, cur.WPM) {
		if ok {
			s.root = deleteNode(s.root, cur)
		}
		b := model.BestScore{Username: e.Username, WPM: e.WPM, RawWPM: e.RawWPM, Timestamp: e.Timestamp}
		s.best[e.Username] = b
		s.root = insert(s.root, b)
	}
	users, scores := len(s.best), len(s.log)
	s.mu.Unlock()

	metrics.UpdateTotalUsers(users)
	metrics.UpdateTotalScores(scores)
	return e, nil
}

// Best returns username's standing row.
func (s *MemoryStore) Best(ctx context.Context, username string) (model.BestScore, error) {
	defer observe("best", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.best[username]
	if !ok {
		return model.BestScore{}, ErrNotFound
	}
	return b, nil
}

// BestPerUser returns every row matching search in leaderboard order.
func (s *MemoryStore) BestPerUser(ctx context.Context, search string) ([]model.BestScore, error) {
	defer observe("best_per_user", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.BestScore, 0, len(s.best))
	walk(s.root, func(b model.BestScore) bool {
		if model.MatchesSearch(b.Username, search) {
			out = append(out, b)
		}
		return true
	})
	return out, nil
}

// CountAbove counts users with a strictly greater best wpm in O(log n).
func (s *MemoryStore) CountAbove(ctx context.Context, wpm float64) (int, error) {
	defer observe("count_above", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countAbove(s.root, wpm), nil
}

// At returns the row at 0-based position in O(log n).
func (s *MemoryStore) At(ctx context.Context, position int) (model.BestScore, error) {
	defer observe("at", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 0 {
		return model.BestScore{}, ErrNotFound
	}
	n := selectAt(s.root, position)
	if n == nil {
		return model.BestScore{}, ErrNotFound
	}
	return n.key, nil
}

// Page returns up to limit rows matching search after skipping offset of them.
// Without a search the skip costs O(log n).
func (s *MemoryStore) Page(ctx context.Context, search string, limit, offset int) ([]model.BestScore, error) {
	defer observe("page", time.Now())
	if limit < 1 {
		metrics.RecordStoreError("page")
		return nil, ErrInvalidLimit
	}
	if offset < 0 {
		metrics.RecordStoreError("page")
		return nil, ErrInvalidOffset
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BestScore, 0, min(limit, len(s.best)))
	collect := func(b model.BestScore) bool {
		out = append(out, b)
		return len(out) < limit
	}
	if search == "" {
		walkFrom(s.root, offset, collect)
		return out, nil
	}

	skipped := 0
	walk(s.root, func(b model.BestScore) bool {
		if !model.MatchesSearch(b.Username, search) {
			return true
		}
		if skipped < offset {
			skipped++
			return true
		}
		return collect(b)
	})
	return out, nil
}

// Count returns the number of distinct users.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.best)
}

// Events returns copies of username's attempts, oldest first.
func (s *MemoryStore) Events(ctx context.Context, username string) ([]model.ScoreEvent, error) {
	defer observe("events", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byUser[username]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.ScoreEvent, len(idx))
	for i, j := range idx {
		out[i] = s.log[j]
	}
	return out, nil
}

// startMetricsUpdater periodically republishes the store gauges.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	users, scores := len(s.best), len(s.log)
	s.mu.RUnlock()
	metrics.UpdateTotalUsers(users)
	metrics.UpdateTotalScores(scores)
}

func observe(query string, start time.Time) {
	metrics.RecordStoreQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}
