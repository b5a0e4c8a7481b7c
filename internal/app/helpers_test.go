package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/wpmrank/internal/adapters/cache"
	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func ptr[T any](v T) *T { return &v }

// attempt builds a submission that passes validation: 30 seconds of typing
// at wpm+3 raw with a prompt long enough for the keystrokes.
func attempt(user string, wpm float64) types.SubmitRequest {
	raw := wpm + 3
	n := int(raw * 5 * 0.5)
	keys := make([]model.Keystroke, n)
	for i := range keys {
		keys[i] = model.Keystroke{Key: "a", Timestamp: 10_000 + int64(i)*30_000/int64(n-1)}
	}
	words := make([]string, n/6+1)
	for i := range words {
		words[i] = "hello"
	}
	return types.SubmitRequest{
		Username:   ptr(user),
		WPM:        ptr(wpm),
		RawWPM:     ptr(raw),
		Accuracy:   ptr(97.0),
		Keystrokes: keys,
		Words:      words,
	}
}

func clock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newMemoryStore() *repository.MemoryStore {
	return repository.NewMemoryStore(context.Background(), repository.WithClock(clock()))
}

// flakyStore wraps a Store with injectable failures. onPage runs once,
// after a page has been read but before it is returned.
type flakyStore struct {
	repository.Store
	insertErr error
	bestErr   error
	inserts   atomic.Int32
	onPage    func()
}

func (f *flakyStore) Insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error) {
	f.inserts.Add(1)
	if err := ctx.Err(); err != nil {
		return model.ScoreEvent{}, err
	}
	if f.insertErr != nil {
		return model.ScoreEvent{}, f.insertErr
	}
	return f.Store.Insert(ctx, e)
}

func (f *flakyStore) Best(ctx context.Context, username string) (model.BestScore, error) {
	if f.bestErr != nil {
		return model.BestScore{}, f.bestErr
	}
	return f.Store.Best(ctx, username)
}

func (f *flakyStore) Page(ctx context.Context, search string, limit, offset int) ([]model.BestScore, error) {
	rows, err := f.Store.Page(ctx, search, limit, offset)
	if hook := f.onPage; hook != nil {
		f.onPage = nil
		hook()
	}
	return rows, err
}

// countingCache records cache hits.
type countingCache struct {
	cache.Cache
	hits atomic.Int32
}

func (c *countingCache) Get(key string) (any, bool) {
	v, ok := c.Cache.Get(key)
	if ok {
		c.hits.Add(1)
	}
	return v, ok
}

// panickyCache fails every operation.
type panickyCache struct{}

func (panickyCache) Get(string) (any, bool)            { panic("cache down") }
func (panickyCache) Set(string, any, ...time.Duration) { panic("cache down") }
func (panickyCache) Delete(string) int                 { panic("cache down") }
func (panickyCache) DeleteByPrefix(string) int         { panic("cache down") }
func (panickyCache) Flush()                            {}
func (panickyCache) Len() int                          { return 0 }

// slowStore waits before inserting, honouring ctx.
type slowStore struct {
	repository.Store
	delay time.Duration
}

func (s *slowStore) Insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error) {
	select {
	case <-time.After(s.delay):
		return s.Store.Insert(ctx, e)
	case <-ctx.Done():
		return model.ScoreEvent{}, ctx.Err()
	}
}
