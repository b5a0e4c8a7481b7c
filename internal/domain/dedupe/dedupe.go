// Package dedupe remembers recently seen keys in a bounded window.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records keys and reports repeats.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is in the window and records
	// it if not. When key was already seen it returns the owner recorded first.
	SeenAndRecord(ctx context.Context, key, owner string) (firstOwner string, seen bool)

	// Size returns the number of keys in the window.
	Size() int
}

// window is a FIFO-bounded Deduper: once full, the oldest key is evicted.
// A ring buffer keeps insertion order so eviction is O(1).
type window struct {
	mu      sync.Mutex
	owners  map[string]string
	ring    []string
	next    int
	maxSize int
}

// NewWindow creates a Deduper holding at most maxSize keys (default 10000).
func NewWindow(opts ...Option) Deduper {
	w := &window{maxSize: 10_000}
	for _, opt := range opts {
		opt(w)
	}
	w.owners = make(map[string]string, w.maxSize)
	w.ring = make([]string, 0, w.maxSize)
	return w
}

func (w *window) SeenAndRecord(ctx context.Context, key, owner string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if first, ok := w.owners[key]; ok {
		return first, true
	}

	if len(w.ring) < w.maxSize {
		w.ring = append(w.ring, key)
	} else {
		delete(w.owners, w.ring[w.next])
		w.ring[w.next] = key
		w.next = (w.next + 1) % w.maxSize
	}
	w.owners[key] = owner
	return "", false
}

func (w *window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.owners)
}
