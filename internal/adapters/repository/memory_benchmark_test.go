package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/wpmrank/internal/domain/model"
)

func seededStore(b *testing.B, users int) *MemoryStore {
	b.Helper()
	ctx := context.Background()
	s := NewMemoryStore(ctx)
	b.Cleanup(func() { _ = s.Close() })
	r := rand.New(rand.NewSource(1))
	for i := 0; i < users; i++ {
		wpm := r.Float64() * 200
		_, _ = s.Insert(ctx, model.ScoreEvent{Username: fmt.Sprintf("user%d", i), WPM: wpm, RawWPM: wpm})
	}
	return s
}

func BenchmarkMemoryStore_Insert(b *testing.B) {
	ctx := context.Background()
	s := seededStore(b, 10_000)
	r := rand.New(rand.NewSource(2))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wpm := r.Float64() * 200
		_, _ = s.Insert(ctx, model.ScoreEvent{Username: fmt.Sprintf("user%d", r.Intn(20_000)), WPM: wpm, RawWPM: wpm})
	}
}

func BenchmarkMemoryStore_CountAbove(b *testing.B) {
	ctx := context.Background()
	s := seededStore(b, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.CountAbove(ctx, float64(i%200))
	}
}

func BenchmarkMemoryStore_PageDeepOffset(b *testing.B) {
	ctx := context.Background()
	s := seededStore(b, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Page(ctx, "", 20, 50_000)
	}
}

func BenchmarkMemoryStore_PageSearch(b *testing.B) {
	ctx := context.Background()
	s := seededStore(b, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Page(ctx, "user99", 20, 0)
	}
}
