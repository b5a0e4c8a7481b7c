package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/domain/model"
)

// newTestStore connects to WPMRANK_TEST_DATABASE_URL and empties the scores table.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WPMRANK_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WPMRANK_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, WithMaxConns(4))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `TRUNCATE scores RESTART IDENTITY`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insert(t *testing.T, s *Store, user string, wpm float64) model.ScoreEvent {
	t.Helper()
	e, err := s.Insert(context.Background(), model.ScoreEvent{
		Username:   user,
		WPM:        wpm,
		RawWPM:     wpm + 1,
		Accuracy:   97,
		Keystrokes: []model.Keystroke{{Key: "h", Timestamp: 0}, {Key: "i", Timestamp: 120}},
		Words:      []string{"hi"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return e
}

func TestStore_RankingQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "A", 100)
	insert(t, s, "B", 100)
	insert(t, s, "C", 90)
	insert(t, s, "C", 40)

	if n := s.Count(ctx); n != 3 {
		t.Errorf("expected 3 users, got %d", n)
	}
	if n, _ := s.CountAbove(ctx, 90); n != 2 {
		t.Errorf("CountAbove(90) = %d, want 2", n)
	}
	if n, _ := s.CountAbove(ctx, 100); n != 0 {
		t.Errorf("CountAbove(100) = %d, want 0", n)
	}

	rows, err := s.BestPerUser(ctx, "")
	if err != nil {
		t.Fatalf("best per user: %v", err)
	}
	if len(rows) != 3 || rows[0].Username != "A" || rows[1].Username != "B" || rows[2].WPM != 90 {
		t.Errorf("unexpected order: %+v", rows)
	}

	second, err := s.At(ctx, 1)
	if err != nil || second.Username != "B" {
		t.Errorf("At(1) = %+v (%v), want B", second, err)
	}
	if _, err := s.At(ctx, 3); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_BestOfMany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "dave", 50)
	peak := insert(t, s, "dave", 80)
	insert(t, s, "dave", 60)
	insert(t, s, "dave", 80)

	b, err := s.Best(ctx, "dave")
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if b.WPM != 80 || !b.Timestamp.Equal(peak.Timestamp) {
		t.Errorf("expected first 80 attempt, got %+v (peak at %v)", b, peak.Timestamp)
	}

	events, err := s.Events(ctx, "dave")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 4 || events[0].WPM != 50 || events[0].Keystrokes[1].Timestamp != 120 {
		t.Errorf("unexpected history: %+v", events)
	}
	if _, err := s.Events(ctx, "nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PageWithSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, "foo1", 90)
	insert(t, s, "bar1", 85)
	insert(t, s, "FOO2", 80)
	insert(t, s, "foo3", 70)

	page, err := s.Page(ctx, "foo", 1, 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Username != "FOO2" {
		t.Errorf("expected FOO2, got %+v", page)
	}
	if _, err := s.Page(ctx, "", 0, 0); !errors.Is(err, repository.ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}
