// Package ranking answers standing queries over a best-per-user index.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

// Page size limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Index is the read side of the score store.
type Index interface {
	Best(ctx context.Context, username string) (model.BestScore, error)
	CountAbove(ctx context.Context, wpm float64) (int, error)
	At(ctx context.Context, position int) (model.BestScore, error)
	Page(ctx context.Context, search string, limit, offset int) ([]model.BestScore, error)
	Count(ctx context.Context) int
}

// Query selects a leaderboard page. Zero Limit means the default.
type Query struct {
	Limit  int
	Offset int
	Search string
}

// Standing is one user's position among all users.
type Standing struct {
	Best     model.BestScore
	Rank     int
	Neighbor *model.BestScore // nil at rank 1
}

// Engine computes ranks with standard competition ranking over wpm.
// It holds no state besides its index, so it needs no locking.
type Engine struct {
	index        Index
	defaultLimit int
	maxLimit     int
	log          logger.Logger
}

// New creates an Engine over index.
func New(index Index, opts ...Option) *Engine {
	e := &Engine{
		index:        index,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultLimit > e.maxLimit {
		e.defaultLimit = e.maxLimit
	}
	return e
}

// Normalize validates q and fills defaults. Limits above the maximum are clamped.
func (e *Engine) Normalize(q Query) (Query, error) {
	switch {
	case q.Limit < 0:
		return Query{}, ErrInvalidLimit
	case q.Offset < 0:
		return Query{}, ErrInvalidOffset
	case q.Limit == 0:
		q.Limit = e.defaultLimit
	case q.Limit > e.maxLimit:
		q.Limit = e.maxLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// RankOf returns username's rank among all users.
func (e *Engine) RankOf(ctx context.Context, username string) (int, error) {
	defer observe("rank_of", time.Now())
	best, err := e.best(ctx, username)
	if err != nil {
		return 0, err
	}
	return e.rankFor(ctx, best.WPM)
}

// NeighborAbove returns the lowest-placed user ranked above rank, or nil
// when rank <= 1 or the index is empty.
func (e *Engine) NeighborAbove(ctx context.Context, rank int) (*model.BestScore, error) {
	defer observe("neighbor_above", time.Now())
	if rank <= 1 || e.index.Count(ctx) == 0 {
		return nil, nil
	}
	b, err := e.index.At(ctx, rank-2)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("neighbor of rank %d: %w", rank, err)
	}
	return &b, nil
}

// TopN returns a page of the leaderboard. Search filters before pagination.
func (e *Engine) TopN(ctx context.Context, q Query) ([]model.BestScore, error) {
	defer observe("top_n", time.Now())
	q, err := e.Normalize(q)
	if err != nil {
		return nil, err
	}
	rows, err := e.index.Page(ctx, q.Search, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("leaderboard page: %w", err)
	}
	if rows == nil {
		rows = []model.BestScore{}
	}
	return rows, nil
}

// Standing returns username's best, rank and neighbor above.
func (e *Engine) Standing(ctx context.Context, username string) (Standing, error) {
	defer observe("standing", time.Now())
	best, err := e.best(ctx, username)
	if err != nil {
		return Standing{}, err
	}
	rank, err := e.rankFor(ctx, best.WPM)
	if err != nil {
		return Standing{}, err
	}
	neighbor, err := e.NeighborAbove(ctx, rank)
	if err != nil {
		return Standing{}, err
	}
	e.log.Debug(ctx, "standing computed",
		logger.String("username", username),
		logger.Int("rank", rank),
		logger.Bool("has_neighbor", neighbor != nil))
	return Standing{Best: best, Rank: rank, Neighbor: neighbor}, nil
}

func (e *Engine) best(ctx context.Context, username string) (model.BestScore, error) {
	best, err := e.index.Best(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return model.BestScore{}, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return model.BestScore{}, fmt.Errorf("best of %s: %w", username, err)
	}
	return best, nil
}

func (e *Engine) rankFor(ctx context.Context, wpm float64) (int, error) {
	above, err := e.index.CountAbove(ctx, wpm)
	if err != nil {
		return 0, fmt.Errorf("count above %.2f: %w", wpm, err)
	}
	return above + 1, nil
}

// AssignRanks applies standard competition ranking to rows already in
// leaderboard order: ties share a rank and the next rank skips the tie group.
func AssignRanks(rows []model.BestScore) []model.RankEntry {
	out := make([]model.RankEntry, len(rows))
	for i, r := range rows {
		rank := i + 1
		if i > 0 && r.WPM == rows[i-1].WPM {
			rank = out[i-1].Rank
		}
		out[i] = model.RankEntry{BestScore: r, Rank: rank}
	}
	return out
}

func observe(op string, start time.Time) {
	metrics.RecordRankingLatency(op, float64(time.Since(start).Microseconds())/1000)
}
