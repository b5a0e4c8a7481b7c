// Package repository holds the append-only score log and its best-per-user index.
package repository

import (
	"context"

	"github.com/okian/wpmrank/internal/domain/model"
)

// Store is the append-only score log plus the queries ranking needs.
// Ordering everywhere is model.Before.
type Store interface {
	// Insert appends e, assigning its ID and Timestamp. Events are never updated.
	Insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error)

	// Best returns username's standing row or ErrNotFound.
	Best(ctx context.Context, username string) (model.BestScore, error)

	// BestPerUser returns one row per user matching search, in leaderboard order.
	BestPerUser(ctx context.Context, search string) ([]model.BestScore, error)

	// CountAbove returns the number of users whose best wpm is strictly greater than wpm.
	CountAbove(ctx context.Context, wpm float64) (int, error)

	// At returns the row at 0-based position in the full order, or ErrNotFound.
	At(ctx context.Context, position int) (model.BestScore, error)

	// Page returns rows matching search after skipping offset of them.
	Page(ctx context.Context, search string, limit, offset int) ([]model.BestScore, error)

	// Count returns the number of distinct users.
	Count(ctx context.Context) int

	// Events returns username's attempts, oldest first.
	Events(ctx context.Context, username string) ([]model.ScoreEvent, error)
}
