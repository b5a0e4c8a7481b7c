// Package postgres is a Store backed by a single append-only scores table.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

// bestCTE reduces the log to one row per user: max wpm, first time it was reached.
const bestCTE = `
WITH best AS (
    SELECT DISTINCT ON (username) username, wpm, raw_wpm, created_at
    FROM scores
    ORDER BY username, wpm DESC, created_at ASC, id ASC
)`

const leaderboardOrder = ` ORDER BY wpm DESC, created_at ASC, username ASC`

const searchFilter = ` WHERE ($1::text = '' OR strpos(lower(username), lower($1::text)) > 0)`

// Store implements repository.Store on a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	log      logger.Logger
	maxConns int32
	minConns int32
	migrate  bool
}

var _ repository.Store = (*Store)(nil)

// New connects to dsn, pings it and applies the embedded schema.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		log:      logger.Nop(),
		maxConns: 25,
		minConns: 2,
		migrate:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = s.maxConns
	cfg.MinConns = min(s.minConns, s.maxConns)
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	s.pool = pool

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if s.migrate {
		if err := s.applyMigrations(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	s.log.Info(ctx, "postgres store ready", logger.Int("max_conns", int(cfg.MaxConns)))
	return s, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		s.log.Debug(ctx, "migration applied", logger.String("name", name))
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Insert appends e. The database assigns ID and Timestamp.
func (s *Store) Insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreInsertLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	keys, err := json.Marshal(nonNil(e.Keystrokes))
	if err != nil {
		return model.ScoreEvent{}, fmt.Errorf("encode keystrokes: %w", err)
	}
	words, err := json.Marshal(nonNil(e.Words))
	if err != nil {
		return model.ScoreEvent{}, fmt.Errorf("encode words: %w", err)
	}

	const q = `
INSERT INTO scores (username, wpm, raw_wpm, accuracy, keystrokes, words)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`
	if err := s.pool.QueryRow(ctx, q, e.Username, e.WPM, e.RawWPM, e.Accuracy, keys, words).Scan(&e.ID, &e.Timestamp); err != nil {
		metrics.RecordStoreError("insert")
		return model.ScoreEvent{}, fmt.Errorf("insert score: %w", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// Best returns username's standing row.
func (s *Store) Best(ctx context.Context, username string) (model.BestScore, error) {
	defer observe("best", time.Now())
	const q = `
SELECT username, wpm, raw_wpm, created_at
FROM scores
WHERE username = $1
ORDER BY wpm DESC, created_at ASC, id ASC
LIMIT 1`
	b, err := scanBest(s.pool.QueryRow(ctx, q, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BestScore{}, repository.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("best")
		return model.BestScore{}, fmt.Errorf("query best: %w", err)
	}
	return b, nil
}

// BestPerUser returns every row matching search in leaderboard order.
func (s *Store) BestPerUser(ctx context.Context, search string) ([]model.BestScore, error) {
	defer observe("best_per_user", time.Now())
	q := bestCTE + `SELECT username, wpm, raw_wpm, created_at FROM best` + searchFilter + leaderboardOrder
	return s.queryBest(ctx, "best_per_user", q, search)
}

// CountAbove counts users whose best wpm is strictly greater than wpm.
func (s *Store) CountAbove(ctx context.Context, wpm float64) (int, error) {
	defer observe("count_above", time.Now())
	const q = `
SELECT count(*) FROM (
    SELECT username FROM scores GROUP BY username HAVING max(wpm) > $1
) above`
	var n int
	if err := s.pool.QueryRow(ctx, q, wpm).Scan(&n); err != nil {
		metrics.RecordStoreError("count_above")
		return 0, fmt.Errorf("count above: %w", err)
	}
	return n, nil
}

// At returns the row at 0-based position in the full order.
func (s *Store) At(ctx context.Context, position int) (model.BestScore, error) {
	defer observe("at", time.Now())
	if position < 0 {
		return model.BestScore{}, repository.ErrNotFound
	}
	q := bestCTE + `SELECT username, wpm, raw_wpm, created_at FROM best` + leaderboardOrder + ` OFFSET $1 LIMIT 1`
	b, err := scanBest(s.pool.QueryRow(ctx, q, position))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BestScore{}, repository.ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("at")
		return model.BestScore{}, fmt.Errorf("query position: %w", err)
	}
	return b, nil
}

// Page returns up to limit rows matching search after skipping offset of them.
func (s *Store) Page(ctx context.Context, search string, limit, offset int) ([]model.BestScore, error) {
	defer observe("page", time.Now())
	if limit < 1 {
		metrics.RecordStoreError("page")
		return nil, repository.ErrInvalidLimit
	}
	if offset < 0 {
		metrics.RecordStoreError("page")
		return nil, repository.ErrInvalidOffset
	}
	q := bestCTE + `SELECT username, wpm, raw_wpm, created_at FROM best` + searchFilter + leaderboardOrder + ` LIMIT $2 OFFSET $3`
	return s.queryBest(ctx, "page", q, search, limit, offset)
}

// Count returns the number of distinct users, or 0 if the query fails.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(DISTINCT username) FROM scores`).Scan(&n); err != nil {
		metrics.RecordStoreError("count")
		s.log.Warn(ctx, "count users failed", logger.Error(err))
		return 0
	}
	return n
}

// Events returns username's attempts, oldest first.
func (s *Store) Events(ctx context.Context, username string) ([]model.ScoreEvent, error) {
	defer observe("events", time.Now())
	const q = `
SELECT id, username, wpm, raw_wpm, accuracy, keystrokes, words, created_at
FROM scores
WHERE username = $1
ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, q, username)
	if err != nil {
		metrics.RecordStoreError("events")
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.ScoreEvent
	for rows.Next() {
		var (
			e           model.ScoreEvent
			keys, words []byte
		)
		if err := rows.Scan(&e.ID, &e.Username, &e.WPM, &e.RawWPM, &e.Accuracy, &keys, &words, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(keys, &e.Keystrokes); err != nil {
			return nil, fmt.Errorf("decode keystrokes of %d: %w", e.ID, err)
		}
		if err := json.Unmarshal(words, &e.Words); err != nil {
			return nil, fmt.Errorf("decode words of %d: %w", e.ID, err)
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (s *Store) queryBest(ctx context.Context, op, q string, args ...any) ([]model.BestScore, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		metrics.RecordStoreError(op)
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	out := make([]model.BestScore, 0)
	for rows.Next() {
		b, err := scanBest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordStoreError(op)
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	return out, nil
}

func scanBest(row pgx.Row) (model.BestScore, error) {
	var b model.BestScore
	if err := row.Scan(&b.Username, &b.WPM, &b.RawWPM, &b.Timestamp); err != nil {
		return model.BestScore{}, err
	}
	b.Timestamp = b.Timestamp.UTC()
	return b, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func observe(query string, start time.Time) {
	metrics.RecordStoreQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}
