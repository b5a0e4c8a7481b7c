// Package service orchestrates score submission and the cached read paths
// behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wpmrank/internal/adapters/cache"
	eventqueue "github.com/okian/wpmrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/wpmrank/internal/adapters/mq/worker"
	"github.com/okian/wpmrank/internal/adapters/repository"
	"github.com/okian/wpmrank/internal/domain/audit"
	"github.com/okian/wpmrank/internal/domain/dedupe"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/ranking"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/internal/domain/validation"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

// Defaults for Service options.
const (
	DefaultInsertTimeout   = 5 * time.Second
	DefaultSnapshotSize    = 20
	DefaultHistoryLimit    = 20
	MaxHistoryLimit        = 100
	defaultAuditQueueSize  = 1024
	defaultAuditWorkers    = 2
	defaultReplayWindowLen = 10_000
)

// SubmitResult is a committed submission. When Degraded is set only Score
// and Warnings are meaningful.
type SubmitResult struct {
	Score       model.ScoreEvent
	Rank        int
	Neighbor    *model.BestScore
	Leaderboard []model.BestScore
	Degraded    bool
	Warnings    []string
}

// LeaderboardQuery selects a leaderboard page. Fresh skips the cache read
// but still writes the recomputed page back.
type LeaderboardQuery struct {
	Limit  int
	Offset int
	Search string
	Fresh  bool
}

// Service implements the API dependencies for the leaderboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	engine    *ranking.Engine
	validator *validation.Validator
	cache     cache.Cache
	ownsCache bool

	// Audit pipeline
	auditor    *audit.Auditor
	auditQueue *eventqueue.InMemoryQueue
	auditPool  *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	replayWindow  int
	insertTimeout time.Duration
	snapshotSize  int
	defaultLimit  int
	maxLimit      int

	// invalidation epoch; cacheMu orders write-backs against invalidations
	cacheMu sync.Mutex
	epoch   uint64

	// State
	started atomic.Bool
	logger  logger.Logger
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		workerCount:   defaultAuditWorkers,
		queueSize:     defaultAuditQueueSize,
		replayWindow:  defaultReplayWindowLen,
		insertTimeout: DefaultInsertTimeout,
		snapshotSize:  DefaultSnapshotSize,
		defaultLimit:  ranking.DefaultLimit,
		maxLimit:      ranking.MaxLimit,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.cache == nil {
		s.cache = cache.New(cache.WithLogger(s.logger.Named("cache")))
		s.ownsCache = true
	}
	s.engine = ranking.New(store,
		ranking.WithDefaultLimit(s.defaultLimit),
		ranking.WithMaxLimit(s.maxLimit),
		ranking.WithLogger(s.logger.Named("ranking")),
	)
	s.auditor = audit.New(
		audit.WithLogger(s.logger.Named("audit")),
		audit.WithReplayWindow(dedupe.NewWindow(dedupe.WithMaxSize(s.replayWindow))),
	)
	return s
}

// Start starts the audit pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.Load() {
		return nil
	}

	s.logger.Info(ctx, "starting leaderboard service...")
	s.auditQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.auditPool = workerpool.NewPool(s.workerCount, s.auditQueue, workerpool.HandlerFunc(s.auditor.Handle),
		workerpool.WithLogger(s.logger.Named("audit")))
	s.auditPool.Start(context.WithoutCancel(ctx))
	s.started.Store(true)

	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("audit_workers", s.workerCount),
		logger.Int("audit_queue_size", s.queueSize),
		logger.Int("replay_window", s.replayWindow),
	)
	return nil
}

// Stop drains the audit pipeline and releases the cache it owns.
// The store belongs to the caller.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started.Swap(false) {
		return nil
	}
	s.logger.Info(ctx, "stopping leaderboard service...")

	var err error
	if s.auditPool != nil {
		err = s.auditPool.Shutdown(ctx)
	}
	if s.ownsCache {
		if c, ok := s.cache.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	s.logger.Info(ctx, "leaderboard service stopped")
	return err
}

// Submit runs one attempt through validation, persistence, cache
// invalidation and enrichment. Once the insert succeeds the attempt is
// committed: later failures only set Degraded.
func (s *Service) Submit(ctx context.Context, req types.SubmitRequest) (SubmitResult, error) { //nolint:gocritic // hugeParam: request is read-only
	start := time.Now()
	ev := s.newAuditEvent(ctx, req)
	defer func() {
		metrics.RecordSubmission(string(ev.Outcome))
		metrics.RecordSubmitLatency(float64(time.Since(start).Microseconds()) / 1000)
		s.publish(ctx, ev)
	}()

	if req.Username == nil || req.WPM == nil || req.RawWPM == nil || req.Accuracy == nil {
		ev.Outcome, ev.Reason = model.OutcomeRejected, ErrMissingFields.Error()
		s.logger.Info(ctx, "submission missing fields", summaryFields(ev)...)
		return SubmitResult{}, ErrMissingFields
	}
	if !model.ValidUsername(*req.Username) {
		ev.Outcome, ev.Reason = model.OutcomeRejected, ErrInvalidUsername.Error()
		s.logger.Info(ctx, "submission with invalid username", summaryFields(ev)...)
		return SubmitResult{}, ErrInvalidUsername
	}

	verdict := s.validator.Validate(validation.Candidate{
		WPM:        *req.WPM,
		RawWPM:     *req.RawWPM,
		Accuracy:   *req.Accuracy,
		Keystrokes: req.Keystrokes,
		Words:      req.Words,
	})
	ev.Warnings = verdict.Warnings
	if !verdict.Valid {
		ev.Outcome, ev.Code, ev.Reason = model.OutcomeInvalid, int(verdict.Code), verdict.Reason
		metrics.RecordRejection(verdict.Code.String())
		s.logger.Warn(ctx, "submission failed validation",
			append(summaryFields(ev), logger.String("code", verdict.Code.String()), logger.String("reason", verdict.Reason))...)
		return SubmitResult{}, &RejectedError{Code: verdict.Code, Reason: verdict.Reason}
	}

	saved, err := s.insert(ctx, model.ScoreEvent{
		Username:   *req.Username,
		WPM:        *req.WPM,
		RawWPM:     *req.RawWPM,
		Accuracy:   *req.Accuracy,
		Keystrokes: req.Keystrokes,
		Words:      req.Words,
	})
	if err != nil {
		ev.Outcome, ev.Reason = model.OutcomeFailed, err.Error()
		s.logger.Error(ctx, "failed to store score", append(summaryFields(ev), logger.Error(err))...)
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	ev.ScoreID = saved.ID
	ev.Fingerprint = model.Fingerprint(req.Keystrokes)

	s.invalidate(saved.Username)

	res := SubmitResult{Score: saved, Warnings: verdict.Warnings}
	if err := s.enrich(ctx, &res); err != nil {
		res = SubmitResult{Score: saved, Warnings: verdict.Warnings, Degraded: true}
		ev.Outcome, ev.Reason = model.OutcomeDegraded, err.Error()
		s.logger.Warn(ctx, "enrichment failed; returning bare record",
			logger.String("username", saved.Username),
			logger.Int64("score_id", saved.ID),
			logger.Error(err))
		return res, nil
	}

	ev.Outcome = model.OutcomeCommitted
	s.logger.Debug(ctx, "submission committed",
		logger.String("username", saved.Username),
		logger.Int64("score_id", saved.ID),
		logger.Int("rank", res.Rank))
	return res, nil
}

// insert writes e on a context detached from the request, so a client
// disconnect cannot abort it, bounded by the insert timeout.
func (s *Service) insert(ctx context.Context, e model.ScoreEvent) (model.ScoreEvent, error) {
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.insertTimeout)
	defer cancel()
	return s.store.Insert(insertCtx, e)
}

func (s *Service) enrich(ctx context.Context, res *SubmitResult) error {
	standing, err := s.engine.Standing(ctx, res.Score.Username)
	if err != nil {
		return fmt.Errorf("standing: %w", err)
	}
	top, err := s.engine.TopN(ctx, ranking.Query{Limit: s.snapshotSize})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	res.Rank = standing.Rank
	res.Neighbor = standing.Neighbor
	res.Leaderboard = top
	return nil
}

// invalidate drops every leaderboard page and username's cached standing.
// Bumping the epoch under cacheMu stops in-flight reads from writing back
// results computed before this write.
func (s *Service) invalidate(username string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.epoch++
	s.safely("invalidate", func() {
		s.cache.DeleteByPrefix(cache.LeaderboardPrefix)
		s.cache.Delete(cache.RankKey(username))
	})
}

func (s *Service) currentEpoch() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.epoch
}

// writeBack caches value unless a write happened since epoch was read.
func (s *Service) writeBack(key string, value any, epoch uint64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.epoch != epoch {
		return
	}
	s.safely("set", func() { s.cache.Set(key, value) })
}

func (s *Service) cached(key string) (any, bool) {
	var (
		v  any
		ok bool
	)
	s.safely("get", func() { v, ok = s.cache.Get(key) })
	if ok {
		metrics.RecordCacheHit(cache.Family(key))
	} else {
		metrics.RecordCacheMiss(cache.Family(key))
	}
	return v, ok
}

// safely runs a cache operation; a fault is logged and treated as a miss.
func (s *Service) safely(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(context.Background(), "cache fault", logger.String("op", op), logger.Any("panic", r))
		}
	}()
	fn()
}

// Leaderboard returns a page of best-per-user standings, from cache when possible.
func (s *Service) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]model.BestScore, error) {
	norm, err := s.engine.Normalize(ranking.Query{Limit: q.Limit, Offset: q.Offset, Search: q.Search})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	key := cache.LeaderboardKey(norm.Search, norm.Limit, norm.Offset)

	if !q.Fresh {
		if v, ok := s.cached(key); ok {
			if rows, ok := v.([]model.BestScore); ok {
				return slices.Clone(rows), nil
			}
		}
	}

	epoch := s.currentEpoch()
	rows, err := s.engine.TopN(ctx, norm)
	if err != nil {
		return nil, err
	}
	s.writeBack(key, slices.Clone(rows), epoch)
	return rows, nil
}

// Rank returns username's standing among all users, from cache when possible.
func (s *Service) Rank(ctx context.Context, username string) (ranking.Standing, error) {
	if !model.ValidUsername(username) {
		return ranking.Standing{}, ErrInvalidUsername
	}
	key := cache.RankKey(username)
	if v, ok := s.cached(key); ok {
		if st, ok := v.(ranking.Standing); ok {
			return st, nil
		}
	}

	epoch := s.currentEpoch()
	st, err := s.engine.Standing(ctx, username)
	if errors.Is(err, ranking.ErrNotFound) {
		return ranking.Standing{}, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return ranking.Standing{}, err
	}
	s.writeBack(key, st, epoch)
	return st, nil
}

// History returns up to limit of username's attempts, newest first.
func (s *Service) History(ctx context.Context, username string, limit int) ([]model.ScoreEvent, error) {
	if !model.ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, ranking.ErrInvalidLimit)
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	events, err := s.store.Events(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", username, err)
	}
	slices.Reverse(events)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Ping reports whether the store is reachable, for stores that can tell.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":        s.started.Load(),
		"auditWorkers":   s.workerCount,
		"auditQueueSize": s.queueSize,
		"replayWindow":   s.replayWindow,
		"totalUsers":     s.store.Count(ctx),
		"cacheEntries":   s.cache.Len(),
		"audit":          s.auditor.Stats(),
	}
	if s.auditQueue != nil {
		stats["auditQueueLength"] = s.auditQueue.Len()
	}
	return stats
}

func (s *Service) newAuditEvent(ctx context.Context, req types.SubmitRequest) model.AuditEvent { //nolint:gocritic // hugeParam
	ev := model.AuditEvent{
		ID:         uuid.NewString(),
		RequestID:  logger.RequestID(ctx),
		Keystrokes: len(req.Keystrokes),
		Words:      len(req.Words),
		At:         time.Now().UTC(),
	}
	if req.Username != nil {
		ev.Username = *req.Username
	}
	if req.WPM != nil {
		ev.WPM = *req.WPM
	}
	if req.RawWPM != nil {
		ev.RawWPM = *req.RawWPM
	}
	if req.Accuracy != nil {
		ev.Accuracy = *req.Accuracy
	}
	return ev
}

// publish hands ev to the audit pipeline. A full queue drops the event, never the submission.
func (s *Service) publish(ctx context.Context, ev model.AuditEvent) { //nolint:gocritic // hugeParam
	if !s.started.Load() {
		return
	}
	if err := s.auditQueue.Enqueue(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Debug(ctx, "audit event dropped", logger.String("audit_id", ev.ID), logger.Error(err))
	}
}

func summaryFields(ev model.AuditEvent) []logger.Field { //nolint:gocritic // hugeParam
	return []logger.Field{
		logger.String("username", ev.Username),
		logger.Float64("wpm", ev.WPM),
		logger.Float64("raw_wpm", ev.RawWPM),
		logger.Float64("accuracy", ev.Accuracy),
		logger.Int("keystrokes", ev.Keystrokes),
		logger.Int("words", ev.Words),
	}
}
