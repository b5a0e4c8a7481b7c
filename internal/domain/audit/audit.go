// Package audit consumes submission outcomes: it writes the audit log and
// flags keystroke payloads that were submitted before.
package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/okian/wpmrank/internal/domain/dedupe"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

// ErrMalformedEvent is returned for events without an ID or outcome.
var ErrMalformedEvent = errors.New("malformed audit event")

// Stats summarizes what the auditor has seen since start.
type Stats struct {
	Processed          int64            `json:"processed"`
	ReplaySuspicions   int64            `json:"replaySuspicions"`
	BorderlineAccepted int64            `json:"borderlineAccepted"`
	ByOutcome          map[string]int64 `json:"byOutcome"`
}

// Auditor handles audit events. It never blocks or alters submissions.
type Auditor struct {
	log    logger.Logger
	window dedupe.Deduper

	processed  atomic.Int64
	suspicions atomic.Int64
	borderline atomic.Int64

	mu        sync.Mutex
	byOutcome map[model.Outcome]int64
}

// New creates an Auditor.
func New(opts ...Option) *Auditor {
	a := &Auditor{
		log:       logger.Nop(),
		byOutcome: make(map[model.Outcome]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.window == nil {
		a.window = dedupe.NewWindow()
	}
	return a
}

// Handle records one submission outcome.
func (a *Auditor) Handle(ctx context.Context, e model.AuditEvent) error { //nolint:gocritic // hugeParam: events travel by value
	if e.ID == "" || e.Outcome == "" {
		return ErrMalformedEvent
	}
	if e.RequestID != "" {
		ctx = logger.WithRequestID(ctx, e.RequestID)
	}

	a.processed.Add(1)
	a.mu.Lock()
	a.byOutcome[e.Outcome]++
	a.mu.Unlock()

	fields := summary(e)
	switch e.Outcome {
	case model.OutcomeCommitted:
		a.log.Info(ctx, "submission committed", fields...)
	case model.OutcomeDegraded:
		a.log.Warn(ctx, "submission committed without enrichment", fields...)
	case model.OutcomeInvalid, model.OutcomeRejected:
		a.log.Warn(ctx, "submission rejected", fields...)
	case model.OutcomeFailed:
		a.log.Error(ctx, "submission failed", fields...)
	default:
		a.log.Warn(ctx, "submission with unknown outcome", fields...)
	}

	if len(e.Warnings) > 0 && accepted(e.Outcome) {
		a.borderline.Add(1)
		metrics.RecordValidatorWarning()
		a.log.Warn(ctx, "borderline submission accepted",
			logger.String("username", e.Username),
			logger.Any("warnings", e.Warnings))
	}

	if e.Fingerprint != "" && accepted(e.Outcome) {
		if first, seen := a.window.SeenAndRecord(ctx, e.Fingerprint, e.Username); seen {
			a.suspicions.Add(1)
			metrics.RecordReplaySuspicion()
			a.log.Warn(ctx, "keystroke payload seen before",
				logger.String("username", e.Username),
				logger.String("first_username", first),
				logger.Bool("same_user", first == e.Username),
				logger.Int64("score_id", e.ScoreID))
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (a *Auditor) Stats() Stats {
	a.mu.Lock()
	by := make(map[string]int64, len(a.byOutcome))
	for k, v := range a.byOutcome {
		by[string(k)] = v
	}
	a.mu.Unlock()
	return Stats{
		Processed:          a.processed.Load(),
		ReplaySuspicions:   a.suspicions.Load(),
		BorderlineAccepted: a.borderline.Load(),
		ByOutcome:          by,
	}
}

func accepted(o model.Outcome) bool {
	return o == model.OutcomeCommitted || o == model.OutcomeDegraded
}

// summary describes the payload without including it.
func summary(e model.AuditEvent) []logger.Field { //nolint:gocritic // hugeParam
	fields := []logger.Field{
		logger.String("audit_id", e.ID),
		logger.String("username", e.Username),
		logger.String("outcome", string(e.Outcome)),
		logger.Float64("wpm", e.WPM),
		logger.Float64("raw_wpm", e.RawWPM),
		logger.Float64("accuracy", e.Accuracy),
		logger.Int("keystrokes", e.Keystrokes),
		logger.Int("words", e.Words),
	}
	if e.ScoreID != 0 {
		fields = append(fields, logger.Int64("score_id", e.ScoreID))
	}
	if e.Code != 0 {
		fields = append(fields, logger.Int("code", e.Code))
	}
	if e.Reason != "" {
		fields = append(fields, logger.String("reason", e.Reason))
	}
	return fields
}
