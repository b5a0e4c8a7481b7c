package audit

import (
	"github.com/okian/wpmrank/internal/domain/dedupe"
	"github.com/okian/wpmrank/pkg/logger"
)

// Option applies a configuration option to the Auditor.
type Option func(*Auditor)

// WithLogger sets the audit logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.log = l
		}
	}
}

// WithReplayWindow sets the deduper used to spot repeated keystroke payloads.
func WithReplayWindow(d dedupe.Deduper) Option {
	return func(a *Auditor) {
		if d != nil {
			a.window = d
		}
	}
}
