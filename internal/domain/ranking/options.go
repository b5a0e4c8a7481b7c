package ranking

import "github.com/okian/wpmrank/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDefaultLimit sets the page size used when a query has none.
func WithDefaultLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultLimit = n
		}
	}
}

// WithMaxLimit caps page sizes; larger requests are clamped.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
