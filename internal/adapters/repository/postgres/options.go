package postgres

import "github.com/okian/wpmrank/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxConns bounds the connection pool.
func WithMaxConns(n int32) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithMinConns keeps n idle connections warm.
func WithMinConns(n int32) Option {
	return func(s *Store) {
		if n >= 0 {
			s.minConns = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithoutMigrations skips applying the embedded schema on startup.
func WithoutMigrations() Option {
	return func(s *Store) {
		s.migrate = false
	}
}
