package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound      = errors.New("user has no scores")
	ErrInvalidLimit  = errors.New("limit must be positive")
	ErrInvalidOffset = errors.New("offset must not be negative")
)
