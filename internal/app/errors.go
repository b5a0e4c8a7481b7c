package service

import (
	"errors"
	"fmt"

	"github.com/okian/wpmrank/internal/domain/validation"
)

// Sentinel kinds for service errors.
var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidUsername = errors.New("username must be 1-15 letters, digits or underscores")
	ErrPersistence     = errors.New("failed to store score")
	ErrNotFound        = errors.New("user has no scores")
	ErrInvalidQuery    = errors.New("invalid leaderboard query")
)

// RejectedError is returned when the score validator refuses a submission.
type RejectedError struct {
	Code   validation.Code
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("score rejected (%s): %s", e.Code, e.Reason)
}
