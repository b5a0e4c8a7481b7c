package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("too many submissions; slow down")

	// errMissingUsername answers a user path with an empty username segment.
	errMissingUsername = fmt.Errorf("%w: username is required", service.ErrInvalidUsername)
)

// Error codes carried in ErrorResponse.Code.
const (
	codeBadRequest      = "bad_request"
	codeMissingFields   = "missing_fields"
	codeInvalidUsername = "invalid_username"
	codeNotFound        = "not_found"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal_error"
)

const internalErrorMessage = "internal error"

// errorWriter maps service error kinds to HTTP responses. Server errors are
// logged in full and answered with an opaque body.
type errorWriter struct {
	logger logger.Logger
}

func (e *errorWriter) write(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var rejected *service.RejectedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Error:     rejected.Reason,
			Invalid:   true,
			ErrorCode: int(rejected.Code),
			Reason:    rejected.Code.String(),
		})
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, codeMissingFields, err)
	case errors.Is(err, service.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, codeInvalidUsername, err)
	case errors.Is(err, service.ErrInvalidQuery), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err)
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, err)
	default:
		e.logger.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: internalErrorMessage, Code: codeInternal})
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: code})
}
