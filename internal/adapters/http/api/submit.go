package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// SubmitDependencies defines the interface for score submission.
type SubmitDependencies interface {
	Submit(ctx context.Context, req types.SubmitRequest) (service.SubmitResult, error)
}

// SubmitHandler handles score submissions.
type SubmitHandler struct {
	deps         SubmitDependencies
	errs         *errorWriter
	maxBodyBytes int64
}

// NewSubmitHandler creates a new submit handler.
func NewSubmitHandler(deps SubmitDependencies, log logger.Logger, maxBodyBytes int64) *SubmitHandler {
	return &SubmitHandler{deps: deps, errs: &errorWriter{logger: log}, maxBodyBytes: maxBodyBytes}
}

// HandleSubmit handles POST /api/submit-score requests.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_score"
	var req types.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		h.errs.write(r.Context(), w, op, fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err))
		return
	}
	res, err := h.deps.Submit(r.Context(), req)
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse(res))
}
