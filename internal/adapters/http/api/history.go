package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/pkg/logger"
)

// HistoryDependencies defines the interface for a user's past attempts.
type HistoryDependencies interface {
	History(ctx context.Context, username string, limit int) ([]model.ScoreEvent, error)
}

// HistoryHandler handles score history requests.
type HistoryHandler struct {
	deps HistoryDependencies
	errs *errorWriter
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, log logger.Logger) *HistoryHandler {
	return &HistoryHandler{deps: deps, errs: &errorWriter{logger: log}}
}

// HandleGetHistory handles GET /api/scores/{username}?limit requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	events, err := h.deps.History(r.Context(), mux.Vars(r)["username"], limit)
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toScoreRecords(events))
}

// HandleMissingUsername handles GET /api/scores/ with no username.
func (h *HistoryHandler) HandleMissingUsername(w http.ResponseWriter, r *http.Request) {
	h.errs.write(r.Context(), w, "api.get_scores", errMissingUsername)
}
