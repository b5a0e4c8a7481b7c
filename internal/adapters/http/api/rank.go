package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/wpmrank/internal/domain/ranking"
	"github.com/okian/wpmrank/pkg/logger"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, username string) (ranking.Standing, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
	errs *errorWriter
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies, log logger.Logger) *RankHandler {
	return &RankHandler{deps: deps, errs: &errorWriter{logger: log}}
}

// HandleGetRank handles GET /api/rank/{username} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	st, err := h.deps.Rank(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, standingResponse(st))
}

// HandleMissingUsername handles GET /api/rank/ with no username.
func (h *RankHandler) HandleMissingUsername(w http.ResponseWriter, r *http.Request) {
	h.errs.write(r.Context(), w, "api.get_rank", errMissingUsername)
}
