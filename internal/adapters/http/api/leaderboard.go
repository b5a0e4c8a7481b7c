package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, q service.LeaderboardQuery) ([]model.BestScore, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
	errs *errorWriter
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, errs: &errorWriter{logger: log}}
}

// HandleGetLeaderboard handles GET /api/leaderboard?limit&offset&search&fresh requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q, err := parseLeaderboardQuery(r.URL.Query())
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	rows, err := h.deps.Leaderboard(r.Context(), q)
	if err != nil {
		h.errs.write(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Leaderboard(rows))
}

// parseLeaderboardQuery reads pagination parameters. Absent values are
// left zero for the service to default; range checks happen there too.
func parseLeaderboardQuery(v url.Values) (service.LeaderboardQuery, error) {
	var (
		q   service.LeaderboardQuery
		err error
	)
	if q.Limit, err = intParam(v, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(v, "offset"); err != nil {
		return q, err
	}
	if s := v.Get("fresh"); s != "" {
		if q.Fresh, err = strconv.ParseBool(s); err != nil {
			return q, fmt.Errorf("%w: fresh must be a boolean", ErrBadRequest)
		}
	}
	q.Search = v.Get("search")
	return q, nil
}

func intParam(v url.Values, name string) (int, error) {
	s := v.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}
