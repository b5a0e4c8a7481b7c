// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/ranking"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	SubmitDependencies
	LeaderboardDependencies
	RankDependencies
	HistoryDependencies
	StatsProvider
	Pinger
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.LeaderboardEntry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submitHandler      *SubmitHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	historyHandler     *HistoryHandler

	limiter     *rateLimiter
	corsOrigins []string
	logger      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		submitHandler:      NewSubmitHandler(deps, cfg.logger, cfg.maxBodyBytes),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.logger),
		rankHandler:        NewRankHandler(deps, cfg.logger),
		historyHandler:     NewHistoryHandler(deps, cfg.logger),
		limiter:            newRateLimiter(cfg.rateLimitRPS, cfg.rateLimitBurst, cfg.trustedProxies),
		corsOrigins:        cfg.corsOrigins,
		logger:             cfg.logger,
	}
}

// Register attaches all HTTP routes to r. The rate limiter's idle-client
// sweep runs until ctx is done.
func (s *Server) Register(ctx context.Context, r *mux.Router) {
	r.Use(RequestIDMiddleware)

	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.Handle("/metrics", MetricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	r.HandleFunc("/api/submit-score",
		MetricsMiddleware(s.limiter.wrap(s.submitHandler.HandleSubmit), "submit_score")).Methods(http.MethodPost)
	r.HandleFunc("/api/leaderboard",
		MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard")).Methods(http.MethodGet)
	r.HandleFunc("/api/rank/{username}",
		MetricsMiddleware(s.rankHandler.HandleGetRank, "rank")).Methods(http.MethodGet)
	r.HandleFunc("/api/rank/",
		MetricsMiddleware(s.rankHandler.HandleMissingUsername, "rank")).Methods(http.MethodGet)
	r.HandleFunc("/api/scores/{username}",
		MetricsMiddleware(s.historyHandler.HandleGetHistory, "scores")).Methods(http.MethodGet)
	r.HandleFunc("/api/scores/",
		MetricsMiddleware(s.historyHandler.HandleMissingUsername, "scores")).Methods(http.MethodGet)

	go s.limiter.sweep(ctx)
}

// Handler wraps h with CORS for the browser client and panic recovery.
func (s *Server) Handler(h http.Handler) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.corsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(h))
}

// recoveryLogger adapts the structured logger to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	logger logger.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error(context.Background(), "panic in handler", logger.Any("panic", v))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// toScoreRecords converts history rows, never returning nil.
func toScoreRecords(events []model.ScoreEvent) []types.ScoreRecord {
	out := make([]types.ScoreRecord, 0, len(events))
	for _, e := range events {
		out = append(out, types.FromEvent(e))
	}
	return out
}

// submitResponse builds the wire shape of a committed submission.
func submitResponse(res service.SubmitResult) types.SubmitResponse { //nolint:gocritic // hugeParam: read-only
	resp := types.SubmitResponse{
		Score:    types.FromEvent(res.Score),
		Degraded: res.Degraded,
	}
	if res.Degraded {
		return resp
	}
	rank := types.NewRankResponse(res.Rank, res.Neighbor)
	resp.Rank = &rank.Rank
	resp.WPMToBeat = rank.WPMToBeat
	resp.WPMToBeatRaw = rank.WPMToBeatRaw
	resp.Leaderboard = types.Leaderboard(res.Leaderboard)
	return resp
}

// standingResponse builds the wire shape of a rank lookup.
func standingResponse(st ranking.Standing) types.RankResponse {
	return types.NewRankResponse(st.Rank, st.Neighbor)
}
