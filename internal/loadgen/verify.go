package loadgen

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/ranking"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

// fetchLeaderboard pages through the whole leaderboard, bypassing the cache.
func fetchLeaderboard(ctx context.Context, client *httpClient, search string) ([]model.BestScore, error) {
	var rows []model.BestScore
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint(offset))
		q.Set("fresh", "true")
		if search != "" {
			q.Set("search", search)
		}

		var page []types.LeaderboardEntry
		status, body, err := client.get(ctx, "/api/leaderboard?"+q.Encode(), &page)
		if err != nil {
			return nil, err
		}
		if status != 200 {
			return nil, fmt.Errorf("leaderboard returned %d: %s", status, strings.TrimSpace(string(body)))
		}
		for _, e := range page {
			rows = append(rows, model.BestScore{Username: e.Username, WPM: e.WPM, Timestamp: e.Timestamp})
		}
		if len(page) < pageSize {
			return rows, nil
		}
	}
}

// verify checks the served state against what was submitted. Every
// disagreement is logged and counted in stats.Mismatches.
func verify(ctx context.Context, cfg *Config, client *httpClient, tag string, committed []Attempt, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	all, err := fetchLeaderboard(ctx, client, "")
	if err != nil {
		return fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	stats.LeaderboardRows = len(all)

	for i := 1; i < len(all); i++ {
		if model.Before(all[i], all[i-1]) {
			stats.Mismatches++
			log.Warn(ctx, "leaderboard out of order",
				logger.Int("position", i),
				logger.String("username", all[i].Username))
		}
	}

	ranked := ranking.AssignRanks(all)
	position := make(map[string]int, len(ranked))
	for i, r := range ranked {
		position[r.Username] = i
	}

	mine, err := fetchLeaderboard(ctx, client, tag)
	if err != nil {
		return fmt.Errorf("failed to fetch run leaderboard: %w", err)
	}
	served := make(map[string]float64, len(mine))
	for _, r := range mine {
		served[r.Username] = r.WPM
	}

	best := expectedBest(committed)
	for user, want := range best {
		got, ok := served[user]
		if !ok || got != want {
			stats.Mismatches++
			log.Warn(ctx, "best score mismatch",
				logger.String("username", user),
				logger.Float64("expected", want),
				logger.Float64("served", got))
			continue
		}
		if err := verifyRank(ctx, cfg, client, user, ranked, position, stats); err != nil {
			return err
		}
	}

	log.Info(ctx, "verification completed",
		logger.Int("users", len(best)),
		logger.Int("leaderboardRows", stats.LeaderboardRows),
		logger.Int("mismatches", stats.Mismatches))
	return nil
}

// verifyRank compares /api/rank/{user} with the rank recomputed from the
// full leaderboard.
func verifyRank(ctx context.Context, cfg *Config, client *httpClient, user string,
	ranked []model.RankEntry, position map[string]int, stats *Stats) error {
	var resp types.RankResponse
	status, body, err := client.get(ctx, "/api/rank/"+url.PathEscape(user), &resp)
	if err != nil {
		return fmt.Errorf("failed to fetch rank of %s: %w", user, err)
	}
	if status != 200 {
		stats.Mismatches++
		logger.Get().Warn(ctx, "rank lookup failed",
			logger.String("username", user),
			logger.Int("status", status),
			logger.String("body", strings.TrimSpace(string(body))))
		return nil
	}
	stats.RanksRetrieved++

	i, ok := position[user]
	if !ok {
		stats.Mismatches++
		logger.Get().Warn(ctx, "user missing from leaderboard", logger.String("username", user))
		return nil
	}
	want := ranked[i].Rank
	var wantBeat *int
	if want > 1 {
		wantBeat = types.RoundWPM(ranked[want-2].WPM)
	}

	if resp.Rank != want || !sameInt(resp.WPMToBeat, wantBeat) {
		stats.Mismatches++
		logger.Get().Warn(ctx, "rank mismatch",
			logger.String("username", user),
			logger.Int("expectedRank", want),
			logger.Int("servedRank", resp.Rank))
	} else if cfg.Verbose {
		logger.Get().Debug(ctx, "rank verified", logger.String("username", user), logger.Int("rank", want))
	}
	return nil
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// successRate is the share of generated attempts that were stored, in percent.
func successRate(stats *Stats) float64 {
	if stats.AttemptsGenerated == 0 {
		return 0
	}
	stored := stats.Committed + stats.Degraded
	return math.Round(float64(stored)/float64(stats.AttemptsGenerated)*10000) / 100
}
