// Package types contains the JSON shapes exchanged over the HTTP API.
package types

import (
	"math"
	"time"

	"github.com/okian/wpmrank/internal/domain/model"
)

// LeaderboardEntry is one row of the leaderboard. WPM keeps full precision.
type LeaderboardEntry struct {
	Username  string    `json:"username"`
	WPM       float64   `json:"wpm"`
	Timestamp time.Time `json:"timestamp"`
}

// RankResponse is a user's standing.
type RankResponse struct {
	Rank         int  `json:"rank"`
	WPMToBeat    *int `json:"wpmToBeat"`
	WPMToBeatRaw *int `json:"wpmToBeatRaw"`
}

// ScoreRecord is a stored attempt without its keystroke payload.
type ScoreRecord struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	WPM       float64   `json:"wpm"`
	RawWPM    float64   `json:"rawWpm"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// SubmitRequest is the body of POST /api/submit-score. Pointers distinguish
// a missing field from a zero value.
type SubmitRequest struct {
	Username   *string           `json:"username"`
	WPM        *float64          `json:"wpm"`
	RawWPM     *float64          `json:"rawWpm"`
	Accuracy   *float64          `json:"accuracy"`
	Keystrokes []model.Keystroke `json:"keystrokes"`
	Words      []string          `json:"words"`
}

// SubmitResponse is returned for a committed submission. Rank and the
// leaderboard are absent when enrichment failed and Degraded is set.
type SubmitResponse struct {
	Score        ScoreRecord        `json:"score"`
	Rank         *int               `json:"rank"`
	WPMToBeat    *int               `json:"wpmToBeat"`
	WPMToBeatRaw *int               `json:"wpmToBeatRaw"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	Degraded     bool               `json:"degraded,omitempty"`
}

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Invalid   bool   `json:"invalid,omitempty"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RoundWPM rounds v to the nearest integer for display.
func RoundWPM(v float64) *int {
	r := int(math.Round(v))
	return &r
}

// FromBest converts a standing row to its wire shape.
func FromBest(b model.BestScore) LeaderboardEntry {
	return LeaderboardEntry{Username: b.Username, WPM: b.WPM, Timestamp: b.Timestamp.UTC()}
}

// Leaderboard converts rows, never returning nil so the JSON is [] rather than null.
func Leaderboard(rows []model.BestScore) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromBest(r))
	}
	return out
}

// FromEvent converts a stored attempt to its wire shape.
func FromEvent(e model.ScoreEvent) ScoreRecord {
	return ScoreRecord{
		ID:        e.ID,
		Username:  e.Username,
		WPM:       e.WPM,
		RawWPM:    e.RawWPM,
		Accuracy:  e.Accuracy,
		Timestamp: e.Timestamp.UTC(),
	}
}

// NewRankResponse builds a RankResponse; neighbor is nil for the top rank.
func NewRankResponse(rank int, neighbor *model.BestScore) RankResponse {
	resp := RankResponse{Rank: rank}
	if neighbor != nil {
		resp.WPMToBeat = RoundWPM(neighbor.WPM)
		resp.WPMToBeatRaw = RoundWPM(neighbor.RawWPM)
	}
	return resp
}
