// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxUsernameLength bounds usernames; see ValidUsername.
const MaxUsernameLength = 15

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Keystroke is one key press captured by the client during an attempt.
type Keystroke struct {
	Key       string `json:"key"`
	Timestamp int64  `json:"timestamp"` // milliseconds
}

// ScoreEvent is one typing-test attempt. ID and Timestamp are assigned by the store.
type ScoreEvent struct {
	ID         int64       `json:"id"`
	Username   string      `json:"username"`
	WPM        float64     `json:"wpm"`
	RawWPM     float64     `json:"rawWpm"`
	Accuracy   float64     `json:"accuracy"`
	Keystrokes []Keystroke `json:"keystrokes,omitempty"`
	Words      []string    `json:"words,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// BestScore is a user's standing row: their maximum wpm and the time it was first reached.
type BestScore struct {
	Username  string
	WPM       float64
	RawWPM    float64
	Timestamp time.Time
}

// RankEntry is a BestScore annotated with its competition rank.
type RankEntry struct {
	BestScore
	Rank int
}

// Before reports whether a is placed ahead of b on the leaderboard:
// wpm DESC, then earliest timestamp, then username for a deterministic order.
func Before(a, b BestScore) bool {
	if a.WPM != b.WPM {
		return a.WPM > b.WPM
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Username < b.Username
}

// Improves reports whether candidate replaces current as a user's best.
// Equal wpm keeps the earlier attempt.
func Improves(candidate, current float64) bool {
	return candidate > current
}

// ValidUsername reports whether name matches ^[A-Za-z0-9_]{1,15}$.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// MatchesSearch reports whether username contains search, case-insensitively.
// An empty search matches everything.
func MatchesSearch(username, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(username), strings.ToLower(search))
}

// Fingerprint returns a stable digest of the keystroke payload.
// Empty payloads have no fingerprint.
func Fingerprint(keys []Keystroke) string {
	if len(keys) == 0 {
		return ""
	}
	h := sha256.New()
	// relative timings so a replay shifted in time still matches
	base := keys[0].Timestamp
	buf := make([]byte, 0, 32)
	for _, k := range keys {
		buf = buf[:0]
		buf = append(buf, k.Key...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, k.Timestamp-base, 10)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
