package cache

import (
	"strconv"
	"strings"
)

// Key families.
const (
	LeaderboardPrefix = "leaderboard:"
	RankPrefix        = "rank:"
)

// LeaderboardKey names one leaderboard page. Searches are case-insensitive,
// so the search term is lowercased; it is tagged so a search for "default"
// cannot collide with the unfiltered page.
func LeaderboardKey(search string, limit, offset int) string {
	var b strings.Builder
	b.WriteString(LeaderboardPrefix)
	if search == "" {
		b.WriteString("default")
	} else {
		b.WriteString("s=")
		b.WriteString(strings.ToLower(search))
	}
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(limit))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(offset))
	return b.String()
}

// RankKey names one user's cached standing. Usernames are case-sensitive.
func RankKey(username string) string {
	return RankPrefix + username
}

// Family returns the key family used as a metrics label.
func Family(key string) string {
	switch {
	case strings.HasPrefix(key, LeaderboardPrefix):
		return "leaderboard"
	case strings.HasPrefix(key, RankPrefix):
		return "rank"
	default:
		return "other"
	}
}
