package loadgen

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/pkg/logger"
)

var vocabulary = []string{
	"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog", "time",
	"people", "water", "number", "sound", "little", "house", "world", "place",
}

// runTag returns a short random prefix shared by every username of a run,
// so a run's users can be found with ?search=.
func runTag() string {
	return "lg" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// generateAttempts creates AttemptsPerUser attempts for each of Users users.
func generateAttempts(ctx context.Context, cfg *Config, tag string, stats *Stats) ([]Attempt, error) {
	logger.Get().Info(ctx, "generating attempts",
		logger.Int("users", cfg.Users),
		logger.Int("attemptsPerUser", cfg.AttemptsPerUser))

	attempts := make([]Attempt, 0, cfg.Users*cfg.AttemptsPerUser)
	for u := range cfg.Users {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		name := fmt.Sprintf("%s_%05d", tag, u)
		for range cfg.AttemptsPerUser {
			attempts = append(attempts, Attempt{Username: name, Request: newAttempt(name)})
		}
	}
	rand.Shuffle(len(attempts), func(i, j int) { attempts[i], attempts[j] = attempts[j], attempts[i] })

	stats.AttemptsGenerated = len(attempts)
	return attempts, nil
}

// newAttempt builds a submission the default validator accepts: a
// 30 second attempt whose keystroke count and prompt length agree with
// its raw speed.
func newAttempt(username string) types.SubmitRequest {
	raw := round2(minRawWPM + rand.Float64()*rawWPMRange)
	accuracy := round2(minAccuracy + rand.Float64()*accuracyRange)
	wpm := math.Min(round2(raw*accuracy/100), raw)

	n := int(math.Round(raw * charsPerWord * attemptSeconds / 60))
	keys := make([]model.Keystroke, n)
	step := int64(attemptSeconds * 1000 / max(n-1, 1))
	for i := range keys {
		keys[i] = model.Keystroke{Key: string(rune('a' + rand.IntN(26))), Timestamp: int64(i) * step}
	}

	var (
		words []string
		chars int
	)
	for chars < n {
		w := vocabulary[rand.IntN(len(vocabulary))]
		words = append(words, w)
		chars += len(w) + 1
	}

	return types.SubmitRequest{
		Username:   &username,
		WPM:        &wpm,
		RawWPM:     &raw,
		Accuracy:   &accuracy,
		Keystrokes: keys,
		Words:      words,
	}
}

// expectedBest returns each user's maximum submitted wpm over the committed attempts.
func expectedBest(committed []Attempt) map[string]float64 {
	best := make(map[string]float64)
	for _, a := range committed {
		wpm := *a.Request.WPM
		if cur, ok := best[a.Username]; !ok || wpm > cur {
			best[a.Username] = wpm
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
