// Package loadgen drives a running wpmrank server with synthetic typing
// attempts and checks that what it serves is consistent.
package loadgen

import (
	"time"

	"github.com/okian/wpmrank/internal/domain/types"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Users           int           // Distinct users to create
	AttemptsPerUser int           // Attempts submitted per user
	Workers         int           // Concurrent HTTP workers
	Timeout         time.Duration // HTTP request timeout
	MaxRetries      int           // Retries of a rate-limited submission
	RetryBackoff    time.Duration // Base delay between retries, multiplied by the attempt number
	OutputFile      string        // Optional JSON dump of the generated attempts
	Verbose         bool          // Log every failure
}

// Attempt is one generated submission and the user it belongs to.
type Attempt struct {
	Username string              `json:"username"`
	Request  types.SubmitRequest `json:"request"`
}

// Stats holds run statistics.
type Stats struct {
	AttemptsGenerated int
	Committed         int
	Degraded          int
	Rejected          int
	RateLimited       int
	Failed            int
	RanksRetrieved    int
	LeaderboardRows   int
	Mismatches        int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
