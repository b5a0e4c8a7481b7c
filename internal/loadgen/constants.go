package loadgen

import "time"

// Defaults applied to zero Config fields.
const (
	DefaultUsers           = 200
	DefaultAttemptsPerUser = 3
	DefaultWorkers         = 8
	DefaultTimeout         = 10 * time.Second
	DefaultMaxRetries      = 5
	DefaultRetryBackoff    = 250 * time.Millisecond
)

// Attempt shape.
const (
	attemptSeconds = 30
	charsPerWord   = 5
	minRawWPM      = 25
	rawWPMRange    = 120
	minAccuracy    = 85
	accuracyRange  = 15
	pageSize       = 100
)

// Submission outcomes.
const (
	outcomeCommitted   = "committed"
	outcomeDegraded    = "degraded"
	outcomeRejected    = "rejected"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

func (c *Config) applyDefaults() {
	if c.Users <= 0 {
		c.Users = DefaultUsers
	}
	if c.AttemptsPerUser <= 0 {
		c.AttemptsPerUser = DefaultAttemptsPerUser
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}
