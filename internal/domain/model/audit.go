package model

import "time"

// Outcome is the terminal state of a submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDegraded  Outcome = "degraded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// AuditEvent describes what happened to one submission. It carries a payload
// summary and the keystroke fingerprint, never the keystrokes themselves.
type AuditEvent struct {
	ID          string
	RequestID   string
	Username    string
	Outcome     Outcome
	Code        int
	Reason      string
	Warnings    []string
	ScoreID     int64
	WPM         float64
	RawWPM      float64
	Accuracy    float64
	Keystrokes  int
	Words       int
	Fingerprint string
	At          time.Time
}
