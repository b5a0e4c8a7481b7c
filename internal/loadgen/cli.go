package loadgen

import "os"

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`wpmrank Load Tool
=================

Submits synthetic typing attempts to a running wpmrank server and checks
that best scores, ranks and wpmToBeat agree with the full leaderboard.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -users int
        Distinct users to create (default 200)
  -attempts int
        Attempts per user (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -retries int
        Retries of a rate-limited submission (default 5)
  -backoff duration
        Base delay between retries (default 250ms)
  -output string
        Write the generated attempts to this JSON file
  -json
        Log in JSON
  -verbose
        Enable verbose logging
  -help
        Show this help message

The server rate-limits submissions per client. For large runs start it with
WPMRANK_RATE_LIMIT_RPS=0 to disable the limiter.

Examples:
  go run ./cmd/loadgen -users 1000 -attempts 5 -workers 32
  go run ./cmd/loadgen -verbose -output attempts.json
`)
}
