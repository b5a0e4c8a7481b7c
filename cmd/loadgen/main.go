package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/wpmrank/internal/loadgen"
	"github.com/okian/wpmrank/pkg/logger"
)

const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	runTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Base URL of the service")
		users    = flag.Int("users", loadgen.DefaultUsers, "Distinct users to create")
		attempts = flag.Int("attempts", loadgen.DefaultAttemptsPerUser, "Attempts per user")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", loadgen.DefaultTimeout, "HTTP request timeout")
		retries  = flag.Int("retries", loadgen.DefaultMaxRetries, "Retries of a rate-limited submission")
		backoff  = flag.Duration("backoff", loadgen.DefaultRetryBackoff, "Base delay between retries")
		output   = flag.String("output", "", "Write the generated attempts to this JSON file")
		jsonLogs = flag.Bool("json", false, "Log in JSON")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithJSON(*jsonLogs)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:         *baseURL,
		Users:           *users,
		AttemptsPerUser: *attempts,
		Workers:         *workers,
		Timeout:         *timeout,
		MaxRetries:      *retries,
		RetryBackoff:    *backoff,
		OutputFile:      *output,
		Verbose:         *verbose,
	}
	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
