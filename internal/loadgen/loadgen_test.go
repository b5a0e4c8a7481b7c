package loadgen

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/wpmrank/internal/adapters/http/api"
	"github.com/okian/wpmrank/internal/adapters/repository"
	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/model"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/internal/domain/validation"
	"github.com/okian/wpmrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

// newServer runs the real API over a memory store with rate limiting off.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc := service.New(repository.NewMemoryStore(ctx),
		service.WithLogger(logger.Nop()),
		service.WithLeaderboardLimits(20, pageSize))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	r := mux.NewRouter()
	srv := api.NewServer(svc, api.WithLogger(logger.Nop()), api.WithRateLimit(0, 0))
	srv.Register(ctx, r)
	ts := httptest.NewServer(srv.Handler(r))
	t.Cleanup(ts.Close)
	return ts
}

func TestNewAttemptPassesValidator(t *testing.T) {
	Convey("Generated attempts are accepted by the default validator", t, func() {
		v := validation.New()
		for range 200 {
			req := newAttempt("lgabc123_00001")
			res := v.Validate(validation.Candidate{
				WPM:        *req.WPM,
				RawWPM:     *req.RawWPM,
				Accuracy:   *req.Accuracy,
				Keystrokes: req.Keystrokes,
				Words:      req.Words,
			})
			So(res.Reason, ShouldEqual, "")
			So(res.Valid, ShouldBeTrue)
			So(*req.WPM, ShouldBeLessThanOrEqualTo, *req.RawWPM)
		}
	})
}

func TestGenerateAttempts(t *testing.T) {
	Convey("Given a small run", t, func() {
		cfg := &Config{Users: 4, AttemptsPerUser: 3}
		cfg.applyDefaults()
		stats := &Stats{}
		tag := runTag()

		attempts, err := generateAttempts(context.Background(), cfg, tag, stats)
		So(err, ShouldBeNil)
		So(len(attempts), ShouldEqual, 12)
		So(stats.AttemptsGenerated, ShouldEqual, 12)

		Convey("Every username is valid and carries the run tag", func() {
			for _, a := range attempts {
				So(model.ValidUsername(a.Username), ShouldBeTrue)
				So(strings.HasPrefix(a.Username, tag), ShouldBeTrue)
			}
		})

		Convey("expectedBest keeps each user's maximum", func() {
			best := expectedBest(attempts)
			So(len(best), ShouldEqual, 4)
			for _, a := range attempts {
				So(best[a.Username], ShouldBeGreaterThanOrEqualTo, *a.Request.WPM)
			}
		})

		Convey("A cancelled context stops generation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := generateAttempts(ctx, cfg, tag, &Stats{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a live server", t, func() {
		ts := newServer(t)
		out := filepath.Join(t.TempDir(), "runs", "attempts.json")

		Convey("A load run commits everything and finds no mismatches", func() {
			stats, err := Run(context.Background(), &Config{
				BaseURL:         ts.URL,
				Users:           25,
				AttemptsPerUser: 4,
				Workers:         6,
				Timeout:         5 * time.Second,
				OutputFile:      out,
			})
			So(err, ShouldBeNil)
			So(stats.AttemptsGenerated, ShouldEqual, 100)
			So(stats.Committed+stats.Degraded, ShouldEqual, 100)
			So(stats.Rejected, ShouldEqual, 0)
			So(stats.RanksRetrieved, ShouldEqual, 25)
			So(stats.LeaderboardRows, ShouldEqual, 25)
			So(stats.Mismatches, ShouldEqual, 0)
			So(successRate(stats), ShouldEqual, 100)
			So(out, shouldBeJSONArrayOf, 100)
		})

		Convey("A second run is verified alongside the first run's users", func() {
			_, err := Run(context.Background(), &Config{BaseURL: ts.URL, Users: 10, AttemptsPerUser: 2, Workers: 2})
			So(err, ShouldBeNil)
			stats, err := Run(context.Background(), &Config{BaseURL: ts.URL, Users: 10, AttemptsPerUser: 2, Workers: 2})
			So(err, ShouldBeNil)
			So(stats.LeaderboardRows, ShouldEqual, 20)
			So(stats.RanksRetrieved, ShouldEqual, 10)
		})
	})

	Convey("An unreachable server fails the health check", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()
		_, err := Run(context.Background(), &Config{BaseURL: ts.URL, Timeout: time.Second})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "health check")
	})
}

func TestVerifyDetectsMismatches(t *testing.T) {
	Convey("Given a server that lies about ranks and best scores", t, func() {
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		r := mux.NewRouter()
		r.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]types.LeaderboardEntry{
				{Username: "lgtest_00000", WPM: 90, Timestamp: at},
				{Username: "lgtest_00001", WPM: 70, Timestamp: at},
			})
		})
		r.HandleFunc("/api/rank/{username}", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(types.RankResponse{Rank: 1})
		})
		ts := httptest.NewServer(r)
		defer ts.Close()

		client := newHTTPClient(ts.URL, time.Second)
		wpm := func(v float64) types.SubmitRequest { return types.SubmitRequest{WPM: &v} }
		committed := []Attempt{
			{Username: "lgtest_00000", Request: wpm(90)},
			{Username: "lgtest_00001", Request: wpm(70)},
			{Username: "lgtest_00002", Request: wpm(50)},
		}

		stats := &Stats{}
		err := verify(context.Background(), &Config{}, client, "lgtest", committed, stats)
		So(err, ShouldBeNil)

		Convey("The missing user and the wrong rank are both counted", func() {
			So(stats.LeaderboardRows, ShouldEqual, 2)
			So(stats.RanksRetrieved, ShouldEqual, 2)
			So(stats.Mismatches, ShouldEqual, 2)
		})
	})
}

func shouldBeJSONArrayOf(actual any, expected ...any) string {
	data, err := os.ReadFile(actual.(string))
	if err != nil {
		return err.Error()
	}
	var got []Attempt
	if err := json.Unmarshal(data, &got); err != nil {
		return err.Error()
	}
	return ShouldEqual(len(got), expected[0])
}
