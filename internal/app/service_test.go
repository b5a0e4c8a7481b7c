package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	service "github.com/okian/wpmrank/internal/app"
	"github.com/okian/wpmrank/internal/domain/audit"
	"github.com/okian/wpmrank/internal/domain/types"
	"github.com/okian/wpmrank/internal/domain/validation"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		store := newMemoryStore()
		defer store.Close()
		svc := service.New(store, service.WithWorkerCount(2), service.WithQueueSize(100))
		ctx := context.Background()

		Convey("When it is started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			started := svc.GetStats(ctx)["started"]
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then both calls are no-ops the second time", func() {
				So(started, ShouldEqual, true)
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})

		Convey("When submissions flow while started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			_, err := svc.Submit(ctx, attempt("alice", 80))
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, attempt("bad name", 80))
			So(err, ShouldNotBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the audit pipeline drains every outcome on stop", func() {
				st, ok := svc.GetStats(ctx)["audit"].(audit.Stats)
				So(ok, ShouldBeTrue)
				So(st.Processed, ShouldEqual, 2)
				So(st.ByOutcome["committed"], ShouldEqual, 1)
				So(st.ByOutcome["rejected"], ShouldEqual, 1)
			})
		})
	})
}

func TestService_SubmitGates(t *testing.T) {
	Convey("Given a service over a counting store", t, func() {
		mem := newMemoryStore()
		defer mem.Close()
		store := &flakyStore{Store: mem}
		svc := service.New(store)
		ctx := context.Background()

		Convey("When usernames break the pattern", func() {
			for _, name := range []string{"ab cd", strings.Repeat("x", 16), ""} {
				_, err := svc.Submit(ctx, attempt(name, 60))
				So(errors.Is(err, service.ErrInvalidUsername), ShouldBeTrue)
			}

			Convey("Then nothing reaches the store", func() {
				So(store.inserts.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the username is valid", func() {
			_, err := svc.Submit(ctx, attempt("abc_123", 60))
			So(err, ShouldBeNil)
			So(store.inserts.Load(), ShouldEqual, 1)
		})

		Convey("When a required field is missing", func() {
			req := attempt("bob", 60)
			req.Accuracy = nil
			_, err := svc.Submit(ctx, req)

			Convey("Then it is reported before the username check", func() {
				So(err, ShouldEqual, service.ErrMissingFields)
				So(store.inserts.Load(), ShouldEqual, 0)
			})
		})

		Convey("When accuracy is out of range", func() {
			req := attempt("bob", 60)
			req.Accuracy = ptr(101.0)
			_, err := svc.Submit(ctx, req)

			Convey("Then the rejection carries its code", func() {
				var rej *service.RejectedError
				So(errors.As(err, &rej), ShouldBeTrue)
				So(rej.Code, ShouldEqual, validation.CodeAccuracyOutOfRange)
				So(store.inserts.Load(), ShouldEqual, 0)
			})
		})

		Convey("When nothing was typed at full accuracy", func() {
			req := types.SubmitRequest{Username: ptr("idle"), WPM: ptr(0.0), RawWPM: ptr(0.0), Accuracy: ptr(100.0)}
			res, err := svc.Submit(ctx, req)

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
				So(res.Score.WPM, ShouldEqual, 0)
				So(res.Rank, ShouldEqual, 1)
			})
		})
	})
}

func TestService_SubmitEnrichment(t *testing.T) {
	Convey("Given an empty leaderboard", t, func() {
		store := newMemoryStore()
		defer store.Close()
		svc := service.New(store)
		ctx := context.Background()

		Convey("When the first user submits", func() {
			res, err := svc.Submit(ctx, attempt("alice", 100.4))

			Convey("Then they hold rank 1 with nothing to beat", func() {
				So(err, ShouldBeNil)
				So(res.Degraded, ShouldBeFalse)
				So(res.Rank, ShouldEqual, 1)
				So(res.Neighbor, ShouldBeNil)
				So(res.Score.ID, ShouldEqual, 1)
				So(res.Leaderboard, ShouldHaveLength, 1)
			})

			Convey("And a slower user submits", func() {
				res, err := svc.Submit(ctx, attempt("bob", 90))

				Convey("Then rank 2 must beat rank 1's score", func() {
					So(err, ShouldBeNil)
					So(res.Rank, ShouldEqual, 2)
					So(res.Neighbor.Username, ShouldEqual, "alice")
					So(*types.NewRankResponse(res.Rank, res.Neighbor).WPMToBeat, ShouldEqual, 100)
					So(res.Leaderboard, ShouldHaveLength, 2)
				})
			})
		})

		Convey("When one user submits 50, 80 then 60", func() {
			for _, wpm := range []float64{50, 80, 60} {
				_, err := svc.Submit(ctx, attempt("dave", wpm))
				So(err, ShouldBeNil)
			}
			_, err := svc.Submit(ctx, attempt("erin", 70))
			So(err, ShouldBeNil)

			Convey("Then only the 80 counts", func() {
				st, err := svc.Rank(ctx, "dave")
				So(err, ShouldBeNil)
				So(st.Rank, ShouldEqual, 1)
				So(st.Best.WPM, ShouldEqual, 80)

				rows, err := svc.Leaderboard(ctx, service.LeaderboardQuery{})
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].WPM, ShouldEqual, 80)
			})
		})
	})
}

func TestService_SubmitFailures(t *testing.T) {
	Convey("Given a store that fails", t, func() {
		mem := newMemoryStore()
		defer mem.Close()
		store := &flakyStore{Store: mem}
		svc := service.New(store)
		ctx := context.Background()

		Convey("When the insert fails", func() {
			cause := errors.New("disk full")
			store.insertErr = cause
			_, err := svc.Submit(ctx, attempt("alice", 70))

			Convey("Then it is a persistence error wrapping the cause", func() {
				So(errors.Is(err, service.ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
			})
		})

		Convey("When ranking fails after the insert", func() {
			store.bestErr = errors.New("replica lag")
			res, err := svc.Submit(ctx, attempt("alice", 70))

			Convey("Then the bare record is returned, degraded", func() {
				So(err, ShouldBeNil)
				So(res.Degraded, ShouldBeTrue)
				So(res.Score.ID, ShouldEqual, 1)
				So(res.Leaderboard, ShouldBeNil)
				So(mem.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the client has already gone away", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			res, err := svc.Submit(cctx, attempt("alice", 70))

			Convey("Then the insert still completes", func() {
				So(err, ShouldBeNil)
				So(res.Score.ID, ShouldEqual, 1)
				So(mem.Count(ctx), ShouldEqual, 1)
			})
		})
	})
}

func TestService_History(t *testing.T) {
	Convey("Given a user with three attempts", t, func() {
		store := newMemoryStore()
		defer store.Close()
		svc := service.New(store)
		ctx := context.Background()
		for _, wpm := range []float64{50, 80, 60} {
			_, err := svc.Submit(ctx, attempt("dave", wpm))
			So(err, ShouldBeNil)
		}

		Convey("Then history is newest first and limited", func() {
			events, err := svc.History(ctx, "dave", 2)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 2)
			So(events[0].WPM, ShouldEqual, 60)
			So(events[1].WPM, ShouldEqual, 80)
		})

		Convey("Then unknown users are not found", func() {
			_, err := svc.History(ctx, "nobody", 0)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then a negative limit is refused", func() {
			_, err := svc.History(ctx, "dave", -1)
			So(errors.Is(err, service.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}

func TestService_InsertTimeout(t *testing.T) {
	Convey("Given a very short insert timeout", t, func() {
		mem := newMemoryStore()
		defer mem.Close()
		slow := &slowStore{Store: mem, delay: 50 * time.Millisecond}
		svc := service.New(slow, service.WithInsertTimeout(5*time.Millisecond))

		Convey("Then a slow insert fails as a persistence error", func() {
			_, err := svc.Submit(context.Background(), attempt("alice", 70))
			So(errors.Is(err, service.ErrPersistence), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
