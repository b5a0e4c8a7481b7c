package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/wpmrank/internal/adapters/mq/queue"
	worker "github.com/okian/wpmrank/internal/adapters/mq/worker"
	model "github.com/okian/wpmrank/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// recorder is a Handler that remembers what it saw.
type recorder struct {
	mu     sync.Mutex
	ids    []string
	failOn map[string]error
}

func newRecorder() *recorder {
	return &recorder{failOn: make(map[string]error)}
}

func (r *recorder) Handle(ctx context.Context, e queue.Event) error { //nolint:gocritic // hugeParam: events travel by value
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[e.ID]; ok {
		return err
	}
	r.ids = append(r.ids, e.ID)
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		h := newRecorder()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("audit-0"))
		ctx := context.Background()

		convey.Convey("When events are enqueued", func() {
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, model.AuditEvent{ID: "a"}), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, model.AuditEvent{ID: "b"}), convey.ShouldBeNil)

			convey.Convey("Then the handler sees them in order", func() {
				convey.So(waitFor(func() bool { return len(h.seen()) == 2 }), convey.ShouldBeTrue)
				convey.So(h.seen(), convey.ShouldResemble, []string{"a", "b"})
				convey.So(w.Processed(), convey.ShouldEqual, 2)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the handler fails", func() {
			h.failOn["bad"] = errors.New("boom")
			go w.Run(ctx)
			_ = q.Enqueue(ctx, model.AuditEvent{ID: "bad"})
			_ = q.Enqueue(ctx, model.AuditEvent{ID: "good"})

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
				convey.So(w.Failed(), convey.ShouldEqual, 1)
				convey.So(h.seen(), convey.ShouldResemble, []string{"good"})
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue closes", func() {
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then Run returns", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Error("worker did not stop after queue close")
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		h := newRecorder()
		pool := worker.NewPool(4, q, h)
		ctx := context.Background()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When events are enqueued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, model.AuditEvent{ID: fmt.Sprintf("e%d", i)}), convey.ShouldBeNil)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued event is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(h.seen()), convey.ShouldEqual, 200)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
			})
		})
	})

	convey.Convey("Given a zero worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), worker.HandlerFunc(func(context.Context, queue.Event) error { return nil }))

		convey.Convey("Then one worker per CPU is created", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
