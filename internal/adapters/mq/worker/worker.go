// Package worker runs a pool of goroutines that drain a queue into a Handler.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/wpmrank/internal/adapters/mq/queue"
	"github.com/okian/wpmrank/pkg/logger"
	"github.com/okian/wpmrank/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: events travel by value
	return f(ctx, e)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events from a queue.
type Worker interface {
	// Run processes events until the queue is drained, ctx is done or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	processed atomic.Int64
	failed    atomic.Int64

	shutdown chan struct{}
	stopped  atomic.Bool
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Shutdown stops the worker and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Processed returns how many events this worker handled successfully.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns how many events this worker's handler rejected.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordAuditProcessed(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.handler.Handle(ctx, e); err != nil {
		w.failed.Add(1)
		w.logger.Error(ctx, "error processing event",
			logger.String("event_id", e.ID),
			logger.Error(err))
		return
	}
	w.processed.Add(1)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers; opts apply to each of them.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	tmpl := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(tmpl)
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  tmpl.logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, h, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
	}
	metrics.UpdateAuditWorkers(workerCount)
	return p
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of events handled successfully across workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) expires are stopped without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			stopCtx, stop := context.WithTimeout(context.Background(), time.Second)
			_ = w.Shutdown(stopCtx)
			stop()
		}
	}
	metrics.UpdateAuditWorkers(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, drainCtx.Err())
	}
	return nil
}
