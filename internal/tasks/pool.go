package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrPoolSaturated is returned when the task queue is full.
var ErrPoolSaturated = errors.New("task queue saturated")

// ErrPoolClosed is returned after Close has begun.
var ErrPoolClosed = errors.New("task pool closed")

type task struct {
	name string
	fn   func(context.Context)
}

type poolMetrics struct {
	submitted metric.Int64Counter
	rejected  metric.Int64Counter
	panics    metric.Int64Counter
}

func newPoolMetrics() poolMetrics {
	meter := otel.Meter("github.com/orbitalhq/geosync/internal/tasks")
	submitted, _ := meter.Int64Counter("geosync.tasks.submitted")
	rejected, _ := meter.Int64Counter("geosync.tasks.rejected")
	panics, _ := meter.Int64Counter("geosync.tasks.panics")
	return poolMetrics{submitted: submitted, rejected: rejected, panics: panics}
}

// Pool runs named background tasks on a bounded set of workers. Tasks outlive
// the request that submitted them; their failures are observable through logs
// and metrics instead of silently vanishing with a goroutine.
type Pool struct {
	queue   chan task
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     *slog.Logger
	metrics poolMetrics

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueDepth tasks.
func NewPool(workers, queueDepth int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:   make(chan task, queueDepth),
		baseCtx: ctx,
		cancel:  cancel,
		log:     log,
		metrics: newPoolMetrics(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a named task without blocking. It fails when the queue is
// full or the pool is closing; callers decide whether that is fatal.
func (p *Pool) Submit(name string, fn func(context.Context)) error {
	// The send must happen under the same lock that guards Close's
	// close(p.queue), or a Close racing past the closed check panics the
	// sender. The send is non-blocking, so the lock is never held for long.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		p.mu.Unlock()
		p.metrics.submitted.Add(p.baseCtx, 1, metric.WithAttributes(attribute.String("task", name)))
		return nil
	default:
		p.mu.Unlock()
		p.metrics.rejected.Add(p.baseCtx, 1, metric.WithAttributes(attribute.String("task", name)))
		return ErrPoolSaturated
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		p.runTask(t)
	}
}

func (p *Pool) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.panics.Add(p.baseCtx, 1, metric.WithAttributes(attribute.String("task", t.name)))
			p.log.Error("background task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(p.baseCtx)
}

// Close stops intake and drains queued tasks, waiting at most the given grace
// period before cancelling the base context out from under running tasks.
func (p *Pool) Close(grace time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(grace):
		p.cancel()
		<-done
		return context.DeadlineExceeded
	}
}
