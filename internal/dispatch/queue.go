// Package dispatch serializes calls to a quota-limited API behind a
// requests-per-minute ceiling.
package dispatch

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrQueueStopped resolves requests still queued when the queue is closed.
var ErrQueueStopped = errors.New("dispatch queue stopped")

// ErrWorkerBusy is returned by Start while a cancelled worker is still
// inside a callback that ignores its context.
var ErrWorkerBusy = errors.New("previous dispatch worker has not exited")

// Callback is the deferred call. ctx is cancelled when the queue stops.
type Callback func(ctx context.Context) (any, error)

// Options tunes a Queue. Zero values fall back to defaults.
type Options struct {
	RequestsPerMinute int
	// Window is the span RequestsPerMinute applies to. Defaults to a minute.
	Window time.Duration
	// PollInterval bounds how long an idle worker sleeps between checks.
	PollInterval time.Duration
	// ErrorPause is how long the worker backs off after an internal failure.
	ErrorPause time.Duration
}

func (o *Options) setDefaults() {
	if o.RequestsPerMinute < 1 {
		o.RequestsPerMinute = 10
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.ErrorPause <= 0 {
		o.ErrorPause = time.Second
	}
}

// Queue is a priority queue drained by a single worker that never issues
// more than RequestsPerMinute calls in any trailing window. Lower priority
// values run first; equal priorities run in arrival order.
type Queue struct {
	logger *zap.Logger
	clock  clockwork.Clock
	opts   Options
	window *RateWindow

	mu     sync.Mutex
	items  itemHeap
	seq    uint64
	signal chan struct{}

	// lifecycleMu guards cancel and done. The worker never takes it.
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewQueue creates a stopped queue.
func NewQueue(logger *zap.Logger, clock clockwork.Clock, opts Options) *Queue {
	opts.setDefaults()
	return &Queue{
		logger: logger.Named("dispatch"),
		clock:  clock,
		opts:   opts,
		window: NewRateWindow(opts.RequestsPerMinute, opts.Window),
		signal: make(chan struct{}, 1),
	}
}

// Start launches the worker. Calling Start on a running queue does nothing.
// If an earlier Stop gave up before its worker exited, Start fails with
// ErrWorkerBusy until that worker is gone.
func (q *Queue) Start() error {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()

	if q.cancel != nil {
		return nil
	}
	if q.done != nil {
		select {
		case <-q.done:
		default:
			return ErrWorkerBusy
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.run(ctx, q.done)

	q.logger.Info("Dispatch queue started",
		zap.Int("requests_per_minute", q.opts.RequestsPerMinute),
		zap.Int("pending", q.Len()))
	return nil
}

// Stop cancels the worker and waits for it to exit. The in-flight callback
// sees its context cancelled. Requests still queued stay queued and run if
// the queue is started again. Stopping a stopped queue does nothing.
func (q *Queue) Stop(ctx context.Context) error {
	q.lifecycleMu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel = nil
	q.lifecycleMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		q.logger.Info("Dispatch queue stopped", zap.Int("pending", q.Len()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for dispatch worker: %w", ctx.Err())
	}
}

// Close stops the queue and fails every request still waiting with
// ErrQueueStopped.
func (q *Queue) Close(ctx context.Context) error {
	err := q.Stop(ctx)

	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()
	queueDepth.Set(0)

	for _, it := range pending {
		it.result.resolve(nil, ErrQueueStopped)
	}
	if len(pending) > 0 {
		q.logger.Warn("Dropped queued requests on close", zap.Int("count", len(pending)))
	}
	return err
}

// Enqueue adds a request and returns its handle. It never blocks and never
// fails; the queue is unbounded.
func (q *Queue) Enqueue(owner discord.UserID, cb Callback, priority int) *Result {
	res := newResult()

	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &item{
		priority: priority,
		seq:      q.seq,
		enqueued: q.clock.Now(),
		owner:    owner,
		callback: cb,
		result:   res,
	})
	depth := len(q.items)
	q.mu.Unlock()

	queueDepth.Set(float64(depth))
	q.wake()

	q.logger.Debug("Request queued",
		zap.String("item_id", res.ID().String()),
		zap.String("user_id", owner.String()),
		zap.Int("priority", priority),
		zap.Int("depth", depth))

	return res
}

// Len reports how many requests are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		if err := q.step(ctx); err != nil {
			q.logger.Error("Dispatch worker error", zap.Error(err))
			if !q.sleep(ctx, q.opts.ErrorPause) {
				return
			}
		}
	}
}

// step handles at most one request. A panic outside the callback is turned
// into an error so the worker keeps going.
func (q *Queue) step(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	it := q.next(ctx)
	if it == nil {
		return nil
	}

	if !q.acquire(ctx) {
		// Stopped while waiting for capacity. seq is kept, so the item
		// returns to its original place.
		q.requeue(it)
		return nil
	}

	q.execute(ctx, it)
	return nil
}

// next pops the head of the queue, or waits up to PollInterval for one.
func (q *Queue) next(ctx context.Context) *item {
	if it := q.pop(); it != nil {
		return it
	}

	timer := q.clock.NewTimer(q.opts.PollInterval)
	defer timer.Stop()

	select {
	case <-q.signal:
	case <-timer.Chan():
	case <-ctx.Done():
		return nil
	}
	return q.pop()
}

func (q *Queue) pop() *item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	it := heap.Pop(&q.items).(*item)
	queueDepth.Set(float64(len(q.items)))
	return it
}

func (q *Queue) requeue(it *item) {
	q.mu.Lock()
	heap.Push(&q.items, it)
	queueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()
}

// acquire blocks until the rate window admits a request. It re-checks after
// every wait. Returns false if ctx ends first.
func (q *Queue) acquire(ctx context.Context) bool {
	for {
		wait, ok := q.window.TryAcquire(q.clock.Now())
		if ok {
			return true
		}

		q.logger.Debug("Rate limit reached, waiting", zap.Duration("wait", wait))
		if !q.sleep(ctx, wait) {
			return false
		}
	}
}

func (q *Queue) execute(ctx context.Context, it *item) {
	started := q.clock.Now()
	waitSeconds.Observe(started.Sub(it.enqueued).Seconds())

	value, err := q.invoke(ctx, it)
	it.result.resolve(value, err)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	executedTotal.WithLabelValues(outcome).Inc()

	fields := []zap.Field{
		zap.String("item_id", it.result.ID().String()),
		zap.String("user_id", it.owner.String()),
		zap.Duration("runtime", q.clock.Since(started)),
	}
	if err != nil {
		q.logger.Warn("Request failed", append(fields, zap.Error(err))...)
		return
	}
	q.logger.Debug("Request completed", fields...)
}

// invoke runs the callback, turning a panic into an error on the result.
func (q *Queue) invoke(ctx context.Context, it *item) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("request %s panicked: %v", it.result.ID(), r)
		}
	}()
	return it.callback(ctx)
}

func (q *Queue) sleep(ctx context.Context, d time.Duration) bool {
	timer := q.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
