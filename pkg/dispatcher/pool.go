// Package dispatcher provides a bounded, FIFO worker pool for CPU-bound
// analysis tasks. Callers are never blocked: Submit hands back a Handle at
// once and the work runs on its own goroutine when a slot is free.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxWorkers is the concurrency used when Options.MaxWorkers is not set
	DefaultMaxWorkers = 4

	// DefaultTimeout is the per-task deadline used when none is given
	DefaultTimeout = 60 * time.Second
)

// RunFunc executes one task. It should return promptly once ctx is cancelled.
type RunFunc[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// Stats is a snapshot of the pool counters
type Stats struct {
	MaxWorkers         int     `json:"maxWorkers"`
	ActiveWorkers      int     `json:"activeWorkers"`
	QueuedTasks        int     `json:"queuedTasks"`
	UtilizationPercent float64 `json:"utilizationPercent"`
}

// Observer receives pool events, for metrics. Calls are made outside the pool lock.
type Observer interface {
	TaskSubmitted(stats Stats)
	TaskStarted(stats Stats)
	TaskFinished(state State, elapsed time.Duration, stats Stats)
}

// Options configures a Pool
type Options struct {
	MaxWorkers     int
	DefaultTimeout time.Duration
	Logger         *slog.Logger
	Observer       Observer
}

type task[Req, Res any] struct {
	id        uuid.UUID
	req       Req
	timeout   time.Duration
	handle    *Handle[Res]
	cancel    context.CancelFunc
	timer     *time.Timer
	startedAt time.Time
}

// Pool runs at most MaxWorkers tasks at a time and queues the rest in
// submission order. All mutable state is guarded by mu; workers never touch
// it except through finish.
type Pool[Req, Res any] struct {
	run      RunFunc[Req, Res]
	max      int
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer

	mu     sync.Mutex
	active map[uuid.UUID]*task[Req, Res] // assigned and unresolved
	queue  []*task[Req, Res]
	closed bool

	ctx       context.Context
	cancelAll context.CancelFunc
}

// New creates a pool that executes run for every submitted request
func New[Req, Res any](run RunFunc[Req, Res], opts Options) *Pool[Req, Res] {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool[Req, Res]{
		run:       run,
		max:       opts.MaxWorkers,
		timeout:   opts.DefaultTimeout,
		logger:    opts.Logger.With("component", "dispatcher"),
		observer:  opts.Observer,
		active:    make(map[uuid.UUID]*task[Req, Res]),
		ctx:       ctx,
		cancelAll: cancel,
	}
}

// Submit enqueues req and returns its handle without blocking. A timeout of
// zero or less selects the pool default. The deadline starts when the task is
// assigned to a worker, not while it waits in the queue.
func (p *Pool[Req, Res]) Submit(req Req, timeout time.Duration) (*Handle[Res], error) {
	if timeout <= 0 {
		timeout = p.timeout
	}

	t := &task[Req, Res]{
		id:      uuid.New(),
		req:     req,
		timeout: timeout,
	}
	t.handle = newHandle[Res](t.id)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	started := len(p.active) < p.max
	if started {
		p.assign(t)
	} else {
		p.queue = append(p.queue, t)
	}
	stats := p.statsLocked()
	p.mu.Unlock()

	p.logger.Debug("task submitted", "task_id", t.id, "assigned", started, "queued", stats.QueuedTasks)
	if p.observer != nil {
		p.observer.TaskSubmitted(stats)
		if started {
			p.observer.TaskStarted(stats)
		}
	}
	return t.handle, nil
}

// assign starts t on its own goroutine. Caller holds mu.
func (p *Pool[Req, Res]) assign(t *task[Req, Res]) {
	ctx, cancel := context.WithCancel(p.ctx)
	t.cancel = cancel
	t.startedAt = time.Now()
	t.handle.setState(StateAssigned)
	p.active[t.id] = t

	t.timer = time.AfterFunc(t.timeout, func() {
		var zero Res
		p.finish(t.id, zero, fmt.Errorf("%w after %s", ErrTimeout, t.timeout))
	})
	go p.execute(ctx, t)
}

func (p *Pool[Req, Res]) execute(ctx context.Context, t *task[Req, Res]) {
	res, err := p.safeRun(ctx, t)
	p.finish(t.id, res, err)
}

func (p *Pool[Req, Res]) safeRun(ctx context.Context, t *task[Req, Res]) (res Res, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task_id", t.id, "panic", r, "stack", string(debug.Stack()))
			var zero Res
			res, err = zero, fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return p.run(ctx, t.req)
}

// finish is the single completion path for a task: worker result, timer
// expiry or both. Only the first caller finds the task in the active table;
// later ones are discarded.
func (p *Pool[Req, Res]) finish(id uuid.UUID, res Res, err error) {
	p.mu.Lock()
	t, ok := p.active[id]
	if !ok {
		p.mu.Unlock()
		p.logger.Debug("discarding late task result", "task_id", id, "error", err)
		return
	}
	delete(p.active, id)
	t.timer.Stop()
	t.cancel()

	state := StateCompleted
	switch {
	case errors.Is(err, ErrTimeout):
		state = StateTimedOut
	case err != nil:
		state = StateFailed
	}
	t.handle.resolve(state, res, err)

	var started int
	for len(p.active) < p.max && len(p.queue) > 0 {
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.assign(next)
		started++
	}
	stats := p.statsLocked()
	p.mu.Unlock()

	elapsed := time.Since(t.startedAt)
	if state == StateTimedOut {
		p.logger.Warn("task timed out", "task_id", id, "timeout", t.timeout)
	} else {
		p.logger.Debug("task finished", "task_id", id, "state", state.String(), "elapsed", elapsed)
	}
	if p.observer != nil {
		p.observer.TaskFinished(state, elapsed, stats)
		for range started {
			p.observer.TaskStarted(stats)
		}
	}
}

// Stats returns a snapshot of the pool counters
func (p *Pool[Req, Res]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool[Req, Res]) statsLocked() Stats {
	utilization := float64(len(p.active)) / float64(p.max) * 100
	return Stats{
		MaxWorkers:         p.max,
		ActiveWorkers:      len(p.active),
		QueuedTasks:        len(p.queue),
		UtilizationPercent: math.Round(utilization*100) / 100,
	}
}

// Shutdown rejects every queued and in-flight task with ErrPoolClosed,
// cancels the running workers and refuses further submissions. It is safe to
// call more than once.
func (p *Pool[Req, Res]) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancelAll()

	var zero Res
	elapsed := make([]time.Duration, 0, len(p.active)+len(p.queue))
	for id, t := range p.active {
		t.timer.Stop()
		t.cancel()
		t.handle.resolve(StateFailed, zero, ErrPoolClosed)
		delete(p.active, id)
		elapsed = append(elapsed, time.Since(t.startedAt))
	}
	inFlight := len(elapsed)
	for _, t := range p.queue {
		t.handle.resolve(StateFailed, zero, ErrPoolClosed)
		elapsed = append(elapsed, 0)
	}
	p.queue = nil
	stats := p.statsLocked()
	p.mu.Unlock()

	p.logger.Info("pool shut down", "rejected_in_flight", inFlight, "rejected_queued", len(elapsed)-inFlight)
	if p.observer != nil {
		for _, d := range elapsed {
			p.observer.TaskFinished(StateFailed, d, stats)
		}
	}
}

// Closed reports whether Shutdown has been called
func (p *Pool[Req, Res]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
