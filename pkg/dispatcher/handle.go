package dispatcher

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle position of a task
type State int32

const (
	StateQueued State = iota
	StateAssigned
	StateCompleted
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAssigned:
		return "assigned"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the state is final
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Handle is the caller's side of a submitted task. It resolves exactly once,
// with either a result or an error.
type Handle[Res any] struct {
	id    uuid.UUID
	state atomic.Int32
	done  chan struct{}
	res   Res
	err   error
}

func newHandle[Res any](id uuid.UUID) *Handle[Res] {
	return &Handle[Res]{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the task id
func (h *Handle[Res]) ID() uuid.UUID {
	return h.id
}

// State returns the current lifecycle state of the task
func (h *Handle[Res]) State() State {
	return State(h.state.Load())
}

// Done is closed once the task is resolved
func (h *Handle[Res]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task resolves or ctx is done. Giving up on the wait
// does not cancel the task.
func (h *Handle[Res]) Wait(ctx context.Context) (Res, error) {
	select {
	case <-h.done:
		return h.res, h.err
	case <-ctx.Done():
		var zero Res
		return zero, ctx.Err()
	}
}

func (h *Handle[Res]) setState(s State) {
	h.state.Store(int32(s))
}

// resolve is only reached from the pool's single removal path, under its lock
func (h *Handle[Res]) resolve(state State, res Res, err error) {
	h.res, h.err = res, err
	h.setState(state)
	close(h.done)
}
