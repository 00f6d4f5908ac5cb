package dispatcher

import "errors"

var (
	// ErrTimeout is returned when a task does not finish within its deadline
	ErrTimeout = errors.New("dispatcher: task timed out")

	// ErrPoolClosed is returned for tasks submitted to, or pending in, a pool that was shut down
	ErrPoolClosed = errors.New("dispatcher: pool is shut down")

	// ErrTaskPanic is returned when a task panics; the panic never leaves its worker
	ErrTaskPanic = errors.New("dispatcher: task panicked")
)
