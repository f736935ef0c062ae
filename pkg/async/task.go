package async

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-go-golems/parley/pkg/helpers"
)

// Task is a single in-flight computation. Await blocks until the function
// returns, the task is cancelled, or the caller's context expires. A task
// settles exactly once; Await may be called any number of times and from
// multiple goroutines.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result helpers.Result[T]
}

// ErrTaskPanicked is wrapped around the recovered value when the submitted
// function panics instead of returning.
var ErrTaskPanicked = errors.New("task panicked")

// Submit starts f on its own goroutine. The context handed to f is derived
// from ctx and cancelled by Cancel. A panic inside f is recovered and
// surfaces from Await as an error rather than tearing down the process.
func Submit[T any](ctx context.Context, f func(ctx context.Context) (T, error)) *Task[T] {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.settle(helpers.NewErrorResult[T](errors.Wrapf(ErrTaskPanicked, "%v", r)))
			}
		}()

		v, err := f(taskCtx)
		if err != nil {
			t.settle(helpers.NewErrorResult[T](err))
			return
		}
		t.settle(helpers.NewValueResult(v))
	}()

	return t
}

func (t *Task[T]) settle(r helpers.Result[T]) {
	t.mu.Lock()
	t.result = r
	t.mu.Unlock()
}

// Await blocks until the task settles or ctx expires. A context expiry does
// not cancel the task itself; call Cancel for that.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.snapshot().Value()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel asks the task to stop by cancelling its context. The task still
// settles with whatever its function returns after observing cancellation.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Done exposes the settle channel for select loops.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

func (t *Task[T]) snapshot() helpers.Result[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}
