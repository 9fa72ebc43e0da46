package async

import (
	"context"
	"sync"
	"time"
)

// Future represents the result of an asynchronous computation.
// Every waiter of the same Future observes the same value and error.
type Future[U any] struct {
	result U
	err    error
	shared bool
	once   sync.Once
	done   chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

// complete stores the outcome and releases all waiters. Only the first call wins.
func (f *Future[U]) complete(res U, err error, shared bool) {
	f.once.Do(func() {
		f.result = res
		f.err = err
		f.shared = shared
		close(f.done)
	})
}

// Await waits for the asynchronous function to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to be done, whichever comes first.
// Giving up on the wait does not cancel the underlying computation.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// AwaitWithTimeout waits for the asynchronous function to complete with a timeout.
// If the timeout occurs before completion, returns ErrTimeout.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete checks if the asynchronous function is complete without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Shared reports whether the result was delivered to more than one caller.
// Only meaningful after completion and only for futures returned by a Deduper.
func (f *Future[U]) Shared() bool {
	<-f.done
	return f.shared
}

// Done returns a channel that is closed when the future completes.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// Async executes a function asynchronously and returns a Future.
// The function accepts a context.Context and a parameter of any type T, and returns (U, error).
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		// Early exit prevents goroutine leak when context is pre-canceled
		select {
		case <-ctx.Done():
			var zero U
			f.complete(zero, ctx.Err(), false)
			return
		default:
		}

		res, err := fn(ctx, param)
		f.complete(res, err, false)
	}()

	return f
}

// Resolved returns an already completed Future.
func Resolved[U any](res U, err error) *Future[U] {
	f := newFuture[U]()
	f.complete(res, err, false)
	return f
}
