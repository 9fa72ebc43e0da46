package async

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Deduper runs at most one function per key at a time.
// Callers arriving while a call for the same key is in flight receive a
// Future that resolves with the outcome of that call instead of starting
// their own. The key is released as soon as the call returns, successfully
// or not, so the next caller starts a fresh execution.
//
// The zero value is ready to use. It is safe for concurrent use.
type Deduper[T any] struct {
	group singleflight.Group
}

// Do starts fn under key or joins the execution already in flight.
// fn runs with a context that keeps ctx values but is never cancelled by the
// caller, so one waiter giving up does not fail the others. Use
// Future.AwaitContext to bound an individual wait.
func (d *Deduper[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	workCtx := context.WithoutCancel(ctx)

	ch := d.group.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return fn(workCtx)
	})

	go func() {
		res := <-ch
		var val T
		if res.Val != nil {
			val = res.Val.(T)
		}
		f.complete(val, res.Err, res.Shared)
	}()

	return f
}

// Forget releases key so that the next Do starts a new execution even if one
// is still in flight. Waiters of the in-flight call still get its result.
func (d *Deduper[T]) Forget(key string) {
	d.group.Forget(key)
}
