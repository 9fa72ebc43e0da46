// Package async provides small generic helpers for running computations in
// the background and for collapsing concurrent duplicate work.
//
// Future represents the eventual result of a computation. Async starts a
// function in its own goroutine and returns a *Future immediately; callers
// wait with Await, AwaitContext or AwaitWithTimeout, or poll with IsComplete.
//
// Deduper runs at most one function per key at a time. Concurrent callers
// asking for the same key share a single execution and all observe the same
// result. Once that execution finishes the key is free again.
//
// # Usage
//
//	import (
//	    "context"
//
//	    "github.com/dmitrymomot/sessionfolder/pkg/async"
//	)
//
//	var provision async.Deduper[string]
//
//	func ensure(ctx context.Context, key string) (string, error) {
//	    f := provision.Do(ctx, key, func(ctx context.Context) (string, error) {
//	        return createFolder(ctx, key)
//	    })
//	    return f.AwaitContext(ctx)
//	}
//
// # Error Handling
//
// AwaitWithTimeout returns ErrTimeout when the deadline elapses first.
// AwaitContext returns the context error when ctx is done first. A panic
// inside a deduplicated function is reported to every waiter as ErrPanic.
package async
