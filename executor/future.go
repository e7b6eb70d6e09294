// File: executor/future.go
package executor

import (
	"context"
	"sync/atomic"
)

// Result is the outcome of an asynchronous operation scheduled on an
// Executor, delivered once per operation, matching the libcurl-style
// "single completion, single error" contract the transport and WebSocket
// layers build on. Err reports failure; Value may still be set alongside a
// non-nil Err (RecvAll/SendAll report the bytes moved before the error,
// Connect/Exec a transport.Result describing it).
type Result[T any] struct {
	Value T
	Err   error
}

// Future is the idiomatic Go replacement for the teacher's coroutine
// awaiter: a single-shot, single-value channel of capacity 1. Exactly one
// completion is ever delivered. The Executor's own worker goroutine never
// blocks reading a Future of its own scheduling — only caller goroutines
// (or other executors) await it.
type Future[T any] struct {
	ch        chan Result[T]
	done      chan struct{}
	delivered atomic.Bool
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan Result[T], 1), done: make(chan struct{})}
}

// complete delivers res exactly once. Later calls are no-ops so a job that
// races a cancellation against a normal completion can't double-send.
func (f *Future[T]) complete(res Result[T]) {
	if f.delivered.CompareAndSwap(false, true) {
		f.ch <- res
		close(f.done)
	}
}

// watchDone exposes a channel closed exactly once, when complete() runs,
// without consuming the value off Chan()/Wait() the way reading ch
// directly would — used by internal cancellation watchers that only need
// to know completion happened, not its value.
func (f *Future[T]) watchDone() <-chan struct{} { return f.done }

// Done reports whether a result has already been delivered.
func (f *Future[T]) Done() bool { return f.delivered.Load() }

// Wait blocks the calling goroutine until the future completes, or ctx is
// done first (in which case ctx.Err() is returned as the error half of a
// zero-value Result).
func (f *Future[T]) Wait(ctx context.Context) Result[T] {
	select {
	case res := <-f.ch:
		return res
	case <-ctx.Done():
		var zero T
		return Result[T]{Value: zero, Err: ctx.Err()}
	}
}

// Chan exposes the underlying channel for use in a caller's own select
// statement alongside other events.
func (f *Future[T]) Chan() <-chan Result[T] { return f.ch }

// PendingFuture pairs a not-yet-resolved Future with the resolve
// capability, for packages outside executor (tcpclient, httpclient,
// websocket) that need to hand back a Future while completing it later
// from their own goroutines.
type PendingFuture[T any] struct {
	Future *Future[T]
}

// NewCompletedLaterFuture constructs a Future alongside the handle needed
// to resolve it exactly once.
func NewCompletedLaterFuture[T any]() *PendingFuture[T] {
	return &PendingFuture[T]{Future: newFuture[T]()}
}

// Resolve completes the wrapped Future with value/err. Safe to call at
// most meaningfully once; later calls are no-ops (see Future.complete).
func (p *PendingFuture[T]) Resolve(value T, err error) {
	p.Future.complete(Result[T]{Value: value, Err: err})
}
