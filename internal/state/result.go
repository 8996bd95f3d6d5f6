package state

import (
	"context"
	"errors"
)

// ErrStalled is returned by Await when a read keeps returning a handle that
// has already settled. The data source is not making progress.
var ErrStalled = errors.New("state: read stalled on a settled pending handle")

// Result is the outcome of a read: either a ready value or a pending handle.
type Result[T any] struct {
	value   T
	pending *Pending
}

// Ready wraps an available value.
func Ready[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Suspend wraps a pending handle. The caller should wait on the handle and
// retry the read.
func Suspend[T any](p *Pending) Result[T] {
	return Result[T]{pending: p}
}

// Value returns the value and true, or the zero value and false when the
// result is pending.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.pending == nil
}

// Pending returns the handle, or nil when the result is ready.
func (r Result[T]) Pending() *Pending {
	return r.pending
}

// IsPending reports whether the read was suspended.
func (r Result[T]) IsPending() bool {
	return r.pending != nil
}

// Await repeats read until it returns a ready value. Between attempts it
// waits for the returned handle to settle. A handle that settles with an
// error ends the loop with that error.
func Await[T any](ctx context.Context, read func() Result[T]) (T, error) {
	var zero T
	var last *Pending
	for {
		r := read()
		p := r.Pending()
		if p == nil {
			return r.value, nil
		}
		if p == last && p.IsSettled() {
			return zero, ErrStalled
		}
		last = p

		if _, err := p.Wait(ctx); err != nil {
			return zero, err
		}
	}
}
