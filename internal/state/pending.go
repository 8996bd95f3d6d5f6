package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNotSettled is returned by Pending.Result before the handle settles.
var ErrNotSettled = errors.New("pending: not settled")

// Settle completes a Pending handle. Only the first call has any effect.
type Settle func(value any, err error)

// Pending is a handle to an in-flight computation. It settles exactly once
// with a value or an error.
//
// Hooks registered with OnSettle run synchronously inside Settle, before
// Done is closed. Anything a hook writes is therefore visible to every
// goroutine woken by Done.
type Pending struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	hooks   []func(value any, err error)
}

// NewPending creates an unsettled handle and the function that settles it.
func NewPending() (*Pending, Settle) {
	p := &Pending{done: make(chan struct{})}
	return p, p.settle
}

// Settled returns a handle that has already settled with value and err.
func Settled(value any, err error) *Pending {
	p, settle := NewPending()
	settle(value, err)
	return p
}

// Go runs fn on a new goroutine and returns a handle settled with its result.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Pending {
	p, settle := NewPending()
	go func() {
		value, err := fn(ctx)
		settle(value, err)
	}()
	return p
}

func (p *Pending) settle(value any, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.value = value
	p.err = err
	hooks := p.hooks
	p.hooks = nil
	p.mu.Unlock()

	for _, hook := range hooks {
		runHook(hook, value, err)
	}
	close(p.done)
}

// OnSettle registers a hook run when the handle settles. If the handle has
// already settled the hook runs immediately on the calling goroutine.
func (p *Pending) OnSettle(hook func(value any, err error)) {
	p.mu.Lock()
	if !p.settled {
		p.hooks = append(p.hooks, hook)
		p.mu.Unlock()
		return
	}
	value, err := p.value, p.err
	p.mu.Unlock()
	runHook(hook, value, err)
}

// Hook registers hook only if the handle has not settled yet and reports
// whether it did. Unlike OnSettle it never runs hook on the calling
// goroutine, so it is safe to call while holding a lock the hook takes.
func (p *Pending) Hook(hook func(value any, err error)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled {
		return false
	}
	p.hooks = append(p.hooks, hook)
	return true
}

// Done is closed once the handle has settled and every hook has run.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// IsSettled reports whether Settle has been called.
func (p *Pending) IsSettled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Result returns the settled value and error, or ErrNotSettled.
func (p *Pending) Result() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.settled {
		return nil, ErrNotSettled
	}
	return p.value, p.err
}

// Wait blocks until the handle settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.Result()
	}
}

func runHook(hook func(any, error), value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pending settle hook panicked", "panic", r)
		}
	}()
	hook(value, err)
}
