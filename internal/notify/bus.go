// Package notify provides the publish/subscribe primitive used for change
// notification throughout the state tree.
//
// A Bus delivers a value to every listener registered at the moment Notify
// is called. Delivery is synchronous: Notify returns only after every
// listener has run. A panicking listener is recovered and logged so the
// remaining listeners still receive the event.
package notify

import (
	"log/slog"
	"sync"
)

// Void is the value type for buses that only signal "something changed".
type Void = struct{}

// Listener receives values published on a Bus.
type Listener[T any] func(value T)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Bus is a typed publish/subscribe primitive.
//
// Thread-safety: Subscribe, Notify and unsubscribe are safe for concurrent
// use. Listeners run outside the internal lock, so a listener may subscribe,
// unsubscribe or notify on the same bus.
type Bus[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]Listener[T]
	order     []uint64 // registration order, compacted lazily
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{listeners: make(map[uint64]Listener[T])}
}

// Subscribe registers a listener and returns its Unsubscribe function.
// Every call creates a distinct subscription, even for the same func.
func (b *Bus[T]) Subscribe(l Listener[T]) Unsubscribe {
	b.mu.Lock()
	if b.listeners == nil {
		b.listeners = make(map[uint64]Listener[T])
	}
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Notify delivers value to the listeners present when Notify begins.
// A listener unsubscribed before it is reached is skipped; a listener
// subscribed during delivery is not invoked by this call.
func (b *Bus[T]) Notify(value T) {
	b.mu.Lock()
	ids := b.snapshot()
	b.mu.Unlock()

	for _, id := range ids {
		b.mu.Lock()
		l, ok := b.listeners[id]
		b.mu.Unlock()
		if !ok {
			continue
		}
		deliver(id, l, value)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Bus[T]) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// snapshot returns active ids in registration order and drops ids of
// removed listeners from the order slice. Caller holds b.mu.
func (b *Bus[T]) snapshot() []uint64 {
	live := b.order[:0]
	for _, id := range b.order {
		if _, ok := b.listeners[id]; ok {
			live = append(live, id)
		}
	}
	b.order = live

	ids := make([]uint64, len(live))
	copy(ids, live)
	return ids
}

func deliver[T any](id uint64, l Listener[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("listener panicked during notify",
				"listener_id", id,
				"panic", r,
			)
		}
	}()
	l(value)
}
