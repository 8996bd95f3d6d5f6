// Package testutil holds deterministic stand-ins shared by package tests.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant every FakeClock starts at unless told otherwise.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock is a wall clock that only moves when told to.
//
// Pass clock.Now wherever a func() time.Time is accepted
// (state.WithClock, collection.WithCacheClock).
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock reading start, or Epoch when start is zero.
func NewFakeClock(start time.Time) *FakeClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
