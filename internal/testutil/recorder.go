package testutil

import (
	"sync"

	"github.com/roach88/omnistate/internal/notify"
)

// Recorder counts notifications delivered on a bus.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	count int
	unsub notify.Unsubscribe
}

// Record subscribes a new Recorder to bus.
func Record(bus *notify.Bus[notify.Void]) *Recorder {
	r := &Recorder{}
	r.unsub = bus.Subscribe(func(notify.Void) {
		r.mu.Lock()
		r.count++
		r.mu.Unlock()
	})
	return r
}

// Count returns the number of notifications seen so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Reset zeroes the count.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
}

// Stop unsubscribes the recorder.
func (r *Recorder) Stop() {
	r.unsub()
}
