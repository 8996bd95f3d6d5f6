package live

import (
	"sync"

	"github.com/roach88/omnistate/internal/ir"
)

// Update is one row snapshot delivered by a subscription.
type Update struct {
	Seq        int64
	WatchID    string
	Collection string
	Rows       ir.IRArray

	pk string
}

// updateQueue is a thread-safe, unbounded FIFO of updates.
//
// Subscriptions enqueue from adapter goroutines while the Engine's Run
// loop dequeues. The signal channel enables context-aware waiting in Run.
type updateQueue struct {
	mu      sync.Mutex
	updates []Update
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{
		updates: make([]Update, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an update to the back of the queue.
// Returns false if the queue is closed.
func (q *updateQueue) Enqueue(u Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.updates = append(q.updates, u)

	// Non-blocking: the buffer of 1 coalesces signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front update without blocking.
// Returns (Update{}, false) if the queue is empty.
func (q *updateQueue) TryDequeue() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return Update{}, false
	}

	u := q.updates[0]

	// Clear the slot so the backing array does not retain the rows.
	q.updates[0] = Update{}
	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}

	return u, true
}

// Wait returns a channel that signals when updates may be available.
// It is closed when the queue is closed.
func (q *updateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *updateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Close signals that no more updates will be enqueued and wakes waiters.
func (q *updateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
