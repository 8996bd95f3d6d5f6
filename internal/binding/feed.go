package binding

import (
	"log/slog"
	"sync"

	"github.com/roach88/omnistate/internal/ir"
)

// Feed forwards row snapshots to a subscriber, dropping a snapshot whose
// ir.RowHash equals the last one delivered.
//
// Thread-safety: Push is safe for concurrent use; deliveries are
// serialized.
type Feed struct {
	mu     sync.Mutex
	last   string
	onRows func(ir.IRArray)
}

// NewFeed creates a feed delivering to onRows.
func NewFeed(onRows func(ir.IRArray)) *Feed {
	return &Feed{onRows: onRows}
}

// Push delivers rows unless they match the previous delivery. It reports
// whether onRows was called. Rows that cannot be hashed are always
// delivered.
func (f *Feed) Push(rows ir.IRArray) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	hash, err := ir.RowHash(rows)
	if err != nil {
		slog.Warn("row snapshot not hashable", "error", err)
		hash = ""
	} else if hash == f.last {
		return false
	}
	f.last = hash
	f.onRows(rows)
	return true
}
