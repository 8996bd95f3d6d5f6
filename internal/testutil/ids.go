package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out "<prefix>-1", "<prefix>-2", ...
//
// Adapters that mint row ids take it in tests so that golden traces are
// byte-identical across runs.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs creates a generator. An empty prefix becomes "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
