package collection

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
)

// Resolver executes a query description and returns rows or a pending
// handle that settles with an ir.IRArray.
type Resolver func(opts queryir.Options) state.Result[ir.IRArray]

// entry is one resolution. pending is set while the entry is in flight or
// replaying a remembered failure.
type entry struct {
	collection string
	pending    *state.Pending
	rows       ir.IRArray
	resolved   bool
	failed     bool
	once       bool
	retryAt    time.Time
	started    time.Time
}

// Cache deduplicates resolutions and merges their rows into a state tree.
//
// Thread-safety: all methods are safe for concurrent use. Resolvers are
// invoked with the cache lock held and must return without dereferencing
// builders that share this cache.
type Cache struct {
	mu       sync.Mutex
	root     *state.View
	entries  map[string]*entry
	errorTTL time.Duration
	now      func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithErrorTTL remembers a failed resolution for ttl. Dereferences within
// that window get the same failure without re-invoking the resolver.
func WithErrorTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		c.errorTTL = ttl
	}
}

// WithCacheClock overrides the clock used for error expiry.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache merging into root. A nil root disables merging.
func NewCache(root *state.View, opts ...CacheOption) *Cache {
	c := &Cache{
		root:    root,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the state tree resolved rows are merged into.
func (c *Cache) Root() *state.View {
	return c.root
}

// Len returns the number of entries, in any state.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evict drops the entry for key. It reports whether one existed.
func (c *Cache) Evict(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		cacheEvictionsTotal.WithLabelValues(e.collection, "evict").Inc()
	}
	return ok
}

// Invalidate drops every entry of collection and returns how many were
// removed. In-flight resolutions still merge when they complete.
func (c *Cache) Invalidate(collection string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if e.collection == collection {
			delete(c.entries, key)
			n++
		}
	}
	if n > 0 {
		cacheEvictionsTotal.WithLabelValues(collection, "invalidate").Add(float64(n))
		slog.Debug("collection cache invalidated", "collection", collection, "entries", n)
	}
	return n
}

// resolve is the dereference behind Builder.Rows.
func (c *Cache) resolve(name string, opts queryir.Options, pk string, resolver Resolver) state.Result[ir.IRArray] {
	if err := opts.Validate(); err != nil {
		return state.Suspend[ir.IRArray](state.Settled(nil, fmt.Errorf("collection %s: %w", name, err)))
	}
	key, err := ir.QueryKey(name, opts.IR())
	if err != nil {
		return state.Suspend[ir.IRArray](state.Settled(nil, fmt.Errorf("collection %s: %w", name, err)))
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		switch {
		case e.resolved:
			c.mu.Unlock()
			cacheLookupsTotal.WithLabelValues(name, lookupHit).Inc()
			return state.Ready(e.rows)
		case !e.failed:
			c.mu.Unlock()
			cacheLookupsTotal.WithLabelValues(name, lookupPending).Inc()
			return state.Suspend[ir.IRArray](e.pending)
		case e.once || c.now().Before(e.retryAt):
			if e.once {
				delete(c.entries, key)
			}
			c.mu.Unlock()
			cacheLookupsTotal.WithLabelValues(name, lookupFailed).Inc()
			return state.Suspend[ir.IRArray](e.pending)
		default:
			delete(c.entries, key)
			cacheEvictionsTotal.WithLabelValues(name, "expired").Inc()
		}
	}

	cacheLookupsTotal.WithLabelValues(name, lookupMiss).Inc()
	e := &entry{collection: name, started: c.now()}
	c.entries[key] = e

	r := resolver(opts)
	if p := r.Pending(); p != nil {
		e.pending = p
		// loading is recorded while c.mu is held, so complete, which
		// records its outcome under c.mu too, always lands after it.
		target := c.statusTarget(name)
		if target != nil {
			target.RecordStatus(state.StatusLoading, nil)
		}
		if p.Hook(func(value any, err error) { c.complete(key, e, pk, value, err) }) {
			c.mu.Unlock()
			slog.Debug("collection resolution started", "collection", name, "key", key[:12])
			if target != nil {
				target.Notify()
			}
			return state.Suspend[ir.IRArray](p)
		}
	}

	// The resolver answered synchronously (ready value or an already
	// settled handle). Park followers on an internal handle while the
	// rows merge outside the lock.
	gate, settle := state.NewPending()
	e.pending = gate
	c.mu.Unlock()

	var value any
	var resErr error
	if p := r.Pending(); p != nil {
		value, resErr = p.Result()
	} else {
		value, _ = r.Value()
	}
	rows, err := c.complete(key, e, pk, value, resErr)
	settle(rows, err)

	if err != nil {
		if p := r.Pending(); p != nil && resErr != nil {
			return state.Suspend[ir.IRArray](p)
		}
		return state.Suspend[ir.IRArray](state.Settled(nil, err))
	}
	return state.Ready(rows)
}

// complete merges a settled resolution and records its outcome. It runs
// before any waiter on the entry's handle wakes. A handle that carried an
// error is evicted (or kept for the error TTL); a clean handle whose rows
// could not be merged is kept for exactly one more dereference.
func (c *Cache) complete(key string, e *entry, pk string, value any, err error) (ir.IRArray, error) {
	carried := err != nil
	var rows ir.IRArray
	if err == nil {
		rows, err = asRows(value)
	}
	if err == nil && c.root != nil {
		err = Merge(c.root, e.collection, rows, pk)
	}

	c.mu.Lock()
	current := c.entries[key] == e
	if current {
		switch {
		case err == nil:
			e.resolved = true
			e.rows = rows
		case c.errorTTL > 0:
			e.failed = true
			e.retryAt = c.now().Add(c.errorTTL)
			e.pending = state.Settled(nil, err)
		case !carried:
			// The handle settled cleanly, so its waiters cannot see this
			// failure. Report it to the next dereference, then evict.
			e.failed = true
			e.once = true
			e.pending = state.Settled(nil, err)
		default:
			delete(c.entries, key)
			cacheEvictionsTotal.WithLabelValues(e.collection, "failed").Inc()
		}
	}
	elapsed := c.now().Sub(e.started)
	target := c.statusTarget(e.collection)
	if target != nil {
		if err != nil {
			target.RecordStatus(state.StatusError, err)
		} else {
			target.RecordStatus(state.StatusReady, nil)
		}
	}
	c.mu.Unlock()
	if target != nil {
		target.Notify()
	}

	resolveDuration.WithLabelValues(e.collection).Observe(elapsed.Seconds())
	if err != nil {
		resolutionsTotal.WithLabelValues(e.collection, "error").Inc()
		slog.Warn("collection resolution failed",
			"collection", e.collection,
			"error", err,
			"cached", current && c.errorTTL > 0,
		)
		return nil, err
	}
	resolutionsTotal.WithLabelValues(e.collection, "ok").Inc()
	slog.Debug("collection resolved", "collection", e.collection, "rows", len(rows))
	return rows, nil
}

// statusTarget returns the collection's list, or nil when merging is
// disabled or the list does not exist. Status is recorded on it.
func (c *Cache) statusTarget(collection string) *state.View {
	if c.root == nil {
		return nil
	}
	return c.root.Child(collection)
}

func asRows(value any) (ir.IRArray, error) {
	switch v := value.(type) {
	case ir.IRArray:
		return v, nil
	case nil:
		return ir.IRArray{}, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotRows, value)
	}
}
