package live

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/state"
)

// watch is one registered subscription.
type watch struct {
	id         string
	collection string
	pk         string
	unsub      notify.Unsubscribe
}

// Engine is the single-writer loop that merges subscription snapshots
// into a state tree.
//
// Thread-safety model:
//   - Watch, Unwatch, WatchAll, Watches: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Stop: safe from any goroutine, idempotent
type Engine struct {
	root     *state.View
	cache    *collection.Cache
	clock    *Clock
	queue    *updateQueue
	ids      binding.IDGenerator
	observer func(Update, error)

	mu      sync.Mutex
	watches map[string]*watch
	stopped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache invalidates the collection's cached resolutions after each
// applied update.
func WithCache(c *collection.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithClock sets the clock that stamps updates.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDs sets the generator for watch ids. Default binding.UUIDv7Generator.
func WithIDs(g binding.IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithObserver calls fn on the Run goroutine after each update is
// processed, with the merge error if any. Dropped updates are not
// observed.
func WithObserver(fn func(Update, error)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an engine merging into root.
func New(root *state.View, opts ...Option) *Engine {
	e := &Engine{
		root:    root,
		clock:   NewClock(),
		queue:   newUpdateQueue(),
		ids:     binding.UUIDv7Generator{},
		watches: make(map[string]*watch),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Watch subscribes to the query b describes through a and returns the
// watch id. b's adapter must be a; the builder only supplies the
// collection name, options and primary key.
//
// ctx bounds the subscription, not just this call.
func (e *Engine) Watch(ctx context.Context, a binding.Adapter, b *collection.Builder) (string, error) {
	name := b.Name()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return "", &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped", Collection: name}
	}
	w := &watch{id: e.ids.Generate(), collection: name, pk: b.PrimaryKey()}
	e.watches[w.id] = w
	activeWatches.Inc()
	e.mu.Unlock()

	var unsub notify.Unsubscribe
	d, err := a.BuildQuery(name, b.Options())
	if err == nil {
		unsub, err = a.Subscribe(ctx, d, func(rows ir.IRArray) {
			e.enqueue(w, rows)
		})
	}
	if err != nil {
		e.mu.Lock()
		if _, ok := e.watches[w.id]; ok {
			delete(e.watches, w.id)
			activeWatches.Dec()
		}
		e.mu.Unlock()
		return "", &RuntimeError{
			Code:       ErrCodeSubscribeFailed,
			Message:    "adapter subscription failed",
			WatchID:    w.id,
			Collection: name,
			Err:        err,
		}
	}

	e.mu.Lock()
	_, registered := e.watches[w.id]
	if registered {
		w.unsub = unsub
	}
	e.mu.Unlock()
	if !registered {
		unsub()
		return "", &RuntimeError{
			Code:       ErrCodeStopped,
			Message:    "watch removed while subscribing",
			WatchID:    w.id,
			Collection: name,
		}
	}

	slog.Info("live watch started", "watch", w.id, "collection", name)
	return w.id, nil
}

// WatchAll starts one watch per builder concurrently and returns their
// ids in argument order. On failure every watch it started is removed.
func (e *Engine) WatchAll(ctx context.Context, a binding.Adapter, builders ...*collection.Builder) ([]string, error) {
	ids := make([]string, len(builders))
	var g errgroup.Group
	for i, b := range builders {
		g.Go(func() error {
			id, err := e.Watch(ctx, a, b)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, id := range ids {
			if id != "" {
				_ = e.Unwatch(id)
			}
		}
		return nil, err
	}
	return ids, nil
}

// Unwatch cancels a watch. Updates already queued for it are dropped.
func (e *Engine) Unwatch(id string) error {
	e.mu.Lock()
	w, ok := e.watches[id]
	var unsub notify.Unsubscribe
	if ok {
		delete(e.watches, id)
		unsub = w.unsub
		activeWatches.Dec()
	}
	e.mu.Unlock()

	if !ok {
		return &RuntimeError{Code: ErrCodeUnknownWatch, Message: "no such watch", WatchID: id}
	}
	if unsub != nil {
		unsub()
	}
	slog.Info("live watch stopped", "watch", id, "collection", w.collection)
	return nil
}

// Watches returns the ids of the registered watches, sorted.
func (e *Engine) Watches() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.watches))
	for id := range e.watches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) enqueue(w *watch, rows ir.IRArray) {
	u := Update{
		Seq:        e.clock.Next(),
		WatchID:    w.id,
		Collection: w.collection,
		Rows:       rows,
		pk:         w.pk,
	}
	if !e.queue.Enqueue(u) {
		slog.Debug("live update after stop dropped", "watch", w.id, "seq", u.Seq)
	}
}

// Run starts the single-writer loop. It blocks until ctx is cancelled or
// Stop is called, and returns ctx.Err() or nil respectively.
//
// A failed merge is logged and reported to the observer; processing
// continues with the next update.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("live engine starting")

	for {
		if u, ok := e.queue.TryDequeue(); ok {
			e.process(u)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("live engine stopping: context cancelled")
			e.Stop()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop, which makes this
			// case fire immediately once the queue drains.
			if e.queue.Len() == 0 && e.isStopped() {
				slog.Info("live engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue and cancels every watch. Run returns once the
// queued updates are processed.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	unsubs := make([]notify.Unsubscribe, 0, len(e.watches))
	for _, w := range e.watches {
		if w.unsub != nil {
			unsubs = append(unsubs, w.unsub)
		}
		activeWatches.Dec()
	}
	e.watches = make(map[string]*watch)
	e.mu.Unlock()

	e.queue.Close()
	for _, unsub := range unsubs {
		unsub()
	}
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// process merges one update.
// CRITICAL: Called only from the Run goroutine.
func (e *Engine) process(u Update) {
	e.mu.Lock()
	_, ok := e.watches[u.WatchID]
	stopped := e.stopped
	e.mu.Unlock()
	// After Stop the queue drains; updates delivered before it still apply.
	if !ok && !stopped {
		updatesTotal.WithLabelValues(u.Collection, outcomeDropped).Inc()
		slog.Debug("live update for removed watch dropped", "watch", u.WatchID, "seq", u.Seq)
		return
	}

	var err error
	if mergeErr := collection.Merge(e.root, u.Collection, u.Rows, u.pk); mergeErr != nil {
		err = &RuntimeError{
			Code:       ErrCodeMergeFailed,
			Message:    fmt.Sprintf("merge of update %d failed", u.Seq),
			WatchID:    u.WatchID,
			Collection: u.Collection,
			Err:        mergeErr,
		}
		updatesTotal.WithLabelValues(u.Collection, outcomeFailed).Inc()
		slog.Error("live update failed", "watch", u.WatchID, "seq", u.Seq, "error", mergeErr)
	} else {
		if e.cache != nil {
			e.cache.Invalidate(u.Collection)
		}
		updatesTotal.WithLabelValues(u.Collection, outcomeApplied).Inc()
		slog.Debug("live update applied", "watch", u.WatchID, "seq", u.Seq, "rows", len(u.Rows))
	}

	if e.observer != nil {
		e.observer(u, err)
	}
}
