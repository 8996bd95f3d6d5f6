// Package sqlite is an adapter over SQLite tables managed by
// internal/store.
//
// Descriptors carry parameterized SQL compiled by querysql. Included
// relations are joined in the main query and then embedded from a second
// lookup query. Subscriptions poll the store's change log and re-read
// only when a watched collection has a newer change.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/querysql"
	"github.com/roach88/omnistate/internal/store"
)

// DefaultPollInterval is how often subscriptions check the change log.
const DefaultPollInterval = time.Second

// ErrDescriptor is returned for descriptors built by another adapter.
var ErrDescriptor = errors.New("sqlite: foreign descriptor")

// Query is the descriptor built by Adapter.BuildQuery.
type Query struct {
	Collection string
	SQL        string
	Params     []any
	Include    []string
}

// Adapter implements binding.Adapter over a store.
//
// Thread-safety: safe for concurrent use; the store serializes access to
// the database.
type Adapter struct {
	store    *store.Store
	compiler *querysql.SQLCompiler
	ids      binding.IDGenerator
	interval time.Duration
}

var _ binding.Adapter = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithPrimaryKey names the key column of every table. Default "id".
func WithPrimaryKey(pk string) Option {
	return func(a *Adapter) {
		a.compiler = querysql.NewSQLCompiler(pk)
	}
}

// WithIDs sets the generator used for rows created without a key.
// Default binding.UUIDv7Generator.
func WithIDs(g binding.IDGenerator) Option {
	return func(a *Adapter) {
		a.ids = g
	}
}

// WithPollInterval sets how often subscriptions poll.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) {
		a.interval = d
	}
}

// New creates an adapter over s.
func New(s *store.Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:    s,
		compiler: querysql.NewSQLCompiler("id"),
		ids:      binding.UUIDv7Generator{},
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildQuery validates opts and compiles them to SQL.
func (a *Adapter) BuildQuery(collection string, opts queryir.Options) (binding.Descriptor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sql, params, err := a.compiler.Compile(opts.Select(collection, a.compiler.PrimaryKey))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", collection, err)
	}
	return Query{
		Collection: collection,
		SQL:        sql,
		Params:     params,
		Include:    append([]string(nil), opts.Include...),
	}, nil
}

// Read runs the query and embeds included relations.
func (a *Adapter) Read(ctx context.Context, d binding.Descriptor) (ir.IRArray, error) {
	q, ok := d.(Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}

	rows, err := a.store.QueryRows(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, err
	}

	for _, rel := range q.Include {
		keys := binding.ForeignKeys(rows, rel)
		var related ir.IRArray
		if len(keys) > 0 {
			sql, params, err := a.compiler.CompileLookup(rel, a.compiler.PrimaryKey, keys)
			if err != nil {
				return nil, fmt.Errorf("include %s: %w", rel, err)
			}
			related, err = a.store.QueryRows(ctx, sql, params...)
			if err != nil {
				return nil, fmt.Errorf("include %s: %w", rel, err)
			}
		}
		binding.Embed(rows, rel, related, a.compiler.PrimaryKey)
	}
	return rows, nil
}

// Write compiles and applies a mutation. A create without a key gets one
// from the id generator.
func (a *Adapter) Write(ctx context.Context, m queryir.Mutation) error {
	pk := a.compiler.PrimaryKey
	if m.Type == queryir.Create && m.ID == nil {
		if id, ok := m.Data[pk]; ok {
			m.ID = id
		} else {
			m.ID = ir.IRString(a.ids.Generate())
		}
	}

	sql, params, err := a.compiler.CompileMutation(m)
	if err != nil {
		return err
	}
	seq, err := a.store.Apply(ctx, store.Change{
		Collection: m.Collection,
		RowID:      rowID(m.ID),
		Op:         string(m.Type),
	}, sql, params...)
	if err != nil {
		return err
	}
	slog.Debug("sqlite write applied", "collection", m.Collection, "type", m.Type, "seq", seq)
	return nil
}

// Subscribe delivers the current rows of d before returning, then polls
// the change log and delivers a fresh snapshot whenever the collection or
// an included relation changed and the rows differ. A failed poll is
// logged and retried on the next tick.
func (a *Adapter) Subscribe(ctx context.Context, d binding.Descriptor, onRows func(ir.IRArray)) (notify.Unsubscribe, error) {
	q, ok := d.(Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}
	watched := append([]string{q.Collection}, q.Include...)

	cursor, err := a.cursor(ctx, watched)
	if err != nil {
		return nil, err
	}
	rows, err := a.Read(ctx, q)
	if err != nil {
		return nil, err
	}
	feed := binding.NewFeed(onRows)
	feed.Push(rows)

	stop := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}

			latest, err := a.cursor(ctx, watched)
			if err != nil {
				slog.Warn("sqlite subscription poll failed", "collection", q.Collection, "error", err)
				continue
			}
			if latest == cursor {
				continue
			}
			rows, err := a.Read(ctx, q)
			if err != nil {
				slog.Warn("sqlite subscription read failed", "collection", q.Collection, "error", err)
				continue
			}
			cursor = latest
			feed.Push(rows)
		}
	}()

	return func() { once.Do(func() { close(stop) }) }, nil
}

// cursor is the newest change seq across collections.
func (a *Adapter) cursor(ctx context.Context, collections []string) (int64, error) {
	var latest int64
	for _, c := range collections {
		seq, err := a.store.LatestChange(ctx, c)
		if err != nil {
			return 0, err
		}
		latest = max(latest, seq)
	}
	return latest, nil
}

func rowID(v ir.IRValue) string {
	switch id := v.(type) {
	case ir.IRString:
		return string(id)
	case ir.IRInt:
		return strconv.FormatInt(int64(id), 10)
	default:
		if key, ok := collection.RowKey(v); ok {
			return key
		}
		return ""
	}
}
