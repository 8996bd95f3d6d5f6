// Package memory is an in-process adapter holding tables of ir objects.
//
// Queries are evaluated with queryir.Eval over copies of the stored rows,
// so callers never share row objects with the database. An optional
// latency delays every Read and Write, which makes the suspension paths
// of builders observable in demos and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/queryir"
)

var (
	// ErrNotFound is returned when an update or delete names a missing row.
	ErrNotFound = errors.New("memory: row not found")

	// ErrDuplicate is returned when a create reuses an existing key.
	ErrDuplicate = errors.New("memory: duplicate key")

	// ErrDescriptor is returned for descriptors built by another adapter.
	ErrDescriptor = errors.New("memory: foreign descriptor")
)

// Query is the descriptor built by DB.BuildQuery.
type Query struct {
	Collection string
	Options    queryir.Options
}

// DB is an in-memory table store implementing binding.Adapter.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// called on the goroutine that performed the write, after the write lock
// is released.
type DB struct {
	mu      sync.RWMutex
	tables  map[string][]ir.IRObject
	pk      string
	ids     binding.IDGenerator
	latency time.Duration
	changes *notify.Bus[string]
}

var _ binding.Adapter = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithPrimaryKey names the row identity field. Default "id".
func WithPrimaryKey(pk string) Option {
	return func(db *DB) {
		db.pk = pk
	}
}

// WithIDs sets the generator used for rows created without a key.
// Default binding.UUIDv7Generator.
func WithIDs(g binding.IDGenerator) Option {
	return func(db *DB) {
		db.ids = g
	}
}

// WithLatency delays every Read and Write by d.
func WithLatency(d time.Duration) Option {
	return func(db *DB) {
		db.latency = d
	}
}

// WithTable seeds a table.
func WithTable(name string, rows ...ir.IRObject) Option {
	return func(db *DB) {
		table := db.tables[name]
		for _, r := range rows {
			table = append(table, r.Clone())
		}
		db.tables[name] = table
	}
}

// New creates a database.
func New(opts ...Option) *DB {
	db := &DB{
		tables:  make(map[string][]ir.IRObject),
		pk:      "id",
		ids:     binding.UUIDv7Generator{},
		changes: notify.New[string](),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Rows returns a copy of every row of table, in insertion order.
func (db *DB) Rows(table string) ir.IRArray {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.snapshot(table)
}

// snapshot copies a table. Caller holds db.mu.
func (db *DB) snapshot(table string) ir.IRArray {
	out := make(ir.IRArray, len(db.tables[table]))
	for i, r := range db.tables[table] {
		out[i] = r.Clone()
	}
	return out
}

// BuildQuery validates opts and captures them in a Query.
func (db *DB) BuildQuery(collection string, opts queryir.Options) (binding.Descriptor, error) {
	if !queryir.ValidIdentifier(collection) {
		return nil, fmt.Errorf("collection %q is not a valid identifier", collection)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return Query{Collection: collection, Options: opts.Clone()}, nil
}

// Read evaluates the query. A missing table reads as empty. Each included
// relation r is embedded under r from the table named r, matched on r_id.
func (db *DB) Read(ctx context.Context, d binding.Descriptor) (ir.IRArray, error) {
	q, ok := d.(Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}
	if err := db.wait(ctx); err != nil {
		return nil, err
	}
	return db.query(q), nil
}

func (db *DB) query(q Query) ir.IRArray {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows := queryir.Eval(db.snapshot(q.Collection), q.Options, db.pk)
	for _, rel := range q.Options.Include {
		binding.Embed(rows, rel, db.snapshot(rel), db.pk)
	}
	return rows
}

// Write applies a mutation and notifies subscribers of the collection.
//
// A create takes its key from m.ID, then from the data's primary key
// field, then from the id generator. Updates merge fields into the row and
// never change its key.
func (db *DB) Write(ctx context.Context, m queryir.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := db.wait(ctx); err != nil {
		return err
	}

	db.mu.Lock()
	err := db.apply(m)
	db.mu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("memory write applied", "collection", m.Collection, "type", m.Type)
	db.changes.Notify(m.Collection)
	return nil
}

// apply mutates the table. Caller holds db.mu.
func (db *DB) apply(m queryir.Mutation) error {
	table := db.tables[m.Collection]

	switch m.Type {
	case queryir.Create:
		id := m.ID
		if id == nil {
			id = m.Data[db.pk]
		}
		if _, ok := collection.RowKey(id); !ok {
			id = ir.IRString(db.ids.Generate())
		}
		if db.find(table, id) >= 0 {
			return fmt.Errorf("create %s: %w", m.Collection, ErrDuplicate)
		}
		row := m.Data.Clone()
		row[db.pk] = id
		db.tables[m.Collection] = append(table, row)

	case queryir.Update:
		i := db.find(table, m.ID)
		if i < 0 {
			return fmt.Errorf("update %s: %w", m.Collection, ErrNotFound)
		}
		patched := table[i].Clone()
		for k, v := range m.Data {
			if k == db.pk {
				continue
			}
			patched[k] = ir.Clone(v)
		}
		table[i] = patched

	case queryir.Delete:
		i := db.find(table, m.ID)
		if i < 0 {
			return fmt.Errorf("delete %s: %w", m.Collection, ErrNotFound)
		}
		db.tables[m.Collection] = slices.Delete(table, i, i+1)
	}
	return nil
}

func (db *DB) find(table []ir.IRObject, id ir.IRValue) int {
	want, ok := collection.RowKey(id)
	if !ok {
		return -1
	}
	for i, row := range table {
		if got, ok := collection.RowKey(row[db.pk]); ok && got == want {
			return i
		}
	}
	return -1
}

// Subscribe delivers the current rows of d before returning, then a fresh
// snapshot after each write to the collection or to an included relation.
// Unchanged snapshots are not delivered.
func (db *DB) Subscribe(ctx context.Context, d binding.Descriptor, onRows func(ir.IRArray)) (notify.Unsubscribe, error) {
	q, ok := d.(Query)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescriptor, d)
	}

	watched := append([]string{q.Collection}, q.Options.Include...)
	feed := binding.NewFeed(onRows)
	feed.Push(db.query(q))

	unsub := db.changes.Subscribe(func(name string) {
		if slices.Contains(watched, name) {
			feed.Push(db.query(q))
		}
	})

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsub()
			close(stop)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return cancel, nil
}

func (db *DB) wait(ctx context.Context) error {
	if db.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(db.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
