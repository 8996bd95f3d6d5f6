package collection

import (
	"context"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
)

// Writer is the write half of a backend adapter.
type Writer interface {
	Write(ctx context.Context, m queryir.Mutation) error
}

// shared is what a root builder and every builder derived from it hold by
// reference.
type shared struct {
	resolver Resolver
	writer   Writer
	cache    *Cache
	pk       string
}

// Builder is an immutable description of a query against one collection.
// The zero value is not usable; start from New.
type Builder struct {
	name string
	opts queryir.Options
	sh   *shared
}

// Option configures a root builder.
type Option func(*shared)

// WithResolver attaches the function that executes the described query.
func WithResolver(r Resolver) Option {
	return func(s *shared) {
		s.resolver = r
	}
}

// WithWriter attaches the write-capable backend used by Add, Update and
// Delete.
func WithWriter(w Writer) Option {
	return func(s *shared) {
		s.writer = w
	}
}

// WithCache shares a resolution cache (and its merge target) between
// builders.
func WithCache(c *Cache) Option {
	return func(s *shared) {
		s.cache = c
	}
}

// WithPrimaryKey names the field that identifies rows. Default "id".
func WithPrimaryKey(pk string) Option {
	return func(s *shared) {
		s.pk = pk
	}
}

// New creates the root builder for collection name, with empty options.
// Without WithCache the builder gets a private cache that merges nowhere.
func New(name string, opts ...Option) *Builder {
	sh := &shared{pk: "id"}
	for _, opt := range opts {
		opt(sh)
	}
	if sh.cache == nil {
		sh.cache = NewCache(nil)
	}
	return &Builder{name: name, sh: sh}
}

func (b *Builder) derive(opts queryir.Options) *Builder {
	return &Builder{name: b.name, opts: opts, sh: b.sh}
}

// Name returns the collection name.
func (b *Builder) Name() string { return b.name }

// PrimaryKey returns the row identity field.
func (b *Builder) PrimaryKey() string { return b.sh.pk }

// Options returns a copy of the accumulated options.
func (b *Builder) Options() queryir.Options { return b.opts.Clone() }

// Cache returns the resolution cache the builder uses.
func (b *Builder) Cache() *Cache { return b.sh.cache }

// Key returns the resolution cache key of this description.
func (b *Builder) Key() (string, error) {
	return ir.QueryKey(b.name, b.opts.IR())
}

// Where returns a builder whose conditions are merged over b's.
func (b *Builder) Where(conds ...queryir.Condition) *Builder {
	return b.derive(b.opts.WithWhere(conds...))
}

// OrderBy returns a builder whose sort keys are merged over b's.
func (b *Builder) OrderBy(keys ...queryir.Order) *Builder {
	return b.derive(b.opts.WithOrderBy(keys...))
}

// Limit returns a builder bounded to n rows.
func (b *Builder) Limit(n int) *Builder {
	return b.derive(b.opts.WithLimit(n))
}

// Offset returns a builder skipping the first n rows.
func (b *Builder) Offset(n int) *Builder {
	return b.derive(b.opts.WithOffset(n))
}

// Include returns a builder that also loads relation.
func (b *Builder) Include(relation string) *Builder {
	return b.derive(b.opts.WithInclude(relation))
}

// Get returns a builder selecting the single row with primary key pk.
func (b *Builder) Get(pk ir.IRValue) *Builder {
	return b.derive(b.opts.WithPK(pk))
}

// Rows dereferences the builder. Without a resolver it is a plain
// descriptor and reads as an empty, ready result. Otherwise the result is
// the cached rows, the in-flight handle, or a fresh resolution.
func (b *Builder) Rows() state.Result[ir.IRArray] {
	if b.sh.resolver == nil {
		return state.Ready[ir.IRArray](nil)
	}
	return b.sh.cache.resolve(b.name, b.opts, b.sh.pk, b.sh.resolver)
}

// Len dereferences the builder and returns the row count.
func (b *Builder) Len() state.Result[int] {
	r := b.Rows()
	if p := r.Pending(); p != nil {
		return state.Suspend[int](p)
	}
	rows, _ := r.Value()
	return state.Ready(len(rows))
}

// Fetch dereferences the builder and waits for the rows.
func (b *Builder) Fetch(ctx context.Context) (ir.IRArray, error) {
	return state.Await(ctx, b.Rows)
}

// Add asks the backend to create a row. When data carries the primary key
// it becomes the mutation's id. The cache and the state tree are not
// touched.
func (b *Builder) Add(ctx context.Context, data ir.IRObject) error {
	m := queryir.Mutation{Type: queryir.Create, Collection: b.name, Data: data}
	if id, ok := data[b.sh.pk]; ok {
		m.ID = id
	}
	return b.write(ctx, "add", m)
}

// Update asks the backend to patch the row with primary key id.
func (b *Builder) Update(ctx context.Context, id ir.IRValue, data ir.IRObject) error {
	return b.write(ctx, "update", queryir.Mutation{
		Type:       queryir.Update,
		Collection: b.name,
		ID:         id,
		Data:       data,
	})
}

// Delete asks the backend to remove the row with primary key id.
func (b *Builder) Delete(ctx context.Context, id ir.IRValue) error {
	return b.write(ctx, "delete", queryir.Mutation{
		Type:       queryir.Delete,
		Collection: b.name,
		ID:         id,
	})
}

func (b *Builder) write(ctx context.Context, op string, m queryir.Mutation) error {
	if b.sh.writer == nil {
		return &ConfigError{Collection: b.name, Op: op}
	}
	return b.sh.writer.Write(ctx, m)
}
