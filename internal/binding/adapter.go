package binding

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/notify"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/state"
)

// DefaultResolveTimeout bounds a single adapter read started by a builder.
const DefaultResolveTimeout = 30 * time.Second

// Descriptor is an adapter-specific query description. Only the adapter
// that built it can interpret it.
type Descriptor any

// Adapter is the contract a backend implements.
type Adapter interface {
	// BuildQuery translates a collection name and options into a
	// descriptor. It performs no I/O.
	BuildQuery(collection string, opts queryir.Options) (Descriptor, error)

	// Read returns the rows matching d. Every row is an ir.IRObject.
	Read(ctx context.Context, d Descriptor) (ir.IRArray, error)

	// Write applies a mutation.
	Write(ctx context.Context, m queryir.Mutation) error

	// Subscribe calls onRows with the current rows of d and again whenever
	// they change, until the returned function is called or ctx is done.
	Subscribe(ctx context.Context, d Descriptor, onRows func(ir.IRArray)) (notify.Unsubscribe, error)
}

type bindConfig struct {
	ctx     context.Context
	cache   *collection.Cache
	pk      string
	timeout time.Duration
}

// Option configures Bind.
type Option func(*bindConfig)

// WithCache makes the builder share c, and merge into c's root.
func WithCache(c *collection.Cache) Option {
	return func(cfg *bindConfig) {
		cfg.cache = c
	}
}

// WithPrimaryKey names the row identity field. Default "id".
func WithPrimaryKey(pk string) Option {
	return func(cfg *bindConfig) {
		cfg.pk = pk
	}
}

// WithResolveTimeout bounds each read. Zero disables the bound.
func WithResolveTimeout(d time.Duration) Option {
	return func(cfg *bindConfig) {
		cfg.timeout = d
	}
}

// WithContext sets the parent context of reads started by dereferences.
// Cancelling it aborts in-flight reads.
func WithContext(ctx context.Context) Option {
	return func(cfg *bindConfig) {
		cfg.ctx = ctx
	}
}

// Bind returns the root builder for collection name backed by a.
//
// Dereferencing the builder builds a descriptor and starts a read on a new
// goroutine; the builder suspends on that read. Add, Update and Delete
// are forwarded to a.Write.
func Bind(a Adapter, name string, opts ...Option) *collection.Builder {
	cfg := bindConfig{
		ctx:     context.Background(),
		pk:      "id",
		timeout: DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	resolver := func(o queryir.Options) state.Result[ir.IRArray] {
		d, err := a.BuildQuery(name, o)
		if err != nil {
			return state.Suspend[ir.IRArray](state.Settled(nil, fmt.Errorf("build query %s: %w", name, err)))
		}
		return state.Suspend[ir.IRArray](state.Go(cfg.ctx, func(ctx context.Context) (any, error) {
			if cfg.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
				defer cancel()
			}
			rows, err := a.Read(ctx, d)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
			return rows, nil
		}))
	}

	builderOpts := []collection.Option{
		collection.WithResolver(resolver),
		collection.WithWriter(a),
		collection.WithPrimaryKey(cfg.pk),
	}
	if cfg.cache != nil {
		builderOpts = append(builderOpts, collection.WithCache(cfg.cache))
	}
	return collection.New(name, builderOpts...)
}
