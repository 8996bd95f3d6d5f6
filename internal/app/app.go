// Package app assembles a store from a compiled schema: one state tree,
// one resolution cache, one bound builder per declared collection and a
// live engine for subscriptions.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/compiler"
	"github.com/roach88/omnistate/internal/live"
	"github.com/roach88/omnistate/internal/state"
)

// ErrUnknownCollection is returned for names the schema does not declare.
var ErrUnknownCollection = errors.New("unknown collection")

// App is a schema-defined store bound to one adapter.
type App struct {
	spec        *compiler.StoreSpec
	adapter     binding.Adapter
	root        *state.View
	cache       *collection.Cache
	engine      *live.Engine
	collections map[string]*collection.Builder
	closers     []func() error
}

type options struct {
	ctx            context.Context
	errorTTL       time.Duration
	resolveTimeout time.Duration
	onChange       func()
	observer       func(live.Update, error)
	ids            binding.IDGenerator
}

// Option configures an App.
type Option func(*options)

// WithContext bounds every adapter read started by the App's builders.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithErrorTTL remembers failed resolutions for ttl.
func WithErrorTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.errorTTL = ttl
	}
}

// WithResolveTimeout bounds each adapter read. Zero disables the bound.
func WithResolveTimeout(d time.Duration) Option {
	return func(o *options) {
		o.resolveTimeout = d
	}
}

// WithOnChange installs the state tree's global change callback.
func WithOnChange(fn func()) Option {
	return func(o *options) {
		o.onChange = fn
	}
}

// WithObserver receives every live update after it is processed.
func WithObserver(fn func(live.Update, error)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithWatchIDs sets the generator for live watch ids.
func WithWatchIDs(g binding.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// New validates spec and builds an App over adapter. All validation
// errors are joined into the returned error.
func New(spec *compiler.StoreSpec, adapter binding.Adapter, opts ...Option) (*App, error) {
	if errs := compiler.Validate(spec); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid schema: %w", errors.Join(joined...))
	}

	o := &options{
		ctx:            context.Background(),
		resolveTimeout: binding.DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	var stateOpts []state.Option
	if o.onChange != nil {
		stateOpts = append(stateOpts, state.WithOnChange(o.onChange))
	}
	root := state.Define(spec.InitialState(), stateOpts...)
	cache := collection.NewCache(root, collection.WithErrorTTL(o.errorTTL))

	liveOpts := []live.Option{live.WithCache(cache)}
	if o.observer != nil {
		liveOpts = append(liveOpts, live.WithObserver(o.observer))
	}
	if o.ids != nil {
		liveOpts = append(liveOpts, live.WithIDs(o.ids))
	}

	a := &App{
		spec:        spec,
		adapter:     adapter,
		root:        root,
		cache:       cache,
		engine:      live.New(root, liveOpts...),
		collections: make(map[string]*collection.Builder, len(spec.Collections)),
	}
	for _, c := range spec.Collections {
		a.collections[c.Name] = binding.Bind(adapter, c.Name,
			binding.WithCache(cache),
			binding.WithPrimaryKey(c.PrimaryKey),
			binding.WithResolveTimeout(o.resolveTimeout),
			binding.WithContext(o.ctx),
		)
	}

	slog.Debug("app assembled", "collections", len(spec.Collections))
	return a, nil
}

// State returns the root state view.
func (a *App) State() *state.View { return a.root }

// Cache returns the shared resolution cache.
func (a *App) Cache() *collection.Cache { return a.cache }

// Engine returns the live engine.
func (a *App) Engine() *live.Engine { return a.engine }

// Adapter returns the bound adapter.
func (a *App) Adapter() binding.Adapter { return a.adapter }

// Spec returns the compiled schema.
func (a *App) Spec() *compiler.StoreSpec { return a.spec }

// Collection returns the root builder of a declared collection.
func (a *App) Collection(name string) (*collection.Builder, error) {
	b, ok := a.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return b, nil
}

// Collections returns the declared collection names, sorted.
func (a *App) Collections() []string {
	names := make([]string, 0, len(a.collections))
	for name := range a.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Watch subscribes b's query and merges pushed rows into state while Run
// is active.
func (a *App) Watch(ctx context.Context, b *collection.Builder) (string, error) {
	return a.engine.Watch(ctx, a.adapter, b)
}

// Run processes live updates until ctx is done or Close is called.
func (a *App) Run(ctx context.Context) error {
	return a.engine.Run(ctx)
}

// Close stops every watch and releases what Open acquired.
func (a *App) Close() error {
	a.engine.Stop()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
