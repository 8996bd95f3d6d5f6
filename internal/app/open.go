package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/omnistate/internal/binding"
	"github.com/roach88/omnistate/internal/binding/memory"
	"github.com/roach88/omnistate/internal/binding/sqlite"
	"github.com/roach88/omnistate/internal/compiler"
	"github.com/roach88/omnistate/internal/config"
	"github.com/roach88/omnistate/internal/queryir"
	"github.com/roach88/omnistate/internal/store"
)

// Open builds the adapter cfg names, seeds it from spec and assembles an
// App over it. Close releases the adapter.
//
// The memory adapter starts with the seed rows. The sqlite adapter creates
// missing tables and seeds only tables that are empty, so reopening a
// database keeps its rows.
func Open(ctx context.Context, cfg config.Config, spec *compiler.StoreSpec, opts ...Option) (*App, error) {
	pk, err := SharedPrimaryKey(spec)
	if err != nil {
		return nil, err
	}

	var (
		adapter binding.Adapter
		closer  func() error
	)
	switch cfg.Adapter {
	case config.AdapterMemory:
		memOpts := []memory.Option{memory.WithPrimaryKey(pk), memory.WithLatency(cfg.Latency)}
		for _, c := range spec.Collections {
			memOpts = append(memOpts, memory.WithTable(c.Name, c.Seed...))
		}
		adapter = memory.New(memOpts...)

	case config.AdapterSQLite:
		s, err := store.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		a := sqlite.New(s, sqlite.WithPrimaryKey(pk), sqlite.WithPollInterval(cfg.PollInterval))
		if err := prepareSQLite(ctx, s, a, spec); err != nil {
			s.Close()
			return nil, err
		}
		adapter, closer = a, s.Close

	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}

	opts = append([]Option{
		WithErrorTTL(cfg.ErrorTTL),
		WithResolveTimeout(cfg.ResolveTimeout),
	}, opts...)
	a, err := New(spec, adapter, opts...)
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	slog.Info("store opened",
		"adapter", cfg.Adapter,
		"collections", len(spec.Collections),
	)
	return a, nil
}

// SharedPrimaryKey returns the key column every collection uses. The
// bundled adapters key all tables on one column.
func SharedPrimaryKey(spec *compiler.StoreSpec) (string, error) {
	pk := ""
	for _, c := range spec.Collections {
		switch {
		case pk == "":
			pk = c.PrimaryKey
		case c.PrimaryKey != pk:
			return "", fmt.Errorf("collections %s and %s use different primary keys (%s, %s)",
				spec.Collections[0].Name, c.Name, pk, c.PrimaryKey)
		}
	}
	if pk == "" {
		pk = "id"
	}
	return pk, nil
}

func prepareSQLite(ctx context.Context, s *store.Store, a *sqlite.Adapter, spec *compiler.StoreSpec) error {
	for _, c := range spec.Collections {
		if err := s.EnsureTable(ctx, c.Table()); err != nil {
			return err
		}
		if len(c.Seed) == 0 {
			continue
		}
		existing, err := s.QueryRows(ctx, "SELECT 1 FROM "+c.Name+" LIMIT 1")
		if err != nil {
			return fmt.Errorf("seed %s: %w", c.Name, err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, row := range c.Seed {
			m := queryir.Mutation{Type: queryir.Create, Collection: c.Name, Data: row}
			if err := a.Write(ctx, m); err != nil && !errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("seed %s: %w", c.Name, err)
			}
		}
		slog.Debug("collection seeded", "collection", c.Name, "rows", len(c.Seed))
	}
	return nil
}
