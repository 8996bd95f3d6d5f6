package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/state"
)

// Optimistic patches the cached row of collection name keyed id, then
// writes the patch through the adapter. Listeners see the patch before
// the write starts. A failed write restores the row's previous fields and
// returns the write error. A successful write invalidates the
// collection's cached resolutions.
//
// The row must already be in state; Optimistic never fetches.
func (a *App) Optimistic(ctx context.Context, name string, id ir.IRValue, patch ir.IRObject) error {
	b, err := a.Collection(name)
	if err != nil {
		return err
	}
	row, err := a.findRow(name, b.PrimaryKey(), id)
	if err != nil {
		return err
	}

	before, _ := row.Snapshot().(ir.IRObject)
	if err := row.Assign(patch); err != nil {
		return fmt.Errorf("optimistic %s: %w", name, err)
	}

	if err := b.Update(ctx, id, patch); err != nil {
		if rbErr := restore(row, before, patch); rbErr != nil {
			slog.Error("optimistic rollback failed",
				"collection", name,
				"error", rbErr,
			)
		}
		slog.Warn("optimistic write rolled back",
			"collection", name,
			"error", err,
		)
		return err
	}

	row.MarkClean()
	a.cache.Invalidate(name)
	return nil
}

// OptimisticAdd appends data to collection name, then creates it through
// the adapter. A failed write removes the appended row again.
func (a *App) OptimisticAdd(ctx context.Context, name string, data ir.IRObject) error {
	b, err := a.Collection(name)
	if err != nil {
		return err
	}
	if err := collection.Merge(a.root, name, ir.IRArray{data}, b.PrimaryKey()); err != nil {
		return fmt.Errorf("optimistic %s: %w", name, err)
	}

	if err := b.Add(ctx, data); err != nil {
		list := a.root.Child(name)
		for i := list.Len() - 1; i >= 0; i-- {
			item := list.Child(fmt.Sprint(i))
			if item != nil && ir.Equal(item.Snapshot(), data) {
				if rbErr := list.Delete(fmt.Sprint(i)); rbErr != nil {
					slog.Error("optimistic rollback failed", "collection", name, "error", rbErr)
				}
				break
			}
		}
		slog.Warn("optimistic add rolled back", "collection", name, "error", err)
		return err
	}

	a.cache.Invalidate(name)
	return nil
}

func (a *App) findRow(name, pk string, id ir.IRValue) (*state.View, error) {
	want, ok := collection.RowKey(id)
	if !ok {
		return nil, fmt.Errorf("optimistic %s: id %v does not identify a row", name, id)
	}
	list := a.root.Child(name)
	if list != nil {
		for _, k := range list.Keys() {
			item := list.Child(k)
			if item == nil {
				continue
			}
			if got, ok := collection.RowKey(item.Peek(pk)); ok && got == want {
				return item, nil
			}
		}
	}
	return nil, fmt.Errorf("optimistic %s: row %s not loaded", name, want)
}

// restore puts back the fields patch overwrote and drops the ones it
// introduced, as one write.
func restore(row *state.View, before, patch ir.IRObject) error {
	prev := ir.IRObject{}
	for k := range patch {
		if v, ok := before[k]; ok {
			prev[k] = v
		}
	}
	if len(prev) > 0 {
		if err := row.Assign(prev); err != nil {
			return err
		}
	}
	for k := range patch {
		if _, ok := before[k]; !ok {
			if err := row.Delete(k); err != nil {
				return err
			}
		}
	}
	return nil
}
