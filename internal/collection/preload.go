package collection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/omnistate/internal/ir"
)

// Preload dereferences every builder concurrently and waits for all of
// them. The first failure cancels the wait for the rest; rows already
// merged stay merged. Results are returned in argument order.
func Preload(ctx context.Context, builders ...*Builder) ([]ir.IRArray, error) {
	results := make([]ir.IRArray, len(builders))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range builders {
		g.Go(func() error {
			rows, err := b.Fetch(gctx)
			if err != nil {
				return fmt.Errorf("preload %s: %w", b.Name(), err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
