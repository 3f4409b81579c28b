package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds concurrent catalog lookups when the caller passes 0.
const DefaultParallelism = 8

// ResolveAll resolves refs concurrently, at most limit at a time. The result is
// index-aligned with refs. The first failure cancels the rest and is returned.
func ResolveAll(ctx context.Context, gw Gateway, refs []string, limit int) ([]MenuItem, error) {
	if limit <= 0 {
		limit = DefaultParallelism
	}

	items := make([]MenuItem, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for idx, ref := range refs {
		idx, ref := idx, ref
		g.Go(func() error {
			item, err := gw.ResolveMenuItem(ctx, ref)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", ref, err)
			}
			items[idx] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
