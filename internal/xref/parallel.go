package xref

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/catalog-etl/internal/match"
	"github.com/sells-group/catalog-etl/internal/model"
)

// ResolveParallel resolves recs with up to workers concurrent lookups. The
// output matches ResolveAll: one resolution per record, in input order.
// Pacing and quota are enforced in aggregate by the shared gate; batching
// pauses do not apply.
func (r *Resolver) ResolveParallel(ctx context.Context, recs []model.SourceRecord, policy match.Policy, workers int) []Resolution {
	if workers <= 1 {
		return r.ResolveAll(ctx, recs, policy)
	}

	out := make([]Resolution, len(recs))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, rec := range recs {
		g.Go(func() error {
			out[i] = r.Resolve(ctx, rec, policy)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
