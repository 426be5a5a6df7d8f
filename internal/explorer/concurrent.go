package explorer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"callgraph/internal/graph"
)

// Job is one driver run against its own builder.
type Job func(ctx context.Context, b *graph.Builder)

// Concurrent runs independent jobs in parallel, each writing to a private
// builder with content-derived ids, and merges the snapshots in job order.
// Relations observed by more than one job end up as one edge whose weight
// counts the observations.
func Concurrent(ctx context.Context, jobs ...Job) (*graph.Graph, error) {
	results := make([]*graph.Graph, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			b := graph.NewBuilder(graph.WithContentIDs())
			job(gctx, b)
			snapshot, err := b.Graph()
			if err != nil {
				return err
			}
			results[i] = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return graph.MergeAll(results...), nil
}
