package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/scatter/fields"
	"github.com/pthm-cable/scatter/scatter"
)

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Samples []fields.Sample
}

// pool runs per-point work over chunks of a point slice. Point stages write
// only to their own point, so chunks need no synchronization beyond the
// final wait.
type pool struct {
	workers   int
	threshold int
	chunk     int
	scratches []workerScratch
}

func newPool(opts Options) *pool {
	n := opts.workers()
	scratches := make([]workerScratch, n)
	for i := range scratches {
		scratches[i].Samples = make([]fields.Sample, 0, 16)
	}
	return &pool{
		workers:   n,
		threshold: opts.ParallelThreshold,
		chunk:     opts.ChunkSize,
		scratches: scratches,
	}
}

// chunkSize returns the work item size for n points.
func (p *pool) chunkSize(n int) int {
	if p.chunk > 0 {
		return p.chunk
	}
	return max((n+p.workers-1)/p.workers, 1)
}

// run calls fn on consecutive ranges covering [0, n). Below the parallel
// threshold everything runs inline on worker 0. ctx is checked between
// chunks; a cancelled run returns ctx's error.
func (p *pool) run(ctx context.Context, n int, fn func(s *workerScratch, lo, hi int)) error {
	if n == 0 {
		return ctx.Err()
	}
	chunk := p.chunkSize(n)
	if n < p.threshold || p.workers <= 1 {
		for lo := 0; lo < n; lo += chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(&p.scratches[0], lo, min(lo+chunk, n))
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var next atomic.Int64
	for w := 0; w < p.workers; w++ {
		scratch := &p.scratches[w]
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				lo := int(next.Add(int64(chunk))) - chunk
				if lo >= n {
					return nil
				}
				fn(scratch, lo, min(lo+chunk, n))
			}
		})
	}
	return g.Wait()
}

// each calls fn on every point of pts.
func (p *pool) each(ctx context.Context, pts []scatter.Point, fn func(s *workerScratch, pt *scatter.Point)) error {
	return p.run(ctx, len(pts), func(s *workerScratch, lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(s, &pts[i])
		}
	})
}

// points is each for work that needs no scratch.
func (p *pool) points(ctx context.Context, pts []scatter.Point, fn func(*scatter.Point)) error {
	return p.each(ctx, pts, func(_ *workerScratch, pt *scatter.Point) { fn(pt) })
}

// filter keeps the points of pts for which keep returns true, in order.
// keep runs in parallel; the slice is compacted in place afterwards.
func (p *pool) filter(ctx context.Context, pts []scatter.Point, keep func(pt *scatter.Point) bool) ([]scatter.Point, error) {
	flags := make([]bool, len(pts))
	err := p.run(ctx, len(pts), func(_ *workerScratch, lo, hi int) {
		for i := lo; i < hi; i++ {
			flags[i] = keep(&pts[i])
		}
	})
	if err != nil {
		return nil, err
	}
	out := pts[:0]
	for i := range pts {
		if flags[i] {
			out = append(out, pts[i])
		}
	}
	return out, nil
}
