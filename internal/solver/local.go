package solver

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/timeutil"
)

// Result is the outcome of a run over every rank.
type Result struct {
	Problem Problem `json:"problem"`
	Options Options `json:"-"`

	// Solution is the assembled global grid including its boundary ghosts.
	Solution   *grid.Grid    `json:"-"`
	Iterations int           `json:"iterations"`
	Converged  bool          `json:"converged"`
	Residuals  []float64     `json:"residuals"`
	Ranks      []*RankResult `json:"ranks"`
	Elapsed    time.Duration `json:"elapsed"`
}

// FinalDiff returns the global difference of the last iteration.
func (r *Result) FinalDiff() float64 {
	if len(r.Residuals) == 0 {
		return 0
	}
	return r.Residuals[len(r.Residuals)-1]
}

// ExchangeTime returns the slowest rank's total exchange time. Ranks wait
// for each other, so the slowest rank bounds the run.
func (r *Result) ExchangeTime() time.Duration {
	var d time.Duration
	for _, rr := range r.Ranks {
		d = max(d, rr.ExchangeTime)
	}
	return d
}

// ComputeTime returns the slowest rank's total compute time.
func (r *Result) ComputeTime() time.Duration {
	var d time.Duration
	for _, rr := range r.Ranks {
		d = max(d, rr.ComputeTime)
	}
	return d
}

// RunLocal solves p with one goroutine per rank in this process and
// gathers the global solution. The first rank to fail cancels the others.
func RunLocal(ctx context.Context, p Problem, opts Options) (*Result, error) {
	size := opts.Dims[0] * opts.Dims[1]
	if err := opts.Validate(size); err != nil {
		return nil, err
	}
	comms, err := rma.NewLocalWorld(size)
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	opts.Gather = true

	start := clock.Now()
	ranks := make([]*RankResult, size)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		c := c
		g.Go(func() error {
			rr, err := RunRank(gctx, c, p, opts)
			if err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			ranks[c.Rank()] = rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root := ranks[0]
	return &Result{
		Problem:    p,
		Options:    opts,
		Solution:   root.Global,
		Iterations: root.Iterations,
		Converged:  root.Converged,
		Residuals:  root.Residuals,
		Ranks:      ranks,
		Elapsed:    clock.Since(start),
	}, nil
}
