// Package solver drives the distributed Jacobi iteration: it lays ranks
// out on the process grid, owns the two iterate buffers and their windows,
// and runs exchange, sweep and convergence test until the global
// difference drops below tolerance or the iteration cap is reached.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/kernel"
	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/timeutil"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// ErrStalled reports an exchange that did not finish within
// Options.ExchangeTimeout, which usually means some rank skipped a
// collective call.
var ErrStalled = errors.New("exchange stalled")

// Problem is a Poisson problem on the unit square with nx by ny interior
// points, constant Dirichlet boundary and constant right-hand side.
type Problem struct {
	NX       int     `json:"nx"`
	NY       int     `json:"ny"`
	Boundary float64 `json:"boundary_value"`
	RHS      float64 `json:"rhs_value"`
	Initial  float64 `json:"initial_value"`
}

// Validate checks the problem size.
func (p Problem) Validate() error {
	if p.NX < 1 || p.NY < 1 {
		return fmt.Errorf("grid must have at least one interior point, got %dx%d", p.NX, p.NY)
	}
	return nil
}

// Observer is told the global difference after every iteration. It runs
// on rank 0 only.
type Observer func(iteration int, diff float64)

// Options control a run.
type Options struct {
	Mode          halo.Mode
	Dims          [2]int
	Tolerance     float64
	MaxIterations int

	// ExchangeTimeout bounds a single exchange. Zero waits forever.
	ExchangeTimeout time.Duration

	// LogEvery logs progress on rank 0 every so many iterations. Zero
	// disables progress logs.
	LogEvery int

	// Gather assembles the global solution on rank 0 after the loop.
	Gather bool

	Clock    timeutil.Clock
	Observer Observer
}

// Validate checks the options against a world of size ranks.
func (o Options) Validate(size int) error {
	if _, err := halo.ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Dims[0] < 1 || o.Dims[1] < 1 {
		return fmt.Errorf("process grid %s is invalid", topology.FormatDims(o.Dims))
	}
	if o.Dims[0]*o.Dims[1] != size {
		return fmt.Errorf("process grid %s needs %d ranks, world has %d",
			topology.FormatDims(o.Dims), o.Dims[0]*o.Dims[1], size)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	if o.Tolerance < 0 || math.IsNaN(o.Tolerance) {
		return fmt.Errorf("tolerance must be non-negative, got %v", o.Tolerance)
	}
	if o.ExchangeTimeout < 0 {
		return fmt.Errorf("exchange timeout must not be negative, got %s", o.ExchangeTimeout)
	}
	return nil
}

// RankResult is what one rank knows at the end of a run.
type RankResult struct {
	Rank      int                `json:"rank"`
	Bounds    grid.Bounds        `json:"bounds"`
	Neighbors topology.Neighbors `json:"neighbors"`

	// Solution is the newest iterate of this rank's block.
	Solution *grid.Grid `json:"-"`
	// Global is the assembled solution, set on rank 0 when gathering.
	Global *grid.Grid `json:"-"`

	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	Residuals  []float64 `json:"-"`

	ExchangeTime time.Duration `json:"exchange_time"`
	ComputeTime  time.Duration `json:"compute_time"`
	Traffic      rma.Stats     `json:"traffic"`
}

// RunRank runs the solver on one rank. Every rank of comm must call it
// with the same problem and options.
func RunRank(ctx context.Context, comm *rma.Comm, p Problem, opts Options) (*RankResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(comm.Size()); err != nil {
		return nil, err
	}
	logf := monitoring.RankLogf(comm.Rank())

	bounds, nbrs, err := topology.Layout(p.NX, p.NY, opts.Dims, comm.Rank())
	if err != nil {
		return nil, err
	}

	a, err := newIterate(bounds, p)
	if err != nil {
		return nil, err
	}
	b := a.Clone()
	f := grid.MustNew(bounds, 1)
	f.FillInterior(p.RHS)

	winA, err := comm.NewWindow(ctx, a)
	if err != nil {
		return nil, err
	}
	winB, err := comm.NewWindow(ctx, b)
	if err != nil {
		return nil, err
	}

	ex, err := halo.New(opts.Mode, halo.Layout{
		Bounds:    bounds,
		Neighbors: nbrs,
		RowType:   grid.RowType(bounds),
		Group:     comm.WorldGroup(),
	})
	if err != nil {
		return nil, err
	}

	exchangeSW := timeutil.NewStopwatch(opts.Clock)
	computeSW := timeutil.NewStopwatch(opts.Clock)
	res := &RankResult{Rank: comm.Rank(), Bounds: bounds, Neighbors: nbrs}

	if comm.Rank() == 0 {
		logf("solving %dx%d on %s ranks with %s exchange", p.NX, p.NY, topology.FormatDims(opts.Dims), ex.Mode())
	}

	for it := 1; it <= opts.MaxIterations; it++ {
		exchangeSW.Start()
		err := exchange(ctx, ex, a, winA, opts.ExchangeTimeout)
		exchangeSW.Stop()
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}

		computeSW.Start()
		kernel.Sweep(a, f, b, bounds, p.NX)
		local := kernel.Diff(b, a, bounds)
		computeSW.Stop()

		global, err := comm.AllreduceSum(ctx, local)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}
		res.Iterations = it
		res.Residuals = append(res.Residuals, global)

		if comm.Rank() == 0 {
			if opts.Observer != nil {
				opts.Observer(it, global)
			}
			if opts.LogEvery > 0 && it%opts.LogEvery == 0 {
				logf("iteration %d diff %.6e", it, global)
			}
		}

		if global < opts.Tolerance {
			res.Converged = true
			break
		}
		a, b = b, a
		winA, winB = winB, winA
	}

	// b holds the newest iterate after a converged break, a otherwise.
	newest, newestWin := a, winA
	if res.Converged {
		newest, newestWin = b, winB
	}
	res.Solution = newest
	res.ExchangeTime = exchangeSW.Total()
	res.ComputeTime = computeSW.Total()
	sa, sb := winA.Stats(), winB.Stats()
	res.Traffic = rma.Stats{Gets: sa.Gets + sb.Gets, Values: sa.Values + sb.Values}

	if comm.Rank() == 0 {
		logf("finished after %d iterations (converged=%t)", res.Iterations, res.Converged)
	}

	if opts.Gather {
		global, err := Gather(ctx, comm, newestWin, p, opts.Dims)
		if err != nil {
			return nil, err
		}
		res.Global = global
	}

	if err := winA.Free(ctx); err != nil {
		return nil, err
	}
	if err := winB.Free(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// newIterate allocates a block with boundary values in every ghost cell
// and the initial guess inside. Ghost cells facing a neighbour are
// overwritten by the first exchange.
func newIterate(bounds grid.Bounds, p Problem) (*grid.Grid, error) {
	g, err := grid.New(bounds, 1)
	if err != nil {
		return nil, err
	}
	g.Fill(p.Boundary)
	g.FillInterior(p.Initial)
	return g, nil
}

func exchange(ctx context.Context, ex halo.Exchanger, x *grid.Grid, win rma.Window, timeout time.Duration) error {
	if timeout <= 0 {
		return ex.Exchange(ctx, x, win)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := ex.Exchange(ctx, x, win)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return fmt.Errorf("%w after %s: %w", ErrStalled, timeout, err)
	}
	return err
}

// Gather assembles the global solution on rank 0 through one fence epoch
// of column gets from every block, rank 0's own included. Every rank must
// call it; only rank 0 gets a non-nil grid. The returned grid has the
// boundary value in its ghost border.
func Gather(ctx context.Context, comm *rma.Comm, win rma.Window, p Problem, dims [2]int) (*grid.Grid, error) {
	var global *grid.Grid
	if comm.Rank() == 0 {
		g, err := grid.New(grid.Bounds{RowS: 1, RowE: p.NY, ColS: 1, ColE: p.NX}, 1)
		if err != nil {
			return nil, err
		}
		g.Fill(p.Boundary)
		global = g
	}

	if err := win.Fence(ctx, rma.ModeNoPrecede); err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	if global != nil {
		for r := 0; r < comm.Size(); r++ {
			b, _, err := topology.Layout(p.NX, p.NY, dims, r)
			if err != nil {
				return nil, fmt.Errorf("gather: %w", err)
			}
			for i := b.ColS; i <= b.ColE; i++ {
				if err := win.Get(ctx, global, r, i, b.RowS, grid.Contiguous(b.Rows())); err != nil {
					return nil, fmt.Errorf("gather from rank %d: %w", r, err)
				}
			}
		}
	}
	if err := win.Fence(ctx, rma.ModeNoSucceed); err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}
	return global, nil
}

// MaxDeviation returns the largest |g(i, j) - v| over the interior of g.
func MaxDeviation(g *grid.Grid, v float64) float64 {
	var vals []float64
	for _, col := range g.Interior() {
		vals = append(vals, col...)
	}
	want := make([]float64, len(vals))
	floats.AddConst(v, want)
	return floats.Distance(vals, want, math.Inf(1))
}
