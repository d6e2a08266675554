package sweep

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/solver"
)

// Runner solves one problem. solver.RunLocal is the usual choice.
type Runner func(ctx context.Context, p solver.Problem, opts solver.Options) (*solver.Result, error)

// Sample holds the metrics collected from a single repeat of a combo.
type Sample struct {
	Repeat       int
	Iterations   int
	Converged    bool
	FinalDiff    float64
	ExchangeTime time.Duration
	ComputeTime  time.Duration
	Elapsed      time.Duration
	Timestamp    time.Time
}

// ComboResult is every sample of one combo.
type ComboResult struct {
	Combo   Combo
	Samples []Sample
}

// Config holds what every combo of a sweep shares.
type Config struct {
	// Base supplies the boundary, right-hand side and initial values; its
	// size is replaced by each combo's.
	Base solver.Problem
	// Options supplies tolerance and iteration cap; mode and dims come
	// from each combo.
	Options solver.Options
	Repeats int
	Runner  Runner
	// OnSample, if set, is called after every sample.
	OnSample func(Combo, Sample)
}

// Run executes every combo Repeats times. It stops at the first failing
// run; results gathered so far are returned with the error.
func Run(ctx context.Context, cfg Config, combos []Combo) ([]ComboResult, error) {
	if cfg.Repeats < 1 {
		return nil, fmt.Errorf("repeats must be positive, got %d", cfg.Repeats)
	}
	runner := cfg.Runner
	if runner == nil {
		runner = solver.RunLocal
	}

	results := make([]ComboResult, 0, len(combos))
	for ci, c := range combos {
		p := cfg.Base
		p.NX, p.NY = c.N, c.N
		opts := cfg.Options
		opts.Mode, opts.Dims = c.Mode, c.Dims

		monitoring.Logf("[sweep] combo %d/%d: %s", ci+1, len(combos), c)
		cr := ComboResult{Combo: c}
		for rep := 0; rep < cfg.Repeats; rep++ {
			if err := ctx.Err(); err != nil {
				return append(results, cr), err
			}
			res, err := runner(ctx, p, opts)
			if err != nil {
				return append(results, cr), fmt.Errorf("%s repeat %d: %w", c, rep, err)
			}
			s := Sample{
				Repeat:       rep,
				Iterations:   res.Iterations,
				Converged:    res.Converged,
				FinalDiff:    res.FinalDiff(),
				ExchangeTime: res.ExchangeTime(),
				ComputeTime:  res.ComputeTime(),
				Elapsed:      res.Elapsed,
				Timestamp:    time.Now(),
			}
			cr.Samples = append(cr.Samples, s)
			if cfg.OnSample != nil {
				cfg.OnSample(c, s)
			}
		}
		results = append(results, cr)
	}
	return results, nil
}

// MeanStddev calculates the mean and sample standard deviation of a slice.
// Returns (0, 0) for empty slices and a zero deviation for one value.
func MeanStddev(xs []float64) (mean float64, stddev float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// Summary is the timing statistics of one combo, in seconds.
type Summary struct {
	Combo          Combo
	Samples        int
	Iterations     float64
	ExchangeMean   float64
	ExchangeStddev float64
	ComputeMean    float64
	ComputeStddev  float64
	ElapsedMean    float64
	ElapsedStddev  float64
	// ExchangeShare is the mean fraction of exchange plus compute time
	// spent exchanging.
	ExchangeShare float64
}

// Summarise computes the statistics of one combo's samples.
func Summarise(cr ComboResult) Summary {
	n := len(cr.Samples)
	iters := make([]float64, n)
	exch := make([]float64, n)
	comp := make([]float64, n)
	elapsed := make([]float64, n)
	shares := make([]float64, 0, n)
	for k, s := range cr.Samples {
		iters[k] = float64(s.Iterations)
		exch[k] = s.ExchangeTime.Seconds()
		comp[k] = s.ComputeTime.Seconds()
		elapsed[k] = s.Elapsed.Seconds()
		if total := exch[k] + comp[k]; total > 0 {
			shares = append(shares, exch[k]/total)
		}
	}
	sum := Summary{Combo: cr.Combo, Samples: n}
	sum.Iterations, _ = MeanStddev(iters)
	sum.ExchangeMean, sum.ExchangeStddev = MeanStddev(exch)
	sum.ComputeMean, sum.ComputeStddev = MeanStddev(comp)
	sum.ElapsedMean, sum.ElapsedStddev = MeanStddev(elapsed)
	sum.ExchangeShare, _ = MeanStddev(shares)
	return sum
}
