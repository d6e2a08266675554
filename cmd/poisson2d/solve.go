package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/poisson2d/internal/db"
	"github.com/banshee-data/poisson2d/internal/fsutil"
	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/report"
	"github.com/banshee-data/poisson2d/internal/solver"
	"github.com/banshee-data/poisson2d/internal/timeutil"
)

// outputFlags select where results are kept. Empty values skip that
// output.
type outputFlags struct {
	outDir string
	dbPath string
}

func addOutputFlags(fs *flag.FlagSet) *outputFlags {
	of := &outputFlags{}
	fs.StringVar(&of.outDir, "out", "", "directory for plots and the JSON summary")
	fs.StringVar(&of.dbPath, "db", "", "SQLite database recording run history")
	return of
}

// keep writes reports for results and records each of them.
func (of *outputFlags) keep(stdout io.Writer, fsys fsutil.FileSystem, transport string, results ...*solver.Result) error {
	if of.outDir != "" {
		written, err := report.WriteAll(fsys, of.outDir, results...)
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
	}
	if of.dbPath != "" {
		store, err := db.Open(of.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, res := range results {
			id, err := store.RecordResult(res, transport)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "recorded run %s\n", id)
		}
	}
	return nil
}

func printResult(w io.Writer, res *solver.Result) {
	fmt.Fprintf(w, "mode=%s dims=%dx%d grid=%dx%d iterations=%d converged=%t diff=%.6e elapsed=%s exchange=%s compute=%s\n",
		res.Options.Mode, res.Options.Dims[0], res.Options.Dims[1], res.Problem.NX, res.Problem.NY,
		res.Iterations, res.Converged, res.FinalDiff(), res.Elapsed, res.ExchangeTime(), res.ComputeTime())
}

func runSolve(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	sf := addSolverFlags(fs)
	of := addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := sf.load(fs)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(timeutil.RealClock{})
	if err != nil {
		return err
	}

	res, err := solver.RunLocal(ctx, cfg.Problem(), opts)
	if err != nil {
		return err
	}
	printResult(stdout, res)
	if !res.Converged {
		monitoring.Logf("did not converge within %d iterations", opts.MaxIterations)
	}
	return of.keep(stdout, fsutil.OSFileSystem{}, "local", res)
}

// runCompare solves the same problem with both exchange modes. The modes
// move the same values, so the solutions must be bit-identical.
func runCompare(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	sf := addSolverFlags(fs)
	of := addOutputFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := sf.load(fs)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(timeutil.RealClock{})
	if err != nil {
		return err
	}

	results := make([]*solver.Result, 0, len(halo.Modes))
	for _, mode := range halo.Modes {
		opts.Mode = mode
		res, err := solver.RunLocal(ctx, cfg.Problem(), opts)
		if err != nil {
			return fmt.Errorf("%s: %w", mode, err)
		}
		printResult(stdout, res)
		results = append(results, res)
	}

	base := results[0]
	for _, other := range results[1:] {
		if other.Iterations != base.Iterations {
			return fmt.Errorf("%s took %d iterations, %s took %d",
				other.Options.Mode, other.Iterations, base.Options.Mode, base.Iterations)
		}
		if i, j, ok := grid.Mismatch(base.Solution, other.Solution); ok {
			return fmt.Errorf("%s and %s solutions differ at (%d, %d): %v vs %v",
				base.Options.Mode, other.Options.Mode, i, j, base.Solution.At(i, j), other.Solution.At(i, j))
		}
	}
	fmt.Fprintf(stdout, "solutions identical across %d modes\n", len(results))
	return of.keep(stdout, fsutil.OSFileSystem{}, "local", results...)
}
