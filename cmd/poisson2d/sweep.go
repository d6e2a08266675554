package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/poisson2d/internal/sweep"
	"github.com/banshee-data/poisson2d/internal/timeutil"
)

func runSweep(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	sf := addSolverFlags(fs)
	sizes := fs.String("sizes", "16,32,64", "square grid sizes, comma-separated or min:max:step")
	dimsList := fs.String("dims-list", "1x1,2x1,2x2", "comma-separated process grids")
	modes := fs.String("modes", "fence,pscw", "comma-separated exchange modes")
	repeats := fs.Int("repeats", 3, "repeats per combination")
	outDir := fs.String("out", ".", "directory for sweep_summary.csv and sweep_raw.csv")
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
	opts.LogEvery = 0

	ns, err := sweep.ParseSizes(*sizes)
	if err != nil {
		return fmt.Errorf("-sizes: %w", err)
	}
	dims, err := sweep.ParseDimsList(*dimsList)
	if err != nil {
		return fmt.Errorf("-dims-list: %w", err)
	}
	ms, err := sweep.ParseModes(*modes)
	if err != nil {
		return fmt.Errorf("-modes: %w", err)
	}
	combos := sweep.Combos(ns, dims, ms)
	if len(combos) == 0 {
		return errors.New("no combination fits: every size is smaller than every process grid")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	summaryFile, err := os.Create(filepath.Join(*outDir, "sweep_summary.csv"))
	if err != nil {
		return err
	}
	defer summaryFile.Close()
	rawFile, err := os.Create(filepath.Join(*outDir, "sweep_raw.csv"))
	if err != nil {
		return err
	}
	defer rawFile.Close()

	w := sweep.NewCSVWriter(summaryFile, rawFile)
	if err := w.WriteHeaders(); err != nil {
		return err
	}

	var writeErr error
	results, err := sweep.Run(ctx, sweep.Config{
		Base:    cfg.Problem(),
		Options: opts,
		Repeats: *repeats,
		OnSample: func(c sweep.Combo, s sweep.Sample) {
			if err := w.WriteRawRow(c, s); err != nil && writeErr == nil {
				writeErr = err
			}
		},
	}, combos)
	for _, cr := range results {
		if len(cr.Samples) == 0 {
			continue
		}
		sum := sweep.Summarise(cr)
		if err := w.WriteSummary(sum); err != nil && writeErr == nil {
			writeErr = err
		}
		printSummary(stdout, sum)
	}
	if err := w.Flush(); err != nil && writeErr == nil {
		writeErr = err
	}
	return errors.Join(err, writeErr)
}

func printSummary(w io.Writer, s sweep.Summary) {
	fmt.Fprintf(w, "%-28s samples=%d iterations=%.0f exchange=%.6fs±%.6f compute=%.6fs±%.6f share=%.1f%%\n",
		s.Combo, s.Samples, s.Iterations, s.ExchangeMean, s.ExchangeStddev, s.ComputeMean, s.ComputeStddev, 100*s.ExchangeShare)
}
