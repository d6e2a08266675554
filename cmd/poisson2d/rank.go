package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/banshee-data/poisson2d/internal/fsutil"
	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/rma/grpcnet"
	"github.com/banshee-data/poisson2d/internal/solver"
	"github.com/banshee-data/poisson2d/internal/sweep"
	"github.com/banshee-data/poisson2d/internal/timeutil"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// runRank runs one rank of a world whose ranks are separate processes.
// Every process gets the same -peers list and its own -rank; rank 0
// gathers the solution and writes the outputs.
func runRank(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	sf := addSolverFlags(fs)
	of := addOutputFlags(fs)
	rank := fs.Int("rank", -1, "this process's rank")
	peers := fs.String("peers", "", "comma-separated host:port of every rank, in rank order")
	listen := fs.String("listen", "", "listen address (default: this rank's entry in -peers)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addrs := sweep.ParseCSVStrings(*peers)
	if len(addrs) == 0 {
		return errors.New("-peers is required")
	}
	if *rank < 0 || *rank >= len(addrs) {
		return fmt.Errorf("-rank must be in [0, %d), got %d", len(addrs), *rank)
	}
	if *listen == "" {
		*listen = addrs[*rank]
	}

	cfg, err := sf.load(fs)
	if err != nil {
		return err
	}
	opts, err := cfg.Options(timeutil.RealClock{})
	if err != nil {
		return err
	}
	if opts.Dims[0]*opts.Dims[1] != len(addrs) {
		if isSet(fs, "dims") {
			return fmt.Errorf("-dims %s does not match %d peers", topology.FormatDims(opts.Dims), len(addrs))
		}
		if opts.Dims, err = topology.DimsCreate(len(addrs)); err != nil {
			return err
		}
	}
	opts.Gather = true

	node, err := grpcnet.NewNode(*rank, addrs)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *listen, err)
	}
	node.Serve(lis)
	defer node.Close()

	if err := node.Connect(ctx); err != nil {
		return err
	}
	monitoring.RankLogf(*rank)("dialled %d peers, process grid %s", len(addrs)-1, topology.FormatDims(opts.Dims))

	start := time.Now()
	rr, err := solver.RunRank(ctx, node.Comm(), cfg.Problem(), opts)
	if err != nil {
		return err
	}
	// No rank may stop serving while a peer still needs it.
	if err := node.Comm().Barrier(ctx); err != nil {
		return fmt.Errorf("final barrier: %w", err)
	}

	res := &solver.Result{
		Problem:    cfg.Problem(),
		Options:    opts,
		Solution:   rr.Global,
		Iterations: rr.Iterations,
		Converged:  rr.Converged,
		Residuals:  rr.Residuals,
		Ranks:      []*solver.RankResult{rr},
		Elapsed:    time.Since(start),
	}
	fmt.Fprintf(stdout, "rank %d: bounds %s neighbors %d gets %d exchange %s compute %s\n",
		rr.Rank, rr.Bounds, rr.Neighbors.Count(), rr.Traffic.Gets, rr.ExchangeTime, rr.ComputeTime)
	if *rank != 0 {
		return nil
	}
	printResult(stdout, res)
	return of.keep(stdout, fsutil.OSFileSystem{}, "grpc", res)
}
