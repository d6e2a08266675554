// Command poisson2d solves the 2D Poisson equation with a Jacobi iteration
// over a Cartesian grid of ranks that exchange ghost cells through
// one-sided windows.
//
// Usage:
//
//	poisson2d solve   [flags]   solve with every rank in this process
//	poisson2d compare [flags]   solve with fence and pscw and compare
//	poisson2d rank    [flags]   run one rank of a multi-process world
//	poisson2d sweep   [flags]   time the exchange modes over sizes and grids
//	poisson2d runs    [flags]   list stored runs
//	poisson2d version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/banshee-data/poisson2d/internal/version"
)

type command struct {
	summary string
	run     func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = map[string]command{
	"solve":   {"solve with every rank in this process", runSolve},
	"compare": {"solve with fence and pscw and check the results agree", runCompare},
	"rank":    {"run one rank of a multi-process world over gRPC", runRank},
	"sweep":   {"time the exchange modes across grid sizes and process grids", runSweep},
	"runs":    {"list stored runs", runRuns},
	"version": {"print version information", runVersion},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if err := cmd.run(ctx, args[1:], stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "poisson2d %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: poisson2d <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

func runVersion(_ context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "poisson2d %s\n", version.String())
	return nil
}
