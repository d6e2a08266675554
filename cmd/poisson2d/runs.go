package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/poisson2d/internal/db"
)

// runRuns lists stored runs, or shows one run with -id.
func runRuns(_ context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", "poisson2d.db", "SQLite database recording run history")
	limit := fs.Int("limit", 20, "number of runs to list (0 lists all)")
	id := fs.String("id", "", "show one run with its per-rank statistics")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *id != "" {
		return showRun(stdout, store, *id)
	}

	runs, err := store.ListRuns(*limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTRANSPORT\tMODE\tGRID\tDIMS\tITERATIONS\tCONVERGED\tDIFF\tELAPSED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dx%d\t%s\t%d\t%t\t%.3e\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Transport, r.Mode, r.NX, r.NY, r.Dims,
			r.Iterations, r.Converged, r.FinalDiff, r.Elapsed)
	}
	return tw.Flush()
}

func showRun(w io.Writer, store *db.DB, id string) error {
	run, err := store.GetRun(id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no run with id %s", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(w, run)

	stats, err := store.RankStats(id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCOLS\tROWS\tNEIGHBORS\tGETS\tVALUES\tEXCHANGE\tCOMPUTE")
	for _, s := range stats {
		fmt.Fprintf(tw, "%d\t%d-%d\t%d-%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Rank, s.Bounds[0], s.Bounds[1], s.Bounds[2], s.Bounds[3], s.Neighbors,
			s.Gets, s.Values, s.ExchangeTime, s.ComputeTime)
	}
	return tw.Flush()
}
