package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/poisson2d/internal/fsutil"
	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/solver"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// Artifact file names written by WriteAll.
const (
	SolutionPNG     = "solution.png"
	ResidualsPNG    = "residuals.png"
	ConvergencePage = "convergence.html"
	SummaryJSON     = "result.json"
)

// SeriesFromResult names a result's residual history after its exchange
// mode and process grid.
func SeriesFromResult(res *solver.Result) Series {
	return Series{
		Name:      fmt.Sprintf("%s %s", res.Options.Mode, topology.FormatDims(res.Options.Dims)),
		Residuals: res.Residuals,
	}
}

type runSummary struct {
	Mode       string               `json:"mode"`
	Dims       string               `json:"dims"`
	Problem    solver.Problem       `json:"problem"`
	Tolerance  float64              `json:"tolerance"`
	Iterations int                  `json:"iterations"`
	Converged  bool                 `json:"converged"`
	FinalDiff  float64              `json:"final_diff"`
	ElapsedNS  int64                `json:"elapsed_ns"`
	Ranks      []*solver.RankResult `json:"ranks"`
}

func summarise(res *solver.Result) runSummary {
	return runSummary{
		Mode:       string(res.Options.Mode),
		Dims:       topology.FormatDims(res.Options.Dims),
		Problem:    res.Problem,
		Tolerance:  res.Options.Tolerance,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		FinalDiff:  res.FinalDiff(),
		ElapsedNS:  int64(res.Elapsed),
		Ranks:      res.Ranks,
	}
}

func plottable(series []Series) bool {
	for _, s := range series {
		for _, d := range s.Residuals {
			if d > 0 {
				return true
			}
		}
	}
	return false
}

// WriteAll writes the artifacts of one or more runs of the same problem
// into dir and returns the paths written. The heatmap shows the first
// result's solution; the residual plots overlay every result.
func WriteAll(fsys fsutil.FileSystem, dir string, results ...*solver.Result) ([]string, error) {
	if len(results) == 0 {
		return nil, errors.New("no results to report")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	series := make([]Series, len(results))
	for k, res := range results {
		series[k] = SeriesFromResult(res)
	}

	var written []string
	write := func(name string, render func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := fsys.Create(path)
		if err != nil {
			return err
		}
		if err := render(f); err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	first := results[0]
	if first.Solution != nil {
		title := fmt.Sprintf("Solution %dx%d", first.Problem.NX, first.Problem.NY)
		if err := write(SolutionPNG, func(w io.Writer) error { return HeatmapPNG(w, first.Solution, title) }); err != nil {
			return written, err
		}
	}

	if plottable(series) {
		if err := write(ResidualsPNG, func(w io.Writer) error { return ResidualPNG(w, series...) }); err != nil {
			return written, err
		}
	} else {
		monitoring.Logf("[report] skipping %s: %v", ResidualsPNG, ErrNothingToPlot)
	}

	if err := write(ConvergencePage, func(w io.Writer) error { return ConvergenceHTML(w, series...) }); err != nil {
		return written, err
	}

	if err := write(SummaryJSON, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		out := make([]runSummary, len(results))
		for k, res := range results {
			out[k] = summarise(res)
		}
		return enc.Encode(out)
	}); err != nil {
		return written, err
	}
	return written, nil
}
