// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/monitoring"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MuteLogs silences the monitoring logger for the duration of the test.
func MuteLogs(t testing.TB) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// Context returns a context cancelled after d or when the test ends, so a
// protocol bug fails the test instead of hanging it.
func Context(t testing.TB, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}

// GridDiff returns a human-readable diff of the full extents of two grids,
// empty when they are bit-identical.
func GridDiff(want, got *grid.Grid) string {
	if d := cmp.Diff(want.Extent(), got.Extent()); d != "" {
		return "extent mismatch (-want +got):\n" + d
	}
	return cmp.Diff(extentValues(want), extentValues(got))
}

// AssertGridsEqual fails the test unless want and got hold bit-identical
// values over identical extents.
func AssertGridsEqual(t testing.TB, want, got *grid.Grid) {
	t.Helper()
	if d := GridDiff(want, got); d != "" {
		t.Errorf("grids differ (-want +got):\n%s", d)
	}
}

func extentValues(g *grid.Grid) [][]float64 {
	e := g.Extent()
	out := make([][]float64, 0, e.Cols())
	for i := e.ColS; i <= e.ColE; i++ {
		col := make([]float64, 0, e.Rows())
		for j := e.RowS; j <= e.RowE; j++ {
			col = append(col, g.At(i, j))
		}
		out = append(out, col)
	}
	return out
}
