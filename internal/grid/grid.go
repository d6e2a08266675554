// Package grid holds the per-rank storage for the 2D Poisson solver: a
// rectangular buffer that knows its own extents and ghost width and is
// addressed in global coordinates.
//
// Coordinates follow the solver's convention: i indexes columns (the x
// direction) and j indexes rows (the y direction). Cells with the same i are
// contiguous in memory; stepping along i strides by the leading dimension,
// so one logical row of the domain is non-contiguous.
package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bounds is an inclusive rectangle of owned cells in global coordinates.
type Bounds struct {
	RowS int `json:"row_s"`
	RowE int `json:"row_e"`
	ColS int `json:"col_s"`
	ColE int `json:"col_e"`
}

// Cols returns the number of columns (i values) in the bounds.
func (b Bounds) Cols() int { return b.ColE - b.ColS + 1 }

// Rows returns the number of rows (j values) in the bounds.
func (b Bounds) Rows() int { return b.RowE - b.RowS + 1 }

// Contains reports whether (i, j) lies inside the bounds.
func (b Bounds) Contains(i, j int) bool {
	return i >= b.ColS && i <= b.ColE && j >= b.RowS && j <= b.RowE
}

// Expand returns the bounds grown by n cells on every side.
func (b Bounds) Expand(n int) Bounds {
	return Bounds{RowS: b.RowS - n, RowE: b.RowE + n, ColS: b.ColS - n, ColE: b.ColE + n}
}

// Validate checks that the bounds describe a non-empty rectangle.
func (b Bounds) Validate() error {
	if b.ColE < b.ColS {
		return fmt.Errorf("empty column range [%d..%d]", b.ColS, b.ColE)
	}
	if b.RowE < b.RowS {
		return fmt.Errorf("empty row range [%d..%d]", b.RowS, b.RowE)
	}
	return nil
}

func (b Bounds) String() string {
	return fmt.Sprintf("cols[%d..%d] rows[%d..%d]", b.ColS, b.ColE, b.RowS, b.RowE)
}

// Grid is a rank's local array: the owned bounds plus a ghost border.
type Grid struct {
	bounds Bounds
	ghost  int
	extent Bounds
	data   *mat.Dense
}

// New allocates a zeroed grid for the given owned bounds and ghost width.
func New(b Bounds, ghost int) (*Grid, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("grid bounds: %w", err)
	}
	if ghost < 0 {
		return nil, fmt.Errorf("ghost width must be non-negative, got %d", ghost)
	}
	ext := b.Expand(ghost)
	return &Grid{
		bounds: b,
		ghost:  ghost,
		extent: ext,
		data:   mat.NewDense(ext.Cols(), ext.Rows(), nil),
	}, nil
}

// MustNew is New for fixed, known-good bounds. It panics on error.
func MustNew(b Bounds, ghost int) *Grid {
	g, err := New(b, ghost)
	if err != nil {
		panic(err)
	}
	return g
}

// Bounds returns the owned bounds.
func (g *Grid) Bounds() Bounds { return g.bounds }

// Extent returns the addressable bounds, ghost border included.
func (g *Grid) Extent() Bounds { return g.extent }

// Ghost returns the ghost border width.
func (g *Grid) Ghost() int { return g.ghost }

// Stride returns the leading dimension: the memory distance between (i, j)
// and (i+1, j).
func (g *Grid) Stride() int { return g.data.RawMatrix().Stride }

// InRange reports whether (i, j) is addressable in this grid.
func (g *Grid) InRange(i, j int) bool { return g.extent.Contains(i, j) }

func (g *Grid) index(i, j int) (int, int) {
	if !g.extent.Contains(i, j) {
		panic(fmt.Sprintf("grid: index (%d, %d) out of range %s", i, j, g.extent))
	}
	return i - g.extent.ColS, j - g.extent.RowS
}

// At returns the value at global coordinate (i, j).
func (g *Grid) At(i, j int) float64 {
	r, c := g.index(i, j)
	return g.data.At(r, c)
}

// Set stores v at global coordinate (i, j).
func (g *Grid) Set(i, j int, v float64) {
	r, c := g.index(i, j)
	g.data.Set(r, c, v)
}

// column returns the contiguous storage for column i across the full extent.
func (g *Grid) column(i int) []float64 {
	r, _ := g.index(i, g.extent.RowS)
	return g.data.RawRowView(r)
}

// Fill sets every cell, ghost border included.
func (g *Grid) Fill(v float64) {
	for i := g.extent.ColS; i <= g.extent.ColE; i++ {
		col := g.column(i)
		for k := range col {
			col[k] = v
		}
	}
}

// FillInterior sets every owned cell and leaves the ghost border alone.
func (g *Grid) FillInterior(v float64) {
	for i := g.bounds.ColS; i <= g.bounds.ColE; i++ {
		for j := g.bounds.RowS; j <= g.bounds.RowE; j++ {
			g.Set(i, j, v)
		}
	}
}

// FillGhost sets every ghost cell to fn(i, j).
func (g *Grid) FillGhost(fn func(i, j int) float64) {
	for i := g.extent.ColS; i <= g.extent.ColE; i++ {
		for j := g.extent.RowS; j <= g.extent.RowE; j++ {
			if g.bounds.Contains(i, j) {
				continue
			}
			g.Set(i, j, fn(i, j))
		}
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	return &Grid{
		bounds: g.bounds,
		ghost:  g.ghost,
		extent: g.extent,
		data:   mat.DenseCopyOf(g.data),
	}
}

// CopyFrom copies every cell of src into g. Both grids must share extents.
func (g *Grid) CopyFrom(src *Grid) error {
	if src.extent != g.extent {
		return fmt.Errorf("grid extents differ: %s vs %s", src.extent, g.extent)
	}
	g.data.Copy(src.data)
	return nil
}

// Interior returns a copy of the owned cells indexed [i-ColS][j-RowS].
func (g *Grid) Interior() [][]float64 {
	out := make([][]float64, g.bounds.Cols())
	for i := g.bounds.ColS; i <= g.bounds.ColE; i++ {
		row := make([]float64, g.bounds.Rows())
		for j := g.bounds.RowS; j <= g.bounds.RowE; j++ {
			row[j-g.bounds.RowS] = g.At(i, j)
		}
		out[i-g.bounds.ColS] = row
	}
	return out
}

// Mismatch returns the first cell, in column order, where a and b do not
// hold bit-identical values. ok is false when the grids are identical.
// Grids with different extents mismatch at the lower-left extent corner.
func Mismatch(a, b *Grid) (i, j int, ok bool) {
	if a.extent != b.extent {
		return a.extent.ColS, a.extent.RowS, true
	}
	for i := a.extent.ColS; i <= a.extent.ColE; i++ {
		ca, cb := a.column(i), b.column(i)
		for k := range ca {
			if math.Float64bits(ca[k]) != math.Float64bits(cb[k]) {
				return i, a.extent.RowS + k, true
			}
		}
	}
	return 0, 0, false
}
