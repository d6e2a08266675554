// Package kernel contains the communication-free parts of one Jacobi
// iteration: the relaxation sweep and the local convergence contribution.
package kernel

import "github.com/banshee-data/poisson2d/internal/grid"

// Spacing returns the grid spacing h for nx global interior points.
func Spacing(nx int) float64 {
	return 1.0 / float64(nx+1)
}

// Diff returns the sum of (a-b)^2 over the cells in bounds. The caller
// reduces it across ranks.
func Diff(a, b *grid.Grid, bounds grid.Bounds) float64 {
	sum := 0.0
	for i := bounds.ColS; i <= bounds.ColE; i++ {
		for j := bounds.RowS; j <= bounds.RowE; j++ {
			d := a.At(i, j) - b.At(i, j)
			sum = sum + d*d
		}
	}
	return sum
}

// Sweep performs one Jacobi relaxation step from a into b over bounds.
//
// nx is the global interior point count, identical on every rank. The ghost
// border of a must already hold neighbour data. Only the cells inside
// bounds are written to b.
func Sweep(a, f, b *grid.Grid, bounds grid.Bounds, nx int) {
	h := Spacing(nx)
	h2 := h * h
	for i := bounds.ColS; i <= bounds.ColE; i++ {
		for j := bounds.RowS; j <= bounds.RowE; j++ {
			b.Set(i, j, 0.25*(a.At(i-1, j)+a.At(i+1, j)+a.At(i, j+1)+a.At(i, j-1)-h2*f.At(i, j)))
		}
	}
}
