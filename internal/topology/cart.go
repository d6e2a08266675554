// Package topology lays ranks out on a non-periodic 2D Cartesian process
// grid and decomposes the global interior among them.
//
// Dimension 0 runs along x (columns, left/right neighbours) and dimension 1
// along y (rows, down/up neighbours). Ranks are numbered row-major over the
// coordinates, so rank = cx*dims[1] + cy.
package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/poisson2d/internal/grid"
)

// NoNeighbor marks a side of a block that lies on the domain boundary.
const NoNeighbor = -1

// Neighbors holds the rank on each side of a block, or NoNeighbor.
type Neighbors struct {
	Left  int `json:"left"`
	Right int `json:"right"`
	Down  int `json:"down"`
	Up    int `json:"up"`
}

// None returns a Neighbors value with every side on the boundary.
func None() Neighbors {
	return Neighbors{Left: NoNeighbor, Right: NoNeighbor, Down: NoNeighbor, Up: NoNeighbor}
}

// Rank returns the neighbour in direction d.
func (n Neighbors) Rank(d grid.Direction) int {
	switch d {
	case grid.Left:
		return n.Left
	case grid.Right:
		return n.Right
	case grid.Down:
		return n.Down
	case grid.Up:
		return n.Up
	}
	return NoNeighbor
}

// Live reports whether direction d has a neighbouring rank.
func (n Neighbors) Live(d grid.Direction) bool {
	return n.Rank(d) != NoNeighbor
}

// Count returns the number of live neighbours.
func (n Neighbors) Count() int {
	c := 0
	for _, d := range grid.Directions {
		if n.Live(d) {
			c++
		}
	}
	return c
}

// DimsCreate factors size into a balanced two-dimensional grid, larger
// dimension first.
func DimsCreate(size int) ([2]int, error) {
	if size <= 0 {
		return [2]int{}, fmt.Errorf("process count must be positive, got %d", size)
	}
	best := [2]int{size, 1}
	for p := 1; p*p <= size; p++ {
		if size%p == 0 {
			best = [2]int{size / p, p}
		}
	}
	return best, nil
}

// ParseDims parses a "PxQ" process grid such as "2x2".
func ParseDims(s string) ([2]int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("invalid dims %q: expected PxQ", s)
	}
	var dims [2]int
	for k, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [2]int{}, fmt.Errorf("invalid dims %q: %w", s, err)
		}
		if v <= 0 {
			return [2]int{}, fmt.Errorf("invalid dims %q: dimensions must be positive", s)
		}
		dims[k] = v
	}
	return dims, nil
}

// FormatDims renders dims as "PxQ".
func FormatDims(dims [2]int) string {
	return fmt.Sprintf("%dx%d", dims[0], dims[1])
}

// Cart is one rank's view of the process grid.
type Cart struct {
	Dims [2]int
	Rank int
}

// NewCart validates rank against dims.
func NewCart(dims [2]int, rank int) (Cart, error) {
	if dims[0] <= 0 || dims[1] <= 0 {
		return Cart{}, fmt.Errorf("invalid dims %v", dims)
	}
	if rank < 0 || rank >= dims[0]*dims[1] {
		return Cart{}, fmt.Errorf("rank %d outside %s process grid", rank, FormatDims(dims))
	}
	return Cart{Dims: dims, Rank: rank}, nil
}

// Size returns the number of ranks in the grid.
func (c Cart) Size() int { return c.Dims[0] * c.Dims[1] }

// Coords returns the rank's position in the process grid.
func (c Cart) Coords() (int, int) {
	return c.Rank / c.Dims[1], c.Rank % c.Dims[1]
}

// RankOf returns the rank at (cx, cy), or NoNeighbor off the grid.
func (c Cart) RankOf(cx, cy int) int {
	if cx < 0 || cx >= c.Dims[0] || cy < 0 || cy >= c.Dims[1] {
		return NoNeighbor
	}
	return cx*c.Dims[1] + cy
}

// Shift returns the source and destination ranks for a displacement of
// disp along dim.
func (c Cart) Shift(dim, disp int) (source, dest int) {
	cx, cy := c.Coords()
	if dim == 0 {
		return c.RankOf(cx-disp, cy), c.RankOf(cx+disp, cy)
	}
	return c.RankOf(cx, cy-disp), c.RankOf(cx, cy+disp)
}

// Neighbors returns the four neighbouring ranks.
func (c Cart) Neighbors() Neighbors {
	var n Neighbors
	n.Left, n.Right = c.Shift(0, 1)
	n.Down, n.Up = c.Shift(1, 1)
	return n
}

// Decompose1D splits the points 1..n into parts blocks and returns the
// inclusive range owned by block index. Leftover points go to the lowest
// indices.
func Decompose1D(n, parts, index int) (s, e int) {
	nlocal := n / parts
	deficit := n % parts
	s = index*nlocal + 1
	if index < deficit {
		s += index
		nlocal++
	} else {
		s += deficit
	}
	e = s + nlocal - 1
	if e > n || index == parts-1 {
		e = n
	}
	return s, e
}

// Layout computes the owned bounds and neighbours of rank for an nx by ny
// interior on a dims process grid.
func Layout(nx, ny int, dims [2]int, rank int) (grid.Bounds, Neighbors, error) {
	c, err := NewCart(dims, rank)
	if err != nil {
		return grid.Bounds{}, Neighbors{}, err
	}
	if nx < dims[0] || ny < dims[1] {
		return grid.Bounds{}, Neighbors{}, fmt.Errorf("%dx%d interior cannot be split over %s ranks", nx, ny, FormatDims(dims))
	}
	cx, cy := c.Coords()
	var b grid.Bounds
	b.ColS, b.ColE = Decompose1D(nx, dims[0], cx)
	b.RowS, b.RowE = Decompose1D(ny, dims[1], cy)
	return b, c.Neighbors(), nil
}
