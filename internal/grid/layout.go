package grid

import "fmt"

// Datatype selects Count cells starting at an origin cell and stepping by
// (DI, DJ) for each further cell. It plays the role of a derived datatype:
// the same descriptor is used on both sides of a transfer.
type Datatype struct {
	Count int
	DI    int
	DJ    int
}

// Contiguous selects n cells of one column (stepping along j). These are
// adjacent in memory.
func Contiguous(n int) Datatype {
	return Datatype{Count: n, DJ: 1}
}

// RowType selects one logical row spanning the columns of b (stepping
// along i). Consecutive cells are one leading dimension apart in memory.
func RowType(b Bounds) Datatype {
	return Datatype{Count: b.Cols(), DI: 1}
}

// IsContiguous reports whether the selected cells are adjacent in memory.
func (dt Datatype) IsContiguous() bool {
	return dt.DI == 0 && dt.DJ == 1
}

// Validate checks the descriptor selects at least one cell along a single
// axis.
func (dt Datatype) Validate() error {
	if dt.Count <= 0 {
		return fmt.Errorf("datatype count must be positive, got %d", dt.Count)
	}
	if (dt.DI == 0) == (dt.DJ == 0) {
		return fmt.Errorf("datatype must step along exactly one axis, got (%d, %d)", dt.DI, dt.DJ)
	}
	return nil
}

// Last returns the coordinate of the final cell selected from (i, j).
func (dt Datatype) Last(i, j int) (int, int) {
	return i + (dt.Count-1)*dt.DI, j + (dt.Count-1)*dt.DJ
}

func (dt Datatype) String() string {
	if dt.IsContiguous() {
		return fmt.Sprintf("contiguous(%d)", dt.Count)
	}
	return fmt.Sprintf("vector(%d, step=%d,%d)", dt.Count, dt.DI, dt.DJ)
}

func (g *Grid) checkSpan(i, j int, dt Datatype) error {
	if err := dt.Validate(); err != nil {
		return err
	}
	li, lj := dt.Last(i, j)
	if !g.extent.Contains(i, j) || !g.extent.Contains(li, lj) {
		return fmt.Errorf("span (%d, %d)..(%d, %d) outside %s", i, j, li, lj, g.extent)
	}
	return nil
}

// Pack copies the cells dt selects from (i, j) into a new slice.
func (g *Grid) Pack(i, j int, dt Datatype) ([]float64, error) {
	if err := g.checkSpan(i, j, dt); err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	out := make([]float64, dt.Count)
	if dt.IsContiguous() {
		_, c := g.index(i, j)
		copy(out, g.column(i)[c:c+dt.Count])
		return out, nil
	}
	for k := range out {
		out[k] = g.At(i+k*dt.DI, j+k*dt.DJ)
	}
	return out, nil
}

// Unpack writes values into the cells dt selects from (i, j).
func (g *Grid) Unpack(i, j int, dt Datatype, values []float64) error {
	if len(values) != dt.Count {
		return fmt.Errorf("unpack: got %d values for %s", len(values), dt)
	}
	if err := g.checkSpan(i, j, dt); err != nil {
		return fmt.Errorf("unpack: %w", err)
	}
	if dt.IsContiguous() {
		_, c := g.index(i, j)
		copy(g.column(i)[c:c+dt.Count], values)
		return nil
	}
	for k, v := range values {
		g.Set(i+k*dt.DI, j+k*dt.DJ, v)
	}
	return nil
}

// Direction names one of the four neighbours of a block.
type Direction int

const (
	Left Direction = iota
	Right
	Down
	Up
)

// Directions lists every direction in transfer order.
var Directions = [4]Direction{Left, Right, Down, Up}

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}
