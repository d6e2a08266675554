// Package halo fills a rank's ghost border from its neighbours with
// one-sided gets. Two synchronisation strategies are provided and kept
// deliberately separate: Fence synchronises every rank collectively,
// PSCW synchronises only with the ranks a block actually reads from.
package halo

import (
	"context"
	"fmt"
	"strings"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// Mode selects an exchange strategy.
type Mode string

const (
	ModeFence Mode = "fence"
	ModePSCW  Mode = "pscw"
)

// Modes lists the supported strategies.
var Modes = []Mode{ModeFence, ModePSCW}

// ParseMode parses a strategy name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFence, ModePSCW:
		return m, nil
	}
	return "", fmt.Errorf("unknown exchange mode %q (want fence or pscw)", s)
}

// Transfer is one ghost-border fill: Type cells at (I, J) pulled from
// Neighbor into the same cells locally.
type Transfer struct {
	Dir      grid.Direction
	Neighbor int
	I        int
	J        int
	Type     grid.Datatype
}

// Plan returns the transfers for every live neighbour in left, right,
// down, up order. Left and right move one contiguous column; down and up
// move one row described by rowType.
func Plan(b grid.Bounds, nbrs topology.Neighbors, rowType grid.Datatype) []Transfer {
	out := make([]Transfer, 0, 4)
	for _, d := range grid.Directions {
		if !nbrs.Live(d) {
			continue
		}
		t := Transfer{Dir: d, Neighbor: nbrs.Rank(d)}
		switch d {
		case grid.Left:
			t.I, t.J, t.Type = b.ColS-1, b.RowS, grid.Contiguous(b.Rows())
		case grid.Right:
			t.I, t.J, t.Type = b.ColE+1, b.RowS, grid.Contiguous(b.Rows())
		case grid.Down:
			t.I, t.J, t.Type = b.ColS, b.RowS-1, rowType
		case grid.Up:
			t.I, t.J, t.Type = b.ColS, b.RowE+1, rowType
		}
		out = append(out, t)
	}
	return out
}

func getAll(ctx context.Context, x *grid.Grid, win rma.Window, plan []Transfer) error {
	for _, t := range plan {
		if err := win.Get(ctx, x, t.Neighbor, t.I, t.J, t.Type); err != nil {
			return fmt.Errorf("%s ghost from rank %d: %w", t.Dir, t.Neighbor, err)
		}
	}
	return nil
}

// Layout is what a strategy needs to know about its rank's block.
type Layout struct {
	Bounds    grid.Bounds
	Neighbors topology.Neighbors
	RowType   grid.Datatype
	// Group is the communicator group PSCW groups are drawn from.
	Group *rma.Group
}

// Exchanger fills the ghost border of x, which win exposes.
type Exchanger interface {
	Exchange(ctx context.Context, x *grid.Grid, win rma.Window) error
	Mode() Mode
}

// New returns the strategy for mode.
func New(mode Mode, l Layout) (Exchanger, error) {
	switch mode {
	case ModeFence:
		return &Fence{Layout: l}, nil
	case ModePSCW:
		if l.Group == nil {
			return nil, fmt.Errorf("pscw exchange needs a communicator group")
		}
		return &PSCW{Layout: l}, nil
	}
	return nil, fmt.Errorf("unknown exchange mode %q", mode)
}
