package halo

import (
	"context"
	"fmt"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// NeighborGroup returns the live neighbours of a block in left, right, up,
// down order, drawn from comm. The same group serves as both the access
// and the exposure group: on a Cartesian grid, rank A reads from B exactly
// when B reads from A.
func NeighborGroup(comm *rma.Group, nbrs topology.Neighbors) (*rma.Group, error) {
	ranks := make([]int, 0, 4)
	for _, d := range []grid.Direction{grid.Left, grid.Right, grid.Up, grid.Down} {
		if nbrs.Live(d) {
			ranks = append(ranks, nbrs.Rank(d))
		}
	}
	g, err := comm.Incl(ranks)
	if err != nil {
		return nil, fmt.Errorf("neighbour group: %w", err)
	}
	return g, nil
}

// ExchangePSCW fills the ghost border of x synchronising only with the
// block's neighbours. The exposure and access groups are built fresh for
// the call and freed before it returns. A rank with no neighbours does no
// synchronisation at all.
func ExchangePSCW(ctx context.Context, x *grid.Grid, b grid.Bounds, nbrs topology.Neighbors, rowType grid.Datatype, win rma.Window, comm *rma.Group) error {
	exposure, err := NeighborGroup(comm, nbrs)
	if err != nil {
		return err
	}
	defer exposure.Free()
	access, err := NeighborGroup(comm, nbrs)
	if err != nil {
		return err
	}
	defer access.Free()

	if access.Size() == 0 {
		return nil
	}

	if err := win.Post(ctx, exposure); err != nil {
		return err
	}
	if err := win.Start(ctx, access); err != nil {
		return err
	}
	if err := getAll(ctx, x, win, Plan(b, nbrs, rowType)); err != nil {
		return err
	}
	if err := win.Complete(ctx); err != nil {
		return err
	}
	return win.Wait(ctx)
}

// PSCW is the neighbour-scoped strategy.
type PSCW struct {
	Layout Layout
}

func (p *PSCW) Mode() Mode { return ModePSCW }

func (p *PSCW) Exchange(ctx context.Context, x *grid.Grid, win rma.Window) error {
	l := p.Layout
	return ExchangePSCW(ctx, x, l.Bounds, l.Neighbors, l.RowType, win, l.Group)
}
