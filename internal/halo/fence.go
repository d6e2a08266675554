package halo

import (
	"context"
	"fmt"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// ExchangeFence fills the ghost border of x inside one collective epoch.
//
// Every rank of the communicator must call it the same number of times,
// including ranks with no neighbours: both fences synchronise with all
// ranks, not just neighbours. When it returns, every get issued by any rank
// in this epoch has completed.
func ExchangeFence(ctx context.Context, x *grid.Grid, b grid.Bounds, nbrs topology.Neighbors, rowType grid.Datatype, win rma.Window) error {
	if err := win.Fence(ctx, rma.ModeNoPrecede); err != nil {
		return fmt.Errorf("fence open: %w", err)
	}
	if err := getAll(ctx, x, win, Plan(b, nbrs, rowType)); err != nil {
		return err
	}
	if err := win.Fence(ctx, rma.ModeNoSucceed); err != nil {
		return fmt.Errorf("fence close: %w", err)
	}
	return nil
}

// Fence is the collective-epoch strategy.
type Fence struct {
	Layout Layout
}

func (f *Fence) Mode() Mode { return ModeFence }

func (f *Fence) Exchange(ctx context.Context, x *grid.Grid, win rma.Window) error {
	return ExchangeFence(ctx, x, f.Layout.Bounds, f.Layout.Neighbors, f.Layout.RowType, win)
}
