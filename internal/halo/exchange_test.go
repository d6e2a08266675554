package halo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// recordingWindow logs the calls a strategy makes.
type recordingWindow struct {
	calls []string
	fail  string
}

func (w *recordingWindow) record(s string) error {
	w.calls = append(w.calls, s)
	if s == w.fail {
		return errors.New("injected")
	}
	return nil
}

func (w *recordingWindow) Fence(_ context.Context, a rma.Assert) error {
	return w.record(fmt.Sprintf("fence(%d)", a))
}

func (w *recordingWindow) Post(_ context.Context, g *rma.Group) error {
	return w.record(fmt.Sprintf("post%v", g.Ranks()))
}

func (w *recordingWindow) Start(_ context.Context, g *rma.Group) error {
	return w.record(fmt.Sprintf("start%v", g.Ranks()))
}

func (w *recordingWindow) Complete(context.Context) error { return w.record("complete") }

func (w *recordingWindow) Wait(context.Context) error { return w.record("wait") }

func (w *recordingWindow) Get(_ context.Context, _ *grid.Grid, target, i, j int, dt grid.Datatype) error {
	return w.record(fmt.Sprintf("get(%d,%d,%d,%d)", target, i, j, dt.Count))
}

func worldGroup(t *testing.T, size int) *rma.Group {
	t.Helper()
	ranks := make([]int, size)
	for i := range ranks {
		ranks[i] = i
	}
	g, err := rma.NewGroup(ranks...)
	require.NoError(t, err)
	return g
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"fence", ModeFence, false},
		{" PSCW ", ModePSCW, false},
		{"lock", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlan(t *testing.T) {
	b := grid.Bounds{RowS: 5, RowE: 8, ColS: 1, ColE: 3}
	rowType := grid.RowType(b)

	t.Run("all sides", func(t *testing.T) {
		nbrs := topology.Neighbors{Left: 4, Right: 5, Down: 6, Up: 7}
		got := Plan(b, nbrs, rowType)
		want := []Transfer{
			{Dir: grid.Left, Neighbor: 4, I: 0, J: 5, Type: grid.Contiguous(4)},
			{Dir: grid.Right, Neighbor: 5, I: 4, J: 5, Type: grid.Contiguous(4)},
			{Dir: grid.Down, Neighbor: 6, I: 1, J: 4, Type: rowType},
			{Dir: grid.Up, Neighbor: 7, I: 1, J: 9, Type: rowType},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Plan mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("boundary sides skipped", func(t *testing.T) {
		nbrs := topology.None()
		nbrs.Up = 2
		got := Plan(b, nbrs, rowType)
		require.Len(t, got, 1)
		assert.Equal(t, grid.Up, got[0].Dir)
	})

	t.Run("isolated", func(t *testing.T) {
		assert.Empty(t, Plan(b, topology.None(), rowType))
	})
}

func TestNeighborGroupOrder(t *testing.T) {
	nbrs := topology.Neighbors{Left: 1, Right: 2, Down: 3, Up: 4}
	g, err := NeighborGroup(worldGroup(t, 5), nbrs)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4, 3}, g.Ranks())
}

func TestExchangeFence_CallSequence(t *testing.T) {
	b := grid.Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 2}
	x := grid.MustNew(b, 1)
	nbrs := topology.Neighbors{Left: topology.NoNeighbor, Right: 2, Down: topology.NoNeighbor, Up: 1}

	w := &recordingWindow{}
	require.NoError(t, ExchangeFence(context.Background(), x, b, nbrs, grid.RowType(b), w))
	want := []string{"fence(1)", "get(2,3,1,2)", "get(1,1,3,2)", "fence(2)"}
	assert.Equal(t, want, w.calls)

	// Ranks without neighbours still take part in both fences.
	w = &recordingWindow{}
	require.NoError(t, ExchangeFence(context.Background(), x, b, topology.None(), grid.RowType(b), w))
	assert.Equal(t, []string{"fence(1)", "fence(2)"}, w.calls)
}

func TestExchangePSCW_CallSequence(t *testing.T) {
	b := grid.Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 2}
	x := grid.MustNew(b, 1)
	nbrs := topology.Neighbors{Left: topology.NoNeighbor, Right: 2, Down: topology.NoNeighbor, Up: 1}

	w := &recordingWindow{}
	require.NoError(t, ExchangePSCW(context.Background(), x, b, nbrs, grid.RowType(b), w, worldGroup(t, 4)))
	want := []string{"post[2 1]", "start[2 1]", "get(2,3,1,2)", "get(1,1,3,2)", "complete", "wait"}
	assert.Equal(t, want, w.calls)

	w = &recordingWindow{}
	require.NoError(t, ExchangePSCW(context.Background(), x, b, topology.None(), grid.RowType(b), w, worldGroup(t, 1)))
	assert.Empty(t, w.calls)
}

func TestExchange_PropagatesErrors(t *testing.T) {
	b := grid.Bounds{RowS: 1, RowE: 2, ColS: 1, ColE: 2}
	x := grid.MustNew(b, 1)
	nbrs := topology.Neighbors{Left: topology.NoNeighbor, Right: 1, Down: topology.NoNeighbor, Up: topology.NoNeighbor}

	w := &recordingWindow{fail: "get(1,3,1,2)"}
	err := ExchangeFence(context.Background(), x, b, nbrs, grid.RowType(b), w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "right ghost from rank 1")
	assert.NotContains(t, w.calls, "fence(2)")

	w = &recordingWindow{fail: "start[1]"}
	err = ExchangePSCW(context.Background(), x, b, nbrs, grid.RowType(b), w, worldGroup(t, 2))
	require.Error(t, err)
	assert.Equal(t, []string{"post[1]", "start[1]"}, w.calls)
}

func TestNew(t *testing.T) {
	l := Layout{Bounds: grid.Bounds{RowS: 1, RowE: 1, ColS: 1, ColE: 1}, Neighbors: topology.None()}

	ex, err := New(ModeFence, l)
	require.NoError(t, err)
	assert.Equal(t, ModeFence, ex.Mode())

	_, err = New(ModePSCW, l)
	assert.Error(t, err, "pscw needs a group")

	l.Group = worldGroup(t, 1)
	ex, err = New(ModePSCW, l)
	require.NoError(t, err)
	assert.Equal(t, ModePSCW, ex.Mode())

	_, err = New(Mode("lock"), l)
	assert.Error(t, err)
}

// exchangeOnce runs a single exchange on every rank of a dims process grid
// over an nx by ny interior whose blocks are filled by fill.
func exchangeOnce(t *testing.T, mode Mode, nx, ny int, dims [2]int, fill func(rank int) float64) []*grid.Grid {
	t.Helper()
	size := dims[0] * dims[1]
	comms, err := rma.NewLocalWorld(size)
	require.NoError(t, err)

	grids := make([]*grid.Grid, size)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		c := c
		g.Go(func() error {
			b, nbrs, err := topology.Layout(nx, ny, dims, c.Rank())
			if err != nil {
				return err
			}
			x := grid.MustNew(b, 1)
			x.FillInterior(fill(c.Rank()))
			grids[c.Rank()] = x

			win, err := c.NewWindow(gctx, x)
			if err != nil {
				return err
			}
			ex, err := New(mode, Layout{Bounds: b, Neighbors: nbrs, RowType: grid.RowType(b), Group: c.WorldGroup()})
			if err != nil {
				return err
			}
			if err := ex.Exchange(gctx, x, win); err != nil {
				return err
			}
			return win.Free(gctx)
		})
	}
	require.NoError(t, g.Wait())
	return grids
}

func TestExchange_FillsGhostsFromNeighbours(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			grids := exchangeOnce(t, mode, 4, 4, [2]int{2, 2}, func(r int) float64 { return float64(10 * (r + 1)) })

			// Rank 0 owns cols 1..2, rows 1..2; right is rank 2, up is rank 1.
			x := grids[0]
			for j := 1; j <= 2; j++ {
				assert.Equal(t, 30.0, x.At(3, j), "right ghost (3,%d)", j)
				assert.Equal(t, 0.0, x.At(0, j), "left boundary (0,%d)", j)
			}
			for i := 1; i <= 2; i++ {
				assert.Equal(t, 20.0, x.At(i, 3), "up ghost (%d,3)", i)
				assert.Equal(t, 0.0, x.At(i, 0), "down boundary (%d,0)", i)
			}
			// Corners are never exchanged.
			assert.Equal(t, 0.0, x.At(3, 3))

			// Rank 3 owns cols 3..4, rows 3..4; left is rank 1, down is rank 2.
			x = grids[3]
			for j := 3; j <= 4; j++ {
				assert.Equal(t, 20.0, x.At(2, j))
			}
			for i := 3; i <= 4; i++ {
				assert.Equal(t, 30.0, x.At(i, 2))
			}
			// Interiors are untouched.
			assert.Equal(t, 40.0, x.At(3, 3))
		})
	}
}

func TestExchange_MarkerReachesOnlyNeighbourGhosts(t *testing.T) {
	for _, mode := range Modes {
		t.Run(string(mode), func(t *testing.T) {
			grids := exchangeOnce(t, mode, 6, 5, [2]int{3, 1}, func(int) float64 { return 7.0 })
			for r, x := range grids {
				b := x.Bounds()
				_, nbrs, err := topology.Layout(6, 5, [2]int{3, 1}, r)
				require.NoError(t, err)
				for j := b.RowS; j <= b.RowE; j++ {
					assert.Equal(t, markerWant(nbrs.Live(grid.Left)), x.At(b.ColS-1, j), "rank %d left", r)
					assert.Equal(t, markerWant(nbrs.Live(grid.Right)), x.At(b.ColE+1, j), "rank %d right", r)
				}
				for i := b.ColS; i <= b.ColE; i++ {
					assert.Equal(t, 0.0, x.At(i, b.RowS-1), "rank %d down", r)
					assert.Equal(t, 0.0, x.At(i, b.RowE+1), "rank %d up", r)
				}
			}
		})
	}
}

func markerWant(live bool) float64 {
	if live {
		return 7.0
	}
	return 0.0
}

func TestExchange_StrategiesAgree(t *testing.T) {
	fill := func(r int) float64 { return 1.5 + float64(r)*0.25 }
	fence := exchangeOnce(t, ModeFence, 9, 7, [2]int{3, 2}, fill)
	pscw := exchangeOnce(t, ModePSCW, 9, 7, [2]int{3, 2}, fill)
	for r := range fence {
		e := fence[r].Extent()
		for i := e.ColS; i <= e.ColE; i++ {
			for j := e.RowS; j <= e.RowE; j++ {
				if fence[r].At(i, j) != pscw[r].At(i, j) {
					t.Fatalf("rank %d (%d,%d): fence %v, pscw %v", r, i, j, fence[r].At(i, j), pscw[r].At(i, j))
				}
			}
		}
	}
}
