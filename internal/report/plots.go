// Package report renders run artifacts: a heatmap of the solution, the
// residual history as a semilog plot and an interactive convergence
// chart.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/poisson2d/internal/grid"
)

// ErrNothingToPlot is returned when no series has a positive residual.
var ErrNothingToPlot = errors.New("no positive residuals to plot")

// Series is the global difference history of one run.
type Series struct {
	Name      string
	Residuals []float64
}

// gridXYZ adapts a grid to plotter.GridXYZ over its full extent,
// ghost cells included.
type gridXYZ struct {
	g   *grid.Grid
	ext grid.Bounds
}

func (a gridXYZ) Dims() (c, r int)   { return a.ext.Cols(), a.ext.Rows() }
func (a gridXYZ) Z(c, r int) float64 { return a.g.At(a.ext.ColS+c, a.ext.RowS+r) }
func (a gridXYZ) X(c int) float64    { return float64(a.ext.ColS + c) }
func (a gridXYZ) Y(r int) float64    { return float64(a.ext.RowS + r) }

// HeatmapPNG writes a PNG heatmap of g, boundary ghosts included.
func HeatmapPNG(w io.Writer, g *grid.Grid, title string) error {
	if g == nil {
		return errors.New("no solution to plot")
	}
	data := gridXYZ{g: g, ext: g.Extent()}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "i"
	p.Y.Label.Text = "j"

	hm := plotter.NewHeatMap(data, palette.Heat(64, 1))
	if hm.Min == hm.Max {
		hm.Min -= 0.5
		hm.Max += 0.5
	}
	p.Add(hm)

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// ResidualPNG writes a semilog plot of every series. Non-positive
// differences cannot be drawn on a log axis and are left out.
func ResidualPNG(w io.Writer, series ...Series) error {
	p := plot.New()
	p.Title.Text = "Global difference per iteration"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Sum of squared differences"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	var args []interface{}
	for _, s := range series {
		pts := make(plotter.XYs, 0, len(s.Residuals))
		for k, d := range s.Residuals {
			if d > 0 {
				pts = append(pts, plotter.XY{X: float64(k + 1), Y: d})
			}
		}
		if len(pts) == 0 {
			continue
		}
		args = append(args, s.Name, pts)
	}
	if len(args) == 0 {
		return ErrNothingToPlot
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return fmt.Errorf("add residual lines: %w", err)
	}
	p.BackgroundColor = color.White

	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render residuals: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
