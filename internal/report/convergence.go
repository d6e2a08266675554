package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ConvergenceHTML writes an interactive line chart of every series on a
// logarithmic axis.
func ConvergenceHTML(w io.Writer, series ...Series) error {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s.Residuals))
	}
	iterations := make([]int, longest)
	for k := range iterations {
		iterations[k] = k + 1
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Jacobi convergence", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Global difference per iteration", Subtitle: fmt.Sprintf("series=%d iterations=%d", len(series), longest)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "diff", Type: "log"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(iterations)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Residuals))
		for k, d := range s.Residuals {
			// A log axis cannot show zero; leave a gap.
			if d > 0 {
				data[k] = opts.LineData{Value: d}
			} else {
				data[k] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render convergence chart: %w", err)
	}
	return nil
}
