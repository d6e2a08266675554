package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/poisson2d/internal/topology"
)

// CSVWriter wraps csv.Writer with methods for sweep output.
type CSVWriter struct {
	Summary *csv.Writer
	Raw     *csv.Writer
}

// NewCSVWriter creates a new CSVWriter with the given summary and raw writers.
func NewCSVWriter(summary, raw io.Writer) *CSVWriter {
	return &CSVWriter{
		Summary: csv.NewWriter(summary),
		Raw:     csv.NewWriter(raw),
	}
}

// FormatSummaryHeaders returns the summary header column names.
func FormatSummaryHeaders() []string {
	return []string{
		"n", "dims", "mode", "samples", "iterations_mean",
		"exchange_mean_s", "exchange_stddev_s",
		"compute_mean_s", "compute_stddev_s",
		"elapsed_mean_s", "elapsed_stddev_s",
		"exchange_share",
	}
}

// FormatRawHeaders returns the raw data header column names.
func FormatRawHeaders() []string {
	return []string{
		"n", "dims", "mode", "repeat", "timestamp", "iterations", "converged",
		"final_diff", "exchange_s", "compute_s", "elapsed_s",
	}
}

// WriteHeaders writes the headers to both summary and raw CSV files.
func (c *CSVWriter) WriteHeaders() error {
	if err := c.Summary.Write(FormatSummaryHeaders()); err != nil {
		return err
	}
	return c.Raw.Write(FormatRawHeaders())
}

func comboColumns(cb Combo) []string {
	return []string{fmt.Sprintf("%d", cb.N), topology.FormatDims(cb.Dims), string(cb.Mode)}
}

// WriteRawRow writes a single sample to the raw CSV file.
func (c *CSVWriter) WriteRawRow(cb Combo, s Sample) error {
	row := append(comboColumns(cb),
		fmt.Sprintf("%d", s.Repeat),
		s.Timestamp.Format(time.RFC3339Nano),
		fmt.Sprintf("%d", s.Iterations),
		fmt.Sprintf("%t", s.Converged),
		fmt.Sprintf("%.6e", s.FinalDiff),
		fmt.Sprintf("%.9f", s.ExchangeTime.Seconds()),
		fmt.Sprintf("%.9f", s.ComputeTime.Seconds()),
		fmt.Sprintf("%.9f", s.Elapsed.Seconds()),
	)
	if err := c.Raw.Write(row); err != nil {
		return err
	}
	c.Raw.Flush()
	return c.Raw.Error()
}

// WriteSummary writes the statistics of one combo to the summary CSV file.
func (c *CSVWriter) WriteSummary(sum Summary) error {
	row := append(comboColumns(sum.Combo),
		fmt.Sprintf("%d", sum.Samples),
		fmt.Sprintf("%.1f", sum.Iterations),
		fmt.Sprintf("%.9f", sum.ExchangeMean),
		fmt.Sprintf("%.9f", sum.ExchangeStddev),
		fmt.Sprintf("%.9f", sum.ComputeMean),
		fmt.Sprintf("%.9f", sum.ComputeStddev),
		fmt.Sprintf("%.9f", sum.ElapsedMean),
		fmt.Sprintf("%.9f", sum.ElapsedStddev),
		fmt.Sprintf("%.4f", sum.ExchangeShare),
	)
	if err := c.Summary.Write(row); err != nil {
		return err
	}
	c.Summary.Flush()
	return c.Summary.Error()
}

// Flush flushes both summary and raw writers.
func (c *CSVWriter) Flush() error {
	c.Summary.Flush()
	c.Raw.Flush()
	if err := c.Summary.Error(); err != nil {
		return err
	}
	return c.Raw.Error()
}
