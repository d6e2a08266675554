package sweep

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/poisson2d/internal/halo"
)

func TestCSVWriter_Headers(t *testing.T) {
	var summary, raw bytes.Buffer
	w := NewCSVWriter(&summary, &raw)
	if err := w.WriteHeaders(); err != nil {
		t.Fatalf("WriteHeaders: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := strings.TrimSpace(summary.String()); got != strings.Join(FormatSummaryHeaders(), ",") {
		t.Errorf("summary header = %q", got)
	}
	if !strings.Contains(raw.String(), "exchange_s") {
		t.Error("raw header should contain exchange_s")
	}
}

func TestCSVWriter_Rows(t *testing.T) {
	var summary, raw bytes.Buffer
	w := NewCSVWriter(&summary, &raw)

	cb := Combo{N: 32, Dims: [2]int{2, 2}, Mode: halo.ModePSCW}
	s := Sample{
		Repeat:       1,
		Iterations:   1200,
		Converged:    true,
		FinalDiff:    8.5e-11,
		ExchangeTime: 250 * time.Millisecond,
		ComputeTime:  750 * time.Millisecond,
		Elapsed:      1100 * time.Millisecond,
		Timestamp:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	if err := w.WriteRawRow(cb, s); err != nil {
		t.Fatalf("WriteRawRow: %v", err)
	}
	if err := w.WriteSummary(Summarise(ComboResult{Combo: cb, Samples: []Sample{s}})); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}

	rawRows, err := csv.NewReader(&raw).ReadAll()
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if len(rawRows) != 1 || len(rawRows[0]) != len(FormatRawHeaders()) {
		t.Fatalf("raw rows = %v", rawRows)
	}
	row := rawRows[0]
	want := map[int]string{0: "32", 1: "2x2", 2: "pscw", 3: "1", 4: "2024-05-01T09:30:00Z", 5: "1200", 6: "true", 8: "0.250000000"}
	for k, v := range want {
		if row[k] != v {
			t.Errorf("raw column %d = %q, want %q", k, row[k], v)
		}
	}

	sumRows, err := csv.NewReader(&summary).ReadAll()
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if len(sumRows) != 1 || len(sumRows[0]) != len(FormatSummaryHeaders()) {
		t.Fatalf("summary rows = %v", sumRows)
	}
	if got := sumRows[0][len(sumRows[0])-1]; got != "0.2500" {
		t.Errorf("exchange_share = %q, want 0.2500", got)
	}
}
