// Package sweep compares the synchronisation cost of the exchange
// strategies across grid sizes and process grids. It includes parameter
// parsing, the run loop, statistics and CSV output.
package sweep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// ParseCSVInts parses a comma-separated list of int values.
// Returns nil, nil for empty input strings.
func ParseCSVInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseCSVStrings splits a comma-separated list, dropping empty entries.
func ParseCSVStrings(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IntRangeSpec defines an integer parameter range for sweeping.
type IntRangeSpec struct {
	Min  int
	Max  int
	Step int
}

// ParseIntRangeSpec parses a "min:max:step" string into an IntRangeSpec.
func ParseIntRangeSpec(s string) (IntRangeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return IntRangeSpec{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	var vals [3]int
	for k, name := range []string{"min", "max", "step"} {
		v, err := strconv.Atoi(strings.TrimSpace(parts[k]))
		if err != nil {
			return IntRangeSpec{}, fmt.Errorf("invalid %s value %q: %w", name, parts[k], err)
		}
		vals[k] = v
	}
	if vals[2] <= 0 {
		return IntRangeSpec{}, fmt.Errorf("step must be positive, got %d", vals[2])
	}
	return IntRangeSpec{Min: vals[0], Max: vals[1], Step: vals[2]}, nil
}

// GenerateIntRange generates a slice of int values from min to max (inclusive)
// stepping by step. Returns an empty slice if min > max.
// Limits the number of generated values to prevent excessive memory allocation.
func GenerateIntRange(min, max, step int) []int {
	if step <= 0 || min > max {
		return nil
	}
	const maxValues = 10000
	if (max-min)/step+1 > maxValues {
		return nil
	}
	var result []int
	for v := min; v <= max; v += step {
		result = append(result, v)
	}
	return result
}

// ParseSizes parses grid sizes given either as comma-separated values or as
// a "min:max:step" range.
func ParseSizes(s string) ([]int, error) {
	var sizes []int
	if strings.Contains(s, ":") {
		spec, err := ParseIntRangeSpec(s)
		if err != nil {
			return nil, err
		}
		sizes = GenerateIntRange(spec.Min, spec.Max, spec.Step)
	} else {
		var err error
		if sizes, err = ParseCSVInts(s); err != nil {
			return nil, err
		}
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no grid sizes in %q", s)
	}
	for _, n := range sizes {
		if n < 1 {
			return nil, fmt.Errorf("grid size must be positive, got %d", n)
		}
	}
	return sizes, nil
}

// ParseDimsList parses a comma-separated list of "PxQ" process grids.
func ParseDimsList(s string) ([][2]int, error) {
	var out [][2]int
	for _, p := range ParseCSVStrings(s) {
		d, err := topology.ParseDims(p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseModes parses a comma-separated list of exchange modes.
func ParseModes(s string) ([]halo.Mode, error) {
	var out []halo.Mode
	for _, p := range ParseCSVStrings(s) {
		m, err := halo.ParseMode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Combo is one point of the sweep: a square grid size, a process grid and
// an exchange strategy.
type Combo struct {
	N    int
	Dims [2]int
	Mode halo.Mode
}

func (c Combo) String() string {
	return fmt.Sprintf("n=%d dims=%s mode=%s", c.N, topology.FormatDims(c.Dims), c.Mode)
}

// Combos returns the cartesian product of sizes, dims and modes, modes
// varying fastest so the strategies for one configuration run back to back.
// Combinations whose grid is too small for the process grid are skipped.
func Combos(sizes []int, dims [][2]int, modes []halo.Mode) []Combo {
	var out []Combo
	for _, n := range sizes {
		for _, d := range dims {
			if n < d[0] || n < d[1] {
				continue
			}
			for _, m := range modes {
				out = append(out, Combo{N: n, Dims: d, Mode: m})
			}
		}
	}
	return out
}
