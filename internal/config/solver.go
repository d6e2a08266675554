package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/solver"
	"github.com/banshee-data/poisson2d/internal/timeutil"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// DefaultConfigPath is the path to the canonical solver defaults file.
const DefaultConfigPath = "config/solver.defaults.json"

// SolverConfig is the JSON configuration of a solver run. Every field is
// optional; the Get* methods supply defaults for missing ones, so partial
// configs are safe.
type SolverConfig struct {
	// Problem
	NX            *int     `json:"nx,omitempty"`
	NY            *int     `json:"ny,omitempty"`
	BoundaryValue *float64 `json:"boundary_value,omitempty"`
	RHSValue      *float64 `json:"rhs_value,omitempty"`
	InitialValue  *float64 `json:"initial_value,omitempty"`

	// Process grid. Dims ("PxQ") wins over Ranks when both are set, and
	// they must then agree.
	Ranks *int    `json:"ranks,omitempty"`
	Dims  *string `json:"dims,omitempty"`

	// Iteration
	Mode            *string  `json:"mode,omitempty"` // "fence" or "pscw"
	Tolerance       *float64 `json:"tolerance,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	ExchangeTimeout *string  `json:"exchange_timeout,omitempty"` // duration string like "30s"
	LogEvery        *int     `json:"log_every,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySolverConfig returns a SolverConfig with all fields set to nil.
func EmptySolverConfig() *SolverConfig {
	return &SolverConfig{}
}

// LoadSolverConfig loads a SolverConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadSolverConfig(path string) (*SolverConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySolverConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical solver defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SolverConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/rma/grpcnet/
	}
	for _, path := range candidates {
		if cfg, err := LoadSolverConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SolverConfig) Validate() error {
	if c.NX != nil && *c.NX < 1 {
		return fmt.Errorf("nx must be positive, got %d", *c.NX)
	}
	if c.NY != nil && *c.NY < 1 {
		return fmt.Errorf("ny must be positive, got %d", *c.NY)
	}
	if c.Ranks != nil && *c.Ranks < 1 {
		return fmt.Errorf("ranks must be positive, got %d", *c.Ranks)
	}
	if c.Dims != nil && *c.Dims != "" {
		dims, err := topology.ParseDims(*c.Dims)
		if err != nil {
			return err
		}
		if c.Ranks != nil && dims[0]*dims[1] != *c.Ranks {
			return fmt.Errorf("dims %s has %d ranks but ranks is %d", *c.Dims, dims[0]*dims[1], *c.Ranks)
		}
	}
	if c.Mode != nil {
		if _, err := halo.ParseMode(*c.Mode); err != nil {
			return err
		}
	}
	if c.Tolerance != nil && *c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %g", *c.Tolerance)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.ExchangeTimeout != nil && *c.ExchangeTimeout != "" {
		d, err := time.ParseDuration(*c.ExchangeTimeout)
		if err != nil {
			return fmt.Errorf("invalid exchange_timeout '%s': %w", *c.ExchangeTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("exchange_timeout must not be negative, got %s", d)
		}
	}
	if c.LogEvery != nil && *c.LogEvery < 0 {
		return fmt.Errorf("log_every must be non-negative, got %d", *c.LogEvery)
	}
	return nil
}

// GetNX returns the nx value or the default.
func (c *SolverConfig) GetNX() int {
	if c.NX == nil {
		return 64
	}
	return *c.NX
}

// GetNY returns the ny value or the default.
func (c *SolverConfig) GetNY() int {
	if c.NY == nil {
		return 64
	}
	return *c.NY
}

// GetBoundaryValue returns the boundary_value value or the default.
func (c *SolverConfig) GetBoundaryValue() float64 {
	if c.BoundaryValue == nil {
		return 1.0
	}
	return *c.BoundaryValue
}

// GetRHSValue returns the rhs_value value or the default.
func (c *SolverConfig) GetRHSValue() float64 {
	if c.RHSValue == nil {
		return 0
	}
	return *c.RHSValue
}

// GetInitialValue returns the initial_value value or the default.
func (c *SolverConfig) GetInitialValue() float64 {
	if c.InitialValue == nil {
		return 0
	}
	return *c.InitialValue
}

// GetRanks returns the rank count implied by dims, else ranks, else 4.
func (c *SolverConfig) GetRanks() int {
	if c.Dims != nil && *c.Dims != "" {
		if dims, err := topology.ParseDims(*c.Dims); err == nil {
			return dims[0] * dims[1]
		}
	}
	if c.Ranks == nil {
		return 4
	}
	return *c.Ranks
}

// GetDims returns the process grid: dims if set, else the balanced
// factorisation of GetRanks.
func (c *SolverConfig) GetDims() ([2]int, error) {
	if c.Dims != nil && *c.Dims != "" {
		return topology.ParseDims(*c.Dims)
	}
	return topology.DimsCreate(c.GetRanks())
}

// GetMode returns the exchange mode or the default.
func (c *SolverConfig) GetMode() halo.Mode {
	if c.Mode == nil {
		return halo.ModeFence
	}
	m, err := halo.ParseMode(*c.Mode)
	if err != nil {
		return halo.ModeFence // default on parse error
	}
	return m
}

// GetTolerance returns the tolerance value or the default.
func (c *SolverConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return 1e-10
	}
	return *c.Tolerance
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *SolverConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 10000
	}
	return *c.MaxIterations
}

// GetExchangeTimeout parses and returns ExchangeTimeout. Zero disables
// stall detection.
func (c *SolverConfig) GetExchangeTimeout() time.Duration {
	if c.ExchangeTimeout == nil || *c.ExchangeTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.ExchangeTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}

// GetLogEvery returns the log_every value or the default.
func (c *SolverConfig) GetLogEvery() int {
	if c.LogEvery == nil {
		return 100
	}
	return *c.LogEvery
}

// Problem returns the configured problem.
func (c *SolverConfig) Problem() solver.Problem {
	return solver.Problem{
		NX:       c.GetNX(),
		NY:       c.GetNY(),
		Boundary: c.GetBoundaryValue(),
		RHS:      c.GetRHSValue(),
		Initial:  c.GetInitialValue(),
	}
}

// Options returns the configured solver options.
func (c *SolverConfig) Options(clock timeutil.Clock) (solver.Options, error) {
	dims, err := c.GetDims()
	if err != nil {
		return solver.Options{}, err
	}
	return solver.Options{
		Mode:            c.GetMode(),
		Dims:            dims,
		Tolerance:       c.GetTolerance(),
		MaxIterations:   c.GetMaxIterations(),
		ExchangeTimeout: c.GetExchangeTimeout(),
		LogEvery:        c.GetLogEvery(),
		Clock:           clock,
	}, nil
}
