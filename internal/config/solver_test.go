package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/timeutil"
)

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.GetNX() != 64 || cfg.GetNY() != 64 {
		t.Errorf("grid = %dx%d, want 64x64", cfg.GetNX(), cfg.GetNY())
	}
	if cfg.GetMode() != halo.ModeFence {
		t.Errorf("GetMode() = %q, want fence", cfg.GetMode())
	}
	dims, err := cfg.GetDims()
	if err != nil {
		t.Fatalf("GetDims() error: %v", err)
	}
	if dims != [2]int{2, 2} {
		t.Errorf("GetDims() = %v, want [2 2]", dims)
	}
	if cfg.GetExchangeTimeout() != 0 {
		t.Errorf("GetExchangeTimeout() = %v, want 0", cfg.GetExchangeTimeout())
	}
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptySolverConfig()

	if cfg.GetBoundaryValue() != 1.0 {
		t.Errorf("GetBoundaryValue() = %v, want 1.0", cfg.GetBoundaryValue())
	}
	if cfg.GetRHSValue() != 0 || cfg.GetInitialValue() != 0 {
		t.Errorf("rhs/initial = %v/%v, want 0/0", cfg.GetRHSValue(), cfg.GetInitialValue())
	}
	if cfg.GetTolerance() != 1e-10 {
		t.Errorf("GetTolerance() = %v, want 1e-10", cfg.GetTolerance())
	}
	if cfg.GetMaxIterations() != 10000 {
		t.Errorf("GetMaxIterations() = %d, want 10000", cfg.GetMaxIterations())
	}
	if cfg.GetLogEvery() != 100 {
		t.Errorf("GetLogEvery() = %d, want 100", cfg.GetLogEvery())
	}
	if cfg.GetRanks() != 4 {
		t.Errorf("GetRanks() = %d, want 4", cfg.GetRanks())
	}
	dims, err := cfg.GetDims()
	if err != nil || dims != [2]int{2, 2} {
		t.Errorf("GetDims() = %v, %v; want [2 2]", dims, err)
	}
}

func TestLoadSolverConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "nx": 12,
  "ny": 10,
  "ranks": 6,
  "mode": "pscw",
  "rhs_value": -2.5,
  "exchange_timeout": "15s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSolverConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	p := cfg.Problem()
	if p.NX != 12 || p.NY != 10 || p.RHS != -2.5 || p.Boundary != 1.0 {
		t.Errorf("Problem() = %+v", p)
	}

	opts, err := cfg.Options(timeutil.RealClock{})
	if err != nil {
		t.Fatalf("Options() error: %v", err)
	}
	if opts.Mode != halo.ModePSCW {
		t.Errorf("Mode = %q, want pscw", opts.Mode)
	}
	if opts.Dims != [2]int{3, 2} {
		t.Errorf("Dims = %v, want [3 2]", opts.Dims)
	}
	if opts.ExchangeTimeout != 15*time.Second {
		t.Errorf("ExchangeTimeout = %v, want 15s", opts.ExchangeTimeout)
	}
	if err := opts.Validate(6); err != nil {
		t.Errorf("derived options invalid: %v", err)
	}
}

func TestLoadSolverConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", "/nonexistent/path/config.json", "stat"},
		{"wrong extension", write("config.yaml", "{}"), ".json"},
		{"bad json", write("bad.json", `{"nx": "wide"`), "parse"},
		{"invalid value", write("invalid.json", `{"max_iterations": 0}`), "max_iterations"},
		{"too large", write("big.json", `{"nx": 1}`+strings.Repeat(" ", 1024*1024)), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSolverConfig(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SolverConfig
		wantErr bool
	}{
		{"empty config is valid", &SolverConfig{}, false},
		{"dims and ranks agree", &SolverConfig{Dims: ptrString("2x3"), Ranks: ptrInt(6)}, false},
		{"dims and ranks disagree", &SolverConfig{Dims: ptrString("2x3"), Ranks: ptrInt(4)}, true},
		{"malformed dims", &SolverConfig{Dims: ptrString("2by3")}, true},
		{"zero nx", &SolverConfig{NX: ptrInt(0)}, true},
		{"negative ny", &SolverConfig{NY: ptrInt(-4)}, true},
		{"zero ranks", &SolverConfig{Ranks: ptrInt(0)}, true},
		{"unknown mode", &SolverConfig{Mode: ptrString("lock")}, true},
		{"negative tolerance", &SolverConfig{Tolerance: ptrFloat64(-1e-3)}, true},
		{"bad timeout", &SolverConfig{ExchangeTimeout: ptrString("soon")}, true},
		{"negative timeout", &SolverConfig{ExchangeTimeout: ptrString("-1s")}, true},
		{"negative log_every", &SolverConfig{LogEvery: ptrInt(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDims_FromRanks(t *testing.T) {
	cfg := &SolverConfig{Ranks: ptrInt(8)}
	dims, err := cfg.GetDims()
	if err != nil {
		t.Fatalf("GetDims() error: %v", err)
	}
	if dims != [2]int{4, 2} {
		t.Errorf("GetDims() = %v, want [4 2]", dims)
	}
	if got := (&SolverConfig{Dims: ptrString("3x1"), Ranks: ptrInt(9)}).GetRanks(); got != 3 {
		t.Errorf("GetRanks() with dims = %d, want 3", got)
	}
}
