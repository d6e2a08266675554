package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/poisson2d/internal/db"
	"github.com/banshee-data/poisson2d/internal/halo"
	"github.com/banshee-data/poisson2d/internal/report"
	"github.com/banshee-data/poisson2d/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(testutil.Context(t, time.Minute), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"no command", nil, 2, "Usage"},
		{"help", []string{"help"}, 0, "Commands:"},
		{"unknown command", []string{"frobnicate"}, 2, `unknown command "frobnicate"`},
		{"bad mode", []string{"solve", "-mode", "lock"}, 1, "lock"},
		{"bad dims", []string{"solve", "-dims", "2by2"}, 1, "poisson2d solve"},
		{"non-numeric nx", []string{"solve", "-nx", "wide"}, 1, "-nx"},
		{"flag help", []string{"version", "-h"}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "poisson2d "))
}

var recordedID = regexp.MustCompile(`recorded run (\S+)`)

func TestSolve_WritesReportsAndHistory(t *testing.T) {
	testutil.MuteLogs(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")

	code, stdout, stderr := runCLI(t, "solve",
		"-nx", "8", "-ny", "6", "-dims", "2x2", "-mode", "pscw", "-rhs", "-1",
		"-tolerance", "1e-10", "-max-iterations", "5000",
		"-out", filepath.Join(dir, "report"), "-db", dbPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "mode=pscw dims=2x2 grid=8x6")
	assert.Contains(t, stdout, "converged=true")

	for _, name := range []string{report.SolutionPNG, report.ResidualsPNG, report.ConvergencePage, report.SummaryJSON} {
		_, err := os.Stat(filepath.Join(dir, "report", name))
		assert.NoError(t, err, name)
	}

	m := recordedID.FindStringSubmatch(stdout)
	require.Len(t, m, 2, stdout)

	code, stdout, stderr = runCLI(t, "runs", "-db", dbPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, m[1])
	assert.Contains(t, stdout, "8x6")

	code, stdout, stderr = runCLI(t, "runs", "-db", dbPath, "-id", m[1])
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "RANK")
	assert.Equal(t, 4+2, strings.Count(strings.TrimSpace(stdout), "\n")+1, stdout)

	code, _, stderr = runCLI(t, "runs", "-db", dbPath, "-id", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no run with id missing")
}

func TestCompare(t *testing.T) {
	testutil.MuteLogs(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	code, stdout, stderr := runCLI(t, "compare",
		"-nx", "9", "-ny", "7", "-dims", "3x2", "-tolerance", "1e-9", "-max-iterations", "3000", "-db", dbPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "mode=fence")
	assert.Contains(t, stdout, "mode=pscw")
	assert.Contains(t, stdout, "solutions identical across 2 modes")
	assert.Len(t, recordedID.FindAllString(stdout, -1), 2)

	store, err := db.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].Iterations, runs[1].Iterations)
}

func TestSweep(t *testing.T) {
	testutil.MuteLogs(t)
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, "sweep",
		"-sizes", "4,6", "-dims-list", "1x1,2x1", "-modes", "fence,pscw", "-repeats", "2",
		"-tolerance", "1e-6", "-max-iterations", "500", "-out", dir)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 8, strings.Count(stdout, "samples=2"))

	summary, err := os.ReadFile(filepath.Join(dir, "sweep_summary.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1+8, strings.Count(string(summary), "\n"))
	raw, err := os.ReadFile(filepath.Join(dir, "sweep_raw.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1+16, strings.Count(string(raw), "\n"))

	code, _, stderr = runCLI(t, "sweep", "-sizes", "1", "-dims-list", "2x2", "-out", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no combination fits")
}

func freeAddrs(t *testing.T, n int) []string {
	t.Helper()
	addrs := make([]string, n)
	for k := range addrs {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs[k] = lis.Addr().String()
		require.NoError(t, lis.Close())
	}
	return addrs
}

func TestRank_MultiProcessWorld(t *testing.T) {
	testutil.MuteLogs(t)
	addrs := freeAddrs(t, 2)
	peers := strings.Join(addrs, ",")
	outDir := t.TempDir()

	outputs := make([]bytes.Buffer, len(addrs))
	g, ctx := errgroup.WithContext(testutil.Context(t, time.Minute))
	for r := range addrs {
		r := r
		g.Go(func() error {
			args := []string{
				"-rank", fmt.Sprint(r), "-peers", peers,
				"-nx", "6", "-ny", "4", "-mode", "pscw", "-tolerance", "1e-10", "-max-iterations", "4000",
				"-out", outDir,
			}
			return runRank(ctx, args, &outputs[r])
		})
	}
	require.NoError(t, g.Wait())

	assert.Contains(t, outputs[0].String(), "rank 0: bounds")
	assert.Contains(t, outputs[0].String(), "converged=true")
	assert.Contains(t, outputs[1].String(), "rank 1: bounds")
	assert.NotContains(t, outputs[1].String(), "wrote")

	_, err := os.Stat(filepath.Join(outDir, report.SolutionPNG))
	assert.NoError(t, err)
}

func TestRank_FlagErrors(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorContains(t, runRank(ctx, nil, &out), "-peers is required")
	assert.ErrorContains(t, runRank(ctx, []string{"-peers", "a:1,b:2", "-rank", "2"}, &out), "-rank must be in [0, 2)")
	assert.ErrorContains(t, runRank(ctx, []string{"-peers", "a:1,b:2", "-rank", "0", "-dims", "3x1"}, &out), "does not match 2 peers")
}

func TestSolverFlags_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nx": 10, "ny": 12, "dims": "2x2", "ranks": 4, "mode": "pscw"}`), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantNX   int
		wantNY   int
		wantDims [2]int
		wantMode halo.Mode
	}{
		{"file only", []string{"-config", path}, 10, 12, [2]int{2, 2}, halo.ModePSCW},
		{"flag wins", []string{"-config", path, "-nx", "20", "-mode", "fence"}, 20, 12, [2]int{2, 2}, halo.ModeFence},
		{"ranks flag replaces file dims", []string{"-config", path, "-ranks", "6"}, 10, 12, [2]int{3, 2}, halo.ModePSCW},
		{"dims flag replaces file ranks", []string{"-config", path, "-dims", "1x3"}, 10, 12, [2]int{1, 3}, halo.ModePSCW},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			sf := addSolverFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			cfg, err := sf.load(fs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNX, cfg.GetNX())
			assert.Equal(t, tt.wantNY, cfg.GetNY())
			dims, err := cfg.GetDims()
			require.NoError(t, err)
			assert.Equal(t, tt.wantDims, dims)
			assert.Equal(t, tt.wantMode, cfg.GetMode())
		})
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	sf := addSolverFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", filepath.Join(dir, "missing.json")}))
	_, err := sf.load(fs)
	assert.Error(t, err)
}
