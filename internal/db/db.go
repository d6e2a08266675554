// Package db keeps the history of solver runs in SQLite: one row per run,
// the global difference of every iteration and per-rank traffic and
// timing.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/poisson2d/internal/solver"
	"github.com/banshee-data/poisson2d/internal/topology"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies the embedded
// migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs below apply per connection.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Run is one stored solver run.
type Run struct {
	ID            string
	CreatedAt     time.Time
	Transport     string
	Mode          string
	NX            int
	NY            int
	Dims          string
	Ranks         int
	Tolerance     float64
	MaxIterations int
	Boundary      float64
	RHS           float64
	Initial       float64
	Iterations    int
	Converged     bool
	FinalDiff     float64
	ExchangeTime  time.Duration
	ComputeTime   time.Duration
	Elapsed       time.Duration
}

func (r *Run) String() string {
	return fmt.Sprintf("%s %s %dx%d on %s: %d iterations, converged=%t, diff=%.3e",
		r.ID, r.Mode, r.NX, r.NY, r.Dims, r.Iterations, r.Converged, r.FinalDiff)
}

// RankStat is one rank's share of a run.
type RankStat struct {
	Rank         int
	Bounds       [4]int // col start, col end, row start, row end
	Neighbors    int
	Gets         int64
	Values       int64
	ExchangeTime time.Duration
	ComputeTime  time.Duration
}

// RunFromResult summarises a solver result for storage.
func RunFromResult(res *solver.Result, transport string) *Run {
	p, o := res.Problem, res.Options
	return &Run{
		Transport:     transport,
		Mode:          string(o.Mode),
		NX:            p.NX,
		NY:            p.NY,
		Dims:          topology.FormatDims(o.Dims),
		Ranks:         o.Dims[0] * o.Dims[1],
		Tolerance:     o.Tolerance,
		MaxIterations: o.MaxIterations,
		Boundary:      p.Boundary,
		RHS:           p.RHS,
		Initial:       p.Initial,
		Iterations:    res.Iterations,
		Converged:     res.Converged,
		FinalDiff:     res.FinalDiff(),
		ExchangeTime:  res.ExchangeTime(),
		ComputeTime:   res.ComputeTime(),
		Elapsed:       res.Elapsed,
	}
}

// RankStatsFromResult extracts per-rank rows from a solver result.
func RankStatsFromResult(res *solver.Result) []RankStat {
	out := make([]RankStat, 0, len(res.Ranks))
	for _, rr := range res.Ranks {
		b := rr.Bounds
		out = append(out, RankStat{
			Rank:         rr.Rank,
			Bounds:       [4]int{b.ColS, b.ColE, b.RowS, b.RowE},
			Neighbors:    rr.Neighbors.Count(),
			Gets:         rr.Traffic.Gets,
			Values:       rr.Traffic.Values,
			ExchangeTime: rr.ExchangeTime,
			ComputeTime:  rr.ComputeTime,
		})
	}
	return out
}

// RecordResult stores a run with its residual history and rank stats in
// one transaction and returns the new run id.
func (db *DB) RecordResult(res *solver.Result, transport string) (string, error) {
	run := RunFromResult(res, transport)
	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if err := insertRun(tx, run); err != nil {
		return "", err
	}
	if err := insertResiduals(tx, run.ID, res.Residuals); err != nil {
		return "", err
	}
	if err := insertRankStats(tx, run.ID, RankStatsFromResult(res)); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// InsertRun stores r, assigning an id and creation time when unset.
func (db *DB) InsertRun(r *Run) error {
	return insertRun(db.DB, r)
}

// InsertResiduals stores the global difference of every iteration of a
// run, iteration numbers starting at 1.
func (db *DB) InsertResiduals(runID string, residuals []float64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertResiduals(tx, runID, residuals); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertRankStats stores per-rank rows of a run.
func (db *DB) InsertRankStats(runID string, stats []RankStat) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertRankStats(tx, runID, stats); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRun(x execer, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := x.Exec(`
		INSERT INTO runs (
			run_id, created_unix_ns, transport, mode, nx, ny, dims, ranks,
			tolerance, max_iterations, boundary_value, rhs_value, initial_value,
			iterations, converged, final_diff, exchange_ns, compute_ns, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.Transport, r.Mode, r.NX, r.NY, r.Dims, r.Ranks,
		r.Tolerance, r.MaxIterations, r.Boundary, r.RHS, r.Initial,
		r.Iterations, r.Converged, r.FinalDiff,
		int64(r.ExchangeTime), int64(r.ComputeTime), int64(r.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func insertResiduals(x execer, runID string, residuals []float64) error {
	for k, d := range residuals {
		if _, err := x.Exec(`INSERT INTO residuals (run_id, iteration, diff) VALUES (?, ?, ?)`, runID, k+1, d); err != nil {
			return fmt.Errorf("insert residual %d of run %s: %w", k+1, runID, err)
		}
	}
	return nil
}

func insertRankStats(x execer, runID string, stats []RankStat) error {
	for _, s := range stats {
		_, err := x.Exec(`
			INSERT INTO rank_stats (
				run_id, rank, col_start, col_end, row_start, row_end, neighbors,
				gets, values_moved, exchange_ns, compute_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Rank, s.Bounds[0], s.Bounds[1], s.Bounds[2], s.Bounds[3], s.Neighbors,
			s.Gets, s.Values, int64(s.ExchangeTime), int64(s.ComputeTime),
		)
		if err != nil {
			return fmt.Errorf("insert rank %d stats of run %s: %w", s.Rank, runID, err)
		}
	}
	return nil
}

const runColumns = `run_id, created_unix_ns, transport, mode, nx, ny, dims, ranks,
	tolerance, max_iterations, boundary_value, rhs_value, initial_value,
	iterations, converged, final_diff, exchange_ns, compute_ns, elapsed_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var created, exchange, compute, elapsed int64
	err := s.Scan(&r.ID, &created, &r.Transport, &r.Mode, &r.NX, &r.NY, &r.Dims, &r.Ranks,
		&r.Tolerance, &r.MaxIterations, &r.Boundary, &r.RHS, &r.Initial,
		&r.Iterations, &r.Converged, &r.FinalDiff, &exchange, &compute, &elapsed)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	r.ExchangeTime = time.Duration(exchange)
	r.ComputeTime = time.Duration(compute)
	r.Elapsed = time.Duration(elapsed)
	return &r, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_unix_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// Residuals returns a run's global difference history in iteration order.
func (db *DB) Residuals(runID string) ([]float64, error) {
	rows, err := db.Query(`SELECT diff FROM residuals WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("residuals of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RankStats returns a run's per-rank rows in rank order.
func (db *DB) RankStats(runID string) ([]RankStat, error) {
	rows, err := db.Query(`
		SELECT rank, col_start, col_end, row_start, row_end, neighbors,
			gets, values_moved, exchange_ns, compute_ns
		FROM rank_stats WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("rank stats of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []RankStat
	for rows.Next() {
		var s RankStat
		var exchange, compute int64
		if err := rows.Scan(&s.Rank, &s.Bounds[0], &s.Bounds[1], &s.Bounds[2], &s.Bounds[3], &s.Neighbors,
			&s.Gets, &s.Values, &exchange, &compute); err != nil {
			return nil, err
		}
		s.ExchangeTime = time.Duration(exchange)
		s.ComputeTime = time.Duration(compute)
		out = append(out, s)
	}
	return out, rows.Err()
}
