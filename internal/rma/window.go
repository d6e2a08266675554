package rma

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/poisson2d/internal/grid"
)

// Assert qualifies a Fence call.
type Assert int

const (
	// ModeNoPrecede marks a fence that closes no earlier epoch.
	ModeNoPrecede Assert = 1 << iota
	// ModeNoSucceed marks a fence that opens no new epoch.
	ModeNoSucceed
)

// Window is the set of one-sided operations the ghost exchange needs.
type Window interface {
	// Fence is a collective epoch boundary over the whole communicator.
	Fence(ctx context.Context, assert Assert) error

	// Post exposes the window to the ranks in g. It does not block.
	Post(ctx context.Context, g *Group) error

	// Start opens an access epoch against g, blocking until every member
	// has posted to this rank.
	Start(ctx context.Context, g *Group) error

	// Complete ends the access epoch and notifies its targets.
	Complete(ctx context.Context) error

	// Wait blocks until every rank the window was posted to has completed.
	Wait(ctx context.Context) error

	// Get copies the cells dt selects at (i, j) from target's window into
	// the same cells of dst.
	Get(ctx context.Context, dst *grid.Grid, target, i, j int, dt grid.Datatype) error
}

// Stats counts the traffic a window has originated.
type Stats struct {
	Gets   int64
	Values int64
}

// Win is a window over one rank's grid.
type Win struct {
	id   uint32
	comm *Comm
	grid *grid.Grid

	mu        sync.RWMutex
	fenceOpen bool
	exposure  *Group
	access    *Group

	gets   atomic.Int64
	values atomic.Int64
}

var _ Window = (*Win)(nil)

// ID returns the window's identifier, equal on every rank.
func (w *Win) ID() uint32 { return w.id }

// Grid returns the exposed grid.
func (w *Win) Grid() *grid.Grid { return w.grid }

// Stats returns the traffic originated so far.
func (w *Win) Stats() Stats {
	return Stats{Gets: w.gets.Load(), Values: w.values.Load()}
}

func (w *Win) Fence(ctx context.Context, assert Assert) error {
	w.mu.Lock()
	if w.access != nil || w.exposure != nil {
		w.mu.Unlock()
		return fmt.Errorf("fence during PSCW epoch: %w", ErrEpochActive)
	}
	if assert&ModeNoPrecede != 0 && w.fenceOpen {
		w.mu.Unlock()
		return fmt.Errorf("fence with no-precede: %w", ErrEpochActive)
	}
	// Opening is published before the barrier so no peer can observe a
	// closed window after leaving it.
	if assert&ModeNoSucceed == 0 {
		w.fenceOpen = true
	}
	w.mu.Unlock()

	if err := w.comm.barrier(ctx, w.id); err != nil {
		return fmt.Errorf("fence on window %d: %w", w.id, err)
	}

	if assert&ModeNoSucceed != 0 {
		w.mu.Lock()
		w.fenceOpen = false
		w.mu.Unlock()
	}
	return nil
}

func (w *Win) Post(ctx context.Context, g *Group) error {
	if err := g.usable(); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if err := w.comm.checkGroup(g); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	w.mu.Lock()
	if w.exposure != nil || w.fenceOpen {
		w.mu.Unlock()
		return fmt.Errorf("post: %w", ErrEpochActive)
	}
	w.exposure = &Group{ranks: g.Ranks()}
	w.mu.Unlock()

	for _, r := range g.ranks {
		msg := Message{Kind: KindPost, Window: w.id, From: w.comm.rank}
		if err := w.comm.transport.Signal(ctx, r, msg); err != nil {
			return fmt.Errorf("post to rank %d: %w", r, err)
		}
	}
	return nil
}

func (w *Win) Start(ctx context.Context, g *Group) error {
	if err := g.usable(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := w.comm.checkGroup(g); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	w.mu.RLock()
	busy := w.access != nil || w.fenceOpen
	w.mu.RUnlock()
	if busy {
		return fmt.Errorf("start: %w", ErrEpochActive)
	}

	ranks := g.Ranks()
	for _, r := range ranks {
		k := mailKey{kind: KindPost, window: w.id, from: r}
		if _, err := w.comm.ep.receive(ctx, k); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	w.mu.Lock()
	w.access = &Group{ranks: ranks}
	w.mu.Unlock()
	return nil
}

func (w *Win) Complete(ctx context.Context) error {
	w.mu.Lock()
	acc := w.access
	w.access = nil
	w.mu.Unlock()
	if acc == nil {
		return fmt.Errorf("complete: %w", ErrNoEpoch)
	}

	for _, r := range acc.ranks {
		msg := Message{Kind: KindComplete, Window: w.id, From: w.comm.rank}
		if err := w.comm.transport.Signal(ctx, r, msg); err != nil {
			return fmt.Errorf("complete to rank %d: %w", r, err)
		}
	}
	return nil
}

func (w *Win) Wait(ctx context.Context) error {
	w.mu.RLock()
	exp := w.exposure
	w.mu.RUnlock()
	if exp == nil {
		return fmt.Errorf("wait: %w", ErrNoEpoch)
	}

	for _, r := range exp.ranks {
		k := mailKey{kind: KindComplete, window: w.id, from: r}
		if _, err := w.comm.ep.receive(ctx, k); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
	}

	w.mu.Lock()
	w.exposure = nil
	w.mu.Unlock()
	return nil
}

func (w *Win) Get(ctx context.Context, dst *grid.Grid, target, i, j int, dt grid.Datatype) error {
	if target < 0 || target >= w.comm.size {
		return fmt.Errorf("get: %w: %d", ErrBadRank, target)
	}
	w.mu.RLock()
	var err error
	switch {
	case w.fenceOpen:
	case w.access == nil:
		err = ErrNoEpoch
	case !w.access.Contains(target):
		err = ErrNotInGroup
	}
	w.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("get from rank %d: %w", target, err)
	}

	req := GetRequest{Window: w.id, Origin: w.comm.rank, I: i, J: j, Type: dt}
	values, err := w.comm.transport.Get(ctx, target, req)
	if err != nil {
		return fmt.Errorf("get from rank %d: %w", target, err)
	}
	if err := dst.Unpack(i, j, dt, values); err != nil {
		return fmt.Errorf("get from rank %d: %w", target, err)
	}
	w.gets.Add(1)
	w.values.Add(int64(len(values)))
	return nil
}

// serve answers a Get that arrived at this window's rank.
func (w *Win) serve(req GetRequest) ([]float64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.fenceOpen && !w.exposure.Contains(req.Origin) {
		return nil, fmt.Errorf("%w: window %d on rank %d, origin %d", ErrNotExposed, w.id, w.comm.rank, req.Origin)
	}
	return w.grid.Pack(req.I, req.J, req.Type)
}

// Free tears the window down. It is collective.
func (w *Win) Free(ctx context.Context) error {
	w.mu.RLock()
	busy := w.access != nil || w.exposure != nil
	w.mu.RUnlock()
	if busy {
		return fmt.Errorf("free window %d: %w", w.id, ErrEpochActive)
	}
	if err := w.comm.barrier(ctx, w.id); err != nil {
		return fmt.Errorf("free window %d: %w", w.id, err)
	}
	w.comm.ep.unregister(w.id)
	return nil
}
