package rma

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/poisson2d/internal/grid"
)

// commWindow is the window id used for communicator-wide collectives.
const commWindow = 0

// Comm is one rank's communicator.
type Comm struct {
	rank      int
	size      int
	transport Transport
	ep        *Endpoint
	world     *Group

	mu      sync.Mutex
	nextWin uint32
}

// NewComm builds the communicator for rank in a world of size ranks. The
// transport must route ServeGet and Deliver calls for this rank to the
// returned Comm's Endpoint.
func NewComm(rank, size int, t Transport) (*Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("communicator size must be positive, got %d", size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadRank, rank, size)
	}
	ranks := make([]int, size)
	for r := range ranks {
		ranks[r] = r
	}
	return &Comm{
		rank:      rank,
		size:      size,
		transport: t,
		ep:        newEndpoint(rank),
		world:     &Group{ranks: ranks},
	}, nil
}

// Rank returns this rank's id.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks.
func (c *Comm) Size() int { return c.size }

// Endpoint returns the receiving side transports deliver to.
func (c *Comm) Endpoint() *Endpoint { return c.ep }

// WorldGroup returns a group of every rank. Callers may Incl from it but
// must not Free it.
func (c *Comm) WorldGroup() *Group { return c.world }

func (c *Comm) checkGroup(g *Group) error {
	for _, r := range g.ranks {
		if r >= c.size {
			return fmt.Errorf("%w: %d of %d", ErrBadRank, r, c.size)
		}
	}
	return nil
}

// Barrier blocks until every rank has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	return c.barrier(ctx, commWindow)
}

// barrier is a dissemination barrier: in round k each rank signals the
// rank 2^k ahead and waits for the rank 2^k behind.
func (c *Comm) barrier(ctx context.Context, window uint32) error {
	for round, dist := 0, 1; dist < c.size; round, dist = round+1, dist*2 {
		to := (c.rank + dist) % c.size
		from := (c.rank - dist + c.size) % c.size
		msg := Message{Kind: KindBarrier, Window: window, From: c.rank, Round: round}
		if err := c.transport.Signal(ctx, to, msg); err != nil {
			return fmt.Errorf("barrier round %d: %w", round, err)
		}
		k := mailKey{kind: KindBarrier, window: window, from: from, round: round}
		if _, err := c.ep.receive(ctx, k); err != nil {
			return fmt.Errorf("barrier round %d: %w", round, err)
		}
	}
	return nil
}

// AllreduceSum returns the sum of v over all ranks. Contributions are added
// in rank order so every rank gets a bit-identical result.
func (c *Comm) AllreduceSum(ctx context.Context, v float64) (float64, error) {
	for r := 0; r < c.size; r++ {
		if r == c.rank {
			continue
		}
		msg := Message{Kind: KindReduce, Window: commWindow, From: c.rank, Values: []float64{v}}
		if err := c.transport.Signal(ctx, r, msg); err != nil {
			return 0, fmt.Errorf("allreduce to rank %d: %w", r, err)
		}
	}
	sum := 0.0
	for r := 0; r < c.size; r++ {
		if r == c.rank {
			sum += v
			continue
		}
		msg, err := c.ep.receive(ctx, mailKey{kind: KindReduce, window: commWindow, from: r})
		if err != nil {
			return 0, fmt.Errorf("allreduce: %w", err)
		}
		if len(msg.Values) != 1 {
			return 0, fmt.Errorf("allreduce: rank %d sent %d values", r, len(msg.Values))
		}
		sum += msg.Values[0]
	}
	return sum, nil
}

// NewWindow exposes g for one-sided access. It is collective: every rank
// must create its windows in the same order, which gives matching ids.
func (c *Comm) NewWindow(ctx context.Context, g *grid.Grid) (*Win, error) {
	if g == nil {
		return nil, fmt.Errorf("new window: nil grid")
	}
	c.mu.Lock()
	c.nextWin++
	id := c.nextWin
	c.mu.Unlock()

	w := &Win{id: id, comm: c, grid: g}
	c.ep.register(w)
	if err := c.barrier(ctx, commWindow); err != nil {
		c.ep.unregister(id)
		return nil, fmt.Errorf("new window %d: %w", id, err)
	}
	return w, nil
}
