package rma

import (
	"context"
	"fmt"
)

// localTransport connects ranks that share an address space. Gets read the
// target's grid directly under the target window's lock.
type localTransport struct {
	comms []*Comm
}

func (t *localTransport) endpoint(target int) (*Endpoint, error) {
	if target < 0 || target >= len(t.comms) {
		return nil, fmt.Errorf("%w: %d", ErrBadRank, target)
	}
	return t.comms[target].ep, nil
}

func (t *localTransport) Get(ctx context.Context, target int, req GetRequest) ([]float64, error) {
	ep, err := t.endpoint(target)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ep.ServeGet(req)
}

func (t *localTransport) Signal(ctx context.Context, target int, msg Message) error {
	ep, err := t.endpoint(target)
	if err != nil {
		return err
	}
	return ep.Deliver(ctx, msg)
}

// NewLocalWorld returns the communicators of size ranks living in this
// process. Each rank is meant to be driven by its own goroutine.
func NewLocalWorld(size int) ([]*Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be positive, got %d", size)
	}
	t := &localTransport{comms: make([]*Comm, size)}
	for r := 0; r < size; r++ {
		c, err := NewComm(r, size, t)
		if err != nil {
			return nil, err
		}
		t.comms[r] = c
	}
	return t.comms, nil
}
