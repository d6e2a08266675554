package rma

import (
	"context"
	"fmt"
	"sync"
)

// mailboxDepth bounds undelivered signals per key. The protocols keep at
// most a couple in flight per key.
const mailboxDepth = 64

type mailKey struct {
	kind   Kind
	window uint32
	from   int
	round  int
}

// Endpoint is the receiving side of a rank: the mailbox signals land in
// and the registry of windows that remote gets are served from.
type Endpoint struct {
	rank int

	mu      sync.Mutex
	boxes   map[mailKey]chan Message
	windows map[uint32]*Win
}

func newEndpoint(rank int) *Endpoint {
	return &Endpoint{
		rank:    rank,
		boxes:   make(map[mailKey]chan Message),
		windows: make(map[uint32]*Win),
	}
}

// Rank returns the rank this endpoint belongs to.
func (e *Endpoint) Rank() int { return e.rank }

func (e *Endpoint) box(k mailKey) chan Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, ok := e.boxes[k]
	if !ok {
		ch = make(chan Message, mailboxDepth)
		e.boxes[k] = ch
	}
	return ch
}

// Deliver places msg in the mailbox. It blocks only if the mailbox for the
// message's key is full.
func (e *Endpoint) Deliver(ctx context.Context, msg Message) error {
	k := mailKey{kind: msg.Kind, window: msg.Window, from: msg.From, round: msg.Round}
	select {
	case e.box(k) <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("deliver %s from rank %d: %w", msg.Kind, msg.From, ctx.Err())
	}
}

func (e *Endpoint) receive(ctx context.Context, k mailKey) (Message, error) {
	select {
	case msg := <-e.box(k):
		return msg, nil
	case <-ctx.Done():
		return Message{}, fmt.Errorf("rank %d waiting for %s from rank %d: %w", e.rank, k.kind, k.from, ctx.Err())
	}
}

func (e *Endpoint) register(w *Win) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows[w.id] = w
}

func (e *Endpoint) unregister(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.windows, id)
}

func (e *Endpoint) window(id uint32) (*Win, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.windows[id]
	return w, ok
}

// ServeGet answers a remote Get against one of this rank's windows.
func (e *Endpoint) ServeGet(req GetRequest) ([]float64, error) {
	w, ok := e.window(req.Window)
	if !ok {
		return nil, fmt.Errorf("%w: %d on rank %d", ErrUnknownWindow, req.Window, e.rank)
	}
	return w.serve(req)
}
