package rma

import (
	"context"
	"fmt"

	"github.com/banshee-data/poisson2d/internal/grid"
)

// Kind identifies the purpose of a Message.
type Kind uint8

const (
	KindBarrier Kind = iota + 1
	KindReduce
	KindPost
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindBarrier:
		return "barrier"
	case KindReduce:
		return "reduce"
	case KindPost:
		return "post"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Message is a synchronisation signal from one rank to another. Values
// carries reduction payloads.
type Message struct {
	Kind   Kind
	Window uint32
	From   int
	Round  int
	Values []float64
}

// GetRequest asks a target for the cells Type selects from (I, J) of
// window Window.
type GetRequest struct {
	Window uint32
	Origin int
	I      int
	J      int
	Type   grid.Datatype
}

// Transport moves requests and signals between ranks. Implementations
// call ServeGet and Deliver on the target rank's Endpoint.
type Transport interface {
	// Get fetches the requested cells from target.
	Get(ctx context.Context, target int, req GetRequest) ([]float64, error)

	// Signal delivers msg to target's mailbox.
	Signal(ctx context.Context, target int, msg Message) error
}
