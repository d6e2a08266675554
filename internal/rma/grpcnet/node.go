// Package grpcnet carries the rma protocol between processes over gRPC.
//
// Each rank runs a Node: a gRPC server exposing its Endpoint, plus one
// client connection per peer. Calls wait for the peer to become ready, so
// ranks may start in any order.
package grpcnet

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/poisson2d/internal/monitoring"
	"github.com/banshee-data/poisson2d/internal/rma"
)

// maxMsgSize bounds a single get or signal. One ghost row of a large grid
// fits comfortably.
const maxMsgSize = 16 * 1024 * 1024

// Option configures a Node.
type Option func(*Node)

// WithDialOptions appends options used for every peer connection.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(n *Node) { n.dialOpts = append(n.dialOpts, opts...) }
}

// Node is one rank of a multi-process world.
type Node struct {
	rank  int
	addrs []string

	comm     *rma.Comm
	server   *grpc.Server
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns []*grpc.ClientConn
	wg    sync.WaitGroup
}

// NewNode builds rank's node in a world whose rank r listens on addrs[r].
// Connect must be called before the communicator is used.
func NewNode(rank int, addrs []string, opts ...Option) (*Node, error) {
	if rank < 0 || rank >= len(addrs) {
		return nil, fmt.Errorf("%w: %d of %d addresses", rma.ErrBadRank, rank, len(addrs))
	}
	n := &Node{
		rank:  rank,
		addrs: addrs,
		conns: make([]*grpc.ClientConn, len(addrs)),
		dialOpts: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(
				grpc.CallContentSubtype(codecName),
				grpc.WaitForReady(true),
				grpc.MaxCallRecvMsgSize(maxMsgSize),
				grpc.MaxCallSendMsgSize(maxMsgSize),
			),
		},
	}
	for _, o := range opts {
		o(n)
	}
	comm, err := rma.NewComm(rank, len(addrs), &transport{node: n})
	if err != nil {
		return nil, err
	}
	n.comm = comm
	n.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	n.server.RegisterService(&serviceDesc, &endpointServer{ep: comm.Endpoint()})
	return n, nil
}

// Comm returns the node's communicator.
func (n *Node) Comm() *rma.Comm { return n.comm }

// Addr returns the address peers use to reach this node.
func (n *Node) Addr() string { return n.addrs[n.rank] }

// Serve accepts peer connections on lis in the background.
func (n *Node) Serve(lis net.Listener) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		monitoring.Logf("[rma] rank %d serving on %s", n.rank, lis.Addr())
		if err := n.server.Serve(lis); err != nil {
			monitoring.Logf("[rma] rank %d server error: %v", n.rank, err)
		}
	}()
}

// Connect opens a client connection to every peer. Connections are lazy:
// the first call to a peer waits for it to come up.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for r, addr := range n.addrs {
		if r == n.rank || n.conns[r] != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := grpc.NewClient(addr, n.dialOpts...)
		if err != nil {
			return fmt.Errorf("connect to rank %d at %s: %w", r, addr, err)
		}
		n.conns[r] = conn
	}
	return nil
}

func (n *Node) conn(target int) (*grpc.ClientConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if target < 0 || target >= len(n.conns) {
		return nil, fmt.Errorf("%w: %d", rma.ErrBadRank, target)
	}
	c := n.conns[target]
	if c == nil {
		return nil, fmt.Errorf("rank %d not connected", target)
	}
	return c, nil
}

// Close stops the server and drops every peer connection. Callers should
// finish with a collective (Barrier) so no peer still needs this rank.
func (n *Node) Close() error {
	n.server.GracefulStop()
	n.wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	var firstErr error
	for r, c := range n.conns {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection to rank %d: %w", r, err)
		}
		n.conns[r] = nil
	}
	return firstErr
}

// transport implements rma.Transport over the node's connections. Calls
// to the node's own rank skip the network.
type transport struct {
	node *Node
}

func (t *transport) Get(ctx context.Context, target int, req rma.GetRequest) ([]float64, error) {
	if target == t.node.rank {
		return t.node.comm.Endpoint().ServeGet(req)
	}
	c, err := t.node.conn(target)
	if err != nil {
		return nil, err
	}
	out := new(getResponse)
	if err := c.Invoke(ctx, getMethod, getRequestToWire(req), out); err != nil {
		return nil, fromStatus(err)
	}
	if got := len(out.Values); got != req.Type.Count {
		return nil, fmt.Errorf("rank %d returned %d values, want %d", target, got, req.Type.Count)
	}
	return out.Values, nil
}

func (t *transport) Signal(ctx context.Context, target int, msg rma.Message) error {
	if target == t.node.rank {
		return t.node.comm.Endpoint().Deliver(ctx, msg)
	}
	c, err := t.node.conn(target)
	if err != nil {
		return err
	}
	in := &signalRequest{
		Kind:   uint32(msg.Kind),
		Window: msg.Window,
		From:   int64(msg.From),
		Round:  int64(msg.Round),
		Values: msg.Values,
	}
	if err := c.Invoke(ctx, signalMethod, in, new(signalResponse)); err != nil {
		return fmt.Errorf("signal rank %d: %w", target, fromStatus(err))
	}
	return nil
}
