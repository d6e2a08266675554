package grpcnet

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/poisson2d/internal/grid"
	"github.com/banshee-data/poisson2d/internal/rma"
)

const (
	serviceName  = "poisson2d.rma.v1.RMA"
	getMethod    = "/" + serviceName + "/Get"
	signalMethod = "/" + serviceName + "/Signal"
)

// rmaServer is the server side of the RMA service.
type rmaServer interface {
	Get(context.Context, *getRequest) (*getResponse, error)
	Signal(context.Context, *signalRequest) (*signalResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*rmaServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Signal", Handler: signalHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "poisson2d/rma/v1/rma.proto",
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(getRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rmaServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(rmaServer).Get(ctx, req.(*getRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func signalHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(signalRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rmaServer).Signal(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: signalMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(rmaServer).Signal(ctx, req.(*signalRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// endpointServer serves one rank's Endpoint.
type endpointServer struct {
	ep *rma.Endpoint
}

func (s *endpointServer) Get(_ context.Context, in *getRequest) (*getResponse, error) {
	req := getRequestFromWire(in)
	values, err := s.ep.ServeGet(req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &getResponse{Values: values}, nil
}

func (s *endpointServer) Signal(ctx context.Context, in *signalRequest) (*signalResponse, error) {
	msg := rma.Message{
		Kind:   rma.Kind(in.Kind),
		Window: in.Window,
		From:   int(in.From),
		Round:  int(in.Round),
		Values: in.Values,
	}
	if err := s.ep.Deliver(ctx, msg); err != nil {
		return nil, toStatus(err)
	}
	return &signalResponse{}, nil
}

func getRequestFromWire(in *getRequest) rma.GetRequest {
	return rma.GetRequest{
		Window: in.Window,
		Origin: int(in.Origin),
		I:      int(in.I),
		J:      int(in.J),
		Type:   grid.Datatype{Count: int(in.Count), DI: int(in.DI), DJ: int(in.DJ)},
	}
}

func getRequestToWire(req rma.GetRequest) *getRequest {
	return &getRequest{
		Window: req.Window,
		Origin: int64(req.Origin),
		I:      int64(req.I),
		J:      int64(req.J),
		Count:  int64(req.Type.Count),
		DI:     int64(req.Type.DI),
		DJ:     int64(req.Type.DJ),
	}
}

// toStatus maps endpoint errors onto gRPC codes that fromStatus reverses.
func toStatus(err error) error {
	switch {
	case errors.Is(err, rma.ErrNotExposed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, rma.ErrUnknownWindow):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// fromStatus restores the sentinel an endpoint error carried.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", rma.ErrNotExposed, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", rma.ErrUnknownWindow, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return err
}
