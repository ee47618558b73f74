// Package calculator declares the gRPC contract of the calculator service.
// Messages travel as JSON through the codec registered in this package, so
// the service description is written by hand instead of generated.
package calculator

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "calculator.Calculator"

	addFullMethod = "/" + ServiceName + "/Add"
)

// AddRequest carries the operands. A nil operand means the caller omitted it.
type AddRequest struct {
	N1 *int32 `json:"n1,omitempty"`
	N2 *int32 `json:"n2,omitempty"`
}

// AddReply carries the sum.
type AddReply struct {
	Rs int32 `json:"rs"`
}

// CalculatorServer is the server API for the Calculator service.
type CalculatorServer interface {
	Add(context.Context, *AddRequest) (*AddReply, error)
}

// RegisterCalculatorServer registers srv on s.
func RegisterCalculatorServer(s *grpc.Server, srv CalculatorServer) {
	s.RegisterService(&calculatorServiceDesc, srv)
}

func addHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AddRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: addFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CalculatorServer).Add(ctx, req.(*AddRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var calculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Add",
			Handler:    addHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calculator",
}
