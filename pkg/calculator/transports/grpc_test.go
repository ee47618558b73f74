package transports

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	pb "github.com/cage1016/gokitcalculator/pb/calculator"
	"github.com/cage1016/gokitcalculator/pkg/calculator/endpoints"
	"github.com/cage1016/gokitcalculator/pkg/calculator/service"
)

func startGRPCServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	otTracer, zipkinTracer := newTestTracers(t)
	logger := log.NewNopLogger()
	eps := endpoints.New(service.New(logger), logger, otTracer, zipkinTracer)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := NewGRPCServer(MakeGRPCServer(eps, otTracer, zipkinTracer, logger), "calculator")
	go server.Serve(lis)
	return lis.Addr().String(), server.Stop
}

func dialCalculator(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.Dial(addr, grpc.WithInsecure(), pb.WithJSONCodec())
	require.NoError(t, err)
	return conn
}

func TestGRPCClient(t *testing.T) {
	addr, stop := startGRPCServer(t)
	defer stop()
	conn := dialCalculator(t, addr)
	defer conn.Close()

	otTracer, zipkinTracer := newTestTracers(t)
	svc := NewGRPCClient(conn, otTracer, zipkinTracer, log.NewNopLogger())

	cases := []struct {
		in   service.CalculatorInput
		want int32
	}{
		{service.CalculatorInput{N1: 2, N2: 3}, 5},
		{service.CalculatorInput{N1: -7, N2: 7}, 0},
		{service.CalculatorInput{N1: 0, N2: 0}, 0},
		{service.CalculatorInput{N1: math.MaxInt32, N2: 1}, math.MinInt32},
	}
	for _, tc := range cases {
		got, err := svc.Add(context.Background(), tc.in)
		require.NoError(t, err, tc.in.String())
		assert.Equal(t, tc.want, got, tc.in.String())
	}
}

func TestGRPCMissingOperand(t *testing.T) {
	addr, stop := startGRPCServer(t)
	defer stop()
	conn := dialCalculator(t, addr)
	defer conn.Close()

	n1 := int32(2)
	err := conn.Invoke(context.Background(), "/"+pb.ServiceName+"/Add", &pb.AddRequest{N1: &n1}, new(pb.AddReply))
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "missing operand: n2", st.Message())
}

func TestGRPCHealth(t *testing.T) {
	addr, stop := startGRPCServer(t)
	defer stop()
	conn, err := grpc.Dial(addr, grpc.WithInsecure())
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthgrpc.NewHealthClient(conn).Check(context.Background(), &healthgrpc.HealthCheckRequest{Service: "calculator"})
	require.NoError(t, err)
	assert.Equal(t, healthgrpc.HealthCheckResponse_SERVING, resp.Status)
}

func TestGRPCEncodeError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{service.ErrMissingOperand, codes.InvalidArgument},
		{ratelimit.ErrLimited, codes.ResourceExhausted},
		{gobreaker.ErrOpenState, codes.Unavailable},
		{status.Error(codes.NotFound, "gone"), codes.NotFound},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(grpcEncodeError(tc.err)), "error %v", tc.err)
	}
	assert.NoError(t, grpcEncodeError(nil))
}
