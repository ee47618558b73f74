package transport

import (
	"context"
	"regexp"
	"strings"
	"sync"

	kitgrpc "github.com/go-kit/kit/transport/grpc"
	"github.com/grpc-ecosystem/grpc-opentracing/go/otgrpc"
	"github.com/mwitkow/grpc-proxy/proxy"
	stdopentracing "github.com/opentracing/opentracing-go"
	stdzipkin "github.com/openzipkin/zipkin-go"
	zipkingrpc "github.com/openzipkin/zipkin-go/middleware/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/cage1016/gokitcalculator/pb/calculator"
)

// grpcRouterReg picks the service out of a full method name, e.g.
// "calculator" from "/calculator.Calculator/Add".
var grpcRouterReg = regexp.MustCompile(`([a-zA-Z]+)/`)

// GRPCDirector forwards calls to the backend registered for the called
// service. One connection is kept per backend.
type GRPCDirector struct {
	routes   map[string]string
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewGRPCDirector routes "/<pkg>.<Service>/<Method>" to routes[lower(Service)].
func NewGRPCDirector(routes map[string]string, tracer stdopentracing.Tracer, zipkinTracer *stdzipkin.Tracer) *GRPCDirector {
	return &GRPCDirector{
		routes: routes,
		dialOpts: []grpc.DialOption{
			grpc.WithInsecure(),
			grpc.WithStatsHandler(zipkingrpc.NewClientHandler(zipkinTracer)),
			grpc.WithStreamInterceptor(otgrpc.OpenTracingStreamClientInterceptor(tracer)),
			// Frames are relayed untouched; the subtype tells the backend
			// which codec they were written with.
			grpc.WithDefaultCallOptions(
				grpc.CallCustomCodec(proxy.Codec()),
				grpc.CallContentSubtype(pb.CodecName),
				grpc.FailFast(false),
			),
		},
		conns: map[string]*grpc.ClientConn{},
	}
}

// Direct implements proxy.StreamDirector.
func (d *GRPCDirector) Direct(ctx context.Context, fullMethodName string) (context.Context, *grpc.ClientConn, error) {
	x := grpcRouterReg.FindStringSubmatch(fullMethodName)
	if x == nil {
		return nil, nil, status.Error(codes.Unimplemented, "Unknown method")
	}
	target, ok := d.routes[strings.ToLower(x[1])]
	if !ok || target == "" {
		return nil, nil, status.Error(codes.Unimplemented, "Unknown method")
	}

	md, _ := metadata.FromIncomingContext(ctx)
	outCtx := metadata.NewOutgoingContext(ctx, md.Copy())

	conn, err := d.conn(target)
	if err != nil {
		return nil, nil, status.Error(codes.Unavailable, err.Error())
	}
	return outCtx, conn, nil
}

func (d *GRPCDirector) conn(target string) (*grpc.ClientConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if conn, ok := d.conns[target]; ok {
		return conn, nil
	}
	conn, err := grpc.Dial(target, d.dialOpts...)
	if err != nil {
		return nil, err
	}
	d.conns[target] = conn
	return conn, nil
}

// Close closes every backend connection.
func (d *GRPCDirector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	for target, conn := range d.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.conns, target)
	}
	return first
}

// NewGRPCProxyServer returns a server that forwards every call through d.
func NewGRPCProxyServer(d *GRPCDirector, zipkinTracer *stdzipkin.Tracer) *grpc.Server {
	return grpc.NewServer(
		grpc.CustomCodec(proxy.Codec()),
		grpc.UnknownServiceHandler(proxy.TransparentHandler(d.Direct)),
		grpc.UnaryInterceptor(kitgrpc.Interceptor),
		grpc.StatsHandler(zipkingrpc.NewServerHandler(zipkinTracer)),
	)
}
