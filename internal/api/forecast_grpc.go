package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ForecastEngineServiceName is the fully qualified gRPC service name.
const ForecastEngineServiceName = "mirador.forecast.v1.ForecastEngine"

const (
	predictMethod     = "/" + ForecastEngineServiceName + "/Predict"
	healthCheckMethod = "/" + ForecastEngineServiceName + "/HealthCheck"
)

// ForecastEngineServer is the server API for the ForecastEngine service.
// Messages are well-known protobuf types so the service needs no generated
// code: Predict takes {"records": [...]} and returns
// {"batch_id", "rows", "cached", "unknown_store_types", "records"}.
type ForecastEngineServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	mustEmbedUnimplementedForecastEngineServer()
}

// UnimplementedForecastEngineServer must be embedded for forward compatibility.
type UnimplementedForecastEngineServer struct{}

func (UnimplementedForecastEngineServer) Predict(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Predict not implemented")
}

func (UnimplementedForecastEngineServer) HealthCheck(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

func (UnimplementedForecastEngineServer) mustEmbedUnimplementedForecastEngineServer() {}

// RegisterForecastEngineServer attaches srv to a gRPC server.
func RegisterForecastEngineServer(s grpc.ServiceRegistrar, srv ForecastEngineServer) {
	s.RegisterService(&ForecastEngineServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastEngineServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: predictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastEngineServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecastEngineServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: healthCheckMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecastEngineServer).HealthCheck(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ForecastEngineServiceDesc describes the ForecastEngine service.
var ForecastEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ForecastEngineServiceName,
	HandlerType: (*ForecastEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// ForecastEngineClient is the client API for the ForecastEngine service.
type ForecastEngineClient interface {
	Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type forecastEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewForecastEngineClient wraps a client connection.
func NewForecastEngineClient(cc grpc.ClientConnInterface) ForecastEngineClient {
	return &forecastEngineClient{cc: cc}
}

func (c *forecastEngineClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, predictMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *forecastEngineClient) HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, healthCheckMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
