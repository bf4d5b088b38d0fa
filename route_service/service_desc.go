package route_service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName          = "qrouting.RouteService"
	BestRouteFullMethod  = "/qrouting.RouteService/BestRoute"
	TopKRoutesFullMethod = "/qrouting.RouteService/TopKRoutes"
)

// RouteServiceServer answers route queries. Requests and replies are
// google.protobuf.Struct messages:
//
//	request: {"source": "A", "destination": "C", "k": 3}
//	reply:   {"generation": 1, "routes": [{"path": ["A", "B", "C"], "score": 0.684}]}
type RouteServiceServer interface {
	BestRoute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TopKRoutes(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterRouteServiceServer(s grpc.ServiceRegistrar, srv RouteServiceServer) {
	s.RegisterService(&RouteServiceDesc, srv)
}

var RouteServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RouteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "BestRoute",
			Handler:    bestRouteHandler,
		},
		{
			MethodName: "TopKRoutes",
			Handler:    topKRoutesHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qrouting/route_service",
}

func bestRouteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RouteServiceServer).BestRoute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BestRouteFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RouteServiceServer).BestRoute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func topKRoutesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RouteServiceServer).TopKRoutes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TopKRoutesFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RouteServiceServer).TopKRoutes(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
