package route_service

import (
	"context"
	"errors"
	"fmt"
	"net"

	"qrouting/common"
	"qrouting/routing"
	"qrouting/topology"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server answers route queries against the manager's current snapshot
type Server struct {
	manager  *common.TopologyManager
	defaultK int
	metrics  *Metrics
}

func NewServer(manager *common.TopologyManager, defaultK int) *Server {
	if defaultK <= 0 {
		defaultK = routing.DefaultK
	}
	return &Server{manager: manager, defaultK: defaultK}
}

// WithMetrics makes Serve record every query in m
func (s *Server) WithMetrics(m *Metrics) *Server {
	s.metrics = m
	return s
}

func (s *Server) BestRoute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	source, destination, _, err := parseQuery(in)
	if err != nil {
		return nil, err
	}
	topo, generation, err := s.manager.Current()
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	route, err := routing.BestRoute(topo, source, destination)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeRoutes([]routing.Route{route}, generation)
}

func (s *Server) TopKRoutes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	source, destination, k, err := parseQuery(in)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.defaultK
	}
	topo, generation, err := s.manager.Current()
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	routes, err := routing.TopKRoutes(topo, source, destination, k)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeRoutes(routes, generation)
}

func parseQuery(in *structpb.Struct) (string, string, int, error) {
	fields := in.GetFields()
	source := fields["source"].GetStringValue()
	destination := fields["destination"].GetStringValue()
	if source == "" || destination == "" {
		return "", "", 0, status.Error(codes.InvalidArgument, "source and destination are required")
	}
	k := int(fields["k"].GetNumberValue())
	return source, destination, k, nil
}

func encodeRoutes(routes []routing.Route, generation uint64) (*structpb.Struct, error) {
	list := make([]any, 0, len(routes))
	for _, r := range routes {
		path := make([]any, len(r.Path))
		for i, id := range r.Path {
			path[i] = id
		}
		list = append(list, map[string]any{"path": path, "score": r.Score})
	}
	out, err := structpb.NewStruct(map[string]any{
		"generation": float64(generation),
		"routes":     list,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	kind, _ := routing.ErrorKind(err)
	code := codes.InvalidArgument
	if errors.Is(err, topology.ErrUnknownNode) || errors.Is(err, routing.ErrNoRoute) {
		code = codes.NotFound
	}
	return status.Error(code, fmt.Sprintf("%s: %v", kind, err))
}

// Serve runs the route service on lis until ctx is done
func Serve(ctx context.Context, lis net.Listener, srv *Server) error {
	var opts []grpc.ServerOption
	if srv.metrics != nil {
		opts = append(opts, grpc.UnaryInterceptor(srv.metrics.UnaryInterceptor()))
	}
	grpcServer := grpc.NewServer(opts...)
	RegisterRouteServiceServer(grpcServer, srv)

	go func() {
		<-ctx.Done()
		log.Infof("route service shutting down")
		grpcServer.GracefulStop()
	}()

	log.Infof("route service listening on %s", lis.Addr())
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("route service stopped: %w", err)
	}
	return nil
}
