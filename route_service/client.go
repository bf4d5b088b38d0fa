package route_service

import (
	"context"
	"fmt"

	"qrouting/routing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client queries a remote route service
type Client struct {
	conn *grpc.ClientConn
}

func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create route service client for %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// BestRoute returns the best route and the topology generation that produced it
func (c *Client) BestRoute(ctx context.Context, source, destination string) (routing.Route, uint64, error) {
	routes, generation, err := c.call(ctx, BestRouteFullMethod, source, destination, 0)
	if err != nil {
		return routing.Route{}, 0, err
	}
	if len(routes) != 1 {
		return routing.Route{}, 0, fmt.Errorf("best route reply has %d routes", len(routes))
	}
	return routes[0], generation, nil
}

// TopKRoutes returns up to k routes, best first. k <= 0 uses the server default.
func (c *Client) TopKRoutes(ctx context.Context, source, destination string, k int) ([]routing.Route, uint64, error) {
	return c.call(ctx, TopKRoutesFullMethod, source, destination, k)
}

func (c *Client) call(ctx context.Context, method, source, destination string, k int) ([]routing.Route, uint64, error) {
	in, err := structpb.NewStruct(map[string]any{
		"source":      source,
		"destination": destination,
		"k":           float64(k),
	})
	if err != nil {
		return nil, 0, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, 0, err
	}
	return decodeRoutes(out)
}

func decodeRoutes(out *structpb.Struct) ([]routing.Route, uint64, error) {
	fields := out.GetFields()
	generation := uint64(fields["generation"].GetNumberValue())

	var routes []routing.Route
	for _, v := range fields["routes"].GetListValue().GetValues() {
		record := v.GetStructValue().GetFields()
		var path []string
		for _, id := range record["path"].GetListValue().GetValues() {
			path = append(path, id.GetStringValue())
		}
		if len(path) == 0 {
			return nil, 0, fmt.Errorf("malformed route record: %v", record)
		}
		routes = append(routes, routing.Route{Path: path, Score: record["score"].GetNumberValue()})
	}
	return routes, generation, nil
}
