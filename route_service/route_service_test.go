package route_service

import (
	"context"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"qrouting/common"
	"qrouting/topology"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newScenarioManager(t *testing.T) *common.TopologyManager {
	t.Helper()
	topo := topology.New()
	require.NoError(t, topo.AddNode("A"))
	require.NoError(t, topo.AddNode("B", 0.95))
	require.NoError(t, topo.AddNode("C"))
	require.NoError(t, topo.AddNode("D"))
	require.NoError(t, topo.AddEdge("A", "B", 0.9))
	require.NoError(t, topo.AddEdge("B", "C", 0.8))
	require.NoError(t, topo.AddEdge("A", "C", 0.5))

	manager := common.NewTopologyManager()
	manager.SetTopology(topo)
	return manager
}

func startService(t *testing.T, manager *common.TopologyManager) *Client {
	t.Helper()
	return startServer(t, NewServer(manager, 2))
}

func startServer(t *testing.T, srv *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, lis, srv)
	}()

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		cancel()
		<-done
	})
	return client
}

func TestRouteServiceBestRoute(t *testing.T) {
	client := startService(t, newScenarioManager(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	route, generation, err := client.BestRoute(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), generation)
	assert.Equal(t, []string{"A", "B", "C"}, route.Path)
	assert.InDelta(t, 0.684, route.Score, 1e-12)

	route, _, err = client.BestRoute(ctx, "C", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, route.Path)
	assert.Equal(t, 1.0, route.Score)
}

func TestRouteServiceTopKRoutes(t *testing.T) {
	client := startService(t, newScenarioManager(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	routes, _, err := client.TopKRoutes(ctx, "A", "C", 5)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, []string{"A", "B", "C"}, routes[0].Path)
	assert.Equal(t, []string{"A", "C"}, routes[1].Path)
	assert.Equal(t, 0.5, routes[1].Score)

	routes, _, err = client.TopKRoutes(ctx, "A", "C", 0)
	require.NoError(t, err)
	assert.Len(t, routes, 2)
}

func TestRouteServiceErrors(t *testing.T) {
	client := startService(t, newScenarioManager(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := client.BestRoute(ctx, "A", "D")
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "NoRouteError")

	_, _, err = client.TopKRoutes(ctx, "A", "Z", 2)
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "UnknownNodeError")

	_, _, err = client.BestRoute(ctx, "", "C")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	empty := startService(t, common.NewTopologyManager())
	_, _, err = empty.BestRoute(ctx, "A", "C")
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestRouteServiceMetrics(t *testing.T) {
	manager := newScenarioManager(t)
	metrics := NewMetrics(prometheus.NewRegistry(), manager)
	client := startServer(t, NewServer(manager, 2).WithMetrics(metrics))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := client.BestRoute(ctx, "A", "C")
	require.NoError(t, err)
	_, _, err = client.BestRoute(ctx, "A", "D")
	require.Error(t, err)
	_, _, err = client.TopKRoutes(ctx, "A", "C", 2)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queries.WithLabelValues("BestRoute", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queries.WithLabelValues("BestRoute", "NotFound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.queries.WithLabelValues("TopKRoutes", "OK")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "qrouting_topology_generation 1")
	assert.Contains(t, string(body), "qrouting_query_latency_seconds_count{method=\"BestRoute\"} 2")
}
