package route_service

import (
	"context"
	"net/http"
	"path"
	"time"

	"qrouting/common"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics records route query outcomes and exposes the snapshot generation.
//
// Exposed under the "qrouting" namespace:
//   - queries_total (counter), labels method and code
//   - query_latency_seconds (histogram), label method
//   - topology_generation (gauge), 0 until a snapshot is installed
type Metrics struct {
	queries  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	registry prometheus.Gatherer
}

// NewMetrics registers the route service metrics with registry
func NewMetrics(registry *prometheus.Registry, manager *common.TopologyManager) *Metrics {
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}
	m.queries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qrouting",
		Name:      "queries_total",
		Help:      "Route queries answered, by method and grpc status code",
	}, []string{"method", "code"})

	m.latency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qrouting",
		Name:      "query_latency_seconds",
		Help:      "Route query duration from request decode to response",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method"})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "qrouting",
		Name:      "topology_generation",
		Help:      "Generation of the topology snapshot queries run against",
	}, func() float64 {
		_, generation, err := manager.Current()
		if err != nil {
			return 0
		}
		return float64(generation)
	})

	return m
}

// UnaryInterceptor counts and times every unary call
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		method := path.Base(info.FullMethod)
		m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
		m.queries.WithLabelValues(method, status.Code(err).String()).Inc()
		return resp, err
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
