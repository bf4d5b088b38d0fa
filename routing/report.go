package routing

import (
	"errors"

	"qrouting/k_shortest"
	"qrouting/metric"
	"qrouting/topology"
)

// ErrNoRoute is returned when the destination cannot be reached from the source
var ErrNoRoute = k_shortest.ErrNoRoute

// Route is the record handed to reporters: the node ids from source to
// destination and the end-to-end success probability
type Route struct {
	Path  []string `json:"path"`
	Score float64  `json:"score"`
}

// Hops is the number of links on the route
func (r Route) Hops() int {
	return len(r.Path) - 1
}

// BestRoute returns the most probable route from source to destination.
// The topology is only read.
func BestRoute(topo *topology.Topology, source, destination string) (Route, error) {
	path, err := k_shortest.ShortestPath(topo, source, destination)
	if err != nil {
		return Route{}, err
	}
	return toRoute(path), nil
}

// TopKRoutes returns at most k loop-less routes, best first.
// The topology is only read.
func TopKRoutes(topo *topology.Topology, source, destination string, k int) ([]Route, error) {
	paths, err := k_shortest.KShortest(topo, k_shortest.Flow{Source: source, Destination: destination}, k)
	if err != nil {
		return nil, err
	}
	routes := make([]Route, 0, len(paths))
	for _, p := range paths {
		routes = append(routes, toRoute(p))
	}
	return routes, nil
}

func toRoute(p k_shortest.Path) Route {
	return Route{Path: p.Nodes, Score: p.Score}
}

// Error kinds reported at the command line boundary
const (
	KindDuplicateNode      = "DuplicateNodeError"
	KindDuplicateEdge      = "DuplicateEdgeError"
	KindUnknownNode        = "UnknownNodeError"
	KindInvalidProbability = "InvalidProbabilityError"
	KindInvalidPath        = "InvalidPathError"
	KindNoRoute            = "NoRouteError"
	KindSelfLoop           = "SelfLoopError"
	KindInternal           = "Error"
)

var errorKinds = []struct {
	target error
	kind   string
	code   int
}{
	{topology.ErrDuplicateNode, KindDuplicateNode, 3},
	{topology.ErrDuplicateEdge, KindDuplicateEdge, 4},
	{topology.ErrUnknownNode, KindUnknownNode, 5},
	{topology.ErrInvalidProbability, KindInvalidProbability, 6},
	{metric.ErrInvalidPath, KindInvalidPath, 7},
	{ErrNoRoute, KindNoRoute, 8},
	{topology.ErrSelfLoop, KindSelfLoop, 9},
}

// ErrorKind maps an error to its kind name and process exit code.
// Errors outside the routing taxonomy map to KindInternal with code 1.
func ErrorKind(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind, k.code
		}
	}
	return KindInternal, 1
}
