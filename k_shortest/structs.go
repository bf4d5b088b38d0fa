package k_shortest

import (
	"errors"
	"slices"

	"qrouting/metric"
	"qrouting/topology"
)

var ErrNoRoute = errors.New("no route")

// weightTolerance is the absolute tolerance on accumulated -log weights under
// which two paths count as equally good. A weight difference d corresponds to
// a relative score difference of about d, so this is a 1e-12 relative
// tolerance on scores.
const weightTolerance = 1e-12

// Graph is the read-only topology view used by the search
type Graph interface {
	metric.Graph
	Neighbors(id string) ([]topology.Neighbor, error)
}

// Flow is a routing request between two nodes
type Flow struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Path is a simple route together with its additive weight and success probability
type Path struct {
	Nodes  []string `json:"nodes"`
	Weight float64  `json:"weight"` // sum of -log(p) over links and relays
	Score  float64  `json:"score"`  // end-to-end success probability
}

// Hops is the number of links on the path
func (p Path) Hops() int {
	return len(p.Nodes) - 1
}

// comparePaths orders paths best first: lower weight (within tolerance), then
// fewer hops, then the lexicographically smaller node sequence.
func comparePaths(a, b Path) int {
	if c := compareWeight(a.Weight, b.Weight); c != 0 {
		return c
	}
	if len(a.Nodes) != len(b.Nodes) {
		if len(a.Nodes) < len(b.Nodes) {
			return -1
		}
		return 1
	}
	return slices.Compare(a.Nodes, b.Nodes)
}

func compareWeight(a, b float64) int {
	if a < b-weightTolerance {
		return -1
	}
	if a > b+weightTolerance {
		return 1
	}
	return 0
}

// exclusion hides nodes and links from a single search without touching the topology
type exclusion struct {
	nodes map[string]bool
	links map[[2]string]bool
}

func newExclusion() *exclusion {
	return &exclusion{
		nodes: make(map[string]bool),
		links: make(map[[2]string]bool),
	}
}

func linkKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (e *exclusion) blockNode(id string) {
	e.nodes[id] = true
}

func (e *exclusion) blockLink(a, b string) {
	e.links[linkKey(a, b)] = true
}

func (e *exclusion) nodeBlocked(id string) bool {
	return e != nil && e.nodes[id]
}

func (e *exclusion) linkBlocked(a, b string) bool {
	return e != nil && e.links[linkKey(a, b)]
}
