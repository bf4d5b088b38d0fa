package topology

import (
	"fmt"
	"math"
	"sort"
)

// DefaultSwapProbability is used for nodes added without an explicit swap probability.
// End-points never swap, so 1.0 keeps them neutral.
const DefaultSwapProbability = 1.0

// Topology is an undirected simple graph of quantum nodes and links.
// It does no locking: build it, then share it read-only between queries.
// Rebuild and swap a new Topology instead of mutating one that is in use.
type Topology struct {
	nodes     map[string]*Node
	adjacency map[string]map[string]float64
	edgeCount int
	version   uint64
}

func New() *Topology {
	return &Topology{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string]map[string]float64),
	}
}

// ValidProbability reports whether p lies in (0,1]. NaN is rejected.
func ValidProbability(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p <= 1
}

// AddNode adds a node. pSwap is optional and defaults to DefaultSwapProbability.
func (t *Topology) AddNode(id string, pSwap ...float64) error {
	if _, exists := t.nodes[id]; exists {
		return fmt.Errorf("add node %q: %w", id, ErrDuplicateNode)
	}
	swap := DefaultSwapProbability
	if len(pSwap) > 0 {
		swap = pSwap[0]
	}
	if !ValidProbability(swap) {
		return fmt.Errorf("add node %q: p_swap=%v: %w", id, swap, ErrInvalidProbability)
	}

	t.nodes[id] = &Node{ID: id, SwapProbability: swap}
	t.adjacency[id] = make(map[string]float64)
	t.version++
	return nil
}

// AddEdge connects a and b with a link of success probability pLink.
func (t *Topology) AddEdge(a, b string, pLink float64) error {
	if _, exists := t.nodes[a]; !exists {
		return fmt.Errorf("add edge %q-%q: node %q: %w", a, b, a, ErrUnknownNode)
	}
	if _, exists := t.nodes[b]; !exists {
		return fmt.Errorf("add edge %q-%q: node %q: %w", a, b, b, ErrUnknownNode)
	}
	if a == b {
		return fmt.Errorf("add edge %q-%q: %w", a, b, ErrSelfLoop)
	}
	if !ValidProbability(pLink) {
		return fmt.Errorf("add edge %q-%q: p_link=%v: %w", a, b, pLink, ErrInvalidProbability)
	}
	if _, exists := t.adjacency[a][b]; exists {
		return fmt.Errorf("add edge %q-%q: %w", a, b, ErrDuplicateEdge)
	}

	t.adjacency[a][b] = pLink
	t.adjacency[b][a] = pLink
	t.edgeCount++
	t.version++
	return nil
}

// Neighbors returns the nodes adjacent to id, sorted by id
func (t *Topology) Neighbors(id string) ([]Neighbor, error) {
	links, exists := t.adjacency[id]
	if !exists {
		return nil, fmt.Errorf("neighbors of %q: %w", id, ErrUnknownNode)
	}

	result := make([]Neighbor, 0, len(links))
	for neighbor, p := range links {
		result = append(result, Neighbor{ID: neighbor, LinkProbability: p})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *Topology) HasNode(id string) bool {
	_, exists := t.nodes[id]
	return exists
}

// SwapProbability returns the swap success probability of a node
func (t *Topology) SwapProbability(id string) (float64, error) {
	node, exists := t.nodes[id]
	if !exists {
		return 0, fmt.Errorf("swap probability of %q: %w", id, ErrUnknownNode)
	}
	return node.SwapProbability, nil
}

// LinkProbability returns the probability of the link between a and b.
// The boolean is false when either node is missing or they are not adjacent.
func (t *Topology) LinkProbability(a, b string) (float64, bool) {
	links, exists := t.adjacency[a]
	if !exists {
		return 0, false
	}
	p, exists := links[b]
	return p, exists
}

// Nodes returns all node ids in ascending order
func (t *Topology) Nodes() []string {
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns every link once, with A < B, ordered by (A, B)
func (t *Topology) Edges() []Edge {
	edges := make([]Edge, 0, t.edgeCount)
	for a, links := range t.adjacency {
		for b, p := range links {
			if a < b {
				edges = append(edges, Edge{A: a, B: b, LinkProbability: p})
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

func (t *Topology) NodeCount() int {
	return len(t.nodes)
}

func (t *Topology) EdgeCount() int {
	return t.edgeCount
}

// Version is bumped by every successful mutation. Scores computed against an
// older version must be discarded.
func (t *Topology) Version() uint64 {
	return t.version
}
