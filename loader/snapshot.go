package loader

import (
	"errors"
	"fmt"
	"math"

	"qrouting/link_model"
	"qrouting/topology"
)

var ErrMalformedSnapshot = errors.New("malformed topology snapshot")

const RoleRepeater = "repeater"

// NodeRecord describes one node. Repeaters without an explicit p_swap get the
// atomic BSM efficiency of the link model, everything else defaults to 1.
type NodeRecord struct {
	ID    string   `toml:"id" json:"id"`
	PSwap *float64 `toml:"p_swap" json:"p_swap,omitempty"`
	Role  string   `toml:"role" json:"role,omitempty"`
}

// EdgeRecord describes one link by probability or by fiber length.
// p_link wins when both are present.
type EdgeRecord struct {
	NodeA     string   `toml:"node_a" json:"node_a"`
	NodeB     string   `toml:"node_b" json:"node_b"`
	PLink     *float64 `toml:"p_link" json:"p_link,omitempty"`
	DistanceM *float64 `toml:"distance_m" json:"distance_m,omitempty"`
}

// Snapshot is the on-disk and on-wire form of a topology
type Snapshot struct {
	Nodes []NodeRecord `toml:"nodes" json:"nodes"`
	Edges []EdgeRecord `toml:"edges" json:"edges"`
}

// Validate rejects malformed records before anything reaches the topology
func (s *Snapshot) Validate() error {
	for i, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node #%d: empty id: %w", i, ErrMalformedSnapshot)
		}
		if n.PSwap != nil && !topology.ValidProbability(*n.PSwap) {
			return fmt.Errorf("node #%d %q: p_swap=%v: %w", i, n.ID, *n.PSwap, topology.ErrInvalidProbability)
		}
	}
	for i, e := range s.Edges {
		if e.NodeA == "" || e.NodeB == "" {
			return fmt.Errorf("edge #%d: empty endpoint: %w", i, ErrMalformedSnapshot)
		}
		switch {
		case e.PLink != nil:
			if !topology.ValidProbability(*e.PLink) {
				return fmt.Errorf("edge #%d %s-%s: p_link=%v: %w", i, e.NodeA, e.NodeB, *e.PLink, topology.ErrInvalidProbability)
			}
		case e.DistanceM != nil:
			if d := *e.DistanceM; math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
				return fmt.Errorf("edge #%d %s-%s: distance_m=%v: %w", i, e.NodeA, e.NodeB, d, ErrMalformedSnapshot)
			}
		default:
			return fmt.Errorf("edge #%d %s-%s: neither p_link nor distance_m: %w", i, e.NodeA, e.NodeB, ErrMalformedSnapshot)
		}
	}
	return nil
}

// Build validates the snapshot and turns it into a topology
func (s *Snapshot) Build(params link_model.Params) (*topology.Topology, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	topo := topology.New()
	for i, n := range s.Nodes {
		pSwap := topology.DefaultSwapProbability
		switch {
		case n.PSwap != nil:
			pSwap = *n.PSwap
		case n.Role == RoleRepeater:
			pSwap = params.SwapProbability()
		}
		if err := topo.AddNode(n.ID, pSwap); err != nil {
			return nil, fmt.Errorf("node #%d: %w", i, err)
		}
	}
	for i, e := range s.Edges {
		pLink, err := linkProbability(e, params)
		if err != nil {
			return nil, fmt.Errorf("edge #%d: %w", i, err)
		}
		if err := topo.AddEdge(e.NodeA, e.NodeB, pLink); err != nil {
			return nil, fmt.Errorf("edge #%d: %w", i, err)
		}
	}
	return topo, nil
}

func linkProbability(e EdgeRecord, params link_model.Params) (float64, error) {
	if e.PLink != nil {
		return *e.PLink, nil
	}
	p := params.SuccessProbability(*e.DistanceM)
	if !topology.ValidProbability(p) {
		return 0, fmt.Errorf("%s-%s: distance_m=%v gives p_link=%v: %w",
			e.NodeA, e.NodeB, *e.DistanceM, p, topology.ErrInvalidProbability)
	}
	return p, nil
}

// HopDistances returns the fiber length of every hop of path. ok is false
// when some hop has no distance recorded.
func (s *Snapshot) HopDistances(path []string) ([]float64, bool) {
	lengths := make(map[[2]string]float64, len(s.Edges))
	for _, e := range s.Edges {
		if e.DistanceM == nil {
			continue
		}
		lengths[[2]string{e.NodeA, e.NodeB}] = *e.DistanceM
		lengths[[2]string{e.NodeB, e.NodeA}] = *e.DistanceM
	}

	if len(path) < 2 {
		return nil, false
	}
	distances := make([]float64, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		d, ok := lengths[[2]string{path[i], path[i+1]}]
		if !ok {
			return nil, false
		}
		distances = append(distances, d)
	}
	return distances, true
}

// FromTopology captures a topology as a snapshot with explicit probabilities
func FromTopology(topo *topology.Topology) *Snapshot {
	s := &Snapshot{}
	for _, id := range topo.Nodes() {
		pSwap, _ := topo.SwapProbability(id)
		s.Nodes = append(s.Nodes, NodeRecord{ID: id, PSwap: &pSwap})
	}
	for _, e := range topo.Edges() {
		pLink := e.LinkProbability
		s.Edges = append(s.Edges, EdgeRecord{NodeA: e.A, NodeB: e.B, PLink: &pLink})
	}
	return s
}
