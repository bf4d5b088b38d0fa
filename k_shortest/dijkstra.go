package k_shortest

import (
	"fmt"
	"slices"

	"qrouting/metric"
	"qrouting/topology"
)

// label is a tentative route to node, recorded through its settled predecessor
type label struct {
	node   string
	pred   string
	weight float64
	hops   int
}

// search holds the per-query state of one Dijkstra run
type search struct {
	graph   Graph
	source  string
	settled map[string]label
	best    map[string]label
}

// ShortestPath finds the most probable simple route from source to destination.
// Link probabilities become -log(p) weights and every relay adds -log(p_swap),
// so the best route is the minimum weight route. Ties are broken by hop count
// and then by the node id sequence.
func ShortestPath(g Graph, source, destination string) (Path, error) {
	return shortestPath(g, source, destination, nil)
}

func shortestPath(g Graph, source, destination string, excl *exclusion) (Path, error) {
	if !g.HasNode(source) {
		return Path{}, fmt.Errorf("source %q: %w", source, topology.ErrUnknownNode)
	}
	if !g.HasNode(destination) {
		return Path{}, fmt.Errorf("destination %q: %w", destination, topology.ErrUnknownNode)
	}
	if source == destination {
		return Path{Nodes: []string{source}, Weight: 0, Score: 1.0}, nil
	}

	s := &search{
		graph:   g,
		source:  source,
		settled: make(map[string]label),
		best:    make(map[string]label),
	}
	frontier := newMinHeap(s.less)

	start := label{node: source}
	s.best[source] = start
	frontier.insert(start)

	for frontier.Len() > 0 {
		current := frontier.pop()
		if _, done := s.settled[current.node]; done {
			continue
		}
		if best := s.best[current.node]; best != current {
			continue // stale entry
		}
		s.settled[current.node] = current
		if current.node == destination {
			break
		}

		base := current.weight
		if current.node != source {
			pSwap, err := g.SwapProbability(current.node)
			if err != nil {
				return Path{}, err
			}
			base += metric.RelayPenalty(pSwap)
		}

		neighbors, err := g.Neighbors(current.node)
		if err != nil {
			return Path{}, err
		}
		for _, next := range neighbors {
			if _, done := s.settled[next.ID]; done {
				continue
			}
			if excl.nodeBlocked(next.ID) || excl.linkBlocked(current.node, next.ID) {
				continue
			}
			candidate := label{
				node:   next.ID,
				pred:   current.node,
				weight: base + metric.LinkWeight(next.LinkProbability),
				hops:   current.hops + 1,
			}
			if known, ok := s.best[next.ID]; ok && !s.less(candidate, known) {
				continue
			}
			s.best[next.ID] = candidate
			frontier.insert(candidate)
		}
	}

	final, ok := s.settled[destination]
	if !ok {
		return Path{}, fmt.Errorf("%q -> %q: %w", source, destination, ErrNoRoute)
	}

	nodes := s.reconstruct(final)
	score, err := metric.Score(g, nodes)
	if err != nil {
		return Path{}, err
	}
	return Path{Nodes: nodes, Weight: final.weight, Score: score}, nil
}

// less orders labels by weight, hops and finally by the node sequence from the source.
// Predecessors of queued labels are always settled, so their sequences are final.
func (s *search) less(a, b label) bool {
	if c := compareWeight(a.weight, b.weight); c != 0 {
		return c < 0
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	if a.node == b.node && a.pred == b.pred {
		return false
	}
	return slices.Compare(s.reconstruct(a), s.reconstruct(b)) < 0
}

// reconstruct backtracks the recorded predecessors of l to the source
func (s *search) reconstruct(l label) []string {
	nodes := make([]string, l.hops+1)
	nodes[l.hops] = l.node
	pred := l.pred
	for i := l.hops - 1; i >= 0; i-- {
		nodes[i] = pred
		pred = s.settled[pred].pred
	}
	return nodes
}
