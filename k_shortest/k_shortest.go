package k_shortest

import (
	"errors"
	"slices"

	"qrouting/metric"
)

// KShortest returns up to k loop-less routes for flow, best first, using Yen's
// algorithm over the same -log weights as ShortestPath. Fewer than k routes are
// returned when fewer simple paths exist.
func KShortest(g Graph, flow Flow, k int) ([]Path, error) {
	shortest, err := ShortestPath(g, flow.Source, flow.Destination)
	if err != nil {
		return nil, err
	}
	var A []Path
	if k <= 0 {
		return A, nil
	}
	A = append(A, shortest)
	if flow.Source == flow.Destination {
		return A, nil
	}

	B := newMinHeap(func(a, b Path) bool { return comparePaths(a, b) < 0 })
	for len(A) < k {
		prevPath := A[len(A)-1].Nodes
		// The spur node ranges from the first node to the next to last node in the previous route.
		for i := 0; i < len(prevPath)-1; i++ {
			spurNode := prevPath[i]
			rootPath := prevPath[:i+1]

			excl := newExclusion()
			// Remove the links that are part of previous routes sharing the same root.
			for _, p := range A {
				if len(p.Nodes) > i+1 && slices.Equal(p.Nodes[:i+1], rootPath) {
					excl.blockLink(p.Nodes[i], p.Nodes[i+1])
				}
			}
			// Remove the root nodes except the spur node.
			for _, node := range rootPath[:len(rootPath)-1] {
				excl.blockNode(node)
			}

			spurPath, err := shortestPath(g, spurNode, flow.Destination, excl)
			if errors.Is(err, ErrNoRoute) {
				continue
			}
			if err != nil {
				return nil, err
			}

			totalPath := make([]string, 0, len(rootPath)+len(spurPath.Nodes)-1)
			totalPath = append(totalPath, rootPath[:len(rootPath)-1]...)
			totalPath = append(totalPath, spurPath.Nodes...)
			if !isSimple(totalPath) {
				continue
			}

			candidate, err := newPath(g, totalPath)
			if err != nil {
				return nil, err
			}
			sameNodes := func(p Path) bool { return slices.Equal(p.Nodes, candidate.Nodes) }
			if slices.ContainsFunc(A, sameNodes) || B.contain(sameNodes) {
				continue
			}
			B.insert(candidate)
		}
		// no more paths
		if B.Len() == 0 {
			break
		}
		A = append(A, B.pop())
	}
	return A, nil
}

func newPath(g Graph, nodes []string) (Path, error) {
	weight, err := metric.PathWeight(g, nodes)
	if err != nil {
		return Path{}, err
	}
	score, err := metric.Score(g, nodes)
	if err != nil {
		return Path{}, err
	}
	return Path{Nodes: nodes, Weight: weight, Score: score}, nil
}

func isSimple(nodes []string) bool {
	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if seen[node] {
			return false
		}
		seen[node] = true
	}
	return true
}
