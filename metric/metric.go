// Package metric scores quantum routes.
//
// A route n0..nk succeeds when every elementary link is generated and every
// relay n1..n(k-1) swaps successfully:
//
//	score = Π p_link(n_i, n_i+1) × Π p_swap(n_i), i = 1..k-1
//
// The search works in the additive weight space w = -log(p), where the product
// above becomes a sum of non-negative terms.
package metric

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidPath = errors.New("invalid path")

// Graph is the read-only view of a topology needed to score a path
type Graph interface {
	HasNode(id string) bool
	LinkProbability(a, b string) (float64, bool)
	SwapProbability(id string) (float64, error)
}

// LinkWeight maps a link probability to its additive weight
func LinkWeight(pLink float64) float64 {
	return -math.Log(pLink)
}

// RelayPenalty maps a swap probability to the weight paid when a node relays
func RelayPenalty(pSwap float64) float64 {
	return -math.Log(pSwap)
}

// ScoreFromWeight converts an accumulated weight back to a probability
func ScoreFromWeight(weight float64) float64 {
	return math.Exp(-weight)
}

// Score returns the end-to-end success probability of path
func Score(g Graph, path []string) (float64, error) {
	if err := validate(g, path); err != nil {
		return 0, err
	}

	score := 1.0
	for i := 0; i < len(path)-1; i++ {
		p, _ := g.LinkProbability(path[i], path[i+1])
		score *= p
	}
	for i := 1; i < len(path)-1; i++ {
		p, _ := g.SwapProbability(path[i])
		score *= p
	}
	return score, nil
}

// PathWeight returns the additive weight of path, exp(-PathWeight) == Score
func PathWeight(g Graph, path []string) (float64, error) {
	if err := validate(g, path); err != nil {
		return 0, err
	}

	var weight float64
	for i := 0; i < len(path)-1; i++ {
		p, _ := g.LinkProbability(path[i], path[i+1])
		weight += LinkWeight(p)
	}
	for i := 1; i < len(path)-1; i++ {
		p, _ := g.SwapProbability(path[i])
		weight += RelayPenalty(p)
	}
	return weight, nil
}

func validate(g Graph, path []string) error {
	if len(path) < 2 {
		return fmt.Errorf("path %v has %d nodes, need at least 2: %w", path, len(path), ErrInvalidPath)
	}

	seen := make(map[string]bool, len(path))
	for i, id := range path {
		if !g.HasNode(id) {
			return fmt.Errorf("path %v: node %q not in topology: %w", path, id, ErrInvalidPath)
		}
		if seen[id] {
			return fmt.Errorf("path %v: node %q repeated: %w", path, id, ErrInvalidPath)
		}
		seen[id] = true
		if i > 0 {
			if _, ok := g.LinkProbability(path[i-1], id); !ok {
				return fmt.Errorf("path %v: no link %q-%q: %w", path, path[i-1], id, ErrInvalidPath)
			}
		}
	}
	return nil
}
