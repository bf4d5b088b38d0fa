package routing

import (
	"math"
	"sync/atomic"
)

// weightScale is the resolution used to turn route scores into integer shares
const weightScale = 100

// WeightedRoundRobin spreads entanglement requests over a set of routes in
// proportion to their success probability
type WeightedRoundRobin struct {
	routes      []Route
	cumulative  []int
	totalWeight int
	current     uint32
}

func NewWeightedRoundRobin(routes []Route) *WeightedRoundRobin {
	var totalScore float64
	for _, r := range routes {
		totalScore += r.Score
	}

	cumulative := make([]int, len(routes))
	total := 0
	for i, r := range routes {
		weight := 1
		if totalScore > 0 {
			weight = max(1, int(math.Round(r.Score/totalScore*weightScale)))
		}
		total += weight
		cumulative[i] = total
	}
	return &WeightedRoundRobin{
		routes:      routes,
		cumulative:  cumulative,
		totalWeight: total,
	}
}

// Next returns the next route to use. Safe for concurrent use.
func (w *WeightedRoundRobin) Next() (Route, bool) {
	if w.totalWeight == 0 || len(w.routes) == 0 {
		return Route{}, false
	}

	n := atomic.AddUint32(&w.current, 1) - 1
	mod := int(n % uint32(w.totalWeight))

	for i, c := range w.cumulative {
		if mod < c {
			return w.routes[i], true
		}
	}
	return Route{}, false
}

// Shares returns the fraction of requests each route receives, in route order
func (w *WeightedRoundRobin) Shares() []float64 {
	shares := make([]float64, len(w.routes))
	prev := 0
	for i, c := range w.cumulative {
		shares[i] = float64(c-prev) / float64(w.totalWeight)
		prev = c
	}
	return shares
}
