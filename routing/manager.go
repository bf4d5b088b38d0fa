package routing

import (
	"sync"

	"qrouting/common"
	"qrouting/k_shortest"
	"qrouting/topology"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultK = 3

// FlowResult holds the routes computed for one flow, or the error that stopped it
type FlowResult struct {
	Flow   k_shortest.Flow `json:"flow"`
	Routes []Route         `json:"routes,omitempty"`
	Err    error           `json:"-"`
}

// Planner computes routes for many flows at once on a single topology snapshot
type Planner struct {
	pool *ants.Pool
}

// NewPlanner creates a planner backed by an ants goroutine pool.
// A planner without a pool calculates sequentially.
func NewPlanner(config common.PoolConfig) *Planner {
	pool, err := common.NewPool(config)
	if err != nil {
		log.Warnf("NewPlanner: failed to create goroutine pool: %v, falling back to sequential calculation", err)
		return &Planner{}
	}
	return &Planner{pool: pool}
}

// Release frees the pool workers
func (p *Planner) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// CalculateRoutesForAllFlows runs TopKRoutes for every flow. Flows share the
// snapshot read-only and each keeps its own search state. Results are in flow order.
func (p *Planner) CalculateRoutesForAllFlows(topo *topology.Topology, flows []k_shortest.Flow, k int) []FlowResult {
	results := make([]FlowResult, len(flows))
	if len(flows) == 0 {
		log.Warnf("CalculateRoutesForAllFlows: no flows to calculate")
		return results
	}

	calculate := func(i int) {
		routes, err := TopKRoutes(topo, flows[i].Source, flows[i].Destination, k)
		results[i] = FlowResult{Flow: flows[i], Routes: routes, Err: err}
		if err != nil {
			log.Warnf("CalculateRoutesForAllFlows: %s -> %s failed: %v", flows[i].Source, flows[i].Destination, err)
		}
	}

	if p.pool == nil {
		log.Infof("CalculateRoutesForAllFlows: calculating %d flows sequentially", len(flows))
		for i := range flows {
			calculate(i)
		}
		return results
	}

	log.Infof("CalculateRoutesForAllFlows: calculating %d flows using goroutine pool (cap=%d)", len(flows), p.pool.Cap())

	var wg sync.WaitGroup
	for i := range flows {
		wg.Add(1)
		index := i
		err := p.pool.Submit(func() {
			defer wg.Done()
			calculate(index)
		})
		if err != nil {
			log.Warnf("CalculateRoutesForAllFlows: failed to submit flow %d: %v, calculating inline", index, err)
			calculate(index)
			wg.Done()
		}
	}

	wg.Wait()
	log.Infof("CalculateRoutesForAllFlows: completed route calculation for all %d flows", len(flows))
	return results
}

// AllPairs returns one flow per unordered pair of distinct nodes, in node order
func AllPairs(topo *topology.Topology) []k_shortest.Flow {
	nodes := topo.Nodes()
	flows := make([]k_shortest.Flow, 0, len(nodes)*(len(nodes)-1)/2)
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			flows = append(flows, k_shortest.Flow{Source: nodes[i], Destination: nodes[j]})
		}
	}
	return flows
}

// BestOverall returns the flow result whose best route has the highest score,
// the way the planner ranks every node pair of a network. ok is false when no
// flow produced a route.
func BestOverall(results []FlowResult) (FlowResult, bool) {
	var best FlowResult
	found := false
	for _, r := range results {
		if r.Err != nil || len(r.Routes) == 0 {
			continue
		}
		if !found || r.Routes[0].Score > best.Routes[0].Score {
			best = r
			found = true
		}
	}
	return best, found
}
