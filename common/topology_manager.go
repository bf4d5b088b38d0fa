package common

import (
	"fmt"
	"sync"

	"qrouting/topology"

	log "github.com/sirupsen/logrus"
)

// TopologyManager hands out the current topology snapshot. A snapshot is never
// mutated once set; updates build a new one and swap it in, so queries running
// on the previous snapshot are unaffected.
type TopologyManager struct {
	topology    *topology.Topology
	generation  uint64
	mutex       sync.RWMutex
	initialized bool
}

var (
	instance *TopologyManager
	once     sync.Once
)

func GetInstance() *TopologyManager {
	once.Do(func() {
		instance = NewTopologyManager()
	})
	return instance
}

func NewTopologyManager() *TopologyManager {
	return &TopologyManager{}
}

// SetTopology swaps in a new snapshot. The caller must not mutate it afterwards.
func (tm *TopologyManager) SetTopology(topo *topology.Topology) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	tm.topology = topo
	tm.generation++
	tm.initialized = true
	log.Infof("SetTopology, generation: %d, node num: %d, link num: %d",
		tm.generation, topo.NodeCount(), topo.EdgeCount())
}

func (tm *TopologyManager) IsInitialized() bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return tm.initialized
}

// Current returns the current snapshot and its generation
func (tm *TopologyManager) Current() (*topology.Topology, uint64, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	if !tm.initialized {
		return nil, 0, fmt.Errorf("topology not yet initialized")
	}
	return tm.topology, tm.generation, nil
}
