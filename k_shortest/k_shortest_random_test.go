package k_shortest

import (
	"fmt"
	"math/rand"
	"testing"

	"qrouting/metric"
	"qrouting/topology"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKShortestMatchesExhaustiveSearch checks optimality and ranking against
// brute-force enumeration on small random quantum networks.
// Uses fixed random seeds for reproducibility.
func TestKShortestMatchesExhaustiveSearch(t *testing.T) {
	log.SetLevel(log.InfoLevel)

	testCases := []struct {
		name        string
		seed        int64
		nodeCount   int
		linkDensity float64
		k           int
	}{
		{name: "sparse k=3", seed: 42, nodeCount: 9, linkDensity: 0.2, k: 3},
		{name: "medium k=5", seed: 123, nodeCount: 10, linkDensity: 0.3, k: 5},
		{name: "dense k=8", seed: 7, nodeCount: 8, linkDensity: 0.6, k: 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(tc.seed))
			topo := generateRandomTopology(t, tc.nodeCount, rng, tc.linkDensity)
			log.Infof("Generated topology: nodes=%d, links=%d", topo.NodeCount(), topo.EdgeCount())

			nodes := topo.Nodes()
			for attempt := 0; attempt < 4; attempt++ {
				source := nodes[rng.Intn(len(nodes))]
				destination := nodes[rng.Intn(len(nodes))]
				if source == destination {
					continue
				}

				expected := enumerateSimplePaths(t, topo, source, destination)
				require.NotEmpty(t, expected, "backbone keeps the topology connected")

				best, err := ShortestPath(topo, source, destination)
				require.NoError(t, err)
				assert.InDelta(t, expected[0], best.Score, 1e-12, "%s -> %s", source, destination)
				for _, score := range expected {
					assert.GreaterOrEqual(t, best.Score, score*(1-1e-12))
				}

				paths, err := KShortest(topo, Flow{Source: source, Destination: destination}, tc.k)
				require.NoError(t, err)
				want := min(tc.k, len(expected))
				require.Len(t, paths, want)
				assert.Equal(t, best.Nodes, paths[0].Nodes)
				assertRanked(t, paths)

				for i, p := range paths {
					log.Infof("  %s -> %s path[%d]: hops=%d, score=%.6f, nodes=%v",
						source, destination, i, p.Hops(), p.Score, p.Nodes)
					assert.InDelta(t, expected[i], p.Score, 1e-12)

					weight, err := metric.PathWeight(topo, p.Nodes)
					require.NoError(t, err)
					assert.InDelta(t, p.Score, metric.ScoreFromWeight(weight), 1e-12)
				}
			}
		})
	}
}

// generateRandomTopology creates a random connected quantum network with fixed seed for reproducibility
func generateRandomTopology(t *testing.T, nodeCount int, rng *rand.Rand, linkDensity float64) *topology.Topology {
	t.Helper()
	topo := topology.New()
	ids := make([]string, nodeCount)
	for i := 0; i < nodeCount; i++ {
		ids[i] = fmt.Sprintf("q%02d", i)
		pSwap := 0.5 + rng.Float64()*0.5
		require.NoError(t, topo.AddNode(ids[i], pSwap))
	}

	// Create a backbone: connect node i to node i+1
	for i := 0; i < nodeCount-1; i++ {
		require.NoError(t, topo.AddEdge(ids[i], ids[i+1], 0.3+rng.Float64()*0.7))
	}

	for i := 0; i < nodeCount; i++ {
		for j := i + 2; j < nodeCount; j++ {
			if rng.Float64() < linkDensity {
				require.NoError(t, topo.AddEdge(ids[i], ids[j], 0.1+rng.Float64()*0.9))
			}
		}
	}
	return topo
}

// BenchmarkKShortestPerformance benchmarks KShortest on a 50 node network
func BenchmarkKShortestPerformance(b *testing.B) {
	rng := rand.New(rand.NewSource(999))
	topo := topology.New()
	const nodeCount = 50
	for i := 0; i < nodeCount; i++ {
		_ = topo.AddNode(fmt.Sprintf("q%02d", i), 0.5+rng.Float64()*0.5)
	}
	for i := 0; i < nodeCount; i++ {
		for j := i + 1; j < nodeCount; j++ {
			if j == i+1 || rng.Float64() < 0.15 {
				_ = topo.AddEdge(fmt.Sprintf("q%02d", i), fmt.Sprintf("q%02d", j), 0.1+rng.Float64()*0.9)
			}
		}
	}
	flow := Flow{Source: "q00", Destination: "q49"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = KShortest(topo, flow, 5)
	}
}
