package loader

import (
	"os"
	"path/filepath"
	"testing"

	"qrouting/link_model"
	"qrouting/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioTOML = `
[[nodes]]
id = "A"

[[nodes]]
id = "B"
p_swap = 0.95

[[nodes]]
id = "C"

[[nodes]]
id = "R"
role = "repeater"

[[edges]]
node_a = "A"
node_b = "B"
p_link = 0.9

[[edges]]
node_a = "B"
node_b = "C"
p_link = 0.8

[[edges]]
node_a = "A"
node_b = "C"
p_link = 0.5

[[edges]]
node_a = "C"
node_b = "R"
distance_m = 5000.0
`

const scenarioJSON = `{
  "nodes": [{"id": "A"}, {"id": "B", "p_swap": 0.95}, {"id": "C"}],
  "edges": [
    {"node_a": "A", "node_b": "B", "p_link": 0.9},
    {"node_a": "B", "node_b": "C", "p_link": 0.8},
    {"node_a": "A", "node_b": "C", "p_link": 0.5}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTopologyTOML(t *testing.T) {
	params := link_model.DefaultParams()
	topo, snapshot, err := LoadTopology(writeFile(t, "net.toml", scenarioTOML), params)
	require.NoError(t, err)
	assert.Len(t, snapshot.Nodes, 4)
	assert.Equal(t, 4, topo.NodeCount())
	assert.Equal(t, 4, topo.EdgeCount())

	pSwap, err := topo.SwapProbability("B")
	require.NoError(t, err)
	assert.Equal(t, 0.95, pSwap)

	pSwap, err = topo.SwapProbability("R")
	require.NoError(t, err)
	assert.Equal(t, params.SwapProbability(), pSwap)

	pSwap, err = topo.SwapProbability("A")
	require.NoError(t, err)
	assert.Equal(t, 1.0, pSwap)

	pLink, ok := topo.LinkProbability("R", "C")
	require.True(t, ok)
	assert.Equal(t, params.SuccessProbability(5000), pLink)

	distances, ok := snapshot.HopDistances([]string{"C", "R"})
	require.True(t, ok)
	assert.Equal(t, []float64{5000}, distances)
	_, ok = snapshot.HopDistances([]string{"A", "C", "R"})
	assert.False(t, ok)
}

func TestLoadTopologyJSON(t *testing.T) {
	topo, _, err := LoadTopology(writeFile(t, "net.json", scenarioJSON), link_model.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, topo.Nodes())
	assert.Equal(t, 3, topo.EdgeCount())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "net.yaml", "nodes: []"))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	_, err = LoadFile(writeFile(t, "net.json", "{not json"))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)

	_, err = LoadFile(writeFile(t, "net.toml", "[[nodes]\nid ="))
	assert.ErrorIs(t, err, ErrMalformedSnapshot)
}

func TestValidateRejectsMalformedRecords(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "nan p_link",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\np_link = nan\n",
			wantErr: topology.ErrInvalidProbability,
		},
		{
			name:    "zero p_link",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\np_link = 0.0\n",
			wantErr: topology.ErrInvalidProbability,
		},
		{
			name:    "p_swap above one",
			content: "[[nodes]]\nid = \"A\"\np_swap = 1.2\n",
			wantErr: topology.ErrInvalidProbability,
		},
		{
			name:    "negative distance",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\ndistance_m = -1.0\n",
			wantErr: ErrMalformedSnapshot,
		},
		{
			name:    "edge without weight",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\n",
			wantErr: ErrMalformedSnapshot,
		},
		{
			name:    "empty id",
			content: "[[nodes]]\nid = \"\"\n",
			wantErr: ErrMalformedSnapshot,
		},
		{
			name:    "duplicate node",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"A\"\n",
			wantErr: topology.ErrDuplicateNode,
		},
		{
			name:    "duplicate edge",
			content: "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\np_link = 0.5\n[[edges]]\nnode_a = \"B\"\nnode_b = \"A\"\np_link = 0.6\n",
			wantErr: topology.ErrDuplicateEdge,
		},
		{
			name:    "unknown endpoint",
			content: "[[nodes]]\nid = \"A\"\n[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\np_link = 0.5\n",
			wantErr: topology.ErrUnknownNode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			snapshot, err := DecodeTOML([]byte(tc.content))
			require.NoError(t, err)
			_, err = snapshot.Build(link_model.DefaultParams())
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snapshot, err := DecodeJSON([]byte(scenarioJSON))
	require.NoError(t, err)
	topo, err := snapshot.Build(link_model.DefaultParams())
	require.NoError(t, err)

	data, err := EncodeJSON(FromTopology(topo))
	require.NoError(t, err)
	decoded, err := DecodeJSON(data)
	require.NoError(t, err)
	rebuilt, err := decoded.Build(link_model.DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, topo.Nodes(), rebuilt.Nodes())
	assert.Equal(t, topo.Edges(), rebuilt.Edges())
}
