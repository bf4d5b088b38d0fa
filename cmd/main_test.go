package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[log]
dir = ""
level = "warn"

[planner]
max_workers = 2
default_k = 2
`

const testTopology = `
[[nodes]]
id = "A"

[[nodes]]
id = "B"
p_swap = 0.95

[[nodes]]
id = "C"

[[nodes]]
id = "D"

[[nodes]]
id = "X"

[[nodes]]
id = "Y"

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
node_b = "D"
distance_m = 2000.0

[[edges]]
node_a = "X"
node_b = "Y"
p_link = 0.7
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	dir := t.TempDir()
	flags := []string{
		"--config", writeFile(t, dir, "qrouting_config.toml", testConfig),
		"--topology", writeFile(t, dir, "net.toml", testTopology),
	}
	var stdout, stderr bytes.Buffer
	code := run(append(args, flags...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunBestRoute(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--src", "A", "--dst", "C")
	require.Equal(t, 0, code, stderr)

	var out report
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.NotNil(t, out.BestRoute)
	assert.Equal(t, []string{"A", "B", "C"}, out.BestRoute.Path)
	assert.InDelta(t, 0.684, out.BestRoute.Score, 1e-12)
	assert.Equal(t, 2, out.BestRoute.Hops)
	assert.Nil(t, out.BestRoute.RatePerSecond)
	assert.Empty(t, out.TopKRoutes)
}

func TestRunTopKRoutes(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--src", "A", "--dst", "C", "-k", "5")
	require.Equal(t, 0, code, stderr)

	var out report
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out.TopKRoutes, 2)
	assert.Equal(t, []string{"A", "B", "C"}, out.TopKRoutes[0].Path)
	assert.Equal(t, []string{"A", "C"}, out.TopKRoutes[1].Path)
	assert.InDelta(t, 0.5, out.TopKRoutes[1].Score, 1e-12)
	assert.InDelta(t, 1.0, out.TopKRoutes[0].Share+out.TopKRoutes[1].Share, 1e-9)
	assert.Greater(t, out.TopKRoutes[0].Share, out.TopKRoutes[1].Share)
}

func TestRunReportsRateForMeasuredLinks(t *testing.T) {
	code, stdout, stderr := runCLI(t, "--src", "C", "--dst", "D")
	require.Equal(t, 0, code, stderr)

	var out report
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.NotNil(t, out.BestRoute)
	require.NotNil(t, out.BestRoute.RatePerSecond)
	assert.Greater(t, *out.BestRoute.RatePerSecond, 0.0)
}

func TestRunAllPairs(t *testing.T) {
	code, stdout, stderr := runCLI(t, "all-pairs", "--k", "2")
	require.Equal(t, 0, code, stderr)

	var out allPairsReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Len(t, out.Pairs, 15)
	require.NotNil(t, out.Best)
	assert.NotEmpty(t, out.Best.Routes)

	unreachable := 0
	for _, p := range out.Pairs {
		if p.Error != "" {
			assert.Equal(t, "NoRouteError", p.Error)
			unreachable++
		}
	}
	assert.Equal(t, 8, unreachable)
}

func TestRunErrors(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		wantCode int
		wantKind string
	}{
		{name: "unknown node", args: []string{"--src", "A", "--dst", "Z"}, wantCode: 5, wantKind: "UnknownNodeError"},
		{name: "no route", args: []string{"--src", "A", "--dst", "X"}, wantCode: 8, wantKind: "NoRouteError"},
		{name: "missing destination", args: []string{"--src", "A"}, wantCode: 2},
		{name: "watch without serve", args: []string{"--watch", "--src", "A", "--dst", "C"}, wantCode: 2},
		{name: "stray argument", args: []string{"--src", "A", "--dst", "C", "extra"}, wantCode: 2},
		{name: "submit without destination", args: []string{"submit", "--src", "A"}, wantCode: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tc.args...)
			assert.Equal(t, tc.wantCode, code)
			assert.Empty(t, stdout)
			if tc.wantKind != "" {
				assert.True(t, strings.HasPrefix(stderr, tc.wantKind+":"), stderr)
			}
		})
	}
}

func TestRunRejectsDuplicateEdge(t *testing.T) {
	dir := t.TempDir()
	topo := "[[nodes]]\nid = \"A\"\n[[nodes]]\nid = \"B\"\n" +
		"[[edges]]\nnode_a = \"A\"\nnode_b = \"B\"\np_link = 0.5\n" +
		"[[edges]]\nnode_a = \"B\"\nnode_b = \"A\"\np_link = 0.6\n"
	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--config", writeFile(t, dir, "qrouting_config.toml", testConfig),
		"--topology", writeFile(t, dir, "net.toml", topo),
		"--src", "A", "--dst", "B",
	}, &stdout, &stderr)
	assert.Equal(t, 4, code)
	assert.True(t, strings.HasPrefix(stderr.String(), "DuplicateEdgeError:"), stderr.String())
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "all-pairs")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	cfg, err = loadConfig(writeFile(t, t.TempDir(), "qrouting_config.toml", testConfig))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Planner.DefaultK)
	assert.Equal(t, 2, cfg.Planner.MaxWorkers)
	assert.Equal(t, "", cfg.Log.Dir)
	assert.Equal(t, "127.0.0.1:50061", cfg.Service.ListenAddr)
	assert.Empty(t, cfg.Service.MetricsAddr)
	assert.Equal(t, defaultConfig().Physics, cfg.Physics)
}
