package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"qrouting/link_model"
	"qrouting/topology"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// LoadFile reads a .toml or .json topology snapshot
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file %s: %w", path, err)
	}

	var snapshot *Snapshot
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		snapshot, err = DecodeTOML(data)
	case ".json":
		snapshot, err = DecodeJSON(data)
	default:
		return nil, fmt.Errorf("topology file %s: unsupported extension %q: %w", path, ext, ErrMalformedSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("topology file %s: %w", path, err)
	}

	log.Infof("LoadFile: loaded %s, nodes=%d, edges=%d", path, len(snapshot.Nodes), len(snapshot.Edges))
	return snapshot, nil
}

// LoadTopology reads a snapshot file and builds the topology from it
func LoadTopology(path string, params link_model.Params) (*topology.Topology, *Snapshot, error) {
	snapshot, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	topo, err := snapshot.Build(params)
	if err != nil {
		return nil, nil, fmt.Errorf("topology file %s: %w", path, err)
	}
	return topo, snapshot, nil
}

func DecodeTOML(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if _, err := toml.Decode(string(data), &snapshot); err != nil {
		return nil, fmt.Errorf("decode toml: %v: %w", err, ErrMalformedSnapshot)
	}
	return &snapshot, nil
}

func DecodeJSON(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode json: %v: %w", err, ErrMalformedSnapshot)
	}
	return &snapshot, nil
}

// EncodeJSON is the wire form used when a snapshot is published
func EncodeJSON(snapshot *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal topology snapshot: %w", err)
	}
	return data, nil
}
