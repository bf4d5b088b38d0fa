package snapshot_sync

import "time"

const (
	DefaultTopologyKey  = "/qrouting/topology"
	DefaultTaskPrefix   = "/qrouting/route_tasks/"
	DefaultResultPrefix = "/qrouting/route_results/"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type EtcdConfig struct {
	Endpoints    []string      `toml:"endpoints"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	TopologyKey  string        `toml:"topology_key"`
	TaskPrefix   string        `toml:"task_prefix"`
	ResultPrefix string        `toml:"result_prefix"`
}

func DefaultEtcdConfig() EtcdConfig {
	return EtcdConfig{
		Endpoints:    []string{"localhost:2379"},
		DialTimeout:  5 * time.Second,
		TopologyKey:  DefaultTopologyKey,
		TaskPrefix:   DefaultTaskPrefix,
		ResultPrefix: DefaultResultPrefix,
	}
}

// WithDefaults fills empty fields from DefaultEtcdConfig
func (c EtcdConfig) WithDefaults() EtcdConfig {
	d := DefaultEtcdConfig()
	if len(c.Endpoints) == 0 {
		c.Endpoints = d.Endpoints
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.TopologyKey == "" {
		c.TopologyKey = d.TopologyKey
	}
	if c.TaskPrefix == "" {
		c.TaskPrefix = d.TaskPrefix
	}
	if c.ResultPrefix == "" {
		c.ResultPrefix = d.ResultPrefix
	}
	return c
}

// Task is a route query queued in etcd
type Task struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"` // "pending", "processing", "completed", "failed"
}

type TaskResult struct {
	TaskID      string    `json:"task_id"`
	Result      string    `json:"result"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	Generation  uint64    `json:"generation"`
	CompletedAt time.Time `json:"completed_at"`
}

// RouteQuery is the payload of route tasks
type RouteQuery struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	K           int    `json:"k,omitempty"`
}
