package snapshot_sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qrouting/loader"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Publisher writes topology snapshots and route tasks to etcd
type Publisher struct {
	client      *clientv3.Client
	publisherID string
	config      EtcdConfig
}

func NewPublisher(config EtcdConfig) (*Publisher, error) {
	config = config.WithDefaults()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &Publisher{
		client:      client,
		publisherID: fmt.Sprintf("publisher-%d", time.Now().Unix()),
		config:      config,
	}, nil
}

func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// PublishTopology replaces the snapshot stored under the topology key
func (p *Publisher) PublishTopology(ctx context.Context, snapshot *loader.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	data, err := loader.EncodeJSON(snapshot)
	if err != nil {
		return err
	}
	if _, err := p.client.Put(ctx, p.config.TopologyKey, string(data)); err != nil {
		return fmt.Errorf("failed to publish topology: %w", err)
	}
	log.Infof("[%s] Topology published: key=%s, nodes=%d, edges=%d",
		p.publisherID, p.config.TopologyKey, len(snapshot.Nodes), len(snapshot.Edges))
	return nil
}

func NewRouteTask(taskType string, query RouteQuery) (Task, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return Task{}, fmt.Errorf("failed to marshal route query: %w", err)
	}
	return Task{
		ID:        "task-" + uuid.New().String(),
		Type:      taskType,
		Payload:   string(payload),
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}, nil
}

func (p *Publisher) PublishTask(ctx context.Context, task Task) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if _, err := p.client.Put(ctx, p.config.TaskPrefix+task.ID, string(taskJSON)); err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}

	log.Infof("[%s] Task published: %s (Type: %s)", p.publisherID, task.ID, task.Type)
	return nil
}

func (p *Publisher) GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error) {
	resp, err := p.client.Get(ctx, p.config.ResultPrefix+taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task result: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return nil, nil
	}

	var result TaskResult
	if err := json.Unmarshal(resp.Kvs[0].Value, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
	}

	return &result, nil
}

// WaitTaskResult polls for the result of taskID until it appears or ctx ends
func (p *Publisher) WaitTaskResult(ctx context.Context, taskID string, interval time.Duration) (*TaskResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := p.GetTaskResult(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}
