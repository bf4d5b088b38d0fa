package snapshot_sync

import (
	"context"
	"fmt"

	"qrouting/common"
	"qrouting/link_model"
	"qrouting/loader"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// TopologyWatcher rebuilds the topology whenever the snapshot key changes and
// swaps it into the manager. Queries in flight keep the snapshot they started on.
type TopologyWatcher struct {
	client  *clientv3.Client
	config  EtcdConfig
	manager *common.TopologyManager
	params  link_model.Params
}

func NewTopologyWatcher(config EtcdConfig, manager *common.TopologyManager, params link_model.Params) (*TopologyWatcher, error) {
	config = config.WithDefaults()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &TopologyWatcher{client: client, config: config, manager: manager, params: params}, nil
}

func (tw *TopologyWatcher) Close() {
	if tw.client != nil {
		tw.client.Close()
	}
}

// ApplySnapshot decodes a JSON snapshot, builds it and swaps it in.
// A snapshot that fails to build leaves the current topology in place.
func (tw *TopologyWatcher) ApplySnapshot(data []byte) error {
	snapshot, err := loader.DecodeJSON(data)
	if err != nil {
		return err
	}
	topo, err := snapshot.Build(tw.params)
	if err != nil {
		return fmt.Errorf("build topology snapshot: %w", err)
	}
	tw.manager.SetTopology(topo)
	return nil
}

// Start loads the current snapshot, then follows updates until ctx is done
func (tw *TopologyWatcher) Start(ctx context.Context) error {
	resp, err := tw.client.Get(ctx, tw.config.TopologyKey)
	if err != nil {
		return fmt.Errorf("failed to get topology key %s: %w", tw.config.TopologyKey, err)
	}
	revision := resp.Header.Revision
	if len(resp.Kvs) > 0 {
		if err := tw.ApplySnapshot(resp.Kvs[0].Value); err != nil {
			log.Warnf("TopologyWatcher: ignoring invalid snapshot at %s: %v", tw.config.TopologyKey, err)
		}
	} else {
		log.Warnf("TopologyWatcher: no snapshot at %s yet", tw.config.TopologyKey)
	}

	watchChan := tw.client.Watch(ctx, tw.config.TopologyKey, clientv3.WithRev(revision+1))
	log.Infof("TopologyWatcher: watching %s from revision %d", tw.config.TopologyKey, revision+1)

	for {
		select {
		case <-ctx.Done():
			log.Infof("TopologyWatcher: shutting down")
			return nil

		case watchResp, ok := <-watchChan:
			if !ok {
				return fmt.Errorf("watch channel closed")
			}
			if err := watchResp.Err(); err != nil {
				return fmt.Errorf("watch topology key: %w", err)
			}
			for _, event := range watchResp.Events {
				if event.Type != clientv3.EventTypePut {
					log.Warnf("TopologyWatcher: topology key deleted, keeping current snapshot")
					continue
				}
				if err := tw.ApplySnapshot(event.Kv.Value); err != nil {
					log.Warnf("TopologyWatcher: ignoring invalid snapshot at revision %d: %v", event.Kv.ModRevision, err)
				}
			}
		}
	}
}
