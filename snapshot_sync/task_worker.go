package snapshot_sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"qrouting/common"
	"qrouting/routing"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	TaskTypeBestRoute  = "route.best"
	TaskTypeTopKRoutes = "route.top_k"
)

// TaskProcessor answers one task and reports the topology generation it used
type TaskProcessor func(task Task) (string, uint64, error)

// TaskWorker answers route tasks queued under the task prefix against the
// current topology snapshot
type TaskWorker struct {
	client     *clientv3.Client
	workerID   string
	processors map[string]TaskProcessor
	config     EtcdConfig
	manager    *common.TopologyManager
	defaultK   int
	wg         sync.WaitGroup
}

func NewTaskWorker(config EtcdConfig, manager *common.TopologyManager, defaultK int) (*TaskWorker, error) {
	config = config.WithDefaults()
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return newTaskWorker(client, config, manager, defaultK), nil
}

func newTaskWorker(client *clientv3.Client, config EtcdConfig, manager *common.TopologyManager, defaultK int) *TaskWorker {
	if defaultK <= 0 {
		defaultK = routing.DefaultK
	}
	return &TaskWorker{
		client:     client,
		workerID:   fmt.Sprintf("worker-%d", time.Now().Unix()),
		processors: make(map[string]TaskProcessor),
		config:     config,
		manager:    manager,
		defaultK:   defaultK,
	}
}

func (w *TaskWorker) Close() {
	w.wg.Wait()
	if w.client != nil {
		w.client.Close()
	}
}

func (w *TaskWorker) RegisterProcessor(taskType string, processor TaskProcessor) {
	w.processors[taskType] = processor
}

func (w *TaskWorker) RegisterDefaultProcessors() {
	w.RegisterProcessor(TaskTypeBestRoute, func(task Task) (string, uint64, error) {
		query, err := decodeQuery(task)
		if err != nil {
			return "", 0, err
		}
		topo, generation, err := w.manager.Current()
		if err != nil {
			return "", 0, err
		}
		route, err := routing.BestRoute(topo, query.Source, query.Destination)
		if err != nil {
			return "", generation, err
		}
		return encodeResult(route, generation)
	})

	w.RegisterProcessor(TaskTypeTopKRoutes, func(task Task) (string, uint64, error) {
		query, err := decodeQuery(task)
		if err != nil {
			return "", 0, err
		}
		k := query.K
		if k <= 0 {
			k = w.defaultK
		}
		topo, generation, err := w.manager.Current()
		if err != nil {
			return "", 0, err
		}
		routes, err := routing.TopKRoutes(topo, query.Source, query.Destination, k)
		if err != nil {
			return "", generation, err
		}
		return encodeResult(routes, generation)
	})
}

func decodeQuery(task Task) (RouteQuery, error) {
	var query RouteQuery
	if err := json.Unmarshal([]byte(task.Payload), &query); err != nil {
		return RouteQuery{}, fmt.Errorf("invalid payload: %w", err)
	}
	return query, nil
}

func encodeResult(v any, generation uint64) (string, uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", generation, fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(data), generation, nil
}

// process runs the registered processor and builds the result record
func (w *TaskWorker) process(task Task) (TaskResult, error) {
	processor, ok := w.processors[task.Type]
	if !ok {
		return TaskResult{}, fmt.Errorf("no processor registered for task type: %s", task.Type)
	}

	result, generation, err := processor(task)
	taskResult := TaskResult{
		TaskID:      task.ID,
		Generation:  generation,
		CompletedAt: time.Now(),
	}
	if err != nil {
		taskResult.Error = err.Error()
		taskResult.ErrorKind, _ = routing.ErrorKind(err)
	} else {
		taskResult.Result = result
	}
	return taskResult, nil
}

func (w *TaskWorker) Start(ctx context.Context) error {
	log.Infof("[%s] Worker starting, task prefix: %s", w.workerID, w.config.TaskPrefix)
	for taskType := range w.processors {
		log.Infof("[%s] - %s", w.workerID, taskType)
	}

	watchChan := w.client.Watch(ctx, w.config.TaskPrefix, clientv3.WithPrefix())

	for {
		select {
		case <-ctx.Done():
			log.Infof("[%s] Worker shutting down...", w.workerID)
			return nil

		case resp, ok := <-watchChan:
			if !ok {
				return fmt.Errorf("watch channel closed")
			}
			if err := resp.Err(); err != nil {
				return fmt.Errorf("watch task prefix: %w", err)
			}

			for _, event := range resp.Events {
				if event.Type == clientv3.EventTypePut {
					w.wg.Add(1)
					go func(ev *clientv3.Event) {
						defer w.wg.Done()
						w.handleTaskEvent(ctx, ev)
					}(event)
				}
			}
		}
	}
}

func (w *TaskWorker) handleTaskEvent(ctx context.Context, event *clientv3.Event) {
	var task Task
	if err := json.Unmarshal(event.Kv.Value, &task); err != nil {
		log.Errorf("[%s] Failed to unmarshal task: %v", w.workerID, err)
		return
	}

	if task.Status != StatusPending {
		return
	}

	// claim the task only if nobody changed it since this event
	task.Status = StatusProcessing
	taskJSON, _ := json.Marshal(task)
	key := string(event.Kv.Key)
	txn, err := w.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", event.Kv.ModRevision)).
		Then(clientv3.OpPut(key, string(taskJSON))).
		Commit()
	if err != nil {
		log.Errorf("[%s] Failed to update task status: %v", w.workerID, err)
		return
	}
	if !txn.Succeeded {
		log.Infof("[%s] Task %s already claimed", w.workerID, task.ID)
		return
	}

	log.Infof("[%s] Processing task: %s (Type: %s)", w.workerID, task.ID, task.Type)

	taskResult, err := w.process(task)
	if err != nil {
		log.Errorf("[%s] %v", w.workerID, err)
		taskResult = TaskResult{TaskID: task.ID, Error: err.Error(), CompletedAt: time.Now()}
	}
	if taskResult.Error != "" {
		task.Status = StatusFailed
		log.Errorf("[%s] Task processing failed: %s - %s", w.workerID, task.ID, taskResult.Error)
	} else {
		task.Status = StatusCompleted
		log.Infof("[%s] Task completed successfully: %s - Result: %s", w.workerID, task.ID, taskResult.Result)
	}

	resultJSON, _ := json.Marshal(taskResult)
	if _, err := w.client.Put(ctx, w.config.ResultPrefix+task.ID, string(resultJSON)); err != nil {
		log.Errorf("[%s] Failed to store task result: %v", w.workerID, err)
		return
	}

	taskJSON, _ = json.Marshal(task)
	if _, err := w.client.Put(ctx, key, string(taskJSON)); err != nil {
		log.Errorf("[%s] Failed to update task status after completion: %v", w.workerID, err)
	}
}

func (w *TaskWorker) Run(ctx context.Context) error {
	w.RegisterDefaultProcessors()
	return w.Start(ctx)
}
