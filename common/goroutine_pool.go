package common

import (
	"qrouting/collector"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"
)

const DefaultMaxWorkers = 4

type PoolConfig struct {
	MaxWorkers int // 0 means one worker per logical CPU
}

func NewPool(config PoolConfig) (*ants.Pool, error) {
	workers := collector.WorkerCount(config.MaxWorkers, DefaultMaxWorkers)

	pool, err := ants.NewPool(workers)
	if err != nil {
		log.Errorf("Failed to create ants goroutine pool: %v", err)
		return nil, err
	}

	log.Infof("NewPool: route calculation pool created, workers=%d", workers)
	return pool, nil
}
