package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"qrouting/link_model"
	"qrouting/routing"
	"qrouting/snapshot_sync"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// QRoutingConfig struct to hold configuration from toml file
type QRoutingConfig struct {
	Log     LogConfig                `toml:"log"`
	Planner PlannerConfig            `toml:"planner"`
	Physics link_model.Params        `toml:"physics"`
	Etcd    snapshot_sync.EtcdConfig `toml:"etcd"`
	Service ServiceConfig            `toml:"service"`
}

type LogConfig struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type PlannerConfig struct {
	MaxWorkers int `toml:"max_workers"` // 0 means one per logical CPU
	DefaultK   int `toml:"default_k"`
}

type ServiceConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"` // empty disables /metrics
}

func defaultConfig() *QRoutingConfig {
	return &QRoutingConfig{
		Log: LogConfig{
			Dir:        "./logs",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Planner: PlannerConfig{DefaultK: routing.DefaultK},
		Physics: link_model.DefaultParams(),
		Etcd:    snapshot_sync.DefaultEtcdConfig(),
		Service: ServiceConfig{ListenAddr: "127.0.0.1:50061"},
	}
}

// loadConfig decodes path over the defaults. A missing file keeps the defaults.
func loadConfig(path string) (*QRoutingConfig, error) {
	config := defaultConfig()
	if _, err := toml.DecodeFile(path, config); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warningf("config file %s not found, using defaults", path)
			return config, nil
		}
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	config.Physics = config.Physics.WithDefaults()
	config.Etcd = config.Etcd.WithDefaults()
	if config.Planner.DefaultK <= 0 {
		log.Warningf("planner default_k not specified in config, using %d", routing.DefaultK)
		config.Planner.DefaultK = routing.DefaultK
	}
	if config.Service.ListenAddr == "" {
		log.Warningf("service listen_addr not specified in config, using 127.0.0.1:50061")
		config.Service.ListenAddr = "127.0.0.1:50061"
	}
	return config, nil
}

// setupLogging sends logs to stderr and to a rotated file. Stdout is kept for reports.
func setupLogging(cfg LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			log.Warnf("cannot create log dir %s: %v, logging to stderr only", cfg.Dir, err)
		} else {
			fileLogger := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Dir, "qrouting.log"),
				MaxSize:    cfg.MaxSizeMB, // MB
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays, // Days
				Compress:   cfg.Compress,
			}
			out = io.MultiWriter(os.Stderr, fileLogger)
		}
	}
	log.SetOutput(out)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(level)

	log.Debugf("Logging initialized: dir=%s, level=%s", cfg.Dir, level)
}
