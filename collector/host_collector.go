package collector

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

type CPUInfo struct {
	LogicalCores  int
	PhysicalCores int
	ModelName     string
}

type MemoryInfo struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
}

type LoadInfo struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// HostInfo is what the planner needs to know about the machine it runs on
type HostInfo struct {
	Hostname   string
	OS         string
	CPUInfo    CPUInfo
	MemoryInfo MemoryInfo
	LoadInfo   LoadInfo
}

func GetCPUInfo() (CPUInfo, error) {
	logical, err := cpu.Counts(true)
	if err != nil {
		return CPUInfo{}, fmt.Errorf("failed to get logical CPU count: %w", err)
	}
	physical, err := cpu.Counts(false)
	if err != nil {
		physical = logical
	}

	var modelName string
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		modelName = infos[0].ModelName
	}

	return CPUInfo{
		LogicalCores:  logical,
		PhysicalCores: physical,
		ModelName:     modelName,
	}, nil
}

func GetMemoryInfo() (MemoryInfo, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("failed to get memory info: %w", err)
	}

	return MemoryInfo{
		Total:       v.Total,
		Available:   v.Available,
		UsedPercent: v.UsedPercent,
	}, nil
}

func GetLoadInfo() (LoadInfo, error) {
	avg, err := load.Avg()
	if err != nil {
		return LoadInfo{}, fmt.Errorf("failed to get load average: %w", err)
	}
	return LoadInfo{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// CollectHostInfo gathers CPU, memory and load. CPU is required, the rest is best effort.
func CollectHostInfo() (HostInfo, error) {
	var info HostInfo

	cpuInfo, err := GetCPUInfo()
	if err != nil {
		return HostInfo{}, err
	}
	info.CPUInfo = cpuInfo

	if memInfo, err := GetMemoryInfo(); err == nil {
		info.MemoryInfo = memInfo
	} else {
		log.Warnf("CollectHostInfo: %v", err)
	}
	if loadInfo, err := GetLoadInfo(); err == nil {
		info.LoadInfo = loadInfo
	} else {
		log.Warnf("CollectHostInfo: %v", err)
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.OS = hostInfo.OS
	} else {
		log.Warnf("CollectHostInfo: failed to get host info: %v", err)
	}

	return info, nil
}

// WorkerCount sizes a route calculation pool: configured wins, otherwise one
// worker per logical CPU, otherwise fallback.
func WorkerCount(configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	cpuInfo, err := GetCPUInfo()
	if err != nil || cpuInfo.LogicalCores <= 0 {
		log.Warnf("WorkerCount: cannot detect CPUs (err=%v), using %d workers", err, fallback)
		return fallback
	}
	return cpuInfo.LogicalCores
}
