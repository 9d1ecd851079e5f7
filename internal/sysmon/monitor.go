package sysmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/log"
	"go.uber.org/zap"
)

// DefaultInterval is the sampling cadence used by Run when none is given.
const DefaultInterval = 2 * time.Second

// Monitor samples host resources and keeps the latest reading.
type Monitor struct {
	procDir   string
	diskPaths []string
	logger    *log.Logger
	diskUsage func(path string) (Disk, error)

	mu       sync.RWMutex
	latest   Sample
	prevCPU  cpuTimes
	hasFirst bool
}

// NewMonitor returns a monitor reading /proc and the given disk paths.
func NewMonitor(diskPaths []string, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Nop()
	}
	paths := append([]string(nil), diskPaths...)
	if len(paths) == 0 {
		paths = []string{"/"}
	}
	return &Monitor{
		procDir:   "/proc",
		diskPaths: paths,
		logger:    logger,
		diskUsage: diskUsage,
	}
}

// Latest returns the most recent sample. It is zero until the first
// successful Collect.
func (m *Monitor) Latest() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.latest
	out.Disks = append([]Disk(nil), m.latest.Disks...)
	return out
}

// Collect takes one sample and stores it as the latest. Disk errors are
// logged and the path is skipped; CPU and memory errors fail the sample
// and leave the previous one in place.
func (m *Monitor) Collect() (Sample, error) {
	statRaw, err := m.readProc("stat")
	if err != nil {
		return Sample{}, err
	}
	times, cores, err := parseProcStat(statRaw)
	if err != nil {
		return Sample{}, err
	}
	memRaw, err := m.readProc("meminfo")
	if err != nil {
		return Sample{}, err
	}
	mem, err := parseMeminfo(memRaw)
	if err != nil {
		return Sample{}, err
	}

	sample := Sample{
		Time:   time.Now(),
		CPU:    CPU{Cores: cores},
		Memory: mem,
	}
	if loadRaw, err := m.readProc("loadavg"); err == nil {
		if load, err := parseLoadavg(loadRaw); err == nil {
			sample.CPU.LoadAvg = load
		}
	}

	for _, path := range m.diskPaths {
		disk, err := m.diskUsage(path)
		if err != nil {
			m.logger.Warn(log.CategorySystem, "disk usage unavailable", zap.String("path", path), zap.Error(err))
			continue
		}
		sample.Disks = append(sample.Disks, disk)
	}

	m.mu.Lock()
	if m.hasFirst {
		sample.CPU.Percent = times.percentSince(m.prevCPU)
	} else {
		sample.CPU.Percent = times.percentSince(cpuTimes{})
	}
	m.prevCPU = times
	m.hasFirst = true
	m.latest = sample
	m.mu.Unlock()

	return sample, nil
}

// Run samples every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.collectAndLog()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.collectAndLog()
		}
	}
}

func (m *Monitor) collectAndLog() {
	if _, err := m.Collect(); err != nil {
		m.logger.Warn(log.CategorySystem, "system sample failed", zap.Error(err))
	}
}

func (m *Monitor) readProc(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(m.procDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s not available: %w", name, err)
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}
