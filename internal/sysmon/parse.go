package sysmon

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// cpuTimes is the aggregate jiffy counter from /proc/stat.
type cpuTimes struct {
	total uint64
	idle  uint64
}

// percentSince returns busy time between prev and t as a percentage.
// A zero prev yields the average since boot.
func (t cpuTimes) percentSince(prev cpuTimes) float64 {
	if t.total <= prev.total {
		return 0
	}
	total := t.total - prev.total
	idle := t.idle - prev.idle
	if idle > total {
		return 0
	}
	return float64(total-idle) / float64(total) * 100
}

func parseProcStat(content string) (cpuTimes, int, error) {
	var times cpuTimes
	cores := 0
	found := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			cores++
			continue
		}
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return cpuTimes{}, 0, fmt.Errorf("invalid /proc/stat cpu line: %s", line)
		}
		// user nice system idle iowait irq softirq steal guest guest_nice
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return cpuTimes{}, 0, fmt.Errorf("parse cpu field %d: %w", i, err)
			}
			times.total += val
			if i == 4 || i == 5 {
				times.idle += val
			}
		}
		found = true
	}
	if err := scanner.Err(); err != nil {
		return cpuTimes{}, 0, fmt.Errorf("scan /proc/stat: %w", err)
	}
	if !found {
		return cpuTimes{}, 0, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return times, cores, nil
}

func parseLoadavg(content string) ([3]float64, error) {
	var load [3]float64
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) < 3 {
		return load, fmt.Errorf("invalid /proc/loadavg: %q", content)
	}
	for i := 0; i < 3; i++ {
		val, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return load, fmt.Errorf("parse loadavg field %d: %w", i, err)
		}
		load[i] = val
	}
	return load, nil
}

// parseMeminfo computes used memory as MemTotal - MemAvailable. Kernels
// without MemAvailable fall back to MemFree + Buffers + Cached.
func parseMeminfo(content string) (Memory, error) {
	values := make(map[string]uint64)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		val, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		values[strings.TrimSuffix(parts[0], ":")] = val * 1024
	}
	if err := scanner.Err(); err != nil {
		return Memory{}, fmt.Errorf("scan /proc/meminfo: %w", err)
	}

	total, ok := values["MemTotal"]
	if !ok || total == 0 {
		return Memory{}, fmt.Errorf("MemTotal missing from /proc/meminfo")
	}
	available, ok := values["MemAvailable"]
	if !ok {
		available = values["MemFree"] + values["Buffers"] + values["Cached"]
	}
	if available > total {
		available = total
	}
	return Memory{Total: total, Used: total - available, Available: available}, nil
}
