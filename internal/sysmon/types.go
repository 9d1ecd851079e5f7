// Package sysmon samples host CPU, memory, load and disk usage for the
// dashboard header.
package sysmon

import "time"

// CPU holds processor utilisation for one sample.
type CPU struct {
	Percent float64
	Cores   int
	LoadAvg [3]float64
}

// Memory holds RAM usage in bytes.
type Memory struct {
	Total     uint64
	Used      uint64
	Available uint64
}

// Percent returns used memory as a percentage of total.
func (m Memory) Percent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used) / float64(m.Total) * 100
}

// Disk holds filesystem usage for a mount path.
type Disk struct {
	Path  string
	Total uint64
	Used  uint64
	Free  uint64
}

// Percent returns used space as a percentage of total.
func (d Disk) Percent() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Used) / float64(d.Total) * 100
}

// Sample is one reading of host resources.
type Sample struct {
	Time   time.Time
	CPU    CPU
	Memory Memory
	Disks  []Disk
}
