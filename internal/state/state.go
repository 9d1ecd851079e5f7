package state

import (
	"time"

	"github.com/doridoridoriand/nodeboard/internal/config"
)

// Status represents node health.
type Status string

const (
	StatusHealthy   Status = "Healthy"
	StatusUnhealthy Status = "Unhealthy"
	StatusError     Status = "Error"
)

// HealthRecord is the last known reachability result for one node.
type HealthRecord struct {
	IP             string
	Type           config.NodeType
	Status         Status
	ResponseTimeMs int64
	LastCheck      time.Time
	Recommendation string
}

// Point records a single response time measurement.
type Point struct {
	Time         time.Time
	ResponseTime time.Duration
	Status       Status
}

// Store holds the latest HealthRecord per node name. Writers replace whole
// records; readers get copies.
type Store interface {
	Write(name string, record HealthRecord)
	ReadAll() map[string]HealthRecord
	Get(name string) (HealthRecord, bool)
	History(name string) []Point
	Len() int
}
