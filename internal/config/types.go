package config

import (
	"path/filepath"
	"strings"
	"time"
)

// NodeType selects which ports a node is probed on.
type NodeType string

const (
	NodeTypeSSH     NodeType = "ssh"
	NodeTypeTelnet  NodeType = "telnet"
	NodeTypeUnknown NodeType = "unknown"
)

// ParseNodeType lower-cases value and maps anything unrecognised to NodeTypeUnknown.
func ParseNodeType(value string) NodeType {
	switch NodeType(strings.ToLower(strings.TrimSpace(value))) {
	case NodeTypeSSH:
		return NodeTypeSSH
	case NodeTypeTelnet:
		return NodeTypeTelnet
	default:
		return NodeTypeUnknown
	}
}

// Node is a single entry of the nodes file.
type Node struct {
	Name string   `json:"name" mapstructure:"name"`
	IP   string   `json:"ip" mapstructure:"ip"`
	Type NodeType `json:"type" mapstructure:"type"`
}

// ScriptConfig describes an automation script the dashboard can launch.
type ScriptConfig struct {
	Name    string   `json:"name" mapstructure:"name"`
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args,omitempty" mapstructure:"args"`
	Dir     string   `json:"dir,omitempty" mapstructure:"dir"`
}

// Settings mirrors settings.json. Durations are stored in seconds.
type Settings struct {
	NodeTimeout         float64        `json:"node_timeout" mapstructure:"node_timeout"`
	MaxConcurrentChecks int            `json:"max_concurrent_checks" mapstructure:"max_concurrent_checks"`
	HealthCheckInterval float64        `json:"health_check_interval" mapstructure:"health_check_interval"`
	RefreshInterval     float64        `json:"refresh_interval" mapstructure:"refresh_interval"`
	Theme               string         `json:"theme" mapstructure:"theme"`
	LogFile             string         `json:"log_file" mapstructure:"log_file"`
	LogLevel            string         `json:"log_level" mapstructure:"log_level"`
	LogDir              string         `json:"log_dir" mapstructure:"log_dir"`
	MetricsListen       string         `json:"metrics_listen" mapstructure:"metrics_listen"`
	UIDisable           bool           `json:"ui_disable" mapstructure:"ui_disable"`
	DiskPaths           []string       `json:"disk_paths" mapstructure:"disk_paths"`
	NodesFile           string         `json:"nodes_file" mapstructure:"nodes_file"`
	Scripts             []ScriptConfig `json:"scripts" mapstructure:"scripts"`
}

// Timeout returns the per-probe timeout.
func (s Settings) Timeout() time.Duration {
	return seconds(s.NodeTimeout)
}

// Interval returns the delay between check cycles.
func (s Settings) Interval() time.Duration {
	return seconds(s.HealthCheckInterval)
}

// Refresh returns the UI redraw cadence.
func (s Settings) Refresh() time.Duration {
	return seconds(s.RefreshInterval)
}

// LogPath returns the application log file. A relative log_file lives
// under log_dir.
func (s Settings) LogPath() string {
	if s.LogFile == "" || filepath.IsAbs(s.LogFile) {
		return s.LogFile
	}
	return filepath.Join(s.LogDir, s.LogFile)
}

// Snapshot is the configuration seen by a single check cycle.
type Snapshot struct {
	Settings Settings
	Nodes    []Node
}

// CLIOverrides holds optional CLI values that override settings file values.
type CLIOverrides struct {
	NodeTimeout         *time.Duration
	HealthCheckInterval *time.Duration
	MaxConcurrentChecks *int
	MetricsListen       *string
	LogLevel            *string
	UIDisable           *bool
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
