package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultSettingsFile is used when no --settings flag is given.
	DefaultSettingsFile = "settings.json"
	// DefaultNodesFile is used when settings.json does not name one.
	DefaultNodesFile = "nodes.json"
)

// DefaultSettings returns baseline settings used before the settings file is applied.
func DefaultSettings() Settings {
	return Settings{
		NodeTimeout:         5,
		MaxConcurrentChecks: 10,
		HealthCheckInterval: 30,
		RefreshInterval:     2,
		Theme:               "dark",
		LogFile:             "nodeboard.log",
		LogLevel:            "info",
		LogDir:              "logs",
		DiskPaths:           []string{"/"},
		NodesFile:           DefaultNodesFile,
	}
}

// Loader reads settings and nodes from disk. It keeps no state between
// calls, so every Snapshot reflects the files as they are right now.
type Loader struct {
	SettingsPath string
	NodesPath    string
	Overrides    CLIOverrides
}

// NewLoader returns a loader for the given settings file. An empty
// nodesPath means "use nodes_file from settings, relative to the settings file".
func NewLoader(settingsPath, nodesPath string, overrides CLIOverrides) *Loader {
	if settingsPath == "" {
		settingsPath = DefaultSettingsFile
	}
	return &Loader{SettingsPath: settingsPath, NodesPath: nodesPath, Overrides: overrides}
}

// Snapshot loads settings and nodes together.
func (l *Loader) Snapshot() (Snapshot, error) {
	settings, err := l.LoadSettings()
	if err != nil {
		return Snapshot{}, err
	}
	nodes, err := LoadNodes(l.ResolveNodesPath(settings))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Settings: settings, Nodes: nodes}, nil
}

// ResolveNodesPath returns the nodes file path for the given settings.
func (l *Loader) ResolveNodesPath(settings Settings) string {
	if l.NodesPath != "" {
		return l.NodesPath
	}
	name := settings.NodesFile
	if name == "" {
		name = DefaultNodesFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(l.SettingsPath), name)
}

// LoadSettings reads the settings file. A missing file yields defaults.
func (l *Loader) LoadSettings() (Settings, error) {
	defaults := DefaultSettings()

	v := viper.New()
	v.SetConfigFile(l.SettingsPath)
	v.SetConfigType("json")
	v.SetDefault("node_timeout", defaults.NodeTimeout)
	v.SetDefault("max_concurrent_checks", defaults.MaxConcurrentChecks)
	v.SetDefault("health_check_interval", defaults.HealthCheckInterval)
	v.SetDefault("refresh_interval", defaults.RefreshInterval)
	v.SetDefault("theme", defaults.Theme)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_dir", defaults.LogDir)
	v.SetDefault("disk_paths", defaults.DiskPaths)
	v.SetDefault("nodes_file", defaults.NodesFile)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("read settings %s: %w", l.SettingsPath, err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings %s: %w", l.SettingsPath, err)
	}

	normalizeSettings(&settings, defaults)
	applyCLIOverrides(&settings, l.Overrides)
	return settings, nil
}

// LoadNodes reads the nodes file. A missing file or missing "nodes" key
// yields no nodes and no error.
func LoadNodes(path string) ([]Node, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read nodes %s: %w", path, err)
	}

	var raw []Node
	if err := v.UnmarshalKey("nodes", &raw); err != nil {
		return nil, fmt.Errorf("decode nodes %s: %w", path, err)
	}
	return normalizeNodes(raw), nil
}

func normalizeNodes(raw []Node) []Node {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	nodes := make([]Node, 0, len(raw))
	for _, node := range raw {
		node.Name = strings.TrimSpace(node.Name)
		node.IP = strings.TrimSpace(node.IP)
		if node.Name == "" || node.IP == "" {
			continue
		}
		if _, dup := seen[node.Name]; dup {
			continue
		}
		seen[node.Name] = struct{}{}
		node.Type = ParseNodeType(string(node.Type))
		nodes = append(nodes, node)
	}
	return nodes
}

func normalizeSettings(settings *Settings, defaults Settings) {
	if settings.NodeTimeout <= 0 {
		settings.NodeTimeout = defaults.NodeTimeout
	}
	if settings.MaxConcurrentChecks < 1 {
		settings.MaxConcurrentChecks = 1
	}
	if settings.HealthCheckInterval <= 0 {
		settings.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if settings.RefreshInterval <= 0 {
		settings.RefreshInterval = defaults.RefreshInterval
	}
	if isDigits(settings.MetricsListen) {
		settings.MetricsListen = ":" + settings.MetricsListen
	}
	settings.Theme = strings.ToLower(strings.TrimSpace(settings.Theme))
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}
}

func applyCLIOverrides(settings *Settings, overrides CLIOverrides) {
	if overrides.NodeTimeout != nil && *overrides.NodeTimeout > 0 {
		settings.NodeTimeout = overrides.NodeTimeout.Seconds()
	}
	if overrides.HealthCheckInterval != nil && *overrides.HealthCheckInterval > 0 {
		settings.HealthCheckInterval = overrides.HealthCheckInterval.Seconds()
	}
	if overrides.MaxConcurrentChecks != nil {
		settings.MaxConcurrentChecks = *overrides.MaxConcurrentChecks
		if settings.MaxConcurrentChecks < 1 {
			settings.MaxConcurrentChecks = 1
		}
	}
	if overrides.MetricsListen != nil {
		val := *overrides.MetricsListen
		if isDigits(val) {
			val = ":" + val
		}
		settings.MetricsListen = val
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		settings.LogLevel = *overrides.LogLevel
	}
	if overrides.UIDisable != nil {
		settings.UIDisable = *overrides.UIDisable
	}
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
