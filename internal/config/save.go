package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrDuplicateNode is returned when adding a node whose name already exists.
	ErrDuplicateNode = errors.New("node already exists")
	// ErrNodeNotFound is returned when removing a node that is not configured.
	ErrNodeNotFound = errors.New("node not found")
)

var saveMu sync.Mutex

type nodesDocument struct {
	Nodes []Node `json:"nodes"`
}

// SaveSettings writes settings as indented JSON, replacing path atomically.
func SaveSettings(path string, settings Settings) error {
	return writeJSON(path, settings)
}

// SaveNodes writes the nodes document, replacing path atomically.
func SaveNodes(path string, nodes []Node) error {
	if nodes == nil {
		nodes = []Node{}
	}
	return writeJSON(path, nodesDocument{Nodes: nodes})
}

// AddNode appends node to the nodes file at path.
func AddNode(path string, node Node) error {
	nodes, err := LoadNodes(path)
	if err != nil {
		return err
	}
	node.Type = ParseNodeType(string(node.Type))
	for _, existing := range nodes {
		if existing.Name == node.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, node.Name)
		}
	}
	return SaveNodes(path, append(nodes, node))
}

// RemoveNode deletes the named node from the nodes file at path.
func RemoveNode(path string, name string) error {
	nodes, err := LoadNodes(path)
	if err != nil {
		return err
	}
	kept := make([]Node, 0, len(nodes))
	for _, node := range nodes {
		if node.Name != name {
			kept = append(kept, node)
		}
	}
	if len(kept) == len(nodes) {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	return SaveNodes(path, kept)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
