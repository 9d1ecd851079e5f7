package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Entry is one decoded log line.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Category  string         `json:"category"`
	Fields    map[string]any `json:"-"`
	Raw       string         `json:"-"`
}

// Filter selects entries returned by Tail. Zero values match everything.
type Filter struct {
	Category Category
	MinLevel Level
	Contains string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.Category != "" && !strings.EqualFold(e.Category, string(f.Category)) {
		return false
	}
	if ParseLevel(e.Level) < f.MinLevel {
		return false
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(e.Raw), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}

// Tail returns the last n entries of the log file at path that match filter,
// oldest first. n <= 0 returns every match. Lines that are not JSON are kept
// with only Raw and Message set. A missing file yields no entries.
func Tail(path string, n int, filter Filter) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer file.Close()

	var ring []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry := parseEntry(line)
		if !filter.Match(entry) {
			continue
		}
		ring = append(ring, entry)
		if n > 0 && len(ring) > n {
			ring = ring[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return ring, fmt.Errorf("read log %s: %w", path, err)
	}
	return ring, nil
}

func parseEntry(line string) Entry {
	entry := Entry{Raw: line}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return Entry{Raw: line, Message: line}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err == nil {
		for _, key := range []string{"timestamp", "level", "message", "category"} {
			delete(fields, key)
		}
		if len(fields) > 0 {
			entry.Fields = fields
		}
	}
	entry.Raw = line
	return entry
}
