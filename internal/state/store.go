package state

import (
	"sync"
	"time"
)

const defaultHistorySize = 60

// StoreImpl is a thread-safe in-memory state store.
type StoreImpl struct {
	mu          sync.RWMutex
	records     map[string]HealthRecord
	history     map[string][]Point
	historySize int
}

// NewStore creates an empty store.
func NewStore() *StoreImpl {
	return &StoreImpl{
		records:     make(map[string]HealthRecord),
		history:     make(map[string][]Point),
		historySize: defaultHistorySize,
	}
}

// Write replaces the record for name. Records for nodes that have left the
// configuration are never pruned; they stay readable until overwritten.
func (s *StoreImpl) Write(name string, record HealthRecord) {
	if record.ResponseTimeMs < 0 {
		record.ResponseTimeMs = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[name] = record
	s.appendHistory(name, Point{
		Time:         record.LastCheck,
		ResponseTime: time.Duration(record.ResponseTimeMs) * time.Millisecond,
		Status:       record.Status,
	})
}

// ReadAll returns a copy of every record.
func (s *StoreImpl) ReadAll() map[string]HealthRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]HealthRecord, len(s.records))
	for name, record := range s.records {
		out[name] = record
	}
	return out
}

// Get returns a copy of a single record.
func (s *StoreImpl) Get(name string) (HealthRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[name]
	return record, ok
}

// History returns a copy of the recent measurements for name, oldest first.
func (s *StoreImpl) History(name string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[name]
	if len(points) == 0 {
		return nil
	}
	return append([]Point(nil), points...)
}

// Len returns the number of records.
func (s *StoreImpl) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *StoreImpl) appendHistory(name string, point Point) {
	if s.historySize <= 0 {
		return
	}
	points := s.history[name]
	if len(points) < s.historySize {
		s.history[name] = append(points, point)
		return
	}
	copy(points, points[1:])
	points[len(points)-1] = point
}
