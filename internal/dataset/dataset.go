package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// ErrNoSnapshot is returned by Store.Snapshot before the first successful
// load.
var ErrNoSnapshot = errors.New("dataset: no snapshot loaded")

// Snapshot is one consistent copy of the records the calendar is built
// from. JSON is accepted as well since it is valid YAML.
type Snapshot struct {
	TaskAllocations      []model.TaskAllocation      `yaml:"task_allocations"`
	RecurringOccurrences []model.RecurringOccurrence `yaml:"recurring_occurrences"`
	RecurringAllocations []model.RecurringAllocation `yaml:"recurring_allocations"`
	TimeEntries          []model.TimeEntry           `yaml:"time_entries"`
	CallRecords          []model.CallRecord          `yaml:"call_records"`
}

// Parse decodes a snapshot document.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Load reads and decodes the snapshot file at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(data)
}

// CallSource supplies extra call records on every reload, such as calls
// imported from iCalendar feeds.
type CallSource interface {
	Calls(ctx context.Context) ([]model.CallRecord, error)
}

// Store holds the most recently loaded snapshot. It is safe for concurrent
// use; readers always see a complete snapshot.
type Store struct {
	path  string
	calls CallSource

	mu       sync.RWMutex
	snap     *Snapshot
	version  uint64
	loadedAt time.Time
}

// NewStore returns a Store backed by the file at path. calls may be nil.
func NewStore(path string, calls CallSource) *Store {
	return &Store{path: path, calls: calls}
}

// Reload reads the file again and swaps it in. On failure the previous
// snapshot stays in place. A failing CallSource is logged and its calls are
// left out; it does not fail the reload.
func (s *Store) Reload(ctx context.Context) error {
	started := time.Now()

	snap, err := Load(s.path)
	if err != nil {
		appLog.Error("dataset reload failed; keeping previous snapshot", err, "path", s.path)
		return err
	}

	if s.calls != nil {
		extra, err := s.calls.Calls(ctx)
		if err != nil {
			appLog.Error("dataset: call source failed", err, "path", s.path)
		}
		snap.CallRecords = append(snap.CallRecords, extra...)
	}

	s.mu.Lock()
	s.snap = snap
	s.version++
	s.loadedAt = time.Now()
	version := s.version
	s.mu.Unlock()

	appLog.Info("dataset reloaded",
		"path", s.path,
		"version", version,
		"allocations", len(snap.TaskAllocations),
		"recurring_rules", len(snap.RecurringAllocations),
		"occurrences", len(snap.RecurringOccurrences),
		"time_entries", len(snap.TimeEntries),
		"calls", len(snap.CallRecords),
		"took", time.Since(started),
	)
	return nil
}

// Snapshot returns the current snapshot and its version. The version
// increases by one on every successful reload. Callers must not modify the
// returned snapshot.
func (s *Store) Snapshot() (*Snapshot, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, 0, ErrNoSnapshot
	}
	return s.snap, s.version, nil
}

// LoadedAt reports when the current snapshot was loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
