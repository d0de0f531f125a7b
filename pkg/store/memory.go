// pkg/store/memory.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edulake/pipeline/pkg/model"
)

// MemoryStore implements Store entirely in memory. It keeps the same
// path-keyed snapshot contract as the DuckDB store and is used by tests
// and embedded runs that need no persistence.
type MemoryStore struct {
	mu        sync.RWMutex
	tables    map[string]*model.Table
	snapshots map[string]*model.Table
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:    make(map[string]*model.Table),
		snapshots: make(map[string]*model.Table),
	}
}

// RegisterTable replaces the named table's contents.
func (s *MemoryStore) RegisterTable(_ context.Context, table *model.Table) error {
	if table == nil {
		return errors.New("table cannot be nil")
	}
	if table.Name == "" {
		return errors.New("table name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Name] = table.Clone()
	return nil
}

// PersistSnapshot stores a copy of the table under the path key.
func (s *MemoryStore) PersistSnapshot(_ context.Context, table *model.Table, path string) error {
	if table == nil {
		return errors.New("table cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table.Name] = table.Clone()
	s.snapshots[path] = table.Clone()
	return nil
}

// ReadSnapshot returns a copy of the snapshot stored under the path key.
func (s *MemoryStore) ReadSnapshot(_ context.Context, name, path string) (*model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[path]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", path)
	}

	out := snapshot.Clone()
	out.Name = name
	return out, nil
}

// SnapshotExists reports whether a snapshot was stored under the path.
func (s *MemoryStore) SnapshotExists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[path]
	return ok
}

// Table returns a copy of a registered table, for assertions in tests.
func (s *MemoryStore) Table(name string) (*model.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Snapshots returns the stored snapshot paths.
func (s *MemoryStore) Snapshots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for path := range s.snapshots {
		out = append(out, path)
	}
	return out
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
