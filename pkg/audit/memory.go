// pkg/audit/memory.go
package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/edulake/pipeline/pkg/model"
)

// MemoryLedger implements Recorder in memory, for tests and embedded
// runs without a persistent store.
type MemoryLedger struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Record appends one entry.
func (l *MemoryLedger) Record(_ context.Context, rec model.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// ForRun returns the run's entries ordered by start time.
func (l *MemoryLedger) ForRun(_ context.Context, runID string) ([]model.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.AuditRecord, 0)
	for _, rec := range l.records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// All returns every entry in insertion order.
func (l *MemoryLedger) All() []model.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.AuditRecord(nil), l.records...)
}
