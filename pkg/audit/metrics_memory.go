// pkg/audit/metrics_memory.go
package audit

import (
	"context"
	"sync"

	"github.com/edulake/pipeline/pkg/dq"
)

// MemoryMetrics implements MetricRecorder in memory, for tests and
// embedded runs without a persistent store.
type MemoryMetrics struct {
	mu      sync.Mutex
	metrics []RuleMetric
}

// NewMemoryMetrics creates an empty in-memory metrics recorder.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{}
}

// RecordRules appends one entry per evaluated rule.
func (m *MemoryMetrics) RecordRules(_ context.Context, runID, stage string, results []dq.RuleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, res := range results {
		if res.Skipped {
			continue
		}
		m.metrics = append(m.metrics, RuleMetric{
			RunID:      runID,
			Stage:      stage,
			Entity:     res.Entity,
			CheckName:  res.Rule,
			ColumnName: res.Column,
			Success:    res.FailedRows == 0,
			FailedRows: int64(res.FailedRows),
			TotalRows:  int64(res.TotalRows),
		})
	}
	return nil
}

// ForRun returns the run's recorded metrics in insertion order.
func (m *MemoryMetrics) ForRun(runID string) []RuleMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RuleMetric, 0)
	for _, metric := range m.metrics {
		if metric.RunID == runID {
			out = append(out, metric)
		}
	}
	return out
}
