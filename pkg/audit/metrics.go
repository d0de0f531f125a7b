// pkg/audit/metrics.go
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/dq"
)

// MetricRecorder persists per-rule evaluation outcomes so data-quality
// results stay queryable across runs, alongside the run ledger.
type MetricRecorder interface {
	// RecordRules appends one row per evaluated rule. Skipped rules are
	// not recorded; they asserted nothing.
	RecordRules(ctx context.Context, runID, stage string, results []dq.RuleResult) error
}

// RuleMetric is one recorded rule outcome.
type RuleMetric struct {
	RunID      string
	Stage      string
	Entity     string
	CheckName  string
	ColumnName string
	Success    bool
	FailedRows int64
	TotalRows  int64
}

// MetricsLedger implements MetricRecorder on the analytics store's SQL
// handle. The backing table is created lazily on first use; rows are
// append-only, one per rule per stage per run.
type MetricsLedger struct {
	db          *sqlx.DB
	logger      *zap.Logger
	mu          sync.Mutex
	initialized bool
}

// NewMetricsLedger creates a rule-metrics ledger on the given database
// handle.
func NewMetricsLedger(db *sqlx.DB, logger *zap.Logger) (*MetricsLedger, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &MetricsLedger{db: db, logger: logger}, nil
}

// ensureSchema creates the metrics table if absent. Idempotent; callers
// hold the mutex.
func (m *MetricsLedger) ensureSchema(ctx context.Context) error {
	if m.initialized {
		return nil
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS data_quality_results (
			run_id VARCHAR NOT NULL,
			stage VARCHAR NOT NULL,
			entity VARCHAR NOT NULL,
			check_name VARCHAR NOT NULL,
			column_name VARCHAR,
			success BOOLEAN NOT NULL,
			failed_rows BIGINT NOT NULL,
			total_rows BIGINT NOT NULL
		)
	`
	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create data_quality_results table: %w", err)
	}

	m.initialized = true
	m.logger.Info("Ensured data_quality_results table exists")
	return nil
}

// RecordRules appends one metrics row per evaluated rule.
func (m *MetricsLedger) RecordRules(ctx context.Context, runID, stage string, results []dq.RuleResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureSchema(ctx); err != nil {
		return err
	}

	for _, res := range results {
		if res.Skipped {
			continue
		}
		_, err := m.db.ExecContext(ctx, `
			INSERT INTO data_quality_results
			(run_id, stage, entity, check_name, column_name, success, failed_rows, total_rows)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			stage,
			res.Entity,
			res.Rule,
			res.Column,
			res.FailedRows == 0,
			int64(res.FailedRows),
			int64(res.TotalRows),
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule metric: %w", err)
		}
	}

	m.logger.Debug("Recorded rule metrics",
		zap.String("runID", runID),
		zap.String("stage", stage),
		zap.Int("rules", len(results)))
	return nil
}

// ForRun returns the run's recorded metrics in insertion order.
func (m *MetricsLedger) ForRun(ctx context.Context, runID string) ([]RuleMetric, error) {
	m.mu.Lock()
	if err := m.ensureSchema(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	rows, err := m.db.QueryContext(ctx, `
		SELECT run_id, stage, entity, check_name, column_name, success, failed_rows, total_rows
		FROM data_quality_results
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]RuleMetric, 0)
	for rows.Next() {
		var metric RuleMetric
		if err := rows.Scan(
			&metric.RunID,
			&metric.Stage,
			&metric.Entity,
			&metric.CheckName,
			&metric.ColumnName,
			&metric.Success,
			&metric.FailedRows,
			&metric.TotalRows,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule metric: %w", err)
		}
		metrics = append(metrics, metric)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule metrics: %w", err)
	}

	return metrics, nil
}
