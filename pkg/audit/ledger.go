// pkg/audit/ledger.go
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
)

// Recorder is the append-only run-history ledger used by the coordinator.
// Entries are immutable once written; the ledger is the sole source of
// truth for run history.
type Recorder interface {
	// Record appends exactly one entry. Existing entries are never
	// updated or deleted.
	Record(ctx context.Context, rec model.AuditRecord) error

	// ForRun returns all entries for a run, ordered by start time, to
	// reconstruct the run's timeline.
	ForRun(ctx context.Context, runID string) ([]model.AuditRecord, error)
}

// Ledger implements Recorder on the analytics store's SQL handle. The
// backing table is created lazily on first use. Writes are serialized
// behind a mutex because stage goroutines may record concurrently.
type Ledger struct {
	db          *sqlx.DB
	logger      *zap.Logger
	mu          sync.Mutex
	initialized bool
}

// NewLedger creates an audit ledger on the given database handle.
func NewLedger(db *sqlx.DB, logger *zap.Logger) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Ledger{db: db, logger: logger}, nil
}

// ensureSchema creates the audit table if absent. Idempotent; callers
// hold the mutex.
func (l *Ledger) ensureSchema(ctx context.Context) error {
	if l.initialized {
		return nil
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS audit_pipeline_runs (
			run_id VARCHAR NOT NULL,
			stage VARCHAR NOT NULL,
			status VARCHAR NOT NULL,
			row_count BIGINT NOT NULL,
			error_message VARCHAR,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)
	`
	if _, err := l.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	l.initialized = true
	l.logger.Info("Ensured audit_pipeline_runs table exists")
	return nil
}

// Record appends one immutable audit entry.
func (l *Ledger) Record(ctx context.Context, rec model.AuditRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureSchema(ctx); err != nil {
		return err
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_pipeline_runs
		(run_id, stage, status, row_count, error_message, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID,
		rec.Stage,
		rec.Status,
		rec.RowCount,
		nullableString(rec.ErrorMessage),
		rec.StartedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	l.logger.Debug("Recorded audit entry",
		zap.String("runID", rec.RunID),
		zap.String("stage", rec.Stage),
		zap.String("status", rec.Status),
		zap.Int64("rowCount", rec.RowCount))
	return nil
}

// ForRun returns the run's entries ordered by start time.
func (l *Ledger) ForRun(ctx context.Context, runID string) ([]model.AuditRecord, error) {
	l.mu.Lock()
	if err := l.ensureSchema(ctx); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, stage, status, row_count, error_message, started_at, ended_at
		FROM audit_pipeline_runs
		WHERE run_id = ?
		ORDER BY started_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	records := make([]model.AuditRecord, 0)
	for rows.Next() {
		var rec model.AuditRecord
		var errMsg sql.NullString
		if err := rows.Scan(
			&rec.RunID,
			&rec.Stage,
			&rec.Status,
			&rec.RowCount,
			&errMsg,
			&rec.StartedAt,
			&rec.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if errMsg.Valid {
			rec.ErrorMessage = &errMsg.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
