// pkg/quarantine/writer.go
package quarantine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/store"
)

// Annotation columns appended to quarantined rows.
const (
	ColumnSourceEntity = "source_entity"
	ColumnReason       = "dq_reason"
)

// Writer persists quarantined rows. Output files are keyed by run id:
// quarantine forms an append-only history across runs, unlike the
// entity-keyed silver and gold snapshots.
type Writer struct {
	store  store.Store
	dir    string
	logger *zap.Logger
}

// NewWriter creates a quarantine writer
func NewWriter(st store.Store, dir string, logger *zap.Logger) (*Writer, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Writer{store: st, dir: dir, logger: logger}, nil
}

// WriteCombined persists one batch of quarantined rows spanning several
// entities as invalid_records_{run_id}. Returns the snapshot path.
func (w *Writer) WriteCombined(ctx context.Context, runID string, records []model.QuarantineRecord) (string, error) {
	name := fmt.Sprintf("invalid_records_%s", sanitizeRunID(runID))
	return w.write(ctx, name, records)
}

// WriteDataset persists one dataset's quarantined rows as
// {dataset}_dq_failed_{run_id}. Returns the snapshot path.
func (w *Writer) WriteDataset(ctx context.Context, runID, dataset string, records []model.QuarantineRecord) (string, error) {
	name := fmt.Sprintf("%s_dq_failed_%s", dataset, sanitizeRunID(runID))
	return w.write(ctx, name, records)
}

func (w *Writer) write(ctx context.Context, name string, records []model.QuarantineRecord) (string, error) {
	table := buildTable(name, records)
	path := filepath.Join(w.dir, name+".parquet")

	if err := w.store.PersistSnapshot(ctx, table, path); err != nil {
		return "", fmt.Errorf("failed to persist quarantine file %s: %w", name, err)
	}

	w.logger.Warn("Quarantined invalid records",
		zap.String("file", name),
		zap.Int("rows", len(records)))
	return path, nil
}

// buildTable lays quarantined rows out as original columns (union across
// source entities, in first-seen order) plus the annotation columns.
func buildTable(name string, records []model.QuarantineRecord) *model.Table {
	columns := make([]string, 0)
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, col := range rec.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	columns = append(columns, ColumnSourceEntity, ColumnReason)

	table := model.NewTable(name, columns)
	for _, rec := range records {
		row := rec.Row.Clone()
		row[ColumnSourceEntity] = rec.SourceEntity
		row[ColumnReason] = rec.Reason()
		table.Rows = append(table.Rows, row)
	}
	return table
}

// sanitizeRunID makes a run id safe for use in table and file names.
func sanitizeRunID(runID string) string {
	out := make([]rune, 0, len(runID))
	for _, r := range runID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
