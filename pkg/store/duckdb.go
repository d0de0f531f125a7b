// pkg/store/duckdb.go
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
)

// DuckDBStore implements Store on an embedded DuckDB database. Snapshot
// files are Parquet, written and read through DuckDB's COPY and
// read_parquet so the queryable tables and the file snapshots share one
// engine.
type DuckDBStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewDuckDBStore opens (or creates) the database at path. An empty path
// opens an in-memory database.
func NewDuckDBStore(path string, logger *zap.Logger) (*DuckDBStore, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	db, err := sqlx.Connect("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}

	logger.Info("Opened analytics store", zap.String("path", path))
	return &DuckDBStore{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for components that need raw SQL
// access, such as the audit ledger.
func (s *DuckDBStore) DB() *sqlx.DB {
	return s.db
}

// RegisterTable replaces the named table with the given contents.
func (s *DuckDBStore) RegisterTable(ctx context.Context, table *model.Table) error {
	if table == nil {
		return errors.New("table cannot be nil")
	}
	if table.Name == "" {
		return errors.New("table name cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	ident := quoteIdent(table.Name)
	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return fmt.Errorf("failed to drop existing table %s: %w", table.Name, err)
	}

	columnDefs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columnDefs[i] = quoteIdent(col) + " " + inferColumnType(table, col)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(columnDefs, ", "))
	if _, err = tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}

	if len(table.Rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")
		insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", ident, placeholders)

		stmt, prepErr := tx.PrepareContext(ctx, insertSQL)
		if prepErr != nil {
			err = fmt.Errorf("failed to prepare insert for %s: %w", table.Name, prepErr)
			return err
		}
		defer stmt.Close()

		for _, row := range table.Rows {
			args := make([]any, len(table.Columns))
			for i, col := range table.Columns {
				args[i] = toStoreValue(row[col])
			}
			if _, err = stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row into %s: %w", table.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %s: %w", table.Name, err)
	}

	s.logger.Debug("Registered table",
		zap.String("table", table.Name),
		zap.Int("rows", len(table.Rows)))
	return nil
}

// PersistSnapshot writes the table to a Parquet file via COPY.
func (s *DuckDBStore) PersistSnapshot(ctx context.Context, table *model.Table, path string) error {
	if err := s.RegisterTable(ctx, table); err != nil {
		return err
	}

	copySQL := fmt.Sprintf(
		"COPY (SELECT * FROM %s) TO %s (FORMAT PARQUET)",
		quoteIdent(table.Name), quoteLiteral(path))
	if _, err := s.db.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}

	s.logger.Debug("Persisted snapshot",
		zap.String("table", table.Name),
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)))
	return nil
}

// ReadSnapshot loads a Parquet snapshot into a table.
func (s *DuckDBStore) ReadSnapshot(ctx context.Context, name, path string) (*model.Table, error) {
	query := "SELECT * FROM read_parquet(" + quoteLiteral(path) + ")"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot columns: %w", err)
	}

	table := model.NewTable(name, columns)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		row := make(model.Row, len(columns))
		for i, col := range columns {
			row[col] = fromStoreValue(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}

	return table, nil
}

// SnapshotExists reports whether the snapshot file is present on disk.
func (s *DuckDBStore) SnapshotExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Close closes the database handle.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// inferColumnType picks a DuckDB column type from the first non-null
// value in the column, defaulting to VARCHAR.
func inferColumnType(table *model.Table, column string) string {
	for _, row := range table.Rows {
		switch row[column].(type) {
		case nil:
			continue
		case float64, int64, int:
			return "DOUBLE"
		case bool:
			return "BOOLEAN"
		case time.Time:
			return "TIMESTAMP"
		default:
			return "VARCHAR"
		}
	}
	return "VARCHAR"
}

// toStoreValue maps a row value onto a driver-friendly value.
func toStoreValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		return trimmed
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}

// fromStoreValue maps a scanned value back onto the row value types.
func fromStoreValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int32:
		return int64(val)
	default:
		return val
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
