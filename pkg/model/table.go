// pkg/model/table.go
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Row maps a column name to a scalar value. Values are strings, float64,
// int64, bool, time.Time, or nil. Rows are never mutated after creation;
// transformations build new rows.
type Row map[string]any

// Table is a named, schema-bearing set of rows with an ordered column list.
type Table struct {
	Name    string   // Canonical table name
	Columns []string // Ordered column names
	Rows    []Row    // Row data
}

// NewTable creates an empty table with the given name and columns.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([]Row, 0),
	}
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// HasColumn checks whether a column exists (exact match).
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy: the column slice and row maps are
// copied, scalar values are shared.
func (t *Table) Clone() *Table {
	out := NewTable(t.Name, t.Columns)
	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// Clone copies the row map.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether a value should be treated as missing. Empty and
// whitespace-only strings count as null, matching how blank spreadsheet
// cells arrive from the reader.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// ValueKey renders a value into a stable string usable as a map key for
// uniqueness and join comparisons.
func ValueKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "\x00"
	case string:
		return strings.TrimSpace(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case float64:
		// Integral floats compare equal to their int forms so that a
		// spreadsheet cell read as 42.0 joins against the string "42".
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Key renders the full row into a stable string over the given column
// order, for full-row deduplication.
func (r Row) Key(columns []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = ValueKey(r[col])
	}
	return strings.Join(parts, "\x1f")
}

// CompositeKey renders the named columns into a stable tuple key.
func (r Row) CompositeKey(columns []string) string {
	return r.Key(columns)
}

// AsFloat attempts to interpret a value as a number.
func AsFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}
	return 0, false
}

// SortedColumns returns a sorted copy of the column list, useful for
// deterministic logging of schema mismatches.
func SortedColumns(columns []string) []string {
	out := append([]string(nil), columns...)
	sort.Strings(out)
	return out
}
