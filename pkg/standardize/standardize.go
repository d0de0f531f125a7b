// pkg/standardize/standardize.go
package standardize

import (
	"strings"

	"github.com/edulake/pipeline/pkg/model"
)

// NormalizeLabel normalizes a raw sheet or table label for registry
// lookup: trimmed, lowercased, internal whitespace collapsed to single
// underscores. "  Test Details " and "test_details" normalize identically.
func NormalizeLabel(label string) string {
	fields := strings.Fields(strings.ToLower(label))
	return strings.Join(fields, "_")
}

// NormalizeColumn normalizes one column name: trim, lowercase, spaces to
// underscores.
func NormalizeColumn(name string) string {
	return NormalizeLabel(name)
}

// Table returns a copy of the raw table with normalized column names and
// the given canonical entity name. The input table is not modified; the
// function is pure. When two raw columns normalize to the same name the
// later one wins, matching reader behavior for duplicated headers.
func Table(entity string, raw *model.Table) *model.Table {
	columns := make([]string, 0, len(raw.Columns))
	rename := make(map[string]string, len(raw.Columns))
	seen := make(map[string]bool, len(raw.Columns))

	for _, col := range raw.Columns {
		normalized := NormalizeColumn(col)
		rename[col] = normalized
		if !seen[normalized] {
			seen[normalized] = true
			columns = append(columns, normalized)
		}
	}

	out := model.NewTable(entity, columns)
	out.Rows = make([]model.Row, len(raw.Rows))
	for i, row := range raw.Rows {
		standardized := make(model.Row, len(row))
		for col, value := range row {
			standardized[rename[col]] = value
		}
		out.Rows[i] = standardized
	}
	return out
}
