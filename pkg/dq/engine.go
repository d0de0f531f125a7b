// pkg/dq/engine.go
package dq

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
)

// DateLayout is the source date format (day first, as exported by the
// upstream school systems).
const DateLayout = "02/01/2006"

// Engine evaluates declared data-quality rules against entity tables.
// Rule evaluation is independent per rule; a row's final failure status is
// the OR across all triggered rules. Row-level issues never produce an
// error, only mask entries.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a rule engine
func NewEngine(logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Engine{
		logger: logger,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used by temporal rules. The
// receiver itself is mutated; the return value exists only for chaining,
// so an engine shared across components sees the override too.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Evaluate runs every applicable rule against the table and returns the
// row-aligned failure mask plus per-rule metadata. A rule whose required
// column is absent is skipped with a warning rather than failing the run.
// Lookup tables for cross-entity rules are passed in by entity name.
func (e *Engine) Evaluate(
	entity string,
	table *model.Table,
	rules []Rule,
	lookups map[string]*model.Table,
) (*Evaluation, error) {
	if table == nil {
		return nil, errors.New("table cannot be nil")
	}

	eval := &Evaluation{
		Failed:  make([]bool, len(table.Rows)),
		Reasons: make([][]string, len(table.Rows)),
		Results: make([]RuleResult, 0, len(rules)),
	}

	for _, rule := range rules {
		result := RuleResult{
			Rule:      rule.Name,
			Entity:    entity,
			Column:    rule.Column,
			TotalRows: len(table.Rows),
		}
		if rule.Kind == KindCompositeUnique {
			result.Column = strings.Join(rule.Columns, ",")
		}

		var mask []bool
		switch rule.Kind {
		case KindNotNull:
			mask = e.evalNotNull(entity, table, rule, &result)
		case KindNotNullUnique:
			mask = e.evalNotNullUnique(entity, table, rule, &result)
		case KindCompositeUnique:
			mask = e.evalCompositeUnique(entity, table, rule, &result)
		case KindBoundedRange:
			mask = e.evalBoundedRange(entity, table, rule, lookups, &result)
		case KindTemporalValidity:
			mask = e.evalTemporalValidity(entity, table, rule, &result)
		default:
			return nil, fmt.Errorf("unknown rule kind %v for rule %q", rule.Kind, rule.Name)
		}

		if mask != nil {
			reason := rule.ReasonCode()
			for i, failed := range mask {
				if !failed {
					continue
				}
				result.FailedRows++
				eval.Failed[i] = true
				eval.Reasons[i] = append(eval.Reasons[i], reason)
			}
		}

		eval.Results = append(eval.Results, result)
	}

	return eval, nil
}

// skipRule marks a rule result as skipped and logs the warning.
func (e *Engine) skipRule(entity string, result *RuleResult, warning string) {
	result.Skipped = true
	result.Warning = warning
	e.logger.Warn("Skipping data-quality rule",
		zap.String("entity", entity),
		zap.String("rule", result.Rule),
		zap.String("reason", warning))
}

// evalNotNull flags rows whose column is null.
func (e *Engine) evalNotNull(entity string, table *model.Table, rule Rule, result *RuleResult) []bool {
	if !table.HasColumn(rule.Column) {
		e.skipRule(entity, result, fmt.Sprintf("column %q not present", rule.Column))
		return nil
	}

	mask := make([]bool, len(table.Rows))
	for i, row := range table.Rows {
		mask[i] = model.IsNull(row[rule.Column])
	}
	return mask
}

// evalNotNullUnique flags rows whose column is null or whose value occurs
// more than once. Every member of a duplicate group is flagged, not just
// later occurrences.
func (e *Engine) evalNotNullUnique(entity string, table *model.Table, rule Rule, result *RuleResult) []bool {
	if !table.HasColumn(rule.Column) {
		e.skipRule(entity, result, fmt.Sprintf("column %q not present", rule.Column))
		return nil
	}

	counts := make(map[string]int, len(table.Rows))
	for _, row := range table.Rows {
		if model.IsNull(row[rule.Column]) {
			continue
		}
		counts[model.ValueKey(row[rule.Column])]++
	}

	mask := make([]bool, len(table.Rows))
	for i, row := range table.Rows {
		value := row[rule.Column]
		if model.IsNull(value) || counts[model.ValueKey(value)] > 1 {
			mask[i] = true
		}
	}
	return mask
}

// evalCompositeUnique flags rows with any null key member or a duplicated
// full key tuple.
func (e *Engine) evalCompositeUnique(entity string, table *model.Table, rule Rule, result *RuleResult) []bool {
	for _, col := range rule.Columns {
		if !table.HasColumn(col) {
			e.skipRule(entity, result, fmt.Sprintf("composite key column %q not present", col))
			return nil
		}
	}

	counts := make(map[string]int, len(table.Rows))
	for _, row := range table.Rows {
		if anyNull(row, rule.Columns) {
			continue
		}
		counts[row.CompositeKey(rule.Columns)]++
	}

	mask := make([]bool, len(table.Rows))
	for i, row := range table.Rows {
		if anyNull(row, rule.Columns) || counts[row.CompositeKey(rule.Columns)] > 1 {
			mask[i] = true
		}
	}
	return mask
}

// evalBoundedRange flags rows whose numeric value falls outside the
// declared bounds. When the rule carries a lookup, bounds come from the
// matching lookup row; rows with no match fail because a range cannot be
// asserted without a reference.
func (e *Engine) evalBoundedRange(
	entity string,
	table *model.Table,
	rule Rule,
	lookups map[string]*model.Table,
	result *RuleResult,
) []bool {
	if !table.HasColumn(rule.Column) {
		e.skipRule(entity, result, fmt.Sprintf("column %q not present", rule.Column))
		return nil
	}

	if rule.Lookup == nil {
		mask := make([]bool, len(table.Rows))
		for i, row := range table.Rows {
			mask[i] = outOfStaticRange(row[rule.Column], rule.Min, rule.Max)
		}
		return mask
	}

	lookup := lookups[rule.Lookup.Entity]
	if lookup == nil {
		e.skipRule(entity, result, fmt.Sprintf("lookup entity %q not available", rule.Lookup.Entity))
		return nil
	}
	if !table.HasColumn(rule.Lookup.JoinColumn) {
		e.skipRule(entity, result, fmt.Sprintf("join column %q not present", rule.Lookup.JoinColumn))
		return nil
	}
	for _, col := range []string{rule.Lookup.JoinColumn, rule.Lookup.MinColumn, rule.Lookup.MaxColumn} {
		if !lookup.HasColumn(col) {
			e.skipRule(entity, result, fmt.Sprintf("lookup column %q not present on %q", col, rule.Lookup.Entity))
			return nil
		}
	}

	type bounds struct{ min, max float64 }
	ranges := make(map[string]bounds, len(lookup.Rows))
	for _, row := range lookup.Rows {
		min, okMin := model.AsFloat(row[rule.Lookup.MinColumn])
		max, okMax := model.AsFloat(row[rule.Lookup.MaxColumn])
		if !okMin || !okMax {
			continue
		}
		ranges[model.ValueKey(row[rule.Lookup.JoinColumn])] = bounds{min: min, max: max}
	}

	mask := make([]bool, len(table.Rows))
	for i, row := range table.Rows {
		b, matched := ranges[model.ValueKey(row[rule.Lookup.JoinColumn])]
		if !matched {
			mask[i] = true
			continue
		}
		value, ok := model.AsFloat(row[rule.Column])
		if !ok || value < b.min || value > b.max {
			mask[i] = true
		}
	}
	return mask
}

// evalTemporalValidity flags rows whose date is null, unparseable, or in
// the future.
func (e *Engine) evalTemporalValidity(entity string, table *model.Table, rule Rule, result *RuleResult) []bool {
	if !table.HasColumn(rule.Column) {
		e.skipRule(entity, result, fmt.Sprintf("column %q not present", rule.Column))
		return nil
	}

	now := e.now()
	mask := make([]bool, len(table.Rows))
	for i, row := range table.Rows {
		parsed, ok := ParseDate(row[rule.Column])
		if !ok || parsed.After(now) {
			mask[i] = true
		}
	}
	return mask
}

// ParseDate interprets a cell value as a date. Accepts native time values
// (as produced by the workbook reader) and strings in DateLayout.
func ParseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}, false
		}
		parsed, err := time.Parse(DateLayout, trimmed)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func anyNull(row model.Row, columns []string) bool {
	for _, col := range columns {
		if model.IsNull(row[col]) {
			return true
		}
	}
	return false
}

func outOfStaticRange(value any, min, max *float64) bool {
	v, ok := model.AsFloat(value)
	if !ok {
		return true
	}
	if min != nil && v < *min {
		return true
	}
	if max != nil && v > *max {
		return true
	}
	return false
}
