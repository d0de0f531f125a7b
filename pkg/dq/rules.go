// pkg/dq/rules.go
package dq

import "fmt"

// Kind identifies the evaluation strategy of a rule.
type Kind int

const (
	// KindNotNull requires a single column to be non-null.
	KindNotNull Kind = iota
	// KindNotNullUnique requires a single column to be non-null and
	// unique across the table.
	KindNotNullUnique
	// KindCompositeUnique requires a set of columns to be jointly
	// non-null and jointly unique.
	KindCompositeUnique
	// KindBoundedRange requires a numeric column to fall inside static
	// bounds or bounds looked up from another entity.
	KindBoundedRange
	// KindTemporalValidity requires a parseable date that is not in the
	// future.
	KindTemporalValidity
)

// String returns a string representation of the rule kind
func (k Kind) String() string {
	switch k {
	case KindNotNull:
		return "NotNull"
	case KindNotNullUnique:
		return "NotNullUnique"
	case KindCompositeUnique:
		return "CompositeUnique"
	case KindBoundedRange:
		return "BoundedRange"
	case KindTemporalValidity:
		return "TemporalValidity"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// LookupSpec sources per-row numeric bounds from a matching row in
// another entity, joined on JoinColumn.
type LookupSpec struct {
	Entity     string // Entity providing the bounds
	JoinColumn string // Equality join column present on both sides
	MinColumn  string // Lower bound column on the lookup entity
	MaxColumn  string // Upper bound column on the lookup entity
}

// Rule is a declarative predicate over one row of an entity. Evaluation
// never mutates the input table.
type Rule struct {
	Name    string   // Rule identifier for reporting
	Kind    Kind     // Evaluation strategy
	Column  string   // Subject column (all kinds except composite)
	Columns []string // Composite key members
	Min     *float64 // Static lower bound (BoundedRange)
	Max     *float64 // Static upper bound (BoundedRange)
	Lookup  *LookupSpec
	Reason  string // Machine-readable reason code for quarantined rows
}

// ReasonCode returns the declared reason code, deriving one from the rule
// shape when none was configured.
func (r Rule) ReasonCode() string {
	if r.Reason != "" {
		return r.Reason
	}
	switch r.Kind {
	case KindNotNull:
		return r.Column + "_null"
	case KindNotNullUnique:
		return r.Column + "_null_or_duplicate"
	case KindCompositeUnique:
		return "composite_key_null_or_duplicate"
	case KindBoundedRange:
		return r.Column + "_out_of_range"
	case KindTemporalValidity:
		return r.Column + "_invalid_or_future"
	default:
		return r.Name
	}
}

// RuleResult captures per-rule evaluation metadata for reporting.
type RuleResult struct {
	Rule       string // Rule name
	Entity     string // Entity evaluated
	Column     string // Subject column (or joined composite members)
	FailedRows int    // Rows that failed this rule
	TotalRows  int    // Rows evaluated
	Skipped    bool   // True when the rule could not be applied
	Warning    string // Reason the rule was skipped, if any
}

// Evaluation is the outcome of running a rule set against one table.
type Evaluation struct {
	Failed  []bool     // Row-aligned failure mask (OR across rules)
	Reasons [][]string // Row-aligned reason codes of triggered rules
	Results []RuleResult
}

// FailedCount returns the number of rows with at least one failed rule.
func (e *Evaluation) FailedCount() int {
	count := 0
	for _, failed := range e.Failed {
		if failed {
			count++
		}
	}
	return count
}
