package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edulake/pipeline/pkg/dq"
)

func TestMemoryMetrics_RecordsEvaluatedRulesOnly(t *testing.T) {
	metrics := NewMemoryMetrics()
	ctx := context.Background()

	results := []dq.RuleResult{
		{Rule: "student_id_critical", Entity: "students", Column: "student_id", FailedRows: 2, TotalRows: 3},
		{Rule: "school_id_critical", Entity: "schools", Column: "school_id", FailedRows: 0, TotalRows: 5},
		{Rule: "missing_column_check", Entity: "schools", Skipped: true, Warning: "column absent"},
	}
	require.NoError(t, metrics.RecordRules(ctx, "r1", "silver_transform", results))
	require.NoError(t, metrics.RecordRules(ctx, "r2", "silver_transform", results[:1]))

	recorded := metrics.ForRun("r1")
	require.Len(t, recorded, 2)

	require.Equal(t, RuleMetric{
		RunID:      "r1",
		Stage:      "silver_transform",
		Entity:     "students",
		CheckName:  "student_id_critical",
		ColumnName: "student_id",
		Success:    false,
		FailedRows: 2,
		TotalRows:  3,
	}, recorded[0])
	require.True(t, recorded[1].Success)

	require.Len(t, metrics.ForRun("r2"), 1)
}
