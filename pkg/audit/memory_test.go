package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edulake/pipeline/pkg/model"
)

func TestMemoryLedger_ForRunFiltersAndOrders(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Record(ctx, model.AuditRecord{
		RunID: "r1", Stage: "gold_build", Status: model.StatusSuccess,
		StartedAt: base.Add(2 * time.Minute), EndedAt: base.Add(3 * time.Minute),
	}))
	require.NoError(t, ledger.Record(ctx, model.AuditRecord{
		RunID: "r1", Stage: "silver_transform", Status: model.StatusSuccess,
		StartedAt: base, EndedAt: base.Add(time.Minute),
	}))
	require.NoError(t, ledger.Record(ctx, model.AuditRecord{
		RunID: "r2", Stage: "silver_transform", Status: model.StatusFailed,
		StartedAt: base, EndedAt: base,
	}))

	records, err := ledger.ForRun(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "silver_transform", records[0].Stage)
	require.Equal(t, "gold_build", records[1].Stage)

	require.Len(t, ledger.All(), 3)
}
