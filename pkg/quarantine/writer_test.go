package quarantine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/store"
)

func TestWriteCombined_MergesColumnsAcrossEntities(t *testing.T) {
	st := store.NewMemoryStore()
	w, err := NewWriter(st, "data/quarantine", zap.NewNop())
	require.NoError(t, err)

	records := []model.QuarantineRecord{
		{
			RunID:        "run1",
			SourceEntity: "students",
			Columns:      []string{"student_id", "student_name"},
			Reasons:      []string{"student_id_null_or_duplicate"},
			Row:          model.Row{"student_id": "1", "student_name": "Alice"},
		},
		{
			RunID:        "run1",
			SourceEntity: "schools",
			Columns:      []string{"school_id"},
			Reasons:      []string{"school_id_null_or_duplicate", "school_name_null"},
			Row:          model.Row{"school_id": nil},
		},
	}

	path, err := w.WriteCombined(context.Background(), "run1", records)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("data/quarantine", "invalid_records_run1.parquet"), path)

	table, err := st.ReadSnapshot(context.Background(), "invalid", path)
	require.NoError(t, err)
	require.Equal(t,
		[]string{"student_id", "student_name", "school_id", ColumnSourceEntity, ColumnReason},
		table.Columns)
	require.Equal(t, 2, table.RowCount())
	require.Equal(t, "students", table.Rows[0][ColumnSourceEntity])
	require.Equal(t, "school_id_null_or_duplicate;school_name_null", table.Rows[1][ColumnReason])
}

func TestWriteDataset_NamesFileByDatasetAndRun(t *testing.T) {
	st := store.NewMemoryStore()
	w, err := NewWriter(st, "data/quarantine", zap.NewNop())
	require.NoError(t, err)

	records := []model.QuarantineRecord{
		{
			RunID:        "a1b2-c3",
			SourceEntity: "teachers",
			Columns:      []string{"teacher_id"},
			Reasons:      []string{"composite_key_null_or_duplicate"},
			Row:          model.Row{"teacher_id": "t1"},
		},
	}

	path, err := w.WriteDataset(context.Background(), "a1b2-c3", "teachers", records)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("data/quarantine", "teachers_dq_failed_a1b2_c3.parquet"), path)
	require.True(t, st.SnapshotExists(path))
}
