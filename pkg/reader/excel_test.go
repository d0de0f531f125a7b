package reader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeTestWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	require.NoError(t, f.SetSheetName("Sheet1", "Students"))
	require.NoError(t, f.SetSheetRow("Students", "A1", &[]any{"Student ID", "Student Name", "Standard Score"}))
	require.NoError(t, f.SetSheetRow("Students", "A2", &[]any{1, "Alice", 55.5}))
	require.NoError(t, f.SetSheetRow("Students", "A3", &[]any{2, "Bob"}))

	_, err := f.NewSheet("Empty")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workbook.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadWorkbook(t *testing.T) {
	rd, err := NewExcelReader(zap.NewNop())
	require.NoError(t, err)

	path := writeTestWorkbook(t)
	batch, err := rd.ReadWorkbook(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	students := batch["Students"]
	require.NotNil(t, students)
	require.Equal(t, []string{"Student ID", "Student Name", "Standard Score"}, students.Columns)
	require.Equal(t, 2, students.RowCount())

	// Numeric cells arrive as numbers, missing trailing cells as nulls.
	require.Equal(t, 1.0, students.Rows[0]["Student ID"])
	require.Equal(t, "Alice", students.Rows[0]["Student Name"])
	require.Equal(t, 55.5, students.Rows[0]["Standard Score"])
	require.Nil(t, students.Rows[1]["Standard Score"])

	empty := batch["Empty"]
	require.NotNil(t, empty)
	require.Equal(t, 0, empty.RowCount())
}

func TestReadWorkbook_MissingFile(t *testing.T) {
	rd, err := NewExcelReader(zap.NewNop())
	require.NoError(t, err)

	_, err = rd.ReadWorkbook(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
}
