package standardize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edulake/pipeline/pkg/model"
)

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"Test Details":    "test_details",
		"  Test Details ": "test_details",
		"test_details":    "test_details",
		"GRADING  GROUPS": "grading_groups",
		"students":        "students",
	}
	for input, want := range cases {
		require.Equal(t, want, NormalizeLabel(input), "input %q", input)
	}
}

func TestTable_NormalizesColumnsWithoutMutatingInput(t *testing.T) {
	raw := model.NewTable("Students", []string{"Student ID", "Student Name"})
	raw.Rows = []model.Row{
		{"Student ID": "1", "Student Name": "Alice"},
	}

	out := Table("students", raw)

	require.Equal(t, "students", out.Name)
	require.Equal(t, []string{"student_id", "student_name"}, out.Columns)
	require.Equal(t, "1", out.Rows[0]["student_id"])
	require.Equal(t, "Alice", out.Rows[0]["student_name"])

	// Input untouched.
	require.Equal(t, []string{"Student ID", "Student Name"}, raw.Columns)
	require.Equal(t, "1", raw.Rows[0]["Student ID"])
}

func TestTable_DuplicateNormalizedHeaderLaterWins(t *testing.T) {
	raw := model.NewTable("x", []string{"Score", "score"})
	raw.Rows = []model.Row{
		{"Score": 1.0, "score": 2.0},
	}

	out := Table("scores", raw)

	require.Equal(t, []string{"score"}, out.Columns)
	require.Equal(t, 2.0, out.Rows[0]["score"])
}
