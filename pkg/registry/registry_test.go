package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edulake/pipeline/pkg/dq"
)

func TestResolve_NormalizesLabels(t *testing.T) {
	reg := Default()

	for label, want := range map[string]string{
		"students":       "students",
		"Students":       "students",
		"  Students  ":   "students",
		"Test Details":   "test_details",
		"TEST_DETAILS":   "test_details",
		"Grading Groups": "grading_groups",
	} {
		got, ok := reg.Resolve(label)
		require.True(t, ok, "label %q should resolve", label)
		require.Equal(t, want, got)
	}

	_, ok := reg.Resolve("Sheet1")
	require.False(t, ok)
}

func TestResolve_ExtraAliases(t *testing.T) {
	reg := New(
		[]Entity{{Name: "students"}},
		map[string]string{"Pupil Roster": "students"},
		nil, nil,
	)

	got, ok := reg.Resolve("pupil roster")
	require.True(t, ok)
	require.Equal(t, "students", got)
}

func TestGateDatasets_IncludesEntitiesAndFacts(t *testing.T) {
	reg := Default()

	datasets := reg.GateDatasets()
	require.Contains(t, datasets, "students")
	require.Contains(t, datasets, "fact_test_results")

	// Fact rule set is registered separately from entities.
	rules := reg.GateRules("fact_test_results")
	require.Len(t, rules, 1)
	require.Equal(t, dq.KindBoundedRange, rules[0].Kind)
	require.NotNil(t, rules[0].Lookup)
	require.Equal(t, "grading_groups", rules[0].Lookup.Entity)
}

func TestDefault_RuleSetsCarryKeyConstraints(t *testing.T) {
	reg := Default()

	// Key constraints live only in the rule sets; every entity declares
	// its critical-column check there.
	for _, entity := range reg.Entities() {
		require.NotEmpty(t, entity.SilverRules, "entity %s", entity.Name)
	}

	teachers, ok := reg.Entity("teachers")
	require.True(t, ok)
	require.Len(t, teachers.GateRules, 1)
	require.Equal(t, dq.KindCompositeUnique, teachers.GateRules[0].Kind)
	require.Equal(t,
		[]string{"teacher_id", "school_id", "school_year", "course_name", "course_no"},
		teachers.GateRules[0].Columns)
}

func TestDefault_StarSchemaShape(t *testing.T) {
	reg := Default()

	dims := reg.Dimensions()
	require.Len(t, dims, 4)
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.Name
		require.NotEmpty(t, d.Source)
		require.NotEmpty(t, d.KeyColumn)
		require.NotEmpty(t, d.NaturalKey)
		entity, ok := reg.Entity(d.Source)
		require.True(t, ok, "dimension source %q must be a declared entity", d.Source)
		require.Equal(t, d.Source, entity.Name)
	}
	require.ElementsMatch(t, []string{"dim_school", "dim_teacher", "dim_student", "dim_test"}, names)

	facts := reg.Facts()
	require.Len(t, facts, 1)
	fact := facts[0]
	require.Equal(t, "fact_test_results", fact.Name)
	require.Equal(t, "test_details", fact.Source)
	require.Len(t, fact.Joins, 4)
	for _, join := range fact.Joins {
		require.Contains(t, names, join.Dimension)
		require.False(t, join.Optional)
	}
}
