// pkg/registry/default.go
package registry

import "github.com/edulake/pipeline/pkg/dq"

// Default returns the registry for the student-evaluation workbook: the
// recognized sheets, their per-stage rule sets, and the star schema built
// from them. Kept as data rather than branching code so new entities are
// a declaration away.
func Default() *Registry {
	entities := []Entity{
		{
			Name: "schools",
			SilverRules: []dq.Rule{
				{Name: "school_id_critical", Kind: dq.KindNotNullUnique, Column: "school_id"},
			},
			GateRules: []dq.Rule{
				{Name: "school_id_critical", Kind: dq.KindNotNullUnique, Column: "school_id"},
			},
		},
		{
			Name: "teachers",
			SilverRules: []dq.Rule{
				{Name: "teacher_id_critical", Kind: dq.KindNotNullUnique, Column: "teacher_id"},
			},
			GateRules: []dq.Rule{
				{
					Name:    "teacher_assignment_key",
					Kind:    dq.KindCompositeUnique,
					Columns: []string{"teacher_id", "school_id", "school_year", "course_name", "course_no"},
				},
			},
		},
		{
			Name: "students",
			SilverRules: []dq.Rule{
				{Name: "student_id_critical", Kind: dq.KindNotNullUnique, Column: "student_id"},
			},
			GateRules: []dq.Rule{
				{Name: "student_id_critical", Kind: dq.KindNotNullUnique, Column: "student_id"},
			},
		},
		{
			Name: "tests",
			SilverRules: []dq.Rule{
				{Name: "test_id_critical", Kind: dq.KindNotNullUnique, Column: "test_id"},
			},
			GateRules: []dq.Rule{
				{Name: "assessment_date_valid", Kind: dq.KindTemporalValidity, Column: "assessment_date"},
			},
		},
		{
			Name: "test_details",
			SilverRules: []dq.Rule{
				{Name: "assessment_type_present", Kind: dq.KindNotNull, Column: "assessment_type"},
				{Name: "assessment_date_valid", Kind: dq.KindTemporalValidity, Column: "assessment_date"},
			},
			GateRules: []dq.Rule{
				{Name: "assessment_type_present", Kind: dq.KindNotNull, Column: "assessment_type"},
			},
		},
		{
			Name: "grading_groups",
			SilverRules: []dq.Rule{
				{Name: "assessment_level_id_critical", Kind: dq.KindNotNullUnique, Column: "assessment_level_id"},
			},
			GateRules: []dq.Rule{
				{Name: "assessment_level_id_critical", Kind: dq.KindNotNullUnique, Column: "assessment_level_id"},
			},
		},
	}

	dimensions := []Dimension{
		{Name: "dim_school", Source: "schools", KeyColumn: "school_key", NaturalKey: "school_id",
			Columns: []string{"school_id", "school_name", "municipality"}},
		{Name: "dim_teacher", Source: "teachers", KeyColumn: "teacher_key", NaturalKey: "teacher_id",
			Columns: []string{"teacher_id", "teacher_name"}},
		{Name: "dim_student", Source: "students", KeyColumn: "student_key", NaturalKey: "student_id",
			Columns: []string{"student_id", "student_name"}},
		{Name: "dim_test", Source: "tests", KeyColumn: "test_key", NaturalKey: "test_id",
			Columns: []string{"test_id", "test_name", "assessment_type"}},
	}

	facts := []Fact{
		{
			Name:      "fact_test_results",
			Source:    "test_details",
			KeyColumn: "test_result_key",
			Joins: []FactJoin{
				{Dimension: "dim_student", NaturalKey: "student_id"},
				{Dimension: "dim_teacher", NaturalKey: "teacher_id"},
				{Dimension: "dim_school", NaturalKey: "school_id"},
				{Dimension: "dim_test", NaturalKey: "test_id"},
			},
			Measures: []string{"assessment_date", "assessment_level_id", "standard_score"},
		},
	}

	return New(entities, nil, dimensions, facts).
		WithGateRules("fact_test_results", []dq.Rule{
			{
				Name:   "standard_score_in_grading_range",
				Kind:   dq.KindBoundedRange,
				Column: "standard_score",
				Lookup: &dq.LookupSpec{
					Entity:     "grading_groups",
					JoinColumn: "assessment_level_id",
					MinColumn:  "score_min",
					MaxColumn:  "score_max",
				},
			},
		})
}
