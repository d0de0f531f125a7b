package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/audit"
	"github.com/edulake/pipeline/pkg/config"
	"github.com/edulake/pipeline/pkg/dq"
	"github.com/edulake/pipeline/pkg/gate"
	"github.com/edulake/pipeline/pkg/gold"
	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/quarantine"
	"github.com/edulake/pipeline/pkg/registry"
	"github.com/edulake/pipeline/pkg/silver"
	"github.com/edulake/pipeline/pkg/store"
)

// fakeReader serves a fixed in-memory workbook, or fails like a missing
// source file would.
type fakeReader struct {
	batch map[string]*model.Table
	err   error
}

func (r *fakeReader) ReadWorkbook(_ context.Context, path string) (map[string]*model.Table, error) {
	if r.err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, r.err)
	}
	out := make(map[string]*model.Table, len(r.batch))
	for label, table := range r.batch {
		out[label] = table.Clone()
	}
	return out, nil
}

type testHarness struct {
	coordinator *Coordinator
	store       *store.MemoryStore
	ledger      *audit.MemoryLedger
	metrics     *audit.MemoryMetrics
}

func newHarness(t *testing.T, rd *fakeReader, blocking bool) *testHarness {
	t.Helper()
	logger := zap.NewNop()

	cfg := &config.Config{
		SilverDir:     "data/silver",
		GoldDir:       "data/gold",
		QuarantineDir: "data/quarantine",
		SourceFile:    "data/bronze/source.xlsx",
		GateBlocking:  blocking,
	}

	st := store.NewMemoryStore()
	ledger := audit.NewMemoryLedger()
	metrics := audit.NewMemoryMetrics()

	engine, err := dq.NewEngine(logger)
	require.NoError(t, err)

	qw, err := quarantine.NewWriter(st, cfg.QuarantineDir, logger)
	require.NoError(t, err)

	reg := registry.Default()

	silverStage, err := silver.NewStage(reg, engine, st, qw, metrics, cfg.SilverDir, 2, logger)
	require.NoError(t, err)

	gateStage, err := gate.NewStage(reg, engine, st, qw, metrics, cfg.SilverDir, cfg.GoldDir, blocking, logger)
	require.NoError(t, err)

	goldBuilder, err := gold.NewBuilder(reg, st, cfg.SilverDir, cfg.GoldDir, logger)
	require.NoError(t, err)

	coordinator, err := NewCoordinator(cfg, rd, ledger, silverStage, gateStage, goldBuilder, logger)
	require.NoError(t, err)

	return &testHarness{coordinator: coordinator, store: st, ledger: ledger, metrics: metrics}
}

func sheet(columns []string, rows ...model.Row) *model.Table {
	table := model.NewTable("", columns)
	table.Rows = rows
	return table
}

// fullWorkbook is a clean batch covering every recognized sheet.
func fullWorkbook() map[string]*model.Table {
	return map[string]*model.Table{
		"Schools": sheet([]string{"School ID", "School Name", "Municipality"},
			model.Row{"School ID": "s1", "School Name": "North", "Municipality": "Oslo"},
		),
		"Teachers": sheet([]string{"Teacher ID", "Teacher Name", "School ID", "School Year", "Course Name", "Course No"},
			model.Row{"Teacher ID": "t1", "Teacher Name": "Ada", "School ID": "s1",
				"School Year": "2024", "Course Name": "Math", "Course No": "M1"},
		),
		"Students": sheet([]string{"Student ID", "Student Name"},
			model.Row{"Student ID": "p1", "Student Name": "Alice"},
			model.Row{"Student ID": "p2", "Student Name": "Bob"},
		),
		"Tests": sheet([]string{"Test ID", "Test Name", "Assessment Type"},
			model.Row{"Test ID": "x1", "Test Name": "Reading", "Assessment Type": "national"},
		),
		"Test Details": sheet(
			[]string{"Student ID", "Teacher ID", "School ID", "Test ID",
				"Assessment Type", "Assessment Date", "Assessment Level ID", "Standard Score"},
			model.Row{"Student ID": "p1", "Teacher ID": "t1", "School ID": "s1", "Test ID": "x1",
				"Assessment Type": "national", "Assessment Date": "01/02/2020",
				"Assessment Level ID": "L1", "Standard Score": 55.0},
			model.Row{"Student ID": "p2", "Teacher ID": "t1", "School ID": "s1", "Test ID": "x1",
				"Assessment Type": "national", "Assessment Date": "01/02/2020",
				"Assessment Level ID": "L1", "Standard Score": 70.0},
		),
		"Grading Groups": sheet([]string{"Assessment Level ID", "Score Min", "Score Max"},
			model.Row{"Assessment Level ID": "L1", "Score Min": 0.0, "Score Max": 100.0},
		),
	}
}

func recordsByStage(records []model.AuditRecord) map[string]model.AuditRecord {
	out := make(map[string]model.AuditRecord, len(records))
	for _, rec := range records {
		out[rec.Stage] = rec
	}
	return out
}

func TestRun_FullPipelineSucceeds(t *testing.T) {
	h := newHarness(t, &fakeReader{batch: fullWorkbook()}, false)

	result, err := h.coordinator.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.Equal(t, StateCompleted, result.State)
	require.Len(t, result.Stages, 3)

	records, err := h.ledger.ForRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, StageSilver, records[0].Stage)
	require.Equal(t, StageGate, records[1].Stage)
	require.Equal(t, StageGold, records[2].Stage)
	for _, rec := range records {
		require.Equal(t, model.StatusSuccess, rec.Status)
		require.Nil(t, rec.ErrorMessage)
	}

	fact, err := h.store.ReadSnapshot(context.Background(), "fact_test_results",
		filepath.Join("data/gold", "fact_test_results.parquet"))
	require.NoError(t, err)
	require.Equal(t, 2, fact.RowCount())

	// Both quality stages leave their rule outcomes in the metrics trail.
	recorded := h.metrics.ForRun(result.RunID)
	require.NotEmpty(t, recorded)
	stages := make(map[string]bool, len(recorded))
	for _, metric := range recorded {
		require.True(t, metric.Success)
		stages[metric.Stage] = true
	}
	require.True(t, stages[StageSilver])
	require.True(t, stages[StageGate])
}

func TestRun_MissingSourceFileFailsSilverStage(t *testing.T) {
	h := newHarness(t, &fakeReader{err: os.ErrNotExist}, false)

	result, err := h.coordinator.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	require.Equal(t, StateFailed, result.State)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, StageSilver, stageErr.Stage)
	require.Equal(t, ClassStructural, stageErr.Class)

	records, err := h.ledger.ForRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, StageSilver, records[0].Stage)
	require.Equal(t, model.StatusFailed, records[0].Status)
	require.NotNil(t, records[0].ErrorMessage)

	// No snapshot of any kind was written.
	require.Empty(t, h.store.Snapshots())
}

func TestRun_BlockingGateStopsBeforeGold(t *testing.T) {
	batch := map[string]*model.Table{
		"Tests": sheet([]string{"Test ID", "Assessment Date"},
			model.Row{"Test ID": "x1", "Assessment Date": "01/02/2190"},
		),
	}
	h := newHarness(t, &fakeReader{batch: batch}, true)

	result, err := h.coordinator.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, gate.ErrGateBlocked)
	require.Equal(t, StateFailed, result.State)

	records, err := h.ledger.ForRun(context.Background(), result.RunID)
	require.NoError(t, err)
	byStage := recordsByStage(records)

	require.Equal(t, model.StatusSuccess, byStage[StageSilver].Status)
	require.Equal(t, model.StatusFailed, byStage[StageGate].Status)
	_, goldRan := byStage[StageGold]
	require.False(t, goldRan)

	// The quarantined rows were still written before the halt.
	failed, err := h.store.ReadSnapshot(context.Background(), "failed",
		filepath.Join("data/quarantine", "tests_dq_failed_"+result.RunID+".parquet"))
	require.NoError(t, err)
	require.Equal(t, 1, failed.RowCount())
}

func TestRun_NonBlockingGateQuarantinesAndProceeds(t *testing.T) {
	batch := fullWorkbook()
	// The future date passes silver (tests only checks test_id there)
	// and is caught by the gate's temporal rule.
	batch["Tests"] = sheet([]string{"Test ID", "Test Name", "Assessment Type", "Assessment Date"},
		model.Row{"Test ID": "x1", "Test Name": "Reading", "Assessment Type": "national", "Assessment Date": "01/02/2190"},
	)
	h := newHarness(t, &fakeReader{batch: batch}, false)

	result, err := h.coordinator.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.Greater(t, result.TotalQuarantined, int64(0))

	records, err := h.ledger.ForRun(context.Background(), result.RunID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		require.Equal(t, model.StatusSuccess, rec.Status)
	}
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	h := newHarness(t, &fakeReader{batch: fullWorkbook()}, false)

	first, err := h.coordinator.Run(context.Background())
	require.NoError(t, err)
	second, err := h.coordinator.Run(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)

	// Snapshots are keyed by name and overwritten, not accumulated.
	fact, err := h.store.ReadSnapshot(context.Background(), "fact_test_results",
		filepath.Join("data/gold", "fact_test_results.parquet"))
	require.NoError(t, err)
	require.Equal(t, 2, fact.RowCount())

	dim, err := h.store.ReadSnapshot(context.Background(), "dim_student",
		filepath.Join("data/gold", "dim_student.parquet"))
	require.NoError(t, err)
	require.Equal(t, 2, dim.RowCount())
	for i, row := range dim.Rows {
		require.Equal(t, int64(i+1), row["student_key"])
	}

	// Each run keeps its own audit trail.
	firstRecords, err := h.ledger.ForRun(context.Background(), first.RunID)
	require.NoError(t, err)
	secondRecords, err := h.ledger.ForRun(context.Background(), second.RunID)
	require.NoError(t, err)
	require.Len(t, firstRecords, 3)
	require.Len(t, secondRecords, 3)
}

func TestNewCoordinator_RejectsNilDependencies(t *testing.T) {
	h := newHarness(t, &fakeReader{batch: fullWorkbook()}, false)
	c := h.coordinator

	_, err := NewCoordinator(nil, c.reader, c.ledger, c.silver, c.gate, c.gold, c.logger)
	require.Error(t, err)
	_, err = NewCoordinator(c.cfg, nil, c.ledger, c.silver, c.gate, c.gold, c.logger)
	require.Error(t, err)
	_, err = NewCoordinator(c.cfg, c.reader, nil, c.silver, c.gate, c.gold, c.logger)
	require.Error(t, err)
	_, err = NewCoordinator(c.cfg, c.reader, c.ledger, nil, c.gate, c.gold, c.logger)
	require.Error(t, err)
}

func TestStageError_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewStageError(StageGold, ClassReferential, cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), StageGold)
	require.Contains(t, err.Error(), "Referential")
}
