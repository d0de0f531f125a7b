// pkg/gate/gate.go
package gate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/audit"
	"github.com/edulake/pipeline/pkg/dq"
	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/quarantine"
	"github.com/edulake/pipeline/pkg/registry"
	"github.com/edulake/pipeline/pkg/store"
)

// Stage is the quality gate: cross-dataset checks over the materialized
// silver (and, when already present, gold) snapshots. Unlike the silver
// transform, it can evaluate rules that need another entity as a lookup.
//
// The blocking policy is configuration, not code: a non-blocking gate
// quarantines failing rows and lets the run proceed; a blocking gate
// quarantines them and then halts the run.
type Stage struct {
	registry   *registry.Registry
	engine     *dq.Engine
	store      store.Store
	quarantine *quarantine.Writer
	metrics    audit.MetricRecorder
	silverDir  string
	goldDir    string
	blocking   bool
	logger     *zap.Logger
}

// Stage name recorded in the audit ledger and rule metrics.
const stageName = "data_quality_gate"

// NewStage creates a quality gate stage
func NewStage(
	reg *registry.Registry,
	engine *dq.Engine,
	st store.Store,
	qw *quarantine.Writer,
	metrics audit.MetricRecorder,
	silverDir, goldDir string,
	blocking bool,
	logger *zap.Logger,
) (*Stage, error) {
	if reg == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("rule engine cannot be nil")
	}
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if qw == nil {
		return nil, errors.New("quarantine writer cannot be nil")
	}
	if metrics == nil {
		return nil, errors.New("metrics recorder cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Stage{
		registry:   reg,
		engine:     engine,
		store:      st,
		quarantine: qw,
		metrics:    metrics,
		silverDir:  silverDir,
		goldDir:    goldDir,
		blocking:   blocking,
		logger:     logger,
	}, nil
}

// Result summarizes one gate run.
type Result struct {
	RowsChecked     int64    // Rows evaluated across all present datasets
	RowsQuarantined int64    // Rows failing at least one gate rule
	SkippedDatasets []string // Datasets with no snapshot yet
	QuarantineFiles []string // Per-dataset quarantine files written
}

// ErrGateBlocked is returned when the gate is blocking and quarantined at
// least one row.
var ErrGateBlocked = errors.New("quality gate blocked the run")

// Run evaluates every declared gate dataset. Missing datasets are skipped
// with a warning; failing rows are quarantined per dataset per run. When
// the gate is blocking and any row failed, the error wraps
// ErrGateBlocked so the coordinator halts the run.
func (s *Stage) Run(ctx context.Context, runID string) (*Result, error) {
	result := &Result{}
	var ruleResults []dq.RuleResult

	// Entities first so facts can use them as lookups.
	lookups := make(map[string]*model.Table)
	for _, entity := range s.registry.Entities() {
		table, ok, err := s.loadDataset(ctx, entity.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			lookups[entity.Name] = table
		}
	}

	for _, dataset := range s.registry.GateDatasets() {
		table, ok := lookups[dataset]
		if !ok {
			var err error
			table, ok, err = s.loadDataset(ctx, dataset)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			s.logger.Warn("Skipping missing dataset", zap.String("dataset", dataset))
			result.SkippedDatasets = append(result.SkippedDatasets, dataset)
			continue
		}

		rules := s.registry.GateRules(dataset)
		if len(rules) == 0 {
			continue
		}

		eval, err := s.engine.Evaluate(dataset, table, rules, lookups)
		if err != nil {
			return nil, fmt.Errorf("gate evaluation failed for %s: %w", dataset, err)
		}
		result.RowsChecked += int64(table.RowCount())
		ruleResults = append(ruleResults, eval.Results...)

		failed := collectFailures(runID, dataset, table, eval)
		if len(failed) == 0 {
			s.logger.Info("Dataset passed quality gate", zap.String("dataset", dataset))
			continue
		}

		path, err := s.quarantine.WriteDataset(ctx, runID, dataset, failed)
		if err != nil {
			return nil, err
		}
		result.RowsQuarantined += int64(len(failed))
		result.QuarantineFiles = append(result.QuarantineFiles, path)

		s.logger.Error("Dataset failed quality gate",
			zap.String("dataset", dataset),
			zap.Int("failedRows", len(failed)),
			zap.String("quarantineFile", path))
	}

	// Metrics are recorded before the blocking decision so a blocked run
	// still leaves its rule outcomes queryable.
	if err := s.metrics.RecordRules(ctx, runID, stageName, ruleResults); err != nil {
		return nil, fmt.Errorf("failed to record rule metrics: %w", err)
	}

	if s.blocking && result.RowsQuarantined > 0 {
		return result, fmt.Errorf("%w: %d rows quarantined", ErrGateBlocked, result.RowsQuarantined)
	}

	s.logger.Info("Quality gate completed",
		zap.Int64("rowsChecked", result.RowsChecked),
		zap.Int64("rowsQuarantined", result.RowsQuarantined),
		zap.Bool("blocking", s.blocking))
	return result, nil
}

// loadDataset reads a dataset snapshot: entities live under the silver
// directory, everything else (facts) under gold. The second return is
// false when no snapshot exists yet.
func (s *Stage) loadDataset(ctx context.Context, dataset string) (*model.Table, bool, error) {
	dir := s.goldDir
	if _, isEntity := s.registry.Entity(dataset); isEntity {
		dir = s.silverDir
	}
	path := filepath.Join(dir, dataset+".parquet")

	if !s.store.SnapshotExists(path) {
		return nil, false, nil
	}

	table, err := s.store.ReadSnapshot(ctx, dataset, path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load dataset %s: %w", dataset, err)
	}
	return table, true, nil
}

// collectFailures turns the failure mask into quarantine records.
func collectFailures(runID, dataset string, table *model.Table, eval *dq.Evaluation) []model.QuarantineRecord {
	var failed []model.QuarantineRecord
	for i, row := range table.Rows {
		if !eval.Failed[i] {
			continue
		}
		failed = append(failed, model.QuarantineRecord{
			RunID:        runID,
			SourceEntity: dataset,
			Columns:      table.Columns,
			Reasons:      eval.Reasons[i],
			Row:          row,
		})
	}
	return failed
}
