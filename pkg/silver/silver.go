// pkg/silver/silver.go
package silver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/audit"
	"github.com/edulake/pipeline/pkg/dq"
	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/quarantine"
	"github.com/edulake/pipeline/pkg/registry"
	"github.com/edulake/pipeline/pkg/standardize"
	"github.com/edulake/pipeline/pkg/store"
)

// Stage runs the silver transform: standardize each recognized raw table,
// evaluate its declared rules, split clean from quarantined rows, and
// persist clean per-entity snapshots. Row-level failures never fail the
// stage; the stage always produces output for every recognized entity.
type Stage struct {
	registry    *registry.Registry
	engine      *dq.Engine
	store       store.Store
	quarantine  *quarantine.Writer
	metrics     audit.MetricRecorder
	silverDir   string
	workerCount int
	logger      *zap.Logger
}

// Stage name recorded in the audit ledger and rule metrics.
const stageName = "silver_transform"

// NewStage creates a silver transform stage. workerCount <= 0 selects a
// default based on the host CPU count.
func NewStage(
	reg *registry.Registry,
	engine *dq.Engine,
	st store.Store,
	qw *quarantine.Writer,
	metrics audit.MetricRecorder,
	silverDir string,
	workerCount int,
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
		registry:    reg,
		engine:      engine,
		store:       st,
		quarantine:  qw,
		metrics:     metrics,
		silverDir:   silverDir,
		workerCount: workerCount,
		logger:      logger,
	}, nil
}

// Result summarizes one silver transform run.
type Result struct {
	RowsProcessed   int64    // Total input rows across recognized entities
	RowsQuarantined int64    // Rows failing at least one rule
	Entities        []string // Entities materialized, sorted
	SkippedLabels   []string // Unmapped raw labels, sorted
	QuarantinePath  string   // Combined quarantine file, empty when clean
}

// Run transforms one raw batch. Entities are evaluated concurrently with
// a fan-in barrier before the combined quarantine batch is written;
// snapshot persistence is serialized through the single store handle.
func (s *Stage) Run(ctx context.Context, runID string, batch map[string]*model.Table) (*Result, error) {
	if batch == nil {
		return nil, errors.New("raw batch cannot be nil")
	}

	result := &Result{}

	// Resolve raw labels against the registry. Unmapped sheets are
	// tolerated: warn and move on.
	standardized := make(map[string]*model.Table)
	for label, raw := range batch {
		entity, ok := s.registry.Resolve(label)
		if !ok {
			s.logger.Warn("Skipping unmapped input table", zap.String("label", label))
			result.SkippedLabels = append(result.SkippedLabels, label)
			continue
		}
		standardized[entity] = standardize.Table(entity, raw)
	}
	sort.Strings(result.SkippedLabels)

	outcomes, err := s.evaluateAll(ctx, runID, standardized)
	if err != nil {
		return nil, err
	}

	// Fan-in complete: persist snapshots and the combined quarantine
	// batch in deterministic entity order.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Entity < outcomes[j].Entity })

	var quarantined []model.QuarantineRecord
	var ruleResults []dq.RuleResult
	for _, outcome := range outcomes {
		result.RowsProcessed += int64(outcome.InputRows)
		result.Entities = append(result.Entities, outcome.Entity)
		ruleResults = append(ruleResults, outcome.RuleResults...)

		path := filepath.Join(s.silverDir, outcome.Entity+".parquet")
		if err := s.store.PersistSnapshot(ctx, outcome.Clean, path); err != nil {
			return nil, fmt.Errorf("failed to persist silver snapshot for %s: %w", outcome.Entity, err)
		}

		s.logger.Info("Materialized silver entity",
			zap.String("entity", outcome.Entity),
			zap.Int("inputRows", outcome.InputRows),
			zap.Int("cleanRows", outcome.Clean.RowCount()),
			zap.Int("quarantinedRows", len(outcome.Quarantined)))

		quarantined = append(quarantined, outcome.Quarantined...)
	}

	result.RowsQuarantined = int64(len(quarantined))
	if len(quarantined) > 0 {
		path, err := s.quarantine.WriteCombined(ctx, runID, quarantined)
		if err != nil {
			return nil, err
		}
		result.QuarantinePath = path
	}

	if err := s.metrics.RecordRules(ctx, runID, stageName, ruleResults); err != nil {
		return nil, fmt.Errorf("failed to record rule metrics: %w", err)
	}

	return result, nil
}

// process standardizes, evaluates, and partitions one entity. Pure
// computation; no store access, so it is safe to run concurrently.
func (s *Stage) process(
	runID string,
	entity registry.Entity,
	table *model.Table,
	lookups map[string]*model.Table,
) (*entityOutcome, error) {
	eval, err := s.engine.Evaluate(entity.Name, table, entity.SilverRules, lookups)
	if err != nil {
		return nil, fmt.Errorf("rule evaluation failed for %s: %w", entity.Name, err)
	}

	outcome := &entityOutcome{
		Entity:      entity.Name,
		InputRows:   table.RowCount(),
		RuleResults: eval.Results,
	}

	clean := model.NewTable(entity.Name, table.Columns)
	seen := make(map[string]bool, len(table.Rows))
	for i, row := range table.Rows {
		if eval.Failed[i] {
			outcome.Quarantined = append(outcome.Quarantined, model.QuarantineRecord{
				RunID:        runID,
				SourceEntity: entity.Name,
				Columns:      table.Columns,
				Reasons:      eval.Reasons[i],
				Row:          row,
			})
			continue
		}

		// Deduplicate retained rows on full-row equality.
		key := row.Key(table.Columns)
		if seen[key] {
			continue
		}
		seen[key] = true
		clean.Rows = append(clean.Rows, row)
	}
	outcome.Clean = clean

	return outcome, nil
}

// entityOutcome is the per-entity fan-out result.
type entityOutcome struct {
	Entity      string
	InputRows   int
	Clean       *model.Table
	Quarantined []model.QuarantineRecord
	RuleResults []dq.RuleResult
}
