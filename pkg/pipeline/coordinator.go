// pkg/pipeline/coordinator.go
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/audit"
	"github.com/edulake/pipeline/pkg/config"
	"github.com/edulake/pipeline/pkg/gate"
	"github.com/edulake/pipeline/pkg/gold"
	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/reader"
	"github.com/edulake/pipeline/pkg/silver"
)

// State is the coordinator's position in the run lifecycle.
type State int

const (
	StatePending State = iota
	StateIngesting
	StateTransforming
	StateQualityGating
	StateBuildingGold
	StateCompleted
	StateFailed
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateIngesting:
		return "INGESTING"
	case StateTransforming:
		return "TRANSFORMING"
	case StateQualityGating:
		return "QUALITY_GATING"
	case StateBuildingGold:
		return "BUILDING_GOLD"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Stage names as recorded in the audit ledger.
const (
	StageSilver = "silver_transform"
	StageGate   = "data_quality_gate"
	StageGold   = "gold_build"
)

// Coordinator sequences the pipeline stages for one run. Stages execute
// strictly sequentially; a fatal stage failure writes a FAILED audit
// record and aborts the remaining stages. Row-level quality failures are
// not stage failures.
type Coordinator struct {
	cfg    *config.Config
	reader reader.Reader
	ledger audit.Recorder
	silver *silver.Stage
	gate   *gate.Stage
	gold   *gold.Builder
	logger *zap.Logger
}

// NewCoordinator creates a run coordinator
func NewCoordinator(
	cfg *config.Config,
	rd reader.Reader,
	ledger audit.Recorder,
	silverStage *silver.Stage,
	gateStage *gate.Stage,
	goldBuilder *gold.Builder,
	logger *zap.Logger,
) (*Coordinator, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if rd == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("audit ledger cannot be nil")
	}
	if silverStage == nil || gateStage == nil || goldBuilder == nil {
		return nil, errors.New("all stages are required")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Coordinator{
		cfg:    cfg,
		reader: rd,
		ledger: ledger,
		silver: silverStage,
		gate:   gateStage,
		gold:   goldBuilder,
		logger: logger,
	}, nil
}

// stageOutcome is what each stage body reports back to the audit wrapper.
type stageOutcome struct {
	rowCount    int64
	quarantined int64
}

// Run executes one full pipeline run. It is the single entry point an
// external scheduler invokes; a fresh run identifier is generated per
// call. The returned result is populated even when the run fails.
func (c *Coordinator) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.New().String()
	result := NewRunResult(runID)

	c.logger.Info("Pipeline run started", zap.String("runID", runID))

	// The workbook read and the transform share one audit span: a
	// missing source file fails the silver_transform stage.
	err := c.runStage(ctx, result, StateIngesting, StageSilver, ClassStructural, func() (stageOutcome, error) {
		batch, err := c.reader.ReadWorkbook(ctx, c.cfg.SourceFile)
		if err != nil {
			return stageOutcome{}, err
		}
		c.transition(result, StateTransforming)

		res, err := c.silver.Run(ctx, runID, batch)
		if err != nil {
			return stageOutcome{}, err
		}
		return stageOutcome{rowCount: res.RowsProcessed, quarantined: res.RowsQuarantined}, nil
	})
	if err != nil {
		return c.fail(result, err)
	}

	err = c.runStage(ctx, result, StateQualityGating, StageGate, ClassRowQuality, func() (stageOutcome, error) {
		res, err := c.gate.Run(ctx, runID)
		if res == nil {
			return stageOutcome{}, err
		}
		return stageOutcome{rowCount: res.RowsChecked, quarantined: res.RowsQuarantined}, err
	})
	if err != nil {
		return c.fail(result, err)
	}

	err = c.runStage(ctx, result, StateBuildingGold, StageGold, ClassStructural, func() (stageOutcome, error) {
		res, err := c.gold.Run(ctx, runID)
		if err != nil {
			if errors.Is(err, gold.ErrBrokenDimension) {
				return stageOutcome{}, NewStageError(StageGold, ClassReferential, err)
			}
			return stageOutcome{}, err
		}
		return stageOutcome{rowCount: res.RowsWritten}, nil
	})
	if err != nil {
		return c.fail(result, err)
	}

	result.Complete(StateCompleted)
	c.logSummary(result)
	return result, nil
}

// runStage wraps one stage body: transition state, execute, and append
// exactly one audit record reflecting the aggregate outcome. Fatal
// errors are classified and re-raised to abort the run.
func (c *Coordinator) runStage(
	ctx context.Context,
	result *RunResult,
	state State,
	stage string,
	class Class,
	body func() (stageOutcome, error),
) error {
	c.transition(result, state)
	c.logger.Info("Stage started",
		zap.String("runID", result.RunID),
		zap.String("stage", stage))

	started := time.Now()
	outcome, err := body()
	ended := time.Now()

	stageResult := StageResult{
		Stage:       stage,
		Status:      model.StatusSuccess,
		RowCount:    outcome.rowCount,
		Quarantined: outcome.quarantined,
		StartTime:   started,
		EndTime:     ended,
		Duration:    ended.Sub(started),
	}

	rec := model.AuditRecord{
		RunID:     result.RunID,
		Stage:     stage,
		Status:    model.StatusSuccess,
		RowCount:  outcome.rowCount,
		StartedAt: started,
		EndedAt:   ended,
	}

	if err != nil {
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = NewStageError(stage, class, err)
		}

		msg := stageErr.Error()
		rec.Status = model.StatusFailed
		rec.ErrorMessage = &msg
		stageResult.Status = model.StatusFailed
		stageResult.Err = stageErr

		if recErr := c.ledger.Record(ctx, rec); recErr != nil {
			c.logger.Error("Failed to write audit record",
				zap.String("stage", stage),
				zap.Error(recErr))
		}
		result.AddStage(stageResult)

		c.logger.Error("Stage failed",
			zap.String("runID", result.RunID),
			zap.String("stage", stage),
			zap.Duration("duration", stageResult.Duration),
			zap.Error(stageErr))
		return stageErr
	}

	if recErr := c.ledger.Record(ctx, rec); recErr != nil {
		c.logger.Error("Failed to write audit record",
			zap.String("stage", stage),
			zap.Error(recErr))
	}
	result.AddStage(stageResult)

	c.logger.Info("Stage completed",
		zap.String("runID", result.RunID),
		zap.String("stage", stage),
		zap.Int64("rowCount", outcome.rowCount),
		zap.Int64("quarantined", outcome.quarantined),
		zap.Duration("duration", stageResult.Duration))
	return nil
}

// transition advances the run state. Transitions are strictly
// sequential; FAILED is reached only through fail.
func (c *Coordinator) transition(result *RunResult, state State) {
	result.State = state
	c.logger.Debug("State transition",
		zap.String("runID", result.RunID),
		zap.String("state", state.String()))
}

// fail finalizes a run after a fatal stage error.
func (c *Coordinator) fail(result *RunResult, err error) (*RunResult, error) {
	result.Complete(StateFailed)
	c.logSummary(result)
	return result, err
}

// logSummary emits the final run summary.
func (c *Coordinator) logSummary(result *RunResult) {
	c.logger.Info("Pipeline run finished",
		zap.String("runID", result.RunID),
		zap.String("state", result.State.String()),
		zap.Int("stages", len(result.Stages)),
		zap.Int64("totalRows", result.TotalRows),
		zap.Int64("totalQuarantined", result.TotalQuarantined),
		zap.Duration("duration", result.Duration))
}
