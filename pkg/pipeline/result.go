// pkg/pipeline/result.go
package pipeline

import "time"

// StageResult records the outcome of one stage attempt within a run.
type StageResult struct {
	Stage       string
	Status      string // SUCCESS or FAILED
	RowCount    int64  // Rows processed by the stage
	Quarantined int64  // Rows quarantined by the stage, if any
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Err         error // Fatal error, nil on success
}

// RunResult is the aggregate outcome of one pipeline run.
type RunResult struct {
	RunID            string
	State            State
	Stages           []StageResult
	TotalRows        int64
	TotalQuarantined int64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// NewRunResult initializes a run result
func NewRunResult(runID string) *RunResult {
	return &RunResult{
		RunID:     runID,
		State:     StatePending,
		StartTime: time.Now(),
		Stages:    make([]StageResult, 0, 4),
	}
}

// AddStage incorporates one stage outcome into the run totals.
func (r *RunResult) AddStage(stage StageResult) {
	r.Stages = append(r.Stages, stage)
	r.TotalRows += stage.RowCount
	r.TotalQuarantined += stage.Quarantined
}

// Complete finalizes the run result.
func (r *RunResult) Complete(state State) {
	r.State = state
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Succeeded reports whether the run reached the completed state.
func (r *RunResult) Succeeded() bool {
	return r.State == StateCompleted
}
