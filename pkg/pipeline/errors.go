// pkg/pipeline/errors.go
package pipeline

import "fmt"

// Class categorizes a fatal stage failure for the audit trail and run
// summary.
type Class int

const (
	// ClassStructural covers missing source files, missing snapshots,
	// and missing join columns.
	ClassStructural Class = iota
	// ClassRowQuality covers failures raised by the blocking quality
	// gate; row-level issues are otherwise non-fatal.
	ClassRowQuality
	// ClassReferential covers broken dimension preconditions.
	ClassReferential
	// ClassConfiguration covers invalid or incomplete configuration.
	ClassConfiguration
)

// String returns a string representation of the error class
func (c Class) String() string {
	switch c {
	case ClassStructural:
		return "Structural"
	case ClassRowQuality:
		return "RowQuality"
	case ClassReferential:
		return "Referential"
	case ClassConfiguration:
		return "Configuration"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// StageError wraps a fatal error with the stage it aborted and its
// class. The coordinator records the message in the ledger and halts the
// run.
type StageError struct {
	Stage string
	Class Class
	Err   error
}

// NewStageError creates a classified stage error
func NewStageError(stage string, class Class, err error) *StageError {
	return &StageError{Stage: stage, Class: class, Err: err}
}

// Error formats the stage, class, and cause.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Class, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}
