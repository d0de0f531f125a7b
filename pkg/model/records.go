// pkg/model/records.go
package model

import (
	"strings"
	"time"
)

// Audit statuses recorded in the ledger.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AuditRecord is one immutable ledger entry for a stage attempt.
type AuditRecord struct {
	RunID        string     // Pipeline run identifier
	Stage        string     // Stage name (e.g. "silver_transform")
	Status       string     // SUCCESS or FAILED
	RowCount     int64      // Rows processed by the stage
	ErrorMessage *string    // Populated on failure
	StartedAt    time.Time  // Stage start
	EndedAt      time.Time  // Stage end
}

// QuarantineRecord is a failed row annotated with its origin and the
// reason codes of every rule it violated.
type QuarantineRecord struct {
	RunID        string   // Pipeline run identifier
	SourceEntity string   // Entity the row came from
	Columns      []string // Ordered source columns, for stable output
	Reasons      []string // Reason codes, one per failed rule
	Row          Row      // Original row values
}

// Reason joins the reason codes for persistence in a single column.
func (q QuarantineRecord) Reason() string {
	return strings.Join(q.Reasons, ";")
}
