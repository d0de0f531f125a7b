// pkg/store/store.go
package store

import (
	"context"

	"github.com/edulake/pipeline/pkg/model"
)

// Store is the columnar analytics store backing the pipeline: named
// queryable tables plus snapshot files. Implementations are not safe for
// concurrent writers; callers serialize writes or use one handle per
// worker.
type Store interface {
	// RegisterTable replaces the named table's contents with the given
	// rows, creating the table if needed.
	RegisterTable(ctx context.Context, table *model.Table) error

	// PersistSnapshot writes the table to a standalone columnar snapshot
	// file, overwriting any previous file at the path.
	PersistSnapshot(ctx context.Context, table *model.Table, path string) error

	// ReadSnapshot loads a snapshot file into a table with the given
	// canonical name.
	ReadSnapshot(ctx context.Context, name, path string) (*model.Table, error)

	// SnapshotExists reports whether a snapshot file is present.
	SnapshotExists(path string) bool

	// Close releases the underlying resources.
	Close() error
}
