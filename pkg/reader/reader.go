// pkg/reader/reader.go
package reader

import (
	"context"

	"github.com/edulake/pipeline/pkg/model"
)

// Reader loads one structured workbook into named raw tables, keyed by
// their raw sheet labels. The pipeline reads the workbook exactly once
// per run.
type Reader interface {
	ReadWorkbook(ctx context.Context, path string) (map[string]*model.Table, error)
}
