// pkg/reader/excel.go
package reader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
)

// ExcelReader reads .xlsx workbooks through excelize. Each sheet becomes
// one raw table: the first row supplies column names, blank cells become
// nulls, and purely numeric cells are parsed into numbers so downstream
// rules can compare them.
type ExcelReader struct {
	logger *zap.Logger
}

// NewExcelReader creates a workbook reader
func NewExcelReader(logger *zap.Logger) (*ExcelReader, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &ExcelReader{logger: logger}, nil
}

// ReadWorkbook reads every sheet of the workbook at path. A missing or
// unreadable file is an error; an empty sheet yields a table with no rows.
func (r *ExcelReader) ReadWorkbook(ctx context.Context, path string) (map[string]*model.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			r.logger.Warn("Failed to close workbook", zap.Error(closeErr))
		}
	}()

	batch := make(map[string]*model.Table)
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		table := sheetToTable(sheet, rows)
		batch[sheet] = table

		r.logger.Debug("Read sheet",
			zap.String("sheet", sheet),
			zap.Int("rows", len(table.Rows)),
			zap.Int("columns", len(table.Columns)))
	}

	r.logger.Info("Read workbook",
		zap.String("path", path),
		zap.Int("sheets", len(batch)))
	return batch, nil
}

// sheetToTable converts raw sheet cells into a table. The header row is
// used verbatim; column standardization happens downstream.
func sheetToTable(sheet string, rows [][]string) *model.Table {
	if len(rows) == 0 {
		return model.NewTable(sheet, nil)
	}

	headers := rows[0]
	table := model.NewTable(sheet, headers)
	for _, cells := range rows[1:] {
		row := make(model.Row, len(headers))
		for i, header := range headers {
			if i < len(cells) {
				row[header] = parseCell(cells[i])
			} else {
				row[header] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// parseCell interprets a cell: blank is null, numeric text becomes a
// number, everything else stays a string.
func parseCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return v
	}
	return trimmed
}
