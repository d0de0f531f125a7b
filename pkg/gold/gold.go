// pkg/gold/gold.go
package gold

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/registry"
	"github.com/edulake/pipeline/pkg/store"
)

// Builder materializes the star schema from the current run's silver
// snapshots: dimensions get dense surrogate keys, facts join
// transactional rows to dimensions on natural keys and substitute the
// surrogate keys. Keys are recomputed from row order every run; there is
// no cross-run key stability.
type Builder struct {
	registry  *registry.Registry
	store     store.Store
	silverDir string
	goldDir   string
	logger    *zap.Logger
}

// ErrBrokenDimension is returned when a dimension's natural key is null
// or duplicated, a precondition the silver transform should have
// enforced.
var ErrBrokenDimension = errors.New("dimension natural key violates uniqueness precondition")

// NewBuilder creates a gold layer builder
func NewBuilder(
	reg *registry.Registry,
	st store.Store,
	silverDir, goldDir string,
	logger *zap.Logger,
) (*Builder, error) {
	if reg == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Builder{
		registry:  reg,
		store:     st,
		silverDir: silverDir,
		goldDir:   goldDir,
		logger:    logger,
	}, nil
}

// Result summarizes one gold build.
type Result struct {
	RowsWritten int64    // Total rows across dimensions and facts
	Dimensions  []string // Dimension tables materialized
	Facts       []string // Fact tables materialized
}

// Run builds and persists every declared dimension and fact. Structural
// problems (missing snapshot, missing join column, broken natural keys)
// are fatal for the whole stage.
func (b *Builder) Run(ctx context.Context, runID string) (*Result, error) {
	result := &Result{}

	dimensions := make(map[string]*model.Table, len(b.registry.Dimensions()))
	dimSpecs := make(map[string]registry.Dimension, len(b.registry.Dimensions()))

	for _, spec := range b.registry.Dimensions() {
		source, err := b.loadSilver(ctx, spec.Source)
		if err != nil {
			return nil, err
		}

		dim, err := BuildDimension(spec, source)
		if err != nil {
			return nil, err
		}

		if err := b.persist(ctx, dim); err != nil {
			return nil, err
		}
		dimensions[spec.Name] = dim
		dimSpecs[spec.Name] = spec
		result.Dimensions = append(result.Dimensions, spec.Name)
		result.RowsWritten += int64(dim.RowCount())

		b.logger.Info("Materialized dimension",
			zap.String("dimension", spec.Name),
			zap.Int("rows", dim.RowCount()))
	}

	for _, spec := range b.registry.Facts() {
		source, err := b.loadSilver(ctx, spec.Source)
		if err != nil {
			return nil, err
		}

		fact, err := BuildFact(spec, source, dimensions, dimSpecs)
		if err != nil {
			return nil, err
		}

		if err := b.persist(ctx, fact); err != nil {
			return nil, err
		}
		result.Facts = append(result.Facts, spec.Name)
		result.RowsWritten += int64(fact.RowCount())

		b.logger.Info("Materialized fact",
			zap.String("fact", spec.Name),
			zap.Int("sourceRows", source.RowCount()),
			zap.Int("factRows", fact.RowCount()))
	}

	return result, nil
}

// loadSilver reads an entity's silver snapshot; absence is structural and
// fatal for the stage.
func (b *Builder) loadSilver(ctx context.Context, entity string) (*model.Table, error) {
	path := filepath.Join(b.silverDir, entity+".parquet")
	if !b.store.SnapshotExists(path) {
		return nil, fmt.Errorf("silver snapshot for %s not found at %s", entity, path)
	}
	return b.store.ReadSnapshot(ctx, entity, path)
}

// persist registers the table and writes its gold snapshot file, keyed by
// canonical name and overwritten each run.
func (b *Builder) persist(ctx context.Context, table *model.Table) error {
	path := filepath.Join(b.goldDir, table.Name+".parquet")
	if err := b.store.PersistSnapshot(ctx, table, path); err != nil {
		return fmt.Errorf("failed to persist gold table %s: %w", table.Name, err)
	}
	return nil
}

// BuildDimension assigns dense surrogate keys 1..N over the source's row
// order and carries the declared columns. The natural key must be present,
// non-null, and unique; the builder fails fast otherwise because upstream
// stages own deduplication.
func BuildDimension(spec registry.Dimension, source *model.Table) (*model.Table, error) {
	if !source.HasColumn(spec.NaturalKey) {
		return nil, fmt.Errorf(
			"dimension %s: natural key column %q not found on %s (available columns: %s)",
			spec.Name, spec.NaturalKey, spec.Source,
			strings.Join(model.SortedColumns(source.Columns), ", "))
	}

	columns := make([]string, 0, len(spec.Columns)+1)
	columns = append(columns, spec.KeyColumn)
	for _, col := range spec.Columns {
		if source.HasColumn(col) {
			columns = append(columns, col)
		}
	}

	dim := model.NewTable(spec.Name, columns)
	seen := make(map[string]int, len(source.Rows))
	for i, row := range source.Rows {
		naturalKey := row[spec.NaturalKey]
		if model.IsNull(naturalKey) {
			return nil, fmt.Errorf("%w: dimension %s row %d has null %s",
				ErrBrokenDimension, spec.Name, i, spec.NaturalKey)
		}
		key := model.ValueKey(naturalKey)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: dimension %s rows %d and %d share %s=%v",
				ErrBrokenDimension, spec.Name, prev, i, spec.NaturalKey, naturalKey)
		}
		seen[key] = i

		out := make(model.Row, len(columns))
		out[spec.KeyColumn] = int64(i + 1)
		for _, col := range columns[1:] {
			out[col] = row[col]
		}
		dim.Rows = append(dim.Rows, out)
	}

	return dim, nil
}

// BuildFact joins the transactional source to each declared dimension on
// its natural key, replacing natural keys with surrogate keys. Rows with
// an unresolved required join are dropped; optional joins keep the row
// with a nil surrogate key. A missing join column on either side is
// fatal because a fact without its referential backbone is meaningless.
func BuildFact(
	spec registry.Fact,
	source *model.Table,
	dimensions map[string]*model.Table,
	dimSpecs map[string]registry.Dimension,
) (*model.Table, error) {
	type joinIndex struct {
		join      registry.FactJoin
		keyColumn string
		bySurrKey map[string]int64
	}

	indexes := make([]joinIndex, 0, len(spec.Joins))
	for _, join := range spec.Joins {
		dim, ok := dimensions[join.Dimension]
		if !ok {
			return nil, fmt.Errorf("fact %s: dimension %s was not built", spec.Name, join.Dimension)
		}
		dimSpec := dimSpecs[join.Dimension]

		if !source.HasColumn(join.NaturalKey) {
			return nil, fmt.Errorf(
				"fact %s: join column %q not found on source %s (available columns: %s)",
				spec.Name, join.NaturalKey, spec.Source,
				strings.Join(model.SortedColumns(source.Columns), ", "))
		}
		if !dim.HasColumn(join.NaturalKey) {
			return nil, fmt.Errorf(
				"fact %s: join column %q not found on dimension %s (available columns: %s)",
				spec.Name, join.NaturalKey, join.Dimension,
				strings.Join(model.SortedColumns(dim.Columns), ", "))
		}

		index := joinIndex{
			join:      join,
			keyColumn: dimSpec.KeyColumn,
			bySurrKey: make(map[string]int64, len(dim.Rows)),
		}
		for _, row := range dim.Rows {
			surrogate, _ := row[dimSpec.KeyColumn].(int64)
			index.bySurrKey[model.ValueKey(row[join.NaturalKey])] = surrogate
		}
		indexes = append(indexes, index)
	}

	columns := make([]string, 0, 1+len(spec.Joins)+len(spec.Measures))
	columns = append(columns, spec.KeyColumn)
	for _, index := range indexes {
		columns = append(columns, index.keyColumn)
	}
	for _, col := range spec.Measures {
		if source.HasColumn(col) {
			columns = append(columns, col)
		}
	}

	fact := model.NewTable(spec.Name, columns)
	for _, row := range source.Rows {
		out := make(model.Row, len(columns))
		resolved := true

		for _, index := range indexes {
			surrogate, ok := index.bySurrKey[model.ValueKey(row[index.join.NaturalKey])]
			if !ok {
				if index.join.Optional {
					out[index.keyColumn] = nil
					continue
				}
				resolved = false
				break
			}
			out[index.keyColumn] = surrogate
		}
		if !resolved {
			continue
		}

		for _, col := range columns[1+len(indexes):] {
			out[col] = row[col]
		}
		out[spec.KeyColumn] = int64(fact.RowCount() + 1)
		fact.Rows = append(fact.Rows, out)
	}

	return fact, nil
}
