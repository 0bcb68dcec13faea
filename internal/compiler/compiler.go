// Package compiler merges normalized monthly frames into the final
// per-table result: concatenate, resolve run times, filter both time
// axes, deduplicate, sort, and optionally reshape into a labeled
// multi-dimensional dataset.
package compiler

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
)

// Metadata keys persisted with every compiled result.
const (
	MetaForecastType    = "forecast_type"
	MetaTable           = "table"
	MetaRunStart        = "run_start"
	MetaRunEnd          = "run_end"
	MetaForecastedStart = "forecasted_start"
	MetaForecastedEnd   = "forecasted_end"
	MetaStructure       = "structure"
	MetaCompiledAt      = "compiled_at"

	// Realized coverage: the bounds actually present in the data, which
	// may be narrower than the requested window.
	MetaRealizedRunStart        = "realized_run_start"
	MetaRealizedRunEnd          = "realized_run_end"
	MetaRealizedForecastedStart = "realized_forecasted_start"
	MetaRealizedForecastedEnd   = "realized_forecasted_end"
)

// Result is the compiled output for one table. Frame is always
// populated; Dataset additionally for multidimensional requests.
type Result struct {
	Table     string
	Structure domain.Structure
	Frame     *domain.Frame
	Dataset   *domain.Dataset
	Metadata  map[string]string
}

// Compiler holds the collaborators shared across table compilations.
type Compiler struct {
	tables  *config.Tables
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(tables *config.Tables, logger *slog.Logger, metrics *observability.Metrics) *Compiler {
	return &Compiler{tables: tables, logger: logger, metrics: metrics}
}

// Compile assembles one table's result from its resolved monthly
// frames. Frames arrive in month order; within the concatenated set,
// the first occurrence of a duplicate key wins. The same path serves
// processed-cache loads, which pass a single superset frame to be
// narrowed to the requested window.
func (c *Compiler) Compile(q domain.Query, table string, frames []*domain.Frame, structure domain.Structure) (*Result, error) {
	timer := prometheus.NewTimer(c.metrics.CompileDuration)
	defer timer.ObserveDuration()

	combined := &domain.Frame{}
	for _, f := range frames {
		if err := combined.Append(f); err != nil {
			c.metrics.TableErrors.Inc()
			return nil, fmt.Errorf("table %s: concatenate monthly frames: %w", table, err)
		}
	}

	runCol := c.tables.RuntimeColumn(q.ForecastType)
	forecastedCol := c.tables.ForecastedColumn(q.ForecastType)

	combined.FilterTime(runCol, q.Window.RunStart, q.Window.RunEnd)
	combined.FilterTime(forecastedCol, q.Window.ForecastedStart, q.Window.ForecastedEnd)

	if combined.NumRows() == 0 {
		c.metrics.TableErrors.Inc()
		return nil, &domain.EmptyResultError{Table: table}
	}

	// Overlapping months replay identical rows; drop exact duplicates,
	// first occurrence winning. Rows that share the index key but differ
	// elsewhere survive here and surface as a cardinality error on
	// reshape.
	allCols := make([]string, len(combined.Columns))
	for i, col := range combined.Columns {
		allCols[i] = col.Name
	}
	if dropped := combined.Deduplicate(allCols); dropped > 0 {
		c.logger.Warn("dropped duplicate rows across monthly archives",
			"table", table, "rows", dropped)
	}

	indexCols := c.indexColumns(combined, runCol, forecastedCol)
	combined.SortRows(indexCols)

	result := &Result{
		Table:     table,
		Structure: structure,
		Frame:     combined,
		Metadata:  c.buildMetadata(q, table, structure, combined, runCol, forecastedCol),
	}

	if structure == domain.StructureMulti {
		ds, err := c.reshape(combined, table, indexCols)
		if err != nil {
			c.metrics.TableErrors.Inc()
			return nil, err
		}
		result.Dataset = ds
	}

	c.metrics.RowsCompiled.Add(float64(combined.NumRows()))
	return result, nil
}

// indexColumns returns the key columns present in the frame: run time,
// forecasted time, then every configured or categorical discriminator.
func (c *Compiler) indexColumns(f *domain.Frame, runCol, forecastedCol string) []string {
	var cols []string
	for _, name := range []string{runCol, forecastedCol} {
		if f.HasColumn(name) {
			cols = append(cols, name)
		}
	}
	return append(cols, f.KeyColumns(c.tables.IsKeyColumn, runCol, forecastedCol)...)
}

// reshape pivots the frame into a Dataset. Rows flagged as belonging
// to a market intervention period never index cleanly, so they are
// dropped from the pivot input with a warning; the flat frame keeps
// them.
func (c *Compiler) reshape(f *domain.Frame, table string, indexCols []string) (*domain.Dataset, error) {
	pivotInput := f
	if idx := f.ColumnIndex(c.tables.InterventionColumn); idx >= 0 {
		kept := make([][]any, 0, len(f.Rows))
		dropped := 0
		for _, row := range f.Rows {
			if isIntervention(row[idx]) {
				dropped++
				continue
			}
			kept = append(kept, row)
		}
		if dropped > 0 {
			c.logger.Warn("excluding intervention-period rows from reshape",
				"table", table, "rows", dropped)
			pivotInput = &domain.Frame{Columns: f.Columns, Rows: kept}
		}
	}
	return domain.PivotFrame(pivotInput, table, indexCols)
}

func isIntervention(v any) bool {
	switch x := v.(type) {
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		n, err := strconv.ParseFloat(x, 64)
		return err == nil && n != 0
	default:
		return false
	}
}

// buildMetadata records the requested window (the declared coverage,
// so an identical later query matches it) plus the realized bounds.
func (c *Compiler) buildMetadata(q domain.Query, table string, structure domain.Structure, f *domain.Frame, runCol, forecastedCol string) map[string]string {
	meta := map[string]string{
		MetaForecastType:    string(q.ForecastType),
		MetaTable:           table,
		MetaRunStart:        q.Window.RunStart.Format(domain.DateTimeFormat),
		MetaRunEnd:          q.Window.RunEnd.Format(domain.DateTimeFormat),
		MetaForecastedStart: q.Window.ForecastedStart.Format(domain.DateTimeFormat),
		MetaForecastedEnd:   q.Window.ForecastedEnd.Format(domain.DateTimeFormat),
		MetaStructure:       string(structure),
		MetaCompiledAt:      domain.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	if min, max, ok := f.TimeBounds(runCol); ok {
		meta[MetaRealizedRunStart] = min.Format(domain.DateTimeFormat)
		meta[MetaRealizedRunEnd] = max.Format(domain.DateTimeFormat)
	}
	if min, max, ok := f.TimeBounds(forecastedCol); ok {
		meta[MetaRealizedForecastedStart] = min.Format(domain.DateTimeFormat)
		meta[MetaRealizedForecastedEnd] = max.Format(domain.DateTimeFormat)
	}
	return meta
}
