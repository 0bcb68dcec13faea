// Package pipeline orchestrates a query end to end: availability and
// table validation, processed-cache lookup, raw-cache resolution, and
// per-table compilation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/gridseer/gridseer/internal/compiler"
	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/rawcache"
)

// Catalog lists what the archive has published.
type Catalog interface {
	ListMonths(ctx context.Context) (map[int][]int, error)
	ListTables(ctx context.Context, ym domain.YearMonth, ft domain.ForecastType) ([]string, error)
}

// RawCache resolves monthly archives to local normalized files.
type RawCache interface {
	Ensure(ctx context.Context, ids []domain.ArchiveID) ([]rawcache.ResolvedArchive, error)
	Read(id domain.ArchiveID) (*domain.Frame, error)
}

// ProcessedCache short-circuits compilation for previously answered
// queries.
type ProcessedCache interface {
	Find(q domain.Query, table string) (*domain.Frame, bool, error)
	Save(res *compiler.Result) error
}

// Pipeline wires the components behind the user-facing operations.
// The processed cache is optional; a nil value disables it.
type Pipeline struct {
	catalog   Catalog
	raw       RawCache
	processed ProcessedCache
	compiler  *compiler.Compiler
	tables    *config.Tables
	logger    *slog.Logger
}

func New(catalog Catalog, raw RawCache, processed ProcessedCache, comp *compiler.Compiler, tables *config.Tables, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		catalog:   catalog,
		raw:       raw,
		processed: processed,
		compiler:  comp,
		tables:    tables,
		logger:    logger,
	}
}

// GenerateRunTimes parses a forecasted window and returns the minimal
// run window that covers it under the forecast type's cadence rules.
func GenerateRunTimes(forecastedStart, forecastedEnd, forecastType string) (time.Time, time.Time, error) {
	ft, err := domain.ParseForecastType(forecastType)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	fs, err := domain.ParseDateTime("forecasted_start", forecastedStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	fe, err := domain.ParseDateTime("forecasted_end", forecastedEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return domain.GenerateRunTimes(ft, fs, fe)
}

// GenerateForecastedTimes is the inverse entry point: given a run window it
// returns the maximal forecasted window the runs can reach.
func GenerateForecastedTimes(runStart, runEnd, forecastType string) (time.Time, time.Time, error) {
	ft, err := domain.ParseForecastType(forecastType)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	rs, err := domain.ParseDateTime("run_start", runStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	re, err := domain.ParseDateTime("run_end", runEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return domain.GenerateForecastedTimes(ft, rs, re)
}

// Download validates the query against archive availability and makes
// every touched monthly archive locally available.
func (p *Pipeline) Download(ctx context.Context, q domain.Query) error {
	tables, err := p.validateAgainstArchive(ctx, q)
	if err != nil {
		return err
	}

	var ids []domain.ArchiveID
	for _, table := range tables {
		ids = append(ids, domain.ArchiveIDsForTable(q.ForecastType, table, q.Window.RunStart, q.Window.RunEnd)...)
	}
	_, err = p.raw.Ensure(ctx, ids)
	return err
}

// Compile answers the query per table: a processed-cache hit is
// narrowed to the requested window with no raw activity; otherwise the
// raw cache resolves the touched months and the compiler assembles the
// result, which is then persisted to the processed cache when one is
// configured. A failed table does not abort its siblings.
func (p *Pipeline) Compile(ctx context.Context, q domain.Query, structure domain.Structure) (map[string]*compiler.Result, error) {
	tables, err := p.validateAgainstArchive(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*compiler.Result, len(tables))
	var errs *multierror.Error
	for _, table := range tables {
		res, err := p.compileTable(ctx, q, table, structure)
		if err != nil {
			p.logger.Error("table compilation failed", "table", table, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		results[table] = res
	}
	return results, errs.ErrorOrNil()
}

func (p *Pipeline) compileTable(ctx context.Context, q domain.Query, table string, structure domain.Structure) (*compiler.Result, error) {
	if p.processed != nil {
		frame, ok, err := p.processed.Find(q, table)
		if err != nil {
			return nil, err
		}
		if ok {
			return p.compiler.Compile(q, table, []*domain.Frame{frame}, structure)
		}
	}

	ids := domain.ArchiveIDsForTable(q.ForecastType, table, q.Window.RunStart, q.Window.RunEnd)
	resolved, err := p.raw.Ensure(ctx, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingMonths(ids, resolved); len(missing) > 0 {
		p.logger.Warn("partial archive coverage for table",
			"table", table, "missing_months", strings.Join(missing, ","))
	}

	frames := make([]*domain.Frame, 0, len(resolved))
	for _, r := range resolved {
		frame, err := p.raw.Read(r.ID)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	res, err := p.compiler.Compile(q, table, frames, structure)
	if err != nil {
		return nil, err
	}
	if p.processed != nil {
		if err := p.processed.Save(res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// validateAgainstArchive performs the I/O half of query validation:
// archive month availability, table existence in the run_start month,
// variant mixing, and deprecation warnings. Returns the final table
// set with enumerated tables expanded.
func (p *Pipeline) validateAgainstArchive(ctx context.Context, q domain.Query) ([]string, error) {
	if err := p.checkMonthAvailability(ctx, q); err != nil {
		return nil, err
	}
	if err := p.checkVariantMixing(q); err != nil {
		return nil, err
	}

	startMonth := domain.YearMonth{Year: q.Window.RunStart.Year(), Month: q.Window.RunStart.Month()}
	available, err := p.catalog.ListTables(ctx, startMonth, q.ForecastType)
	if err != nil {
		return nil, fmt.Errorf("list available tables: %w", err)
	}
	availSet := make(map[string]bool, len(available))
	for _, t := range available {
		availSet[t] = true
	}

	for _, table := range q.Tables {
		if p.tables.IsDeprecated(q.ForecastType, table) {
			p.logger.Warn("requested table is deprecated and no longer updated",
				"forecast_type", q.ForecastType, "table", table)
			continue
		}
		if !availSet[table] {
			return nil, domain.Validationf("tables",
				"table %s not available for %s in %s; available tables: %s",
				table, q.ForecastType, startMonth, strings.Join(available, ", "))
		}
	}

	return p.tables.Enumerate(q.ForecastType, q.Tables), nil
}

// checkMonthAvailability errors when no touched month exists in the
// archive at all; a partial overlap is only a coverage gap, reported
// later per table.
func (p *Pipeline) checkMonthAvailability(ctx context.Context, q domain.Query) error {
	published, err := p.catalog.ListMonths(ctx)
	if err != nil {
		return fmt.Errorf("list available months: %w", err)
	}

	touched := domain.MonthsTouched(q.Window.RunStart, q.Window.RunEnd)
	for _, ym := range touched {
		for _, m := range published[ym.Year] {
			if time.Month(m) == ym.Month {
				return nil
			}
		}
	}
	return domain.Validationf("run window",
		"no archive data published for any month in %s to %s",
		q.Window.RunStart.Format(domain.DateTimeFormat),
		q.Window.RunEnd.Format(domain.DateTimeFormat))
}

// checkVariantMixing rejects queries naming both the complete table and
// its latest-run-only _D variant; their rows must never be combined.
func (p *Pipeline) checkVariantMixing(q domain.Query) error {
	requested := make(map[string]bool, len(q.Tables))
	for _, t := range q.Tables {
		requested[t] = true
	}
	for _, t := range q.Tables {
		if p.tables.IsLatestVariant(t) && requested[p.tables.BaseTable(t)] {
			return domain.Validationf("tables",
				"cannot mix %s with %s: latest-run and complete variants are distinct datasets",
				t, p.tables.BaseTable(t))
		}
	}
	return nil
}

func missingMonths(requested []domain.ArchiveID, resolved []rawcache.ResolvedArchive) []string {
	got := make(map[domain.ArchiveID]bool, len(resolved))
	for _, r := range resolved {
		got[r.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !got[id] {
			missing = append(missing, id.YearMonth().String())
		}
	}
	return missing
}
