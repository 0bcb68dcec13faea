package compiler_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridseer/gridseer/internal/compiler"
	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
	"github.com/gridseer/gridseer/internal/observability"
)

func newCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	tables, err := config.LoadTables()
	require.NoError(t, err)
	return compiler.New(tables, slog.Default(), observability.NewMetricsForTesting())
}

func ts(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// p5minFrame builds a REGIONSOLUTION-shaped frame.
func p5minFrame(rows ...[]any) *domain.Frame {
	return &domain.Frame{
		Columns: []domain.Column{
			{Name: "RUN_DATETIME", Kind: domain.KindTime},
			{Name: "INTERVAL_DATETIME", Kind: domain.KindTime},
			{Name: "REGIONID", Kind: domain.KindCategory},
			{Name: "TOTALDEMAND", Kind: domain.KindFloat},
		},
		Rows: rows,
	}
}

func p5minQuery(runStart, runEnd, fs, fe time.Time) domain.Query {
	return domain.Query{
		Window: domain.Window{
			RunStart:        runStart,
			RunEnd:          runEnd,
			ForecastedStart: fs,
			ForecastedEnd:   fe,
		},
		ForecastType: domain.P5MIN,
		Tables:       []string{"REGIONSOLUTION"},
	}
}

func TestCompileFiltersBothAxesInclusive(t *testing.T) {
	c := newCompiler(t)

	runStart := ts(2020, 1, 1, 0, 0)
	runEnd := ts(2020, 1, 2, 0, 0)
	target := ts(2020, 1, 2, 0, 0)

	frame := p5minFrame(
		[]any{ts(2020, 1, 1, 23, 55), target, "NSW1", 7000.0},                 // in window
		[]any{runEnd, target, "NSW1", 7001.0},                                 // run boundary, inclusive
		[]any{ts(2020, 1, 2, 0, 5), target, "NSW1", 7002.0},                   // past run_end
		[]any{ts(2020, 1, 1, 23, 55), ts(2020, 1, 2, 0, 5), "NSW1", 7003.0},   // past forecasted_end
		[]any{ts(2019, 12, 31, 23, 55), target, "NSW1", 7004.0},               // before run_start
	)

	q := p5minQuery(runStart, runEnd, target, target)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureFlat)
	require.NoError(t, err)

	require.Equal(t, 2, res.Frame.NumRows())
	assert.Equal(t, 7000.0, res.Frame.Rows[0][3])
	assert.Equal(t, 7001.0, res.Frame.Rows[1][3])
}

func TestCompileDeduplicatesAcrossMonthlyFrames(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 31, 23, 55)
	forecasted := ts(2021, 2, 1, 0, 0)

	jan := p5minFrame([]any{run, forecasted, "NSW1", 7000.0})
	feb := p5minFrame(
		[]any{run, forecasted, "NSW1", 7000.0}, // replayed by the overlapping month
		[]any{run, forecasted, "VIC1", 5000.0},
	)

	q := p5minQuery(run, run, forecasted, forecasted)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{jan, feb}, domain.StructureFlat)
	require.NoError(t, err)

	require.Equal(t, 2, res.Frame.NumRows())
	// Deterministic sort: NSW1 before VIC1; first occurrence retained.
	assert.Equal(t, "NSW1", res.Frame.Rows[0][2])
	assert.Equal(t, 7000.0, res.Frame.Rows[0][3])
	assert.Equal(t, "VIC1", res.Frame.Rows[1][2])
}

func TestCompileIsDeterministicAcrossRuns(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 1, 0, 0)
	forecasted := ts(2021, 1, 1, 0, 5)
	frame := func() *domain.Frame {
		return p5minFrame(
			[]any{run, forecasted, "VIC1", 5000.0},
			[]any{run, forecasted, "NSW1", 7000.0},
			[]any{run, forecasted, "SA1", 1200.0},
		)
	}

	q := p5minQuery(run, run, forecasted, forecasted)
	first, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame()}, domain.StructureFlat)
	require.NoError(t, err)
	second, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame()}, domain.StructureFlat)
	require.NoError(t, err)

	assert.Equal(t, first.Frame.Rows, second.Frame.Rows)
	assert.Equal(t, "NSW1", first.Frame.Rows[0][2])
}

func TestCompileEmptyResultIsError(t *testing.T) {
	c := newCompiler(t)

	frame := p5minFrame([]any{ts(2021, 1, 1, 0, 0), ts(2021, 1, 1, 0, 5), "NSW1", 7000.0})
	q := p5minQuery(ts(2022, 1, 1, 0, 0), ts(2022, 1, 1, 0, 0), ts(2022, 1, 1, 0, 5), ts(2022, 1, 1, 0, 5))

	_, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureFlat)
	var emptyErr *domain.EmptyResultError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "REGIONSOLUTION", emptyErr.Table)
}

func TestCompileFiltersPredispatchOnDerivedRunTime(t *testing.T) {
	c := newCompiler(t)

	frame := &domain.Frame{
		Columns: []domain.Column{
			{Name: "PREDISPATCHSEQNO", Kind: domain.KindInt},
			{Name: "PREDISPATCH_RUN_DATETIME", Kind: domain.KindTime},
			{Name: "DATETIME", Kind: domain.KindTime},
			{Name: "REGIONID", Kind: domain.KindCategory},
			{Name: "RRP", Kind: domain.KindFloat},
		},
		Rows: [][]any{
			{int64(2021020101), ts(2021, 2, 1, 4, 30), ts(2021, 2, 1, 5, 0), "NSW1", 45.2},
			{int64(2021020112), ts(2021, 2, 1, 10, 0), ts(2021, 2, 1, 10, 30), "NSW1", 50.1},
		},
	}

	q := domain.Query{
		Window: domain.Window{
			RunStart:        ts(2021, 2, 1, 4, 0),
			RunEnd:          ts(2021, 2, 1, 5, 0),
			ForecastedStart: ts(2021, 2, 1, 4, 0),
			ForecastedEnd:   ts(2021, 2, 2, 4, 0),
		},
		ForecastType: domain.PREDISPATCH,
		Tables:       []string{"PRICE"},
	}

	res, err := c.Compile(q, "PRICE", []*domain.Frame{frame}, domain.StructureFlat)
	require.NoError(t, err)
	require.Equal(t, 1, res.Frame.NumRows())
	assert.Equal(t, 45.2, res.Frame.Rows[0][4])
}

func TestCompileReshapesToDataset(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 1, 0, 0)
	f1 := ts(2021, 1, 1, 0, 5)
	f2 := ts(2021, 1, 1, 0, 10)
	frame := p5minFrame(
		[]any{run, f1, "NSW1", 7000.0},
		[]any{run, f1, "VIC1", 5000.0},
		[]any{run, f2, "NSW1", 7100.0},
		[]any{run, f2, "VIC1", 5100.0},
	)

	q := p5minQuery(run, run, f1, f2)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureMulti)
	require.NoError(t, err)
	require.NotNil(t, res.Dataset)

	assert.Equal(t, []string{"RUN_DATETIME", "INTERVAL_DATETIME", "REGIONID"}, res.Dataset.Dims)
	assert.Equal(t, []int{1, 2, 2}, res.Dataset.Shape())

	v, err := res.Dataset.At("TOTALDEMAND", 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 5100.0, v)
}

func TestCompileReshapeIndexesDatetimeTypedDiscriminators(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 1, 0, 0)
	forecasted := ts(2021, 1, 1, 0, 5)
	v1 := ts(2020, 12, 1, 0, 0)
	v2 := ts(2020, 12, 15, 0, 0)
	// VERSION_DATETIME parses as a datetime but is a configured type
	// column, so rows differing only in it must index cleanly.
	frame := &domain.Frame{
		Columns: []domain.Column{
			{Name: "RUN_DATETIME", Kind: domain.KindTime},
			{Name: "INTERVAL_DATETIME", Kind: domain.KindTime},
			{Name: "REGIONID", Kind: domain.KindCategory},
			{Name: "VERSION_DATETIME", Kind: domain.KindTime},
			{Name: "TOTALDEMAND", Kind: domain.KindFloat},
		},
		Rows: [][]any{
			{run, forecasted, "NSW1", v1, 7000.0},
			{run, forecasted, "NSW1", v2, 7001.0},
		},
	}

	q := p5minQuery(run, run, forecasted, forecasted)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureMulti)
	require.NoError(t, err)
	require.NotNil(t, res.Dataset)

	assert.Contains(t, res.Dataset.Dims, "VERSION_DATETIME")
	assert.Len(t, res.Dataset.Coords["VERSION_DATETIME"], 2)
}

func TestCompileReshapeCardinalityViolation(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 1, 0, 0)
	forecasted := ts(2021, 1, 1, 0, 5)
	// Same index key, different payloads and a non-categorical
	// distinguishing column, so dedup keeps both.
	frame := &domain.Frame{
		Columns: []domain.Column{
			{Name: "RUN_DATETIME", Kind: domain.KindTime},
			{Name: "INTERVAL_DATETIME", Kind: domain.KindTime},
			{Name: "REGIONID", Kind: domain.KindCategory},
			{Name: "VERSIONNO", Kind: domain.KindInt},
			{Name: "TOTALDEMAND", Kind: domain.KindFloat},
		},
		Rows: [][]any{
			{run, forecasted, "NSW1", int64(1), 7000.0},
			{run, forecasted, "NSW1", int64(2), 7001.0},
		},
	}

	q := p5minQuery(run, run, forecasted, forecasted)
	_, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureMulti)
	var cardErr *domain.CardinalityError
	require.ErrorAs(t, err, &cardErr)
}

func TestCompileExcludesInterventionRowsFromReshapeOnly(t *testing.T) {
	c := newCompiler(t)

	run := ts(2021, 1, 1, 0, 0)
	forecasted := ts(2021, 1, 1, 0, 5)
	frame := &domain.Frame{
		Columns: []domain.Column{
			{Name: "RUN_DATETIME", Kind: domain.KindTime},
			{Name: "INTERVAL_DATETIME", Kind: domain.KindTime},
			{Name: "REGIONID", Kind: domain.KindCategory},
			{Name: "INTERVENTION", Kind: domain.KindInt},
			{Name: "TOTALDEMAND", Kind: domain.KindFloat},
		},
		Rows: [][]any{
			{run, forecasted, "NSW1", int64(0), 7000.0},
			{run, forecasted, "VIC1", int64(1), 5000.0},
		},
	}

	q := p5minQuery(run, run, forecasted, forecasted)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureMulti)
	require.NoError(t, err)

	// Flat frame keeps the intervention row; the dataset omits it.
	assert.Equal(t, 2, res.Frame.NumRows())
	regions := res.Dataset.Coords["REGIONID"]
	assert.Equal(t, []any{"NSW1"}, regions)
}

func TestCompileMetadataRecordsRequestedAndRealizedCoverage(t *testing.T) {
	c := newCompiler(t)

	runStart := ts(2021, 1, 1, 0, 0)
	runEnd := ts(2021, 1, 31, 23, 55)
	forecasted := ts(2021, 1, 1, 0, 5)
	frame := p5minFrame([]any{runStart, forecasted, "NSW1", 7000.0})

	q := p5minQuery(runStart, runEnd, forecasted, forecasted)
	res, err := c.Compile(q, "REGIONSOLUTION", []*domain.Frame{frame}, domain.StructureFlat)
	require.NoError(t, err)

	assert.Equal(t, "P5MIN", res.Metadata[compiler.MetaForecastType])
	assert.Equal(t, "2021/01/01 00:00", res.Metadata[compiler.MetaRunStart])
	assert.Equal(t, "2021/01/31 23:55", res.Metadata[compiler.MetaRunEnd])
	// Realized coverage is narrower than requested.
	assert.Equal(t, "2021/01/01 00:00", res.Metadata[compiler.MetaRealizedRunEnd])
}
