package rawcache

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridseer/gridseer/internal/config"
	"github.com/gridseer/gridseer/internal/domain"
)

// AEMO CSV cell datetimes carry seconds; older files omit them.
var aemoTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

const (
	seqnoColumn   = "PREDISPATCHSEQNO"
	seqnoRunCol   = "PREDISPATCH_RUN_DATETIME"
	seqnoDigits   = 10
	endOfReportID = "C"
)

// CleanCSV reads a raw AEMO monthly CSV and normalizes it into a frame:
// the comment header line and end-of-report line are stripped, the four
// leading report-metadata columns dropped, configured datetime columns
// parsed, configured identifier columns marked categorical, remaining
// columns downcast to int64 or float64 where every value fits. Exact
// duplicate rows are dropped with a warning.
//
// Tables keyed by PREDISPATCHSEQNO rather than a run timestamp get a
// derived PREDISPATCH_RUN_DATETIME column: sequence number YYYYMMDDPP
// maps to 04:30 on the date for period 1, stepping 30 minutes per period.
func CleanCSV(path string, tables *config.Tables, logger *slog.Logger) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 3 {
		return nil, fmt.Errorf("parse %s: too few lines for an AEMO report", path)
	}

	// Line 1 is the AEMO comment header, line 2 the column header and
	// the final line the end-of-report marker.
	header := records[1]
	data := records[2:]
	if last := data[len(data)-1]; len(last) > 0 && last[0] == endOfReportID {
		data = data[:len(data)-1]
	}
	if len(header) <= 4 {
		return nil, fmt.Errorf("parse %s: header has %d columns", path, len(header))
	}
	header = header[4:]

	cells := make([][]string, len(data))
	for i, rec := range data {
		if len(rec) < 4+len(header) {
			return nil, fmt.Errorf("parse %s: row %d has %d fields, want %d", path, i+3, len(rec), 4+len(header))
		}
		cells[i] = rec[4 : 4+len(header)]
	}

	frame := &domain.Frame{
		Columns: make([]domain.Column, len(header)),
		Rows:    make([][]any, len(cells)),
	}
	for i := range cells {
		frame.Rows[i] = make([]any, len(header))
	}

	for c, name := range header {
		kind := inferKind(name, cells, c, tables)
		frame.Columns[c] = domain.Column{Name: name, Kind: kind}
		for rIdx, row := range cells {
			v, err := parseCell(kind, row[c])
			if err != nil {
				return nil, fmt.Errorf("parse %s: row %d column %s: %w", path, rIdx+3, name, err)
			}
			frame.Rows[rIdx][c] = v
		}
	}

	if frame.HasColumn(seqnoColumn) {
		if err := deriveSeqnoRunTimes(frame); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	allColumns := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		allColumns[i] = col.Name
	}
	if dropped := frame.Deduplicate(allColumns); dropped > 0 {
		logger.Warn("dropped duplicate rows during normalization", "file", path, "rows", dropped)
	}

	return frame, nil
}

// inferKind classifies a column: configured datetime names parse as
// times, configured identifier/type names become categories, and the
// rest are int64 when every value is integral, float64 when every value
// is numeric, otherwise free text.
func inferKind(name string, cells [][]string, col int, tables *config.Tables) domain.Kind {
	switch {
	case tables.IsDatetimeColumn(name):
		return domain.KindTime
	case tables.IsKeyColumn(name):
		return domain.KindCategory
	}

	allInt, allFloat, any := true, true, false
	for _, row := range cells {
		s := row[col]
		if s == "" {
			continue
		}
		any = true
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
			break
		}
	}
	switch {
	case !any:
		return domain.KindString
	case allInt:
		return domain.KindInt
	case allFloat:
		return domain.KindFloat
	default:
		return domain.KindString
	}
}

func parseCell(kind domain.Kind, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch kind {
	case domain.KindTime:
		return parseAEMOTime(s)
	case domain.KindInt:
		return strconv.ParseInt(s, 10, 64)
	case domain.KindFloat:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

func parseAEMOTime(s string) (time.Time, error) {
	s = strings.Trim(s, `"`)
	var lastErr error
	for _, layout := range aemoTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// deriveSeqnoRunTimes appends PREDISPATCH_RUN_DATETIME computed from
// PREDISPATCHSEQNO. Period 1 is the half-hour ending 04:30.
func deriveSeqnoRunTimes(frame *domain.Frame) error {
	idx := frame.ColumnIndex(seqnoColumn)
	frame.Columns = append(frame.Columns, domain.Column{Name: seqnoRunCol, Kind: domain.KindTime})
	for r, row := range frame.Rows {
		var runTime any
		if row[idx] != nil {
			t, err := seqnoToRunTime(domain.ValueKey(row[idx]))
			if err != nil {
				return fmt.Errorf("row %d: %w", r, err)
			}
			runTime = t
		}
		frame.Rows[r] = append(row, runTime)
	}
	return nil
}

func seqnoToRunTime(seqno string) (time.Time, error) {
	if len(seqno) != seqnoDigits {
		return time.Time{}, fmt.Errorf("sequence number %q: want %d digits", seqno, seqnoDigits)
	}
	day, err := time.Parse("20060102", seqno[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("sequence number %q: %w", seqno, err)
	}
	period, err := strconv.Atoi(seqno[8:])
	if err != nil {
		return time.Time{}, fmt.Errorf("sequence number %q: %w", seqno, err)
	}
	return day.Add(4*time.Hour + time.Duration(period)*30*time.Minute), nil
}
