package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind is the logical type of a Frame column.
type Kind int

const (
	// KindString holds free text.
	KindString Kind = iota
	// KindCategory holds low-cardinality identifier/type text; categorical
	// columns participate in dedup keys and reshape dimensions.
	KindCategory
	// KindFloat holds float64 values.
	KindFloat
	// KindInt holds int64 values.
	KindInt
	// KindTime holds time.Time values.
	KindTime
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindCategory: "category",
	KindFloat:    "float",
	KindInt:      "int",
	KindTime:     "time",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindFromString is the inverse of Kind.String, used when decoding the column
// manifest embedded in cache files.
func KindFromString(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

// Column describes one Frame column.
type Column struct {
	Name string
	Kind Kind
}

// Frame is the flat row-oriented table used throughout the pipeline: cleaned
// archive contents, cache file contents, and flat compiled results. Cell
// values are string, float64, int64, or time.Time according to the column
// kind; nil marks a missing value.
type Frame struct {
	Columns []Column
	Rows    [][]any
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return len(f.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool { return f.ColumnIndex(name) >= 0 }

// Append concatenates other onto f, aligning columns by name. Columns present
// in only one frame are kept, with nil filling the missing side. Kind
// conflicts between same-named columns are an error.
func (f *Frame) Append(other *Frame) error {
	if len(f.Columns) == 0 {
		// Copy rows so later in-place filtering and sorting cannot
		// reorder or truncate the source frame.
		f.Columns = append(f.Columns, other.Columns...)
		for _, row := range other.Rows {
			f.Rows = append(f.Rows, append([]any(nil), row...))
		}
		return nil
	}
	for _, c := range other.Columns {
		if i := f.ColumnIndex(c.Name); i >= 0 {
			if f.Columns[i].Kind != c.Kind {
				return fmt.Errorf("column %s: kind mismatch (%s vs %s)", c.Name, f.Columns[i].Kind, c.Kind)
			}
			continue
		}
		// New column: backfill existing rows with nil.
		f.Columns = append(f.Columns, c)
		for r := range f.Rows {
			f.Rows[r] = append(f.Rows[r], nil)
		}
	}
	index := make([]int, len(other.Columns))
	for i, c := range other.Columns {
		index[i] = f.ColumnIndex(c.Name)
	}
	for _, row := range other.Rows {
		merged := make([]any, len(f.Columns))
		for i, v := range row {
			merged[index[i]] = v
		}
		f.Rows = append(f.Rows, merged)
	}
	return nil
}

// FilterTime keeps rows whose value in the named column lies in the inclusive
// [start, end] range. Rows with a missing value in the column are dropped.
// A frame without the column is returned unchanged.
func (f *Frame) FilterTime(column string, start, end time.Time) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return
	}
	kept := f.Rows[:0]
	for _, row := range f.Rows {
		t, ok := row[idx].(time.Time)
		if !ok {
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		kept = append(kept, row)
	}
	f.Rows = kept
}

// KeyColumns returns the frame's discriminator columns in column order,
// excluding the named time columns. A column qualifies by being categorical
// or by name via isKey (nil means kind only): configured id/type columns
// such as VERSION_DATETIME stay part of the reshape key even though they
// parse as datetimes. These form the dedup and reshape key alongside the
// run and forecasted time columns.
func (f *Frame) KeyColumns(isKey func(string) bool, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	var keys []string
	for _, c := range f.Columns {
		if skip[c.Name] {
			continue
		}
		if c.Kind == KindCategory || (isKey != nil && isKey(c.Name)) {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Deduplicate drops rows sharing identical values in the given key columns,
// retaining the first occurrence in row order. Returns the number dropped.
func (f *Frame) Deduplicate(keyColumns []string) int {
	idxs := make([]int, 0, len(keyColumns))
	for _, name := range keyColumns {
		if i := f.ColumnIndex(name); i >= 0 {
			idxs = append(idxs, i)
		}
	}
	seen := make(map[string]bool, len(f.Rows))
	kept := f.Rows[:0]
	dropped := 0
	for _, row := range f.Rows {
		key := rowKey(row, idxs)
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	f.Rows = kept
	return dropped
}

// SortRows orders rows by the given columns for deterministic output.
func (f *Frame) SortRows(columns []string) {
	idxs := make([]int, 0, len(columns))
	for _, name := range columns {
		if i := f.ColumnIndex(name); i >= 0 {
			idxs = append(idxs, i)
		}
	}
	sort.SliceStable(f.Rows, func(a, b int) bool {
		for _, i := range idxs {
			cmp := compareValues(f.Rows[a][i], f.Rows[b][i])
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

// TimeBounds returns the min and max of a time column, ignoring missing
// values. ok is false when the column is absent or has no values.
func (f *Frame) TimeBounds(column string) (min, max time.Time, ok bool) {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return time.Time{}, time.Time{}, false
	}
	for _, row := range f.Rows {
		t, isTime := row[idx].(time.Time)
		if !isTime {
			continue
		}
		if !ok {
			min, max, ok = t, t, true
			continue
		}
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return min, max, ok
}

func rowKey(row []any, idxs []int) string {
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = ValueKey(row[idx])
	}
	return strings.Join(parts, "\x1f")
}

// ValueKey renders a cell value as a stable string for keying and labels.
func ValueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

func compareValues(a, b any) int {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(ValueKey(a), ValueKey(b))
}
