package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demandFrame(t *testing.T, rows ...[]any) *Frame {
	t.Helper()
	return &Frame{
		Columns: []Column{
			{Name: "RUN_DATETIME", Kind: KindTime},
			{Name: "REGIONID", Kind: KindCategory},
			{Name: "TOTALDEMAND", Kind: KindFloat},
		},
		Rows: rows,
	}
}

func TestAppendAlignsColumnsByName(t *testing.T) {
	f := demandFrame(t, []any{dt(t, "2021/02/01 00:00"), "NSW1", 5000.0})
	other := &Frame{
		Columns: []Column{
			{Name: "REGIONID", Kind: KindCategory},
			{Name: "TOTALDEMAND", Kind: KindFloat},
			{Name: "RUN_DATETIME", Kind: KindTime},
			{Name: "SEMISCHEDULE_CAPACITY", Kind: KindFloat},
		},
		Rows: [][]any{{"VIC1", 4200.0, dt(t, "2021/02/01 00:05"), 900.0}},
	}

	require.NoError(t, f.Append(other))
	require.Equal(t, 2, f.NumRows())
	assert.Len(t, f.Columns, 4)

	// The first frame's row is backfilled with nil for the new column.
	assert.Nil(t, f.Rows[0][f.ColumnIndex("SEMISCHEDULE_CAPACITY")])
	assert.Equal(t, "VIC1", f.Rows[1][f.ColumnIndex("REGIONID")])
	assert.Equal(t, 900.0, f.Rows[1][f.ColumnIndex("SEMISCHEDULE_CAPACITY")])
}

func TestAppendIntoEmptyFrameCopiesRows(t *testing.T) {
	src := demandFrame(t,
		[]any{dt(t, "2021/02/01 00:00"), "VIC1", 1.0},
		[]any{dt(t, "2021/02/01 00:05"), "NSW1", 2.0},
	)

	f := &Frame{}
	require.NoError(t, f.Append(src))
	f.FilterTime("RUN_DATETIME", dt(t, "2021/02/01 00:05"), dt(t, "2021/02/01 00:05"))
	f.SortRows([]string{"REGIONID"})

	// Mutating the destination must not disturb the source frame.
	require.Equal(t, 2, src.NumRows())
	assert.Equal(t, "VIC1", src.Rows[0][1])
	assert.Equal(t, "NSW1", src.Rows[1][1])
}

func TestAppendRejectsKindConflict(t *testing.T) {
	f := demandFrame(t)
	other := &Frame{Columns: []Column{{Name: "TOTALDEMAND", Kind: KindCategory}}}
	assert.Error(t, f.Append(other))
}

func TestFilterTimeIsInclusive(t *testing.T) {
	f := demandFrame(t,
		[]any{dt(t, "2021/02/01 00:00"), "NSW1", 1.0},
		[]any{dt(t, "2021/02/01 00:05"), "NSW1", 2.0},
		[]any{dt(t, "2021/02/01 00:10"), "NSW1", 3.0},
		[]any{nil, "NSW1", 4.0},
	)
	f.FilterTime("RUN_DATETIME", dt(t, "2021/02/01 00:00"), dt(t, "2021/02/01 00:05"))

	require.Equal(t, 2, f.NumRows(), "bounds are inclusive and missing values drop")
	assert.Equal(t, 1.0, f.Rows[0][2])
	assert.Equal(t, 2.0, f.Rows[1][2])
}

func TestFilterTimeIgnoresAbsentColumn(t *testing.T) {
	f := demandFrame(t, []any{dt(t, "2021/02/01 00:00"), "NSW1", 1.0})
	f.FilterTime("INTERVAL_DATETIME", time.Time{}, time.Time{})
	assert.Equal(t, 1, f.NumRows())
}

func TestDeduplicateKeepsFirstOccurrence(t *testing.T) {
	run := dt(t, "2021/02/01 00:00")
	f := demandFrame(t,
		[]any{run, "NSW1", 1.0},
		[]any{run, "NSW1", 1.0},
		[]any{run, "VIC1", 1.0},
	)

	dropped := f.Deduplicate([]string{"RUN_DATETIME", "REGIONID", "TOTALDEMAND"})
	assert.Equal(t, 1, dropped)
	require.Equal(t, 2, f.NumRows())
	assert.Equal(t, "NSW1", f.Rows[0][1])
	assert.Equal(t, "VIC1", f.Rows[1][1])
}

func TestSortRowsIsStable(t *testing.T) {
	early, late := dt(t, "2021/02/01 00:00"), dt(t, "2021/02/01 00:05")
	f := demandFrame(t,
		[]any{late, "VIC1", 1.0},
		[]any{early, "VIC1", 2.0},
		[]any{early, "NSW1", 3.0},
	)
	f.SortRows([]string{"RUN_DATETIME", "REGIONID"})

	assert.Equal(t, 3.0, f.Rows[0][2])
	assert.Equal(t, 2.0, f.Rows[1][2])
	assert.Equal(t, 1.0, f.Rows[2][2])
}

func TestTimeBounds(t *testing.T) {
	f := demandFrame(t,
		[]any{dt(t, "2021/02/01 00:10"), "NSW1", 1.0},
		[]any{dt(t, "2021/02/01 00:00"), "NSW1", 2.0},
		[]any{nil, "NSW1", 3.0},
	)

	min, max, ok := f.TimeBounds("RUN_DATETIME")
	require.True(t, ok)
	assert.Equal(t, dt(t, "2021/02/01 00:00"), min)
	assert.Equal(t, dt(t, "2021/02/01 00:10"), max)

	_, _, ok = f.TimeBounds("INTERVAL_DATETIME")
	assert.False(t, ok)
}

func TestKeyColumns(t *testing.T) {
	f := &Frame{Columns: []Column{
		{Name: "RUN_DATETIME", Kind: KindTime},
		{Name: "VERSION_DATETIME", Kind: KindTime},
		{Name: "REGIONID", Kind: KindCategory},
		{Name: "BIDTYPE", Kind: KindCategory},
		{Name: "TOTALDEMAND", Kind: KindFloat},
	}}
	assert.Equal(t, []string{"REGIONID", "BIDTYPE"}, f.KeyColumns(nil))
	assert.Equal(t, []string{"BIDTYPE"}, f.KeyColumns(nil, "REGIONID"))

	// Datetime-typed discriminators join the key when named by isKey.
	isVersion := func(name string) bool { return name == "VERSION_DATETIME" }
	assert.Equal(t, []string{"VERSION_DATETIME", "REGIONID", "BIDTYPE"}, f.KeyColumns(isVersion))
}
