package domain

import (
	"fmt"
	"sort"
	"time"
)

// YearMonth identifies one calendar month of the archive.
type YearMonth struct {
	Year  int
	Month time.Month
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Before reports whether ym precedes other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// ArchiveID is the unit of download and of raw-cache presence checking: one
// table of one forecast type for one calendar month of runs. The remote
// source partitions by the month the run occurred in, not the forecasted
// month.
type ArchiveID struct {
	ForecastType ForecastType
	Table        string
	Year         int
	Month        time.Month
}

// BaseName returns the deterministic file stem shared by the remote zip, the
// extracted CSV, and the normalized cache entry, e.g.
// PUBLIC_DVD_STPASA_REGIONSOLUTION_202102010000. PREDISPATCH tables other
// than MNSPBIDTRK omit the underscore between type and table.
func (id ArchiveID) BaseName() string {
	sep := "_"
	if id.ForecastType == PREDISPATCH && id.Table != "MNSPBIDTRK" {
		sep = ""
	}
	return fmt.Sprintf("PUBLIC_DVD_%s%s%s_%04d%02d010000",
		id.ForecastType, sep, id.Table, id.Year, int(id.Month))
}

// YearMonth returns the archive identity's month.
func (id ArchiveID) YearMonth() YearMonth {
	return YearMonth{Year: id.Year, Month: id.Month}
}

// MonthsTouched returns every calendar month whose nominal run times can
// intersect the inclusive [runStart, runEnd] range, in chronological order.
// A runEnd falling exactly on the first instant of a month does not pull in
// that month's archive, since no earlier run of that month can qualify.
func MonthsTouched(runStart, runEnd time.Time) []YearMonth {
	end := runEnd
	if end.Day() == 1 && end.Hour() == 0 && end.Minute() == 0 && end.After(runStart) {
		end = end.AddDate(0, 0, -1)
	}
	if end.Before(runStart) {
		end = runStart
	}
	var months []YearMonth
	cur := time.Date(runStart.Year(), runStart.Month(), 1, 0, 0, 0, 0, runStart.Location())
	last := YearMonth{Year: end.Year(), Month: end.Month()}
	for {
		ym := YearMonth{Year: cur.Year(), Month: cur.Month()}
		months = append(months, ym)
		if ym == last {
			break
		}
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// ArchiveIDsForTable expands the months touched by the run window into
// archive identities for one table, sorted chronologically.
func ArchiveIDsForTable(ft ForecastType, table string, runStart, runEnd time.Time) []ArchiveID {
	months := MonthsTouched(runStart, runEnd)
	ids := make([]ArchiveID, 0, len(months))
	for _, ym := range months {
		ids = append(ids, ArchiveID{ForecastType: ft, Table: table, Year: ym.Year, Month: ym.Month})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].YearMonth().Before(ids[j].YearMonth()) })
	return ids
}
