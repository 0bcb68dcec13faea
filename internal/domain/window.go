package domain

import (
	"time"
)

// DateTimeFormat is the wire format for all user-supplied datetimes.
// A seconds component may be appended but must be zero.
const DateTimeFormat = "2006/01/02 15:04"

// dateTimeFormatSeconds accepts an explicit seconds component.
const dateTimeFormatSeconds = "2006/01/02 15:04:05"

// ParseDateTime parses a yyyy/mm/dd HH:MM[:SS] string. Seconds, if present,
// must be zero. Parse failures are validation errors, never panics.
func ParseDateTime(field, value string) (time.Time, error) {
	if t, err := time.Parse(DateTimeFormat, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateTimeFormatSeconds, value)
	if err != nil {
		return time.Time{}, Validationf(field,
			"invalid datetime %q, expected yyyy/mm/dd HH:MM or yyyy/mm/dd HH:MM:00", value)
	}
	if t.Second() != 0 {
		return time.Time{}, Validationf(field, "if seconds are provided in a datetime, they must be zero")
	}
	return t, nil
}

// Window bounds a query in both time axes: when forecasts were run, and which
// forecasted times their output rows pertain to. All bounds are inclusive.
type Window struct {
	RunStart        time.Time
	RunEnd          time.Time
	ForecastedStart time.Time
	ForecastedEnd   time.Time
}

// Covers reports whether w fully contains other in both axes.
func (w Window) Covers(other Window) bool {
	return !w.RunStart.After(other.RunStart) &&
		!w.RunEnd.Before(other.RunEnd) &&
		!w.ForecastedStart.After(other.ForecastedStart) &&
		!w.ForecastedEnd.Before(other.ForecastedEnd)
}

// Query is the validated, immutable form of a user request. Construct it with
// NewQuery; the constructor performs the pure validation phase only and does
// no I/O (cache and availability checks happen in the pipeline).
type Query struct {
	Window       Window
	ForecastType ForecastType
	Tables       []string
}

// NewQuery parses and validates raw user inputs into a Query. Checks, in
// order: datetime syntax, forecast type, per-window chronology, relative
// chronology, and the forecast type's cadence/horizon rules.
func NewQuery(runStart, runEnd, forecastedStart, forecastedEnd, forecastType string, tables []string) (Query, error) {
	ft, err := ParseForecastType(forecastType)
	if err != nil {
		return Query{}, err
	}
	var w Window
	if w.RunStart, err = ParseDateTime("run_start", runStart); err != nil {
		return Query{}, err
	}
	if w.RunEnd, err = ParseDateTime("run_end", runEnd); err != nil {
		return Query{}, err
	}
	if w.ForecastedStart, err = ParseDateTime("forecasted_start", forecastedStart); err != nil {
		return Query{}, err
	}
	if w.ForecastedEnd, err = ParseDateTime("forecasted_end", forecastedEnd); err != nil {
		return Query{}, err
	}
	if w.RunEnd.Before(w.RunStart) {
		return Query{}, Validationf("run window", "run_end must be at or after run_start")
	}
	if w.ForecastedEnd.Before(w.ForecastedStart) {
		return Query{}, Validationf("forecasted window", "forecasted_end must be at or after forecasted_start")
	}
	if w.ForecastedStart.Before(w.RunStart) {
		return Query{}, Validationf("forecasted window", "forecasted_start must be at or after run_start")
	}
	if len(tables) == 0 {
		return Query{}, Validationf("tables", "at least one table is required")
	}
	if err := ValidateWindow(ft, w); err != nil {
		return Query{}, err
	}
	return Query{Window: w, ForecastType: ft, Tables: tables}, nil
}
