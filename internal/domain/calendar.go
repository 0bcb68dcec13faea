package domain

import "time"

// calendarRule carries the per-type cadence parameters consumed by the shared
// validation and generation algorithms below. Grid values are the permitted
// minute components; an empty grid means no grid constraint for that window.
type calendarRule struct {
	runGrid            []int
	forecastedGrid     []int
	validate           func(w Window) error
	generate           func(forecastedStart, forecastedEnd time.Time) (time.Time, time.Time)
	generateForecasted func(runStart, runEnd time.Time) (time.Time, time.Time)
}

var calendars = map[ForecastType]calendarRule{
	P5MIN: {
		runGrid:        minuteGrid(5),
		forecastedGrid: minuteGrid(5),
		validate:       validateP5MIN,
		generate: func(fs, fe time.Time) (time.Time, time.Time) {
			// Twelve 5-minute cycles, including the immediate interval, give a
			// 55-minute horizon. A run cannot forecast earlier than itself.
			return fs.Add(-55 * time.Minute), fe
		},
		generateForecasted: func(rs, re time.Time) (time.Time, time.Time) {
			return rs, re.Add(55 * time.Minute)
		},
	},
	PREDISPATCH: {
		runGrid:        minuteGrid(30),
		forecastedGrid: minuteGrid(30),
		validate:       validatePredispatch,
		generate: func(fs, fe time.Time) (time.Time, time.Time) {
			return earliestPredispatchRun(fs), fe
		},
		generateForecasted: func(rs, re time.Time) (time.Time, time.Time) {
			return rs, marketDayEnd(re)
		},
	},
	PDPASA: {
		runGrid:        minuteGrid(30),
		forecastedGrid: minuteGrid(30),
		validate:       validatePredispatch,
		generate: func(fs, fe time.Time) (time.Time, time.Time) {
			return earliestPredispatchRun(fs), fe
		},
		generateForecasted: func(rs, re time.Time) (time.Time, time.Time) {
			return rs, marketDayEnd(re)
		},
	},
	STPASA: {
		runGrid:        minuteGrid(60),
		forecastedGrid: minuteGrid(30),
		validate:       validateSTPASA,
		generate: func(fs, fe time.Time) (time.Time, time.Time) {
			return latestSTPASARun(fs).AddDate(0, 0, -6), latestSTPASARun(fe)
		},
		generateForecasted: func(rs, re time.Time) (time.Time, time.Time) {
			dayEnd := marketDayEnd(rs)
			return dayEnd.Add(30 * time.Minute), dayEnd.AddDate(0, 0, 6)
		},
	},
	MTPASA: {
		// MTPASA run timing is inconsistent in the archive, so no grid is
		// enforced; all runs between the supplied datetimes are collected.
		validate: validateMTPASA,
		generate: func(fs, fe time.Time) (time.Time, time.Time) {
			return addYearsClamped(fs, -2).AddDate(0, 0, -16), fe.AddDate(0, 0, -6)
		},
		generateForecasted: func(rs, re time.Time) (time.Time, time.Time) {
			return rs, addYearsClamped(re, 6).AddDate(0, 0, 16)
		},
	},
}

func minuteGrid(step int) []int {
	var grid []int
	for m := 0; m < 60; m += step {
		grid = append(grid, m)
	}
	return grid
}

func onGrid(t time.Time, grid []int) bool {
	for _, m := range grid {
		if t.Minute() == m {
			return true
		}
	}
	return false
}

// ValidateWindow checks that the forecasted window is reachable from the run
// window under the forecast type's cadence and horizon rules. It never clamps;
// an inconsistent window is a ValidationError naming the offending field.
func ValidateWindow(ft ForecastType, w Window) error {
	rule, ok := calendars[ft]
	if !ok {
		return Validationf("forecast_type", "unknown forecast type %q", ft)
	}
	if rule.runGrid != nil {
		for _, t := range []time.Time{w.RunStart, w.RunEnd} {
			if !onGrid(t, rule.runGrid) {
				return Validationf("run window",
					"%s runs on a %d-minute basis; %s is not a valid run time",
					ft, rule.runGrid[1], t.Format(DateTimeFormat))
			}
		}
	}
	if rule.forecastedGrid != nil {
		for _, t := range []time.Time{w.ForecastedStart, w.ForecastedEnd} {
			if !onGrid(t, rule.forecastedGrid) {
				return Validationf("forecasted window",
					"%s forecasts on a %d-minute basis; %s is not a valid forecasted time",
					ft, rule.forecastedGrid[1], t.Format(DateTimeFormat))
			}
		}
	}
	return rule.validate(w)
}

// GenerateRunTimes computes the minimal [run_start, run_end] covering the
// given forecasted window for the forecast type: the earliest run whose
// horizon reaches forecastedStart and the latest run not beyond forecastedEnd.
// The generated window is validated before being returned.
func GenerateRunTimes(ft ForecastType, forecastedStart, forecastedEnd time.Time) (time.Time, time.Time, error) {
	rule, ok := calendars[ft]
	if !ok {
		return time.Time{}, time.Time{}, Validationf("forecast_type", "unknown forecast type %q", ft)
	}
	if forecastedEnd.Before(forecastedStart) {
		return time.Time{}, time.Time{}, Validationf("forecasted window",
			"forecasted_end must be at or after forecasted_start")
	}
	runStart, runEnd := rule.generate(forecastedStart, forecastedEnd)
	w := Window{
		RunStart:        runStart,
		RunEnd:          runEnd,
		ForecastedStart: forecastedStart,
		ForecastedEnd:   forecastedEnd,
	}
	if err := ValidateWindow(ft, w); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return runStart, runEnd, nil
}

// GenerateForecastedTimes computes the maximal [forecasted_start,
// forecasted_end] reachable from the given run window for the forecast type.
// The generated window is validated before being returned.
func GenerateForecastedTimes(ft ForecastType, runStart, runEnd time.Time) (time.Time, time.Time, error) {
	rule, ok := calendars[ft]
	if !ok {
		return time.Time{}, time.Time{}, Validationf("forecast_type", "unknown forecast type %q", ft)
	}
	if runEnd.Before(runStart) {
		return time.Time{}, time.Time{}, Validationf("run window",
			"run_end must be at or after run_start")
	}
	forecastedStart, forecastedEnd := rule.generateForecasted(runStart, runEnd)
	w := Window{
		RunStart:        runStart,
		RunEnd:          runEnd,
		ForecastedStart: forecastedStart,
		ForecastedEnd:   forecastedEnd,
	}
	if err := ValidateWindow(ft, w); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return forecastedStart, forecastedEnd, nil
}

// marketDayEnd returns the end (04:00) of the last trading day for which bid
// band price submission has closed by dt. Bids for the next trading day close
// at 12:30, and the 13:00 run is the first to carry them, so runs at or after
// 13:00 reach one trading day further.
func marketDayEnd(dt time.Time) time.Time {
	days := 1
	if dt.Hour() >= 13 {
		days = 2
	}
	end := dt.AddDate(0, 0, days)
	return time.Date(end.Year(), end.Month(), end.Day(), 4, 0, 0, 0, dt.Location())
}

// earliestPredispatchRun returns the 13:00 run whose horizon first reaches the
// given forecasted time. Forecasted times in the 04:00 tail of a trading day
// belong to the day that started the previous calendar day.
func earliestPredispatchRun(forecasted time.Time) time.Time {
	days := -2
	if forecasted.Hour() > 4 || (forecasted.Hour() == 4 && forecasted.Minute() > 0) {
		days = -1
	}
	run := forecasted.AddDate(0, 0, days)
	return time.Date(run.Year(), run.Month(), run.Day(), 13, 0, 0, 0, forecasted.Location())
}

// latestSTPASARun returns a 14:00 run covering the given forecasted time.
// 14:00 was the latest run under the two-hourly cadence; using it keeps the
// generated range valid across the 2021 change to hourly runs.
func latestSTPASARun(forecasted time.Time) time.Time {
	days := -2
	if forecasted.Hour() > 4 || (forecasted.Hour() == 4 && forecasted.Minute() > 0) {
		days = -1
	}
	run := forecasted.AddDate(0, 0, days)
	return time.Date(run.Year(), run.Month(), run.Day(), 14, 0, 0, 0, forecasted.Location())
}

// addYearsClamped shifts by whole years, clamping Feb 29 to Feb 28.
func addYearsClamped(t time.Time, years int) time.Time {
	if t.Month() == time.February && t.Day() == 29 {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year()+years, t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

func validateP5MIN(w Window) error {
	if allowed := w.RunEnd.Add(55 * time.Minute); w.ForecastedEnd.After(allowed) {
		return Validationf("forecasted window",
			"for P5MIN, forecasted_end must be within 55 minutes of run_end (at or before %s)",
			allowed.Format(DateTimeFormat))
	}
	return nil
}

func validatePredispatch(w Window) error {
	if allowed := marketDayEnd(w.RunEnd); w.ForecastedEnd.After(allowed) {
		return Validationf("forecasted window",
			"for PREDISPATCH/PDPASA, forecasted_end must be no later than %s based on the supplied run_end",
			allowed.Format(DateTimeFormat))
	}
	return nil
}

func validateSTPASA(w Window) error {
	dayEnd := marketDayEnd(w.RunStart)
	if earliest := dayEnd.Add(30 * time.Minute); w.ForecastedStart.Before(earliest) {
		return Validationf("forecasted window",
			"for STPASA, forecasted_start must be no earlier than %s based on the supplied run_start",
			earliest.Format(DateTimeFormat))
	}
	if latest := dayEnd.AddDate(0, 0, 6); w.ForecastedEnd.After(latest) {
		return Validationf("forecasted window",
			"for STPASA, forecasted_end must be no later than %s based on the supplied run window",
			latest.Format(DateTimeFormat))
	}
	return nil
}

func validateMTPASA(w Window) error {
	// A 16-day offset beyond the nominal horizon appears in older data.
	if latest := addYearsClamped(w.RunEnd, 6).AddDate(0, 0, 16); w.ForecastedEnd.After(latest) {
		return Validationf("forecasted window",
			"for MTPASA, forecasted_end must be no later than %s based on the supplied run_end",
			latest.Format(DateTimeFormat))
	}
	return nil
}
