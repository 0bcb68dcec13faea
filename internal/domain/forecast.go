package domain

import (
	"fmt"
	"strings"
)

// ForecastType identifies one of the five AEMO forecast processes archived in
// the MMSDM Historical Data SQLLoader. Each type has its own run cadence and
// forecast horizon, encoded in the calendar rules in calendar.go.
type ForecastType string

const (
	// P5MIN is five-minute pre-dispatch: runs every 5 minutes, forecasting the
	// next twelve 5-minute intervals (55 minutes past the run time).
	P5MIN ForecastType = "P5MIN"
	// PREDISPATCH runs every 30 minutes out to the end of the last trading day
	// for which bid band prices have closed.
	PREDISPATCH ForecastType = "PREDISPATCH"
	// PDPASA shares the PREDISPATCH cadence and horizon.
	PDPASA ForecastType = "PDPASA"
	// STPASA runs hourly (historically two-hourly), forecasting half-hourly
	// intervals for six days beyond the pre-dispatch horizon.
	STPASA ForecastType = "STPASA"
	// MTPASA runs weekly, forecasting daily values roughly two years ahead.
	MTPASA ForecastType = "MTPASA"
)

// ForecastTypes lists every requestable forecast type, in archive order.
var ForecastTypes = []ForecastType{P5MIN, PREDISPATCH, PDPASA, STPASA, MTPASA}

// ParseForecastType validates and normalizes a forecast type string.
func ParseForecastType(s string) (ForecastType, error) {
	ft := ForecastType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ForecastTypes {
		if ft == known {
			return ft, nil
		}
	}
	return "", Validationf("forecast_type", "unknown forecast type %q, must be one of %s", s, joinTypes())
}

func joinTypes() string {
	names := make([]string, len(ForecastTypes))
	for i, ft := range ForecastTypes {
		names[i] = string(ft)
	}
	return strings.Join(names, ", ")
}

// String implements fmt.Stringer.
func (ft ForecastType) String() string { return string(ft) }

var _ fmt.Stringer = ForecastType("")
