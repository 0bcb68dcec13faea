// Package domain models AEMO forecast archive data and the calendar rules
// that govern it.
//
// # Data Source
//
// AEMO publishes historical forecast output through the MMSDM Historical Data
// SQLLoader on NEMWeb, partitioned into monthly zip archives of delimited
// text, one per (forecast type, table, year, month). The month is the
// calendar month in which the forecast *run* occurred, not the month being
// forecast.
//
// # Run time vs forecasted time
//
// Every forecast row relates two instants:
//
//	run time         when the forecast was nominally produced. Distinct from
//	                 the actual publication timestamp, which may differ by
//	                 minutes and is retained only as a data column.
//	forecasted time  the future interval the row describes.
//
// A single run produces rows for many forecasted times (its horizon); a
// single forecasted time is covered by every run whose horizon reaches it.
// Queries therefore bound both axes, and the calendar rules in calendar.go
// relate them per forecast type:
//
//	P5MIN        runs every 5 minutes, horizon 55 minutes (12 cycles,
//	             including the immediate interval).
//	PREDISPATCH  runs every 30 minutes out to the end of the last trading day
//	             for which bid band prices closed. A trading day runs 04:00
//	             to 04:00; bids close at 12:30 and the 13:00 run is the first
//	             to carry them.
//	PDPASA       same cadence and horizon as PREDISPATCH.
//	STPASA       hourly runs (two-hourly before mid-2021), half-hourly
//	             forecasted intervals for the six days beyond the
//	             pre-dispatch horizon.
//	MTPASA       weekly runs at irregular times of day, daily forecasted
//	             values roughly two years out.
//
// # PREDISPATCH sequence numbers
//
// PREDISPATCH-family tables report PREDISPATCHSEQNO (YYYYMMDDPP) instead of a
// run datetime; period PP maps to run time date + 4h + PP*30m, so period 1 is
// 04:30. The raw cache derives PREDISPATCH_RUN_DATETIME from it during
// normalization.
//
// # Table variants
//
// Several PREDISPATCH tables exist in two variants: a "latest forecast only"
// file (table name suffixed _D) and a "complete history" file served from a
// separate archive folder. Only one variant may be compiled per invocation,
// selected by the explicit suffix; the variant mapping is configuration, not
// code (internal/config/tables.yaml).
package domain
