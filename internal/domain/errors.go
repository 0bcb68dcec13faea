package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared between the nemweb adapter and the raw cache manager.
var (
	// ErrArchiveNotFound indicates the remote archive does not exist for the
	// requested (forecast type, table, year, month) identity.
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrArchiveCorrupt indicates the remote archive exists but its content is
	// not a usable single-CSV zip (placeholder, hidden, or truncated file).
	ErrArchiveCorrupt = errors.New("archive corrupt")
)

// ValidationError reports user input that failed validation before any I/O.
// It names the offending field so callers can surface which of the run and
// forecasted windows is inconsistent.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// EmptyResultError indicates that, after filtering, no rows remain for a
// table. Fatal for that table only; sibling tables are unaffected.
type EmptyResultError struct {
	Table string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no forecast data available for requested window (table %s)", e.Table)
}

// CardinalityError indicates rows are not uniquely keyed by the index-forming
// columns after deduplication, so a multi-dimensional reshape is impossible.
type CardinalityError struct {
	Table string
	Key   string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("table %s is not uniquely keyed for reshaping (duplicate index %s)", e.Table, e.Key)
}
