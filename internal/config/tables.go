package config

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridseer/gridseer/internal/domain"
)

//go:embed tables.yaml
var tablesYAML []byte

// EnumeratedTable names a table split across numbered archive files.
type EnumeratedTable struct {
	Table string `yaml:"table"`
	Count int    `yaml:"count"`
}

// Tables is the immutable archive table metadata document, loaded once at
// process start from the embedded tables.yaml.
type Tables struct {
	RuntimeColumns     map[string]string            `yaml:"runtime_columns"`
	ForecastedColumns  map[string]string            `yaml:"forecasted_columns"`
	DatetimeColumns    []string                     `yaml:"datetime_columns"`
	IDColumns          []string                     `yaml:"id_columns"`
	TypeColumns        []string                     `yaml:"type_columns"`
	EnumeratedTables   map[string][]EnumeratedTable `yaml:"enumerated_tables"`
	DeprecatedTables   map[string][]string          `yaml:"deprecated_tables"`
	PredispatchAllData []string                     `yaml:"predispatch_all_data"`
	InterventionColumn string                       `yaml:"intervention_column"`

	datetimeSet map[string]bool
	keySet      map[string]bool
	allDataSet  map[string]bool
}

// LoadTables parses the embedded table metadata document.
func LoadTables() (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(tablesYAML, &t); err != nil {
		return nil, fmt.Errorf("parse embedded tables.yaml: %w", err)
	}
	t.datetimeSet = toSet(t.DatetimeColumns)
	t.keySet = toSet(t.IDColumns)
	for _, c := range t.TypeColumns {
		t.keySet[c] = true
	}
	t.allDataSet = toSet(t.PredispatchAllData)
	for _, ft := range domain.ForecastTypes {
		if t.RuntimeColumns[string(ft)] == "" || t.ForecastedColumns[string(ft)] == "" {
			return nil, fmt.Errorf("tables.yaml missing column mapping for %s", ft)
		}
	}
	return &t, nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// RuntimeColumn returns the run-time filter column for a forecast type.
func (t *Tables) RuntimeColumn(ft domain.ForecastType) string {
	return t.RuntimeColumns[string(ft)]
}

// ForecastedColumn returns the forecasted-time filter column for a forecast type.
func (t *Tables) ForecastedColumn(ft domain.ForecastType) string {
	return t.ForecastedColumns[string(ft)]
}

// IsDatetimeColumn reports whether a column is parsed as a datetime.
func (t *Tables) IsDatetimeColumn(name string) bool { return t.datetimeSet[name] }

// IsKeyColumn reports whether a column is a categorical id/type column.
func (t *Tables) IsKeyColumn(name string) bool { return t.keySet[name] }

// IsDeprecated reports whether the table is deprecated for the forecast type.
func (t *Tables) IsDeprecated(ft domain.ForecastType, table string) bool {
	for _, d := range t.DeprecatedTables[string(ft)] {
		if d == table {
			return true
		}
	}
	return false
}

// IsLatestVariant reports whether the table name selects the "latest forecast
// only" variant by its explicit _D suffix.
func (t *Tables) IsLatestVariant(table string) bool {
	return strings.HasSuffix(table, "_D")
}

// BaseTable strips the latest-variant suffix.
func (t *Tables) BaseTable(table string) string {
	return strings.TrimSuffix(table, "_D")
}

// IsAllData reports whether a PREDISPATCH table's complete-history variant is
// served from the PREDISP_ALL_DATA archive folder.
func (t *Tables) IsAllData(ft domain.ForecastType, table string) bool {
	if ft != domain.PREDISPATCH || t.IsLatestVariant(table) {
		return false
	}
	return t.allDataSet[table]
}

// Enumerate expands any enumerated base table names in tables into their
// numbered file names, e.g. CONSTRAINTSOLUTION into CONSTRAINTSOLUTION1..4
// for P5MIN. Non-enumerated names pass through unchanged and order is
// preserved.
func (t *Tables) Enumerate(ft domain.ForecastType, tables []string) []string {
	counts := make(map[string]int)
	for _, e := range t.EnumeratedTables[string(ft)] {
		counts[e.Table] = e.Count
	}
	var out []string
	for _, table := range tables {
		n, ok := counts[table]
		if !ok {
			out = append(out, table)
			continue
		}
		for i := 1; i <= n; i++ {
			out = append(out, fmt.Sprintf("%s%d", table, i))
		}
	}
	return out
}
