package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridseer/gridseer/internal/domain"
)

func TestLoadTables(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.Equal(t, "RUN_DATETIME", tables.RuntimeColumn(domain.P5MIN))
	assert.Equal(t, "PREDISPATCH_RUN_DATETIME", tables.RuntimeColumn(domain.PREDISPATCH))
	assert.Equal(t, "INTERVAL_DATETIME", tables.ForecastedColumn(domain.P5MIN))
	assert.Equal(t, "DAY", tables.ForecastedColumn(domain.MTPASA))
	assert.Equal(t, "INTERVENTION", tables.InterventionColumn)
}

func TestColumnClassification(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.True(t, tables.IsDatetimeColumn("INTERVAL_DATETIME"))
	assert.True(t, tables.IsDatetimeColumn("LASTCHANGED"))
	assert.False(t, tables.IsDatetimeColumn("TOTALDEMAND"))

	assert.True(t, tables.IsKeyColumn("REGIONID"), "id columns are keys")
	assert.True(t, tables.IsKeyColumn("BIDTYPE"), "type columns are keys")
	assert.False(t, tables.IsKeyColumn("TOTALDEMAND"))
}

func TestTableVariants(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.True(t, tables.IsLatestVariant("PRICE_D"))
	assert.False(t, tables.IsLatestVariant("PRICE"))
	assert.Equal(t, "PRICE", tables.BaseTable("PRICE_D"))

	assert.True(t, tables.IsAllData(domain.PREDISPATCH, "PRICE"))
	assert.False(t, tables.IsAllData(domain.PREDISPATCH, "PRICE_D"), "latest variants stay in the DATA folder")
	assert.False(t, tables.IsAllData(domain.PREDISPATCH, "MNSPBIDTRK"))
	assert.False(t, tables.IsAllData(domain.P5MIN, "PRICE"))
}

func TestIsDeprecated(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	assert.True(t, tables.IsDeprecated(domain.MTPASA, "CASESOLUTION"))
	assert.False(t, tables.IsDeprecated(domain.STPASA, "CASESOLUTION"))
}

func TestEnumerate(t *testing.T) {
	tables, err := LoadTables()
	require.NoError(t, err)

	got := tables.Enumerate(domain.P5MIN, []string{"REGIONSOLUTION", "CONSTRAINTSOLUTION"})
	assert.Equal(t, []string{
		"REGIONSOLUTION",
		"CONSTRAINTSOLUTION1", "CONSTRAINTSOLUTION2", "CONSTRAINTSOLUTION3", "CONSTRAINTSOLUTION4",
	}, got)

	// Enumeration counts are per forecast type.
	assert.Equal(t, []string{"CONSTRAINTSOLUTION"}, tables.Enumerate(domain.STPASA, []string{"CONSTRAINTSOLUTION"}))
}
