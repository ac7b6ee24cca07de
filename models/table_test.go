package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fv(v float64) *float64 { return &v }

func TestBuildTimeSeriesTable_Pivot(t *testing.T) {
	t0 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(10 * time.Minute)

	obs := []Observation{
		{StationID: "B", VariableCode: "1", Time: t1, Value: fv(14.5)},
		{StationID: "A", VariableCode: "1", Time: t0, Value: fv(12.0)},
		{StationID: "A", VariableCode: "6", Time: t0, Value: fv(0.2)},
		{StationID: "B", VariableCode: "1", Time: t0, Value: fv(13.1)},
	}

	table := BuildTimeSeriesTable(obs, []string{"A", "B"}, []string{"1", "6"})

	require.Equal(t, 2, table.NumRows())
	require.Equal(t, 3, table.NumColumns())
	assert.Equal(t, []time.Time{t0, t1}, table.Index)
	assert.Equal(t, []ColumnKey{{"A", "1"}, {"A", "6"}, {"B", "1"}}, table.Columns)

	v, ok := table.Cell(t0, ColumnKey{"A", "1"})
	require.True(t, ok)
	assert.Equal(t, 12.0, *v)

	// station A has no reading at t1: explicit no-data, not zero
	v, ok = table.Cell(t1, ColumnKey{"A", "1"})
	require.True(t, ok)
	assert.Nil(t, v)

	v, ok = table.Cell(t1, ColumnKey{"B", "1"})
	require.True(t, ok)
	assert.Equal(t, 14.5, *v)
}

func TestBuildTimeSeriesTable_ChunkSeamsCollapse(t *testing.T) {
	t0 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	// the same (time, station, variable) cell delivered by two chunks
	obs := []Observation{
		{StationID: "A", VariableCode: "1", Time: t0, Value: fv(10.0)},
		{StationID: "A", VariableCode: "1", Time: t0, Value: fv(10.0)},
	}

	table := BuildTimeSeriesTable(obs, []string{"A"}, []string{"1"})
	assert.Equal(t, 1, table.NumRows())
	assert.Equal(t, 1, table.NumColumns())
}

func TestBuildTimeSeriesTable_StrictlyIncreasingIndex(t *testing.T) {
	base := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	var obs []Observation
	// deliberately unsorted input
	for i := 143; i >= 0; i-- {
		obs = append(obs, Observation{
			StationID:    "A",
			VariableCode: "1",
			Time:         base.Add(time.Duration(i) * 10 * time.Minute),
			Value:        fv(float64(i)),
		})
	}

	table := BuildTimeSeriesTable(obs, []string{"A"}, []string{"1"})
	require.Equal(t, 144, table.NumRows())
	for i := 1; i < table.NumRows(); i++ {
		assert.True(t, table.Index[i].After(table.Index[i-1]))
	}
}

func TestBuildTimeSeriesTable_ColumnsOnlyForPairsWithData(t *testing.T) {
	t0 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := []Observation{
		{StationID: "A", VariableCode: "1", Time: t0, Value: fv(1)},
	}

	// station B appears in the catalog but reported nothing
	table := BuildTimeSeriesTable(obs, []string{"A", "B"}, []string{"1"})
	assert.Equal(t, 1, table.NumColumns())
}

func TestStationTable(t *testing.T) {
	table := StationTable{Stations: []Station{
		{ID: "A", Name: "Anières"},
		{ID: "B", Name: "Bernex"},
	}}

	assert.Equal(t, []string{"A", "B"}, table.IDs())
	s, ok := table.ByID("B")
	require.True(t, ok)
	assert.Equal(t, "Bernex", s.Name)
	_, ok = table.ByID("C")
	assert.False(t, ok)
}
