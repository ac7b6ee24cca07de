package models

import (
	"sort"
	"time"
)

// ColumnKey identifies one table column by (station, variable) pair
type ColumnKey struct {
	StationID    string
	VariableCode string
}

// TimeSeriesTable is a dense table indexed by timestamp with one column per
// (station, variable) pair. Missing cells are nil, never zero.
type TimeSeriesTable struct {
	Index   []time.Time
	Columns []ColumnKey
	// Values is row-major: Values[i][j] holds Index[i] x Columns[j]
	Values [][]*float64

	rowByTime map[int64]int
	colByKey  map[ColumnKey]int
}

// BuildTimeSeriesTable pivots observations into a dense table. Rows are
// ordered by timestamp ascending; columns follow stationOrder (catalog
// appearance) then variableOrder within each station. Only pairs with at
// least one observation get a column. Observations sharing (time, station,
// variable) collapse, last write wins, so chunk seams never duplicate rows.
func BuildTimeSeriesTable(obs []Observation, stationOrder, variableOrder []string) *TimeSeriesTable {
	seenTimes := make(map[int64]time.Time)
	seenPairs := make(map[ColumnKey]bool)
	for _, o := range obs {
		key := o.Time.UnixNano()
		if _, ok := seenTimes[key]; !ok {
			seenTimes[key] = o.Time
		}
		seenPairs[ColumnKey{o.StationID, o.VariableCode}] = true
	}

	index := make([]time.Time, 0, len(seenTimes))
	for _, ts := range seenTimes {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	columns := make([]ColumnKey, 0, len(seenPairs))
	for _, station := range stationOrder {
		for _, code := range variableOrder {
			key := ColumnKey{station, code}
			if seenPairs[key] {
				columns = append(columns, key)
				delete(seenPairs, key)
			}
		}
	}
	// pairs outside the declared orders keep a deterministic tail position
	var rest []ColumnKey
	for key := range seenPairs {
		rest = append(rest, key)
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].StationID != rest[j].StationID {
			return rest[i].StationID < rest[j].StationID
		}
		return rest[i].VariableCode < rest[j].VariableCode
	})
	columns = append(columns, rest...)

	t := &TimeSeriesTable{
		Index:     index,
		Columns:   columns,
		Values:    make([][]*float64, len(index)),
		rowByTime: make(map[int64]int, len(index)),
		colByKey:  make(map[ColumnKey]int, len(columns)),
	}
	for i := range t.Values {
		t.Values[i] = make([]*float64, len(columns))
	}
	for i, ts := range index {
		t.rowByTime[ts.UnixNano()] = i
	}
	for j, key := range columns {
		t.colByKey[key] = j
	}

	for _, o := range obs {
		i := t.rowByTime[o.Time.UnixNano()]
		j := t.colByKey[ColumnKey{o.StationID, o.VariableCode}]
		t.Values[i][j] = o.Value
	}

	return t
}

// NumRows returns the number of timestamps
func (t *TimeSeriesTable) NumRows() int {
	return len(t.Index)
}

// NumColumns returns the number of (station, variable) columns
func (t *TimeSeriesTable) NumColumns() int {
	return len(t.Columns)
}

// At returns the cell at row i, column j; nil means no data
func (t *TimeSeriesTable) At(i, j int) *float64 {
	return t.Values[i][j]
}

// Cell returns the value for a timestamp and column key
func (t *TimeSeriesTable) Cell(ts time.Time, key ColumnKey) (*float64, bool) {
	i, ok := t.rowByTime[ts.UnixNano()]
	if !ok {
		return nil, false
	}
	j, ok := t.colByKey[key]
	if !ok {
		return nil, false
	}
	return t.Values[i][j], true
}

// StationColumns returns the column indices belonging to one station
func (t *TimeSeriesTable) StationColumns(stationID string) []int {
	var cols []int
	for j, key := range t.Columns {
		if key.StationID == stationID {
			cols = append(cols, j)
		}
	}
	return cols
}
