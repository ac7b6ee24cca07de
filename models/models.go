// Package models holds the canonical cross-provider data model.
package models

import "time"

// Station is one measurement site within a provider network. The identifier
// is provider-scoped and stable; stations are immutable once fetched.
type Station struct {
	ID        string
	Name      string
	Lon       float64
	Lat       float64
	Elevation *float64
	// Metadata carries arbitrary provider fields as scalar values
	Metadata map[string]interface{}
}

// StationTable is an ordered station collection preserving catalog order
type StationTable struct {
	Stations []Station
}

// IDs returns the station identifiers in catalog order
func (t *StationTable) IDs() []string {
	ids := make([]string, len(t.Stations))
	for i, s := range t.Stations {
		ids[i] = s.ID
	}
	return ids
}

// ByID returns the station with the given identifier
func (t *StationTable) ByID(id string) (Station, bool) {
	for _, s := range t.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

// Len returns the number of stations
func (t *StationTable) Len() int {
	return len(t.Stations)
}

// Observation is one measurement: a value for a variable at a station at a
// point in time. Timestamps keep the provider's native granularity and
// timezone; the core never resamples. A nil Value is explicit "no data".
type Observation struct {
	StationID    string
	VariableCode string
	Time         time.Time
	Value        *float64
	Quality      string
}
