package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteostations.app/config"
	"meteostations.app/variables"
)

func newMeteocatForTest() *Meteocat {
	return NewMeteocat(&config.MeteocatConfig{BaseURL: "https://api.meteo.example/xema/v1"})
}

func TestMeteocatParseStations(t *testing.T) {
	body := []byte(`[
		{"codi":"UG","nom":"Viladecans","coordenades":{"latitud":41.29706,"longitud":2.03914},
		 "altitud":3.0,"estat":"Operativa","municipi":{"nom":"Viladecans"}},
		{"codi":"XG","nom":"Parets del Vallès","coordenades":{"latitud":41.56942,"longitud":2.22998}}
	]`)

	stations, err := newMeteocatForTest().ParseStations(body)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "UG", stations[0].ID)
	assert.Equal(t, "Viladecans", stations[0].Name)
	assert.InDelta(t, 2.03914, stations[0].Lon, 1e-9)
	assert.InDelta(t, 41.29706, stations[0].Lat, 1e-9)
	require.NotNil(t, stations[0].Elevation)
	assert.InDelta(t, 3.0, *stations[0].Elevation, 1e-9)
	assert.Equal(t, "Operativa", stations[0].Metadata["estat"])

	assert.Nil(t, stations[1].Elevation)
	assert.Empty(t, stations[1].Metadata)
}

func TestMeteocatWindResolution(t *testing.T) {
	p := newMeteocatForTest()
	table := variables.NewTable(p.StaticVariables(), p.PrimaryCodes())

	// two sensors measure wind speed; the declared primary wins
	resolved, err := table.Resolve(variables.SurfaceWindSpeed)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "30", resolved[0].Code)

	// the 2 m sensor stays reachable by native code
	resolved, err = table.Resolve("46")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, variables.SurfaceWindSpeed, resolved[0].ECV)
}

func TestMeteocatTimeSeriesRequests(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	requests, err := newMeteocatForTest().TimeSeriesRequests(nil, []string{"32", "35"}, start, end)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "https://api.meteo.example/xema/v1/variables/mesurades/32/2021/06/01", requests[0].URL)
	assert.Equal(t, "https://api.meteo.example/xema/v1/variables/mesurades/35/2021/06/01", requests[1].URL)
}

func TestMeteocatTimeSeriesRequests_MidnightCrossing(t *testing.T) {
	// a 24h window starting at noon touches two calendar days
	start := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	requests, err := newMeteocatForTest().TimeSeriesRequests(nil, []string{"32"}, start, end)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "https://api.meteo.example/xema/v1/variables/mesurades/32/2021/06/01", requests[0].URL)
	assert.Equal(t, "https://api.meteo.example/xema/v1/variables/mesurades/32/2021/06/02", requests[1].URL)
}

func TestMeteocatTimeSeriesRequests_ExclusiveMidnightEnd(t *testing.T) {
	start := time.Date(2021, 6, 1, 18, 0, 0, 0, time.UTC)
	end := time.Date(2021, 6, 2, 0, 0, 0, 0, time.UTC)

	requests, err := newMeteocatForTest().TimeSeriesRequests(nil, []string{"35"}, start, end)
	require.NoError(t, err)
	require.Len(t, requests, 1, "an end at midnight excludes the following day")
	assert.Equal(t, "https://api.meteo.example/xema/v1/variables/mesurades/35/2021/06/01", requests[0].URL)
}

func TestMeteocatParseTimeSeries(t *testing.T) {
	body := []byte(`[
		{"codi":"UG","variables":[
			{"codi":32,"lectures":[
				{"data":"2021-06-01T00:00Z","valor":18.4,"estat":"V"},
				{"data":"2021-06-01T00:30Z","valor":null,"estat":" "}
			]}
		]},
		{"codi":"XG","variables":[
			{"codi":32,"lectures":[{"data":"2021-06-01T00:00Z","valor":17.1,"estat":"V"}]}
		]}
	]`)

	observations, err := newMeteocatForTest().ParseTimeSeries(body, []string{"32"})
	require.NoError(t, err)
	require.Len(t, observations, 3)

	assert.Equal(t, "UG", observations[0].StationID)
	assert.Equal(t, "32", observations[0].VariableCode)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), observations[0].Time)
	require.NotNil(t, observations[0].Value)
	assert.InDelta(t, 18.4, *observations[0].Value, 1e-9)
	assert.Equal(t, "V", observations[0].Quality)

	assert.Nil(t, observations[1].Value)
	assert.Equal(t, "XG", observations[2].StationID)
}

func TestMeteocatMaxSpan(t *testing.T) {
	assert.Equal(t, 24*time.Hour, newMeteocatForTest().MaxSpan())
}
