package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteostations.app/config"
	"meteostations.app/pkg/errors"
)

func newAemetForTest() *Aemet {
	return NewAemet(&config.AemetConfig{BaseURL: "https://opendata.example/api"})
}

func TestAemetIndirectURL(t *testing.T) {
	target, ok := newAemetForTest().IndirectURL([]byte(
		`{"descripcion":"exito","estado":200,"datos":"https://opendata.example/sh/abc123"}`))
	require.True(t, ok)
	assert.Equal(t, "https://opendata.example/sh/abc123", target)

	// the payload itself is an array and must not be followed again
	_, ok = newAemetForTest().IndirectURL([]byte(`[{"idema":"B013X"}]`))
	assert.False(t, ok)

	_, ok = newAemetForTest().IndirectURL([]byte(`{"estado":404,"descripcion":"No hay datos"}`))
	assert.False(t, ok)
}

func TestAemetParseStations(t *testing.T) {
	body := []byte(`[
		{"indicativo":"B013X","nombre":"ESCORCA","latitud":"394924N","longitud":"0025309E","altitud":"490","provincia":"ILLES BALEARS"},
		{"indicativo":"C018J","nombre":"TENERIFE NORTE","latitud":"283000N","longitud":"0163000W","altitud":632}
	]`)

	stations, err := newAemetForTest().ParseStations(body)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "B013X", stations[0].ID)
	assert.InDelta(t, 39.0+49.0/60+24.0/3600, stations[0].Lat, 1e-9)
	assert.InDelta(t, 2.0+53.0/60+9.0/3600, stations[0].Lon, 1e-9)
	assert.Equal(t, "ILLES BALEARS", stations[0].Metadata["provincia"])

	// western longitudes come out negative
	assert.InDelta(t, -16.5, stations[1].Lon, 1e-9)
	assert.InDelta(t, 28.5, stations[1].Lat, 1e-9)
	require.NotNil(t, stations[1].Elevation)
	assert.InDelta(t, 632, *stations[1].Elevation, 1e-9)
}

func TestAemetParseStationsBadCoordinate(t *testing.T) {
	_, err := newAemetForTest().ParseStations([]byte(`[{"indicativo":"X","latitud":"39N49","longitud":"0025309E"}]`))
	assert.True(t, errors.IsType(err, errors.ErrorTypePayloadParse))
}

func TestAemetParseTimeSeries(t *testing.T) {
	body := []byte(`[
		{"idema":"B013X","fint":"2021-06-01T10:00:00","ta":21.5,"hr":58.0,"prec":0.0},
		{"idema":"C018J","fint":"2021-06-01T10:00:00","ta":18.2}
	]`)

	observations, err := newAemetForTest().ParseTimeSeries(body, []string{"ta", "hr"})
	require.NoError(t, err)
	// hr is absent for the second station, so no observation is emitted
	require.Len(t, observations, 3)

	assert.Equal(t, "B013X", observations[0].StationID)
	assert.Equal(t, "ta", observations[0].VariableCode)
	assert.Equal(t, time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC), observations[0].Time)
	require.NotNil(t, observations[0].Value)
	assert.InDelta(t, 21.5, *observations[0].Value, 1e-9)
}

func TestDMSToDecimal(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"394924N", 39.0 + 49.0/60 + 24.0/3600},
		{"0024309W", -(2.0 + 43.0/60 + 9.0/3600)},
		{"283000S", -28.5},
		{"1800000E", 180.0},
	}
	for _, tt := range tests {
		got, err := dmsToDecimal(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.InDelta(t, tt.want, got, 1e-9, tt.raw)
	}

	_, err := dmsToDecimal("394924X")
	assert.Error(t, err)
	_, err = dmsToDecimal("12N")
	assert.Error(t, err)
}
