package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meteostations.app/config"
	"meteostations.app/models"
	"meteostations.app/pkg/errors"
	"meteostations.app/transport"
	"meteostations.app/variables"
)

// Aemet adapts the Spanish AEMET OpenData network. Every endpoint answers
// with an envelope whose "datos" member is the URL of the actual payload,
// which the client layer follows via IndirectURL.
type Aemet struct {
	baseURL string
}

func NewAemet(cfg *config.AemetConfig) *Aemet {
	return &Aemet{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

func (p *Aemet) Name() string { return "aemet" }

// the API replays stale envelopes unless caching is suppressed upstream
func aemetHeader() http.Header {
	return http.Header{"Cache-Control": []string{"no-cache"}}
}

func (p *Aemet) StationsRequest() (*transport.Request, error) {
	return &transport.Request{
		URL:    p.baseURL + "/valores/climatologicos/inventarioestaciones/todasestaciones",
		Header: aemetHeader(),
		Policy: transport.CacheCatalog,
	}, nil
}

// IndirectURL detects the envelope response and returns the payload URL
func (p *Aemet) IndirectURL(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var envelope struct {
		Datos string `json:"datos"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "", false
	}
	if !strings.HasPrefix(envelope.Datos, "http") {
		return "", false
	}
	return envelope.Datos, true
}

func (p *Aemet) ParseStations(body []byte) ([]models.Station, error) {
	var payload []struct {
		Indicativo string      `json:"indicativo"`
		Nombre     string      `json:"nombre"`
		Latitud    string      `json:"latitud"`
		Longitud   string      `json:"longitud"`
		Altitud    interface{} `json:"altitud"`
		Provincia  string      `json:"provincia"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode aemet stations", err)
	}

	stations := make([]models.Station, 0, len(payload))
	for _, raw := range payload {
		lat, err := dmsToDecimal(raw.Latitud)
		if err != nil {
			return nil, err
		}
		lon, err := dmsToDecimal(raw.Longitud)
		if err != nil {
			return nil, err
		}
		metadata := map[string]interface{}{}
		if raw.Provincia != "" {
			metadata["provincia"] = raw.Provincia
		}
		stations = append(stations, models.Station{
			ID:        raw.Indicativo,
			Name:      raw.Nombre,
			Lon:       lon,
			Lat:       lat,
			Elevation: toFloat(raw.Altitud),
			Metadata:  metadata,
		})
	}
	return stations, nil
}

func (p *Aemet) VariablesRequest() *transport.Request { return nil }

func (p *Aemet) ParseVariables([]byte) ([]variables.Variable, error) { return nil, nil }

func (p *Aemet) StaticVariables() []variables.Variable {
	return []variables.Variable{
		{Code: "prec", Name: "Precipitación", ECV: variables.Precipitation, Unit: "mm"},
		{Code: "pres", Name: "Presión", ECV: variables.Pressure, Unit: "hPa"},
		{Code: "vv", Name: "Velocidad del viento", ECV: variables.SurfaceWindSpeed, Unit: "m/s"},
		{Code: "dv", Name: "Dirección del viento", ECV: variables.SurfaceWindDirection, Unit: "°"},
		{Code: "ta", Name: "Temperatura del aire", ECV: variables.Temperature, Unit: "°C"},
		{Code: "hr", Name: "Humedad relativa", ECV: variables.WaterVapour, Unit: "%"},
	}
}

func (p *Aemet) PrimaryCodes() map[variables.ECV]string { return nil }

// TimeSeriesRequests always hits the all-stations observation endpoint,
// which serves the last 24 hours regardless of the requested window. The
// client layer trims the result to the window it was asked for.
func (p *Aemet) TimeSeriesRequests(_ *models.StationTable, _ []string, _, _ time.Time) ([]*transport.Request, error) {
	return []*transport.Request{{
		URL:    p.baseURL + "/observacion/convencional/todas",
		Header: aemetHeader(),
		Policy: transport.CacheDisabled,
	}}, nil
}

func (p *Aemet) ParseTimeSeries(body []byte, codes []string) ([]models.Observation, error) {
	var payload []map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode aemet observations", err)
	}

	var observations []models.Observation
	for _, row := range payload {
		id, ok := row["idema"].(string)
		if !ok {
			return nil, errors.NewPayloadParseError("aemet observation without idema", nil)
		}
		rawTime, ok := row["fint"].(string)
		if !ok {
			return nil, errors.NewPayloadParseError("aemet observation without fint", nil)
		}
		ts, err := parseTime(rawTime)
		if err != nil {
			return nil, err
		}

		for _, code := range codes {
			value, present := row[code]
			if !present {
				continue
			}
			observations = append(observations, models.Observation{
				StationID:    id,
				VariableCode: code,
				Time:         ts,
				Value:        toFloat(value),
			})
		}
	}
	return observations, nil
}

func (p *Aemet) MaxSpan() time.Duration { return 0 }

// dmsToDecimal converts AEMET's packed DMS coordinates ("394924N",
// "0024309W") to decimal degrees
func dmsToDecimal(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 6 {
		return 0, errors.NewPayloadParseError(fmt.Sprintf("malformed DMS coordinate %q", raw), nil)
	}
	hemisphere := raw[len(raw)-1]
	digits := raw[:len(raw)-1]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, errors.NewPayloadParseError(fmt.Sprintf("malformed DMS coordinate %q", raw), nil)
		}
	}

	parseSegment := func(s string) float64 {
		var v float64
		for _, r := range s {
			v = v*10 + float64(r-'0')
		}
		return v
	}
	seconds := parseSegment(digits[len(digits)-2:])
	minutes := parseSegment(digits[len(digits)-4 : len(digits)-2])
	degrees := parseSegment(digits[:len(digits)-4])

	value := degrees + minutes/60 + seconds/3600
	switch hemisphere {
	case 'N', 'E':
		return value, nil
	case 'S', 'W':
		return -value, nil
	default:
		return 0, errors.NewPayloadParseError(fmt.Sprintf("unknown hemisphere in %q", raw), nil)
	}
}
