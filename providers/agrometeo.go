package providers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"meteostations.app/config"
	"meteostations.app/models"
	"meteostations.app/pkg/errors"
	"meteostations.app/transport"
	"meteostations.app/variables"
)

// Agrometeo field names are fixed by the API and must not change
const (
	agrometeoStationIDField = "id"
	agrometeoTimeField      = "date"
	agrometeoScale          = "none"
	agrometeoMeasurement    = "avg"
	agrometeoDateFormat     = "2006-01-02"
)

// agrometeoECVByName maps the ECV vocabulary to the English sensor names the
// /sensors endpoint reports
var agrometeoECVByName = map[string]variables.ECV{
	"Precipitation":               variables.Precipitation,
	"Real air pressure":           variables.Pressure,
	"Solar radiation":             variables.SurfaceRadiationShortwave,
	"Avg. wind speed":             variables.SurfaceWindSpeed,
	"Wind direction":              variables.SurfaceWindDirection,
	"Temperature 2m above ground": variables.Temperature,
	"Relative humidity":           variables.WaterVapour,
}

// Agrometeo adapts the Swiss Agrometeo network. The API is open access and
// serves coordinates in both EPSG:4326 and CH1903/LV03; only the lonlat
// columns are read because the LV03 pair arrives swapped.
type Agrometeo struct {
	baseURL string
}

func NewAgrometeo(cfg *config.AgrometeoConfig) *Agrometeo {
	return &Agrometeo{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

func (p *Agrometeo) Name() string { return "agrometeo" }

func (p *Agrometeo) StationsRequest() (*transport.Request, error) {
	return &transport.Request{URL: p.baseURL + "/stations", Policy: transport.CacheCatalog}, nil
}

func (p *Agrometeo) ParseStations(body []byte) ([]models.Station, error) {
	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode agrometeo stations", err)
	}

	stations := make([]models.Station, 0, len(payload.Data))
	for _, raw := range payload.Data {
		id, ok := raw[agrometeoStationIDField]
		if !ok {
			return nil, errors.NewPayloadParseError("agrometeo station without id", nil)
		}
		lon := toFloat(raw["long_dec"])
		lat := toFloat(raw["lat_dec"])
		if lon == nil || lat == nil {
			// decommissioned entries come without coordinates
			continue
		}

		station := models.Station{
			ID:        scalarString(id),
			Lon:       *lon,
			Lat:       *lat,
			Elevation: toFloat(raw["altitude"]),
			Metadata:  map[string]interface{}{},
		}
		if name, ok := raw["name"].(string); ok {
			station.Name = strings.TrimSpace(name)
		}
		for key, value := range raw {
			switch key {
			case agrometeoStationIDField, "name", "long_dec", "lat_dec", "altitude":
			default:
				station.Metadata[key] = value
			}
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func (p *Agrometeo) VariablesRequest() *transport.Request {
	return &transport.Request{URL: p.baseURL + "/sensors", Policy: transport.CacheCatalog}
}

func (p *Agrometeo) ParseVariables(body []byte) ([]variables.Variable, error) {
	var payload struct {
		Data []struct {
			ID   json.Number       `json:"id"`
			Name map[string]string `json:"name"`
			Unit string            `json:"unit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode agrometeo sensors", err)
	}

	vars := make([]variables.Variable, 0, len(payload.Data))
	for _, raw := range payload.Data {
		name := strings.TrimSpace(raw.Name["en"])
		vars = append(vars, variables.Variable{
			Code: raw.ID.String(),
			Name: name,
			ECV:  agrometeoECVByName[name],
			Unit: raw.Unit,
		})
	}
	return vars, nil
}

func (p *Agrometeo) StaticVariables() []variables.Variable { return nil }

// sensor names are unique, so no tie-break table is needed
func (p *Agrometeo) PrimaryCodes() map[variables.ECV]string { return nil }

func (p *Agrometeo) TimeSeriesRequests(stations *models.StationTable, codes []string, start, end time.Time) ([]*transport.Request, error) {
	sensors := make([]string, len(codes))
	for i, code := range codes {
		sensors[i] = fmt.Sprintf("%s:%s", code, agrometeoMeasurement)
	}

	query := url.Values{}
	query.Set("from", start.Format(agrometeoDateFormat))
	// the API treats "to" as an inclusive date
	query.Set("to", end.Add(-time.Second).Format(agrometeoDateFormat))
	query.Set("scale", agrometeoScale)
	query.Set("sensors", strings.Join(sensors, ","))
	query.Set("stations", strings.Join(stations.IDs(), ","))

	return []*transport.Request{{
		URL:   p.baseURL + "/meteo/data",
		Query: query,
	}}, nil
}

// ParseTimeSeries reads the wide response rows, where each measurement is
// keyed "{station}_{code}_{measurement}" next to the shared date field.
func (p *Agrometeo) ParseTimeSeries(body []byte, codes []string) ([]models.Observation, error) {
	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode agrometeo data", err)
	}

	var observations []models.Observation
	for _, row := range payload.Data {
		rawTime, ok := row[agrometeoTimeField].(string)
		if !ok {
			return nil, errors.NewPayloadParseError("agrometeo row without date", nil)
		}
		ts, err := parseTime(rawTime)
		if err != nil {
			return nil, err
		}

		for key, value := range row {
			if key == agrometeoTimeField {
				continue
			}
			parts := strings.Split(key, "_")
			if len(parts) != 3 || !containsCode(codes, parts[1]) {
				continue
			}
			observations = append(observations, models.Observation{
				StationID:    parts[0],
				VariableCode: parts[1],
				Time:         ts,
				Value:        toFloat(value),
			})
		}
	}
	return observations, nil
}

func (p *Agrometeo) MaxSpan() time.Duration { return 0 }
