package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meteostations.app/config"
	"meteostations.app/models"
	"meteostations.app/pkg/errors"
	"meteostations.app/transport"
	"meteostations.app/variables"
)

const meteocatTimeLayout = "2006-01-02T15:04Z"

// Meteocat adapts the Catalan XEMA network. Authentication is an X-Api-Key
// header; measurements are served per variable and per day.
type Meteocat struct {
	baseURL string
}

func NewMeteocat(cfg *config.MeteocatConfig) *Meteocat {
	return &Meteocat{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
}

func (p *Meteocat) Name() string { return "meteocat" }

func (p *Meteocat) StationsRequest() (*transport.Request, error) {
	return &transport.Request{URL: p.baseURL + "/estacions/metadades", Policy: transport.CacheCatalog}, nil
}

func (p *Meteocat) ParseStations(body []byte) ([]models.Station, error) {
	var payload []struct {
		Codi        string `json:"codi"`
		Nom         string `json:"nom"`
		Coordenades struct {
			Latitud  float64 `json:"latitud"`
			Longitud float64 `json:"longitud"`
		} `json:"coordenades"`
		Altitud  *float64 `json:"altitud"`
		Estat    string   `json:"estat"`
		Municipi struct {
			Nom string `json:"nom"`
		} `json:"municipi"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode meteocat stations", err)
	}

	stations := make([]models.Station, 0, len(payload))
	for _, raw := range payload {
		metadata := map[string]interface{}{}
		if raw.Estat != "" {
			metadata["estat"] = raw.Estat
		}
		if raw.Municipi.Nom != "" {
			metadata["municipi"] = raw.Municipi.Nom
		}
		stations = append(stations, models.Station{
			ID:        raw.Codi,
			Name:      raw.Nom,
			Lon:       raw.Coordenades.Longitud,
			Lat:       raw.Coordenades.Latitud,
			Elevation: raw.Altitud,
			Metadata:  metadata,
		})
	}
	return stations, nil
}

// the XEMA variable inventory is stable, so the table ships with the client
func (p *Meteocat) VariablesRequest() *transport.Request { return nil }

func (p *Meteocat) ParseVariables([]byte) ([]variables.Variable, error) { return nil, nil }

func (p *Meteocat) StaticVariables() []variables.Variable {
	return []variables.Variable{
		{Code: "32", Name: "Temperatura", ECV: variables.Temperature, Unit: "°C"},
		{Code: "33", Name: "Humitat relativa", ECV: variables.WaterVapour, Unit: "%"},
		{Code: "34", Name: "Pressió atmosfèrica", ECV: variables.Pressure, Unit: "hPa"},
		{Code: "35", Name: "Precipitació", ECV: variables.Precipitation, Unit: "mm"},
		{Code: "36", Name: "Radiació solar global", ECV: variables.SurfaceRadiationShortwave, Unit: "W/m²"},
		{Code: "30", Name: "Velocitat del vent a 10 m", ECV: variables.SurfaceWindSpeed, Unit: "m/s"},
		{Code: "31", Name: "Direcció del vent a 10 m", ECV: variables.SurfaceWindDirection, Unit: "°"},
		{Code: "46", Name: "Velocitat del vent a 2 m", ECV: variables.SurfaceWindSpeed, Unit: "m/s"},
		{Code: "47", Name: "Direcció del vent a 2 m", ECV: variables.SurfaceWindDirection, Unit: "°"},
	}
}

// the 10 m wind sensors win over the 2 m ones when asked by ECV
func (p *Meteocat) PrimaryCodes() map[variables.ECV]string {
	return map[variables.ECV]string{
		variables.SurfaceWindSpeed:     "30",
		variables.SurfaceWindDirection: "31",
	}
}

// TimeSeriesRequests emits one request per variable and per calendar day
// touched by [start, end). The endpoint path addresses a single day, so a
// window crossing midnight needs the following day fetched as well.
func (p *Meteocat) TimeSeriesRequests(_ *models.StationTable, codes []string, start, end time.Time) ([]*transport.Request, error) {
	first := start.UTC()
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)

	var requests []*transport.Request
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		for _, code := range codes {
			requests = append(requests, &transport.Request{
				URL: fmt.Sprintf("%s/variables/mesurades/%s/%04d/%02d/%02d",
					p.baseURL, code, day.Year(), day.Month(), day.Day()),
			})
		}
	}
	return requests, nil
}

func (p *Meteocat) ParseTimeSeries(body []byte, _ []string) ([]models.Observation, error) {
	var payload []struct {
		Codi      string `json:"codi"`
		Variables []struct {
			Codi     json.Number `json:"codi"`
			Lectures []struct {
				Data  string   `json:"data"`
				Valor *float64 `json:"valor"`
				Estat string   `json:"estat"`
			} `json:"lectures"`
		} `json:"variables"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.NewPayloadParseError("decode meteocat measurements", err)
	}

	var observations []models.Observation
	for _, station := range payload {
		for _, variable := range station.Variables {
			for _, reading := range variable.Lectures {
				ts, err := time.Parse(meteocatTimeLayout, reading.Data)
				if err != nil {
					return nil, errors.NewPayloadParseError(
						fmt.Sprintf("unparseable meteocat timestamp %q", reading.Data), err)
				}
				observations = append(observations, models.Observation{
					StationID:    station.Codi,
					VariableCode: variable.Codi.String(),
					Time:         ts,
					Value:        reading.Valor,
					Quality:      reading.Estat,
				})
			}
		}
	}
	return observations, nil
}

func (p *Meteocat) MaxSpan() time.Duration { return 24 * time.Hour }
