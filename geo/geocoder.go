package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kelvins/geocoder"
	"meteostations.app/config"
	"meteostations.app/pkg/errors"
)

// GeocodeResult is the geometry of the first match for a place-name query
type GeocodeResult struct {
	Geometry    Geometry
	DisplayName string
}

// Geocoder converts a place name into a geometry
type Geocoder interface {
	Geocode(ctx context.Context, place string) (GeocodeResult, error)
}

// NominatimGeocoder queries the OSM Nominatim search endpoint
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewNominatimGeocoder(cfg *config.GeocoderConfig) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type nominatimResult struct {
	DisplayName string          `json:"display_name"`
	GeoJSON     json.RawMessage `json:"geojson"`
	BoundingBox []string        `json:"boundingbox"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, place string) (GeocodeResult, error) {
	query := url.Values{}
	query.Set("q", place)
	query.Set("format", "jsonv2")
	query.Set("limit", "1")
	query.Set("polygon_geojson", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return GeocodeResult{}, errors.NewRegionResolutionError("build geocoding request", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return GeocodeResult{}, errors.NewRegionResolutionError("geocoding request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return GeocodeResult{}, errors.NewRegionResolutionError(
			fmt.Sprintf("geocoding service returned status code %d", resp.StatusCode), nil)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return GeocodeResult{}, errors.NewRegionResolutionError("decode geocoding response", err)
	}
	if len(results) == 0 {
		return GeocodeResult{}, errors.NewRegionResolutionError(
			fmt.Sprintf("no geocoding result for %q", place), nil)
	}

	first := results[0]
	if len(first.GeoJSON) > 0 {
		geoms, err := ParseGeoJSON(first.GeoJSON)
		if err == nil {
			return GeocodeResult{Geometry: geoms[0], DisplayName: first.DisplayName}, nil
		}
	}
	bbox, err := nominatimBBox(first.BoundingBox)
	if err != nil {
		return GeocodeResult{}, err
	}
	return GeocodeResult{Geometry: bbox.Polygon(), DisplayName: first.DisplayName}, nil
}

// nominatimBBox parses the [south, north, west, east] string quadruple
func nominatimBBox(box []string) (BBox, error) {
	if len(box) != 4 {
		return BBox{}, errors.NewRegionResolutionError("geocoding result has no usable geometry", nil)
	}
	vals := make([]float64, 4)
	for i, s := range box {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return BBox{}, errors.NewRegionResolutionError("invalid bounding box in geocoding result", err)
		}
		vals[i] = v
	}
	return BBox{South: vals[0], North: vals[1], West: vals[2], East: vals[3]}, nil
}

// GoogleGeocoder resolves place names through the Google Maps geocoding API.
// The upstream client has no context support; calls are bounded by its own
// HTTP defaults.
type GoogleGeocoder struct {
	apiKey string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey}
}

func (g *GoogleGeocoder) Geocode(_ context.Context, place string) (GeocodeResult, error) {
	geocoder.ApiKey = g.apiKey

	location, err := geocoder.Geocoding(geocoder.Address{City: place})
	if err != nil {
		return GeocodeResult{}, errors.NewRegionResolutionError(
			fmt.Sprintf("google geocoding failed for %q", place), err)
	}
	return GeocodeResult{
		Geometry:    Point{Lon: location.Longitude, Lat: location.Latitude},
		DisplayName: place,
	}, nil
}
