package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"meteostations.app/pkg/errors"
)

type regionKind int

const (
	kindNone regionKind = iota
	kindBounds
	kindText
	kindGeometries
	kindResolved
	kindReader
)

// RegionInput is the tagged union over the accepted region forms: a bounding
// box, a place name / file path / URL, geometry objects, an already-resolved
// region, or a readable geometry file.
type RegionInput struct {
	kind   regionKind
	bounds BBox
	text   string
	geoms  []Geometry
	region Region
	reader io.Reader
}

// Bounds builds a region input from (west, south, east, north) geographic bounds
func Bounds(west, south, east, north float64) RegionInput {
	return RegionInput{kind: kindBounds, bounds: BBox{West: west, South: south, East: east, North: north}}
}

// Place builds a region input from a string: a geometry file path, a geometry
// file URL, or a place name to geocode, tried in that order.
func Place(s string) RegionInput {
	return RegionInput{kind: kindText, text: s}
}

// Geometries builds a region input wrapping geometry objects directly
func Geometries(geoms ...Geometry) RegionInput {
	return RegionInput{kind: kindGeometries, geoms: geoms}
}

// Resolved passes an already-resolved region through unchanged
func Resolved(r Region) RegionInput {
	return RegionInput{kind: kindResolved, region: r}
}

// File builds a region input from a GeoJSON stream
func File(r io.Reader) RegionInput {
	return RegionInput{kind: kindReader, reader: r}
}

// Resolver turns any supported region input into a canonical Region
type Resolver struct {
	geocoder Geocoder
	client   *http.Client
}

func NewResolver(geocoder Geocoder) *Resolver {
	return &Resolver{
		geocoder: geocoder,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve interprets the region input, failing with a region resolution
// error when the input cannot be understood. The returned region is always
// in the canonical reference system.
func (r *Resolver) Resolve(ctx context.Context, input RegionInput) (Region, error) {
	switch input.kind {
	case kindBounds:
		b := input.bounds
		if b.West > b.East || b.South > b.North {
			return Region{}, errors.NewRegionResolutionError(
				fmt.Sprintf("bounds must be ordered (west, south, east, north), got %s", b), nil)
		}
		return Region{Geometries: []Geometry{b.Polygon()}, EPSG: CanonicalEPSG}, nil

	case kindText:
		return r.resolveText(ctx, input.text)

	case kindGeometries:
		if len(input.geoms) == 0 {
			return Region{}, errors.NewRegionResolutionError("no geometry objects given", nil)
		}
		return Region{Geometries: input.geoms, EPSG: CanonicalEPSG}, nil

	case kindResolved:
		return normalize(input.region)

	case kindReader:
		data, err := io.ReadAll(input.reader)
		if err != nil {
			return Region{}, errors.NewRegionResolutionError("read geometry stream", err)
		}
		geoms, err := ParseGeoJSON(data)
		if err != nil {
			return Region{}, err
		}
		return Region{Geometries: geoms, EPSG: CanonicalEPSG}, nil

	default:
		return Region{}, errors.NewRegionResolutionError("empty region input", nil)
	}
}

// resolveText tries the string as a geometry file path, then as a geometry
// URL, then as a place-name query.
func (r *Resolver) resolveText(ctx context.Context, s string) (Region, error) {
	if _, err := os.Stat(s); err == nil {
		data, err := os.ReadFile(s)
		if err == nil {
			if geoms, parseErr := ParseGeoJSON(data); parseErr == nil {
				return Region{Geometries: geoms, EPSG: CanonicalEPSG}, nil
			}
		}
	}

	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if geoms, err := r.fetchGeometryURL(ctx, s); err == nil {
			return Region{Geometries: geoms, EPSG: CanonicalEPSG}, nil
		}
	}

	if r.geocoder == nil {
		return Region{}, errors.NewRegionResolutionError(
			fmt.Sprintf("cannot geocode %q: no geocoder configured", s), nil)
	}
	result, err := r.geocoder.Geocode(ctx, s)
	if err != nil {
		return Region{}, err
	}
	return Region{Geometries: []Geometry{result.Geometry}, EPSG: CanonicalEPSG}, nil
}

func (r *Resolver) fetchGeometryURL(ctx context.Context, rawURL string) ([]Geometry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geometry URL returned status code %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseGeoJSON(data)
}

// normalize reprojects a resolved region to the canonical reference. Only
// inputs already in the canonical system (or with an unset EPSG, assumed
// canonical) are accepted; there is no general projection engine here.
func normalize(region Region) (Region, error) {
	if region.Empty() {
		return Region{}, errors.NewRegionResolutionError("resolved region holds no geometry", nil)
	}
	switch region.EPSG {
	case 0:
		region.EPSG = CanonicalEPSG
		return region, nil
	case CanonicalEPSG:
		return region, nil
	default:
		return Region{}, errors.NewRegionResolutionError(
			fmt.Sprintf("no coordinate converter registered for EPSG:%d", region.EPSG), nil)
	}
}
