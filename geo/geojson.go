package geo

import (
	"encoding/json"
	"fmt"

	"meteostations.app/pkg/errors"
)

type geojsonObject struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometry    *geojsonObject  `json:"geometry"`
	Geometries  []geojsonObject `json:"geometries"`
	Features    []geojsonObject `json:"features"`
	BBox        []float64       `json:"bbox"`
}

// ParseGeoJSON decodes a GeoJSON document into geometry objects. Supported
// types: Point, MultiPoint, Polygon, MultiPolygon, GeometryCollection,
// Feature and FeatureCollection. Other geometry types fall back to their
// bbox member when present.
func ParseGeoJSON(data []byte) ([]Geometry, error) {
	var obj geojsonObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.NewRegionResolutionError("invalid GeoJSON document", err)
	}
	geoms, err := geometriesFromObject(&obj)
	if err != nil {
		return nil, err
	}
	if len(geoms) == 0 {
		return nil, errors.NewRegionResolutionError("GeoJSON document holds no geometry", nil)
	}
	return geoms, nil
}

func geometriesFromObject(obj *geojsonObject) ([]Geometry, error) {
	switch obj.Type {
	case "FeatureCollection":
		var geoms []Geometry
		for i := range obj.Features {
			gs, err := geometriesFromObject(&obj.Features[i])
			if err != nil {
				return nil, err
			}
			geoms = append(geoms, gs...)
		}
		return geoms, nil
	case "Feature":
		if obj.Geometry == nil {
			return nil, nil
		}
		return geometriesFromObject(obj.Geometry)
	case "GeometryCollection":
		var geoms []Geometry
		for i := range obj.Geometries {
			gs, err := geometriesFromObject(&obj.Geometries[i])
			if err != nil {
				return nil, err
			}
			geoms = append(geoms, gs...)
		}
		return geoms, nil
	case "Point":
		var pos []float64
		if err := json.Unmarshal(obj.Coordinates, &pos); err != nil {
			return nil, errors.NewRegionResolutionError("invalid Point coordinates", err)
		}
		p, err := pointFromPosition(pos)
		if err != nil {
			return nil, err
		}
		return []Geometry{p}, nil
	case "MultiPoint":
		var positions [][]float64
		if err := json.Unmarshal(obj.Coordinates, &positions); err != nil {
			return nil, errors.NewRegionResolutionError("invalid MultiPoint coordinates", err)
		}
		geoms := make([]Geometry, 0, len(positions))
		for _, pos := range positions {
			p, err := pointFromPosition(pos)
			if err != nil {
				return nil, err
			}
			geoms = append(geoms, p)
		}
		return geoms, nil
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(obj.Coordinates, &rings); err != nil {
			return nil, errors.NewRegionResolutionError("invalid Polygon coordinates", err)
		}
		pg, err := polygonFromRings(rings)
		if err != nil {
			return nil, err
		}
		return []Geometry{pg}, nil
	case "MultiPolygon":
		var polygons [][][][]float64
		if err := json.Unmarshal(obj.Coordinates, &polygons); err != nil {
			return nil, errors.NewRegionResolutionError("invalid MultiPolygon coordinates", err)
		}
		mp := make(MultiPolygon, 0, len(polygons))
		for _, rings := range polygons {
			pg, err := polygonFromRings(rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pg)
		}
		return []Geometry{mp}, nil
	default:
		if len(obj.BBox) >= 4 {
			b := BBox{West: obj.BBox[0], South: obj.BBox[1], East: obj.BBox[2], North: obj.BBox[3]}
			return []Geometry{b.Polygon()}, nil
		}
		return nil, errors.NewRegionResolutionError(
			fmt.Sprintf("unsupported GeoJSON type %q", obj.Type), nil)
	}
}

func pointFromPosition(pos []float64) (Point, error) {
	if len(pos) < 2 {
		return Point{}, errors.NewRegionResolutionError("GeoJSON position needs lon and lat", nil)
	}
	return Point{Lon: pos[0], Lat: pos[1]}, nil
}

func polygonFromRings(rings [][][]float64) (Polygon, error) {
	if len(rings) == 0 {
		return Polygon{}, errors.NewRegionResolutionError("GeoJSON polygon has no rings", nil)
	}
	exterior, err := ringFromPositions(rings[0])
	if err != nil {
		return Polygon{}, err
	}
	pg := Polygon{Exterior: exterior}
	for _, hole := range rings[1:] {
		r, err := ringFromPositions(hole)
		if err != nil {
			return Polygon{}, err
		}
		pg.Holes = append(pg.Holes, r)
	}
	return pg, nil
}

func ringFromPositions(positions [][]float64) (Ring, error) {
	ring := make(Ring, 0, len(positions))
	for _, pos := range positions {
		p, err := pointFromPosition(pos)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	// drop the explicit closing vertex, closing is implicit here
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return ring, nil
}
