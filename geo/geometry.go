package geo

import (
	"fmt"
	"math"
)

// CanonicalEPSG is the coordinate reference all resolved regions and station
// coordinates are normalized to before spatial filtering.
const CanonicalEPSG = 4326

const onEdgeEpsilon = 1e-9

// Point is a lon/lat position in the canonical reference system
type Point struct {
	Lon float64
	Lat float64
}

func (p Point) Bounds() BBox {
	return BBox{West: p.Lon, South: p.Lat, East: p.Lon, North: p.Lat}
}

func (p Point) Contains(q Point) bool {
	return math.Abs(p.Lon-q.Lon) <= onEdgeEpsilon && math.Abs(p.Lat-q.Lat) <= onEdgeEpsilon
}

// BBox is a (west, south, east, north) bounding box in geographic coordinates
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// String returns the bounding box as a comma-separated string for API queries
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.West, b.South, b.East, b.North)
}

// Contains reports whether the point lies within the closed rectangle
func (b BBox) Contains(q Point) bool {
	return q.Lon >= b.West && q.Lon <= b.East && q.Lat >= b.South && q.Lat <= b.North
}

// Polygon returns the rectangle as a closed polygon ring
func (b BBox) Polygon() Polygon {
	return Polygon{Exterior: Ring{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
	}}
}

func (b BBox) union(o BBox) BBox {
	return BBox{
		West:  math.Min(b.West, o.West),
		South: math.Min(b.South, o.South),
		East:  math.Max(b.East, o.East),
		North: math.Max(b.North, o.North),
	}
}

// Ring is a sequence of vertices; closing the ring is implicit
type Ring []Point

// Polygon is an exterior ring with optional holes
type Polygon struct {
	Exterior Ring
	Holes    []Ring
}

func (pg Polygon) Bounds() BBox {
	if len(pg.Exterior) == 0 {
		return BBox{}
	}
	b := pg.Exterior[0].Bounds()
	for _, p := range pg.Exterior[1:] {
		b = b.union(p.Bounds())
	}
	return b
}

// Contains reports whether the point lies inside the polygon. Points on the
// exterior boundary count as inside.
func (pg Polygon) Contains(q Point) bool {
	if !ringContains(pg.Exterior, q) {
		return false
	}
	for _, hole := range pg.Holes {
		if ringContains(hole, q) {
			return false
		}
	}
	return true
}

// MultiPolygon is a collection of polygons treated as a union
type MultiPolygon []Polygon

func (mp MultiPolygon) Bounds() BBox {
	if len(mp) == 0 {
		return BBox{}
	}
	b := mp[0].Bounds()
	for _, pg := range mp[1:] {
		b = b.union(pg.Bounds())
	}
	return b
}

func (mp MultiPolygon) Contains(q Point) bool {
	for _, pg := range mp {
		if pg.Contains(q) {
			return true
		}
	}
	return false
}

// Geometry is the common contract of point, polygon and multi-polygon shapes
type Geometry interface {
	Bounds() BBox
	Contains(q Point) bool
}

// Region is a resolved geometry collection in a known coordinate reference.
// The original input form is discarded once a Region exists.
type Region struct {
	Geometries []Geometry
	EPSG       int
}

// Contains reports whether the lon/lat location intersects the region
func (r Region) Contains(lon, lat float64) bool {
	q := Point{Lon: lon, Lat: lat}
	for _, g := range r.Geometries {
		if g.Contains(q) {
			return true
		}
	}
	return false
}

// Bounds returns the union bounding box of the region
func (r Region) Bounds() BBox {
	if len(r.Geometries) == 0 {
		return BBox{}
	}
	b := r.Geometries[0].Bounds()
	for _, g := range r.Geometries[1:] {
		b = b.union(g.Bounds())
	}
	return b
}

// Empty reports whether the region holds no geometry
func (r Region) Empty() bool {
	return len(r.Geometries) == 0
}

// ringContains runs an even-odd ray cast; boundary points count as inside
func ringContains(ring Ring, q Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		if onSegment(a, b, q) {
			return true
		}
		if (a.Lat > q.Lat) != (b.Lat > q.Lat) {
			x := a.Lon + (q.Lat-a.Lat)/(b.Lat-a.Lat)*(b.Lon-a.Lon)
			if q.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

func onSegment(a, b, q Point) bool {
	cross := (b.Lon-a.Lon)*(q.Lat-a.Lat) - (b.Lat-a.Lat)*(q.Lon-a.Lon)
	if math.Abs(cross) > onEdgeEpsilon {
		return false
	}
	return q.Lon >= math.Min(a.Lon, b.Lon)-onEdgeEpsilon &&
		q.Lon <= math.Max(a.Lon, b.Lon)+onEdgeEpsilon &&
		q.Lat >= math.Min(a.Lat, b.Lat)-onEdgeEpsilon &&
		q.Lat <= math.Max(a.Lat, b.Lat)+onEdgeEpsilon
}
