// Package grid maps geographic coordinates onto the 2-D lattices NWP
// models publish on: regular lat-lon grids and Lambert conformal
// projected grids. Grids are immutable descriptors; all methods are safe
// for concurrent use.
package grid

import "math"

// Grid is an immutable 2-D lattice descriptor. Point indices are
// row-major: index = y*nx + x with x varying fastest along longitude.
type Grid interface {
	// Count returns nx*ny.
	Count() int
	Nx() int
	Ny() int

	// Coordinates returns the latitude/longitude of a point index.
	Coordinates(index int) (lat, lon float64)

	// Index returns the nearest grid cell to (lat, lon), or false when
	// the position falls outside the grid's bounding box.
	Index(lat, lon float64) (int, bool)
}

// Regular is an equirectangular lat-lon grid. dlat and dlon may be
// negative for north-to-south or east-to-west scan orders.
type Regular struct {
	NxCells, NyCells int
	Lat0, Lon0       float64
	DLat, DLon       float64
}

func (g Regular) Count() int { return g.NxCells * g.NyCells }
func (g Regular) Nx() int    { return g.NxCells }
func (g Regular) Ny() int    { return g.NyCells }

func (g Regular) Coordinates(index int) (float64, float64) {
	y := index / g.NxCells
	x := index % g.NxCells
	return g.Lat0 + float64(y)*g.DLat, g.Lon0 + float64(x)*g.DLon
}

func (g Regular) Index(lat, lon float64) (int, bool) {
	lat = clampLat(lat)
	lon = g.normalizeLon(lon)

	x := int(math.Round((lon - g.Lon0) / g.DLon))
	y := int(math.Round((lat - g.Lat0) / g.DLat))
	if x < 0 || x >= g.NxCells || y < 0 || y >= g.NyCells {
		return 0, false
	}
	return y*g.NxCells + x, true
}

// normalizeLon shifts a longitude into the grid's native range, which is
// [0,360) for global grids anchored at or east of Greenwich and
// [-180,180) otherwise.
func (g Regular) normalizeLon(lon float64) float64 {
	if g.Lon0 >= 0 && g.DLon > 0 {
		for lon < 0 {
			lon += 360
		}
		for lon >= 360 {
			lon -= 360
		}
		return lon
	}
	for lon < -180 {
		lon += 360
	}
	for lon >= 180 {
		lon -= 360
	}
	return lon
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// GreatCircleDistance returns the haversine distance in metres between
// two WGS-84 positions.
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
