package grid

import "math"

// SeaSentinel marks sea points in an elevation map. Grid cells over open
// water carry this value instead of a terrain height.
const SeaSentinel float32 = -999

// ElevationMap holds one terrain height per grid point, or is empty when
// a model ships no elevation companion file.
type ElevationMap []float32

// At returns the elevation of a point index, or NaN when no map is
// loaded or the index is out of bounds.
func (m ElevationMap) At(index int) float32 {
	if index < 0 || index >= len(m) {
		return float32(math.NaN())
	}
	return m[index]
}

// Sea reports whether the point is flagged as open water.
func (m ElevationMap) Sea(index int) bool {
	return m.At(index) == SeaSentinel
}

// SearchMode selects how FindPoint picks a grid cell for a query point.
type SearchMode int

const (
	// ModeNearest picks the closest cell, land or sea.
	ModeNearest SearchMode = iota

	// ModeTerrainOptimised inspects the 3×3 neighbourhood of the nearest
	// cell and prefers the land cell whose elevation is closest to the
	// query elevation. Ties break by great-circle distance.
	ModeTerrainOptimised
)

// Point is a resolved grid cell for a query position.
type Point struct {
	Index     int
	Elevation float32 // grid cell terrain height, NaN when unknown
}

// FindPoint resolves (lat, lon, elevation) to a grid cell. Returns false
// when the position is outside the grid.
func FindPoint(g Grid, elev ElevationMap, lat, lon, elevation float64, mode SearchMode) (Point, bool) {
	center, ok := g.Index(lat, lon)
	if !ok {
		return Point{}, false
	}
	if mode == ModeNearest || len(elev) == 0 || math.IsNaN(elevation) {
		return Point{Index: center, Elevation: elev.At(center)}, true
	}

	best := -1
	bestΔ := math.Inf(1)
	bestDist := math.Inf(1)

	cx := center % g.Nx()
	cy := center / g.Nx()
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := cx+dx, cy+dy
			if x < 0 || x >= g.Nx() || y < 0 || y >= g.Ny() {
				continue
			}
			idx := y*g.Nx() + x
			if elev.Sea(idx) {
				continue
			}
			ge := float64(elev.At(idx))
			if math.IsNaN(ge) {
				continue
			}
			Δ := math.Abs(ge - elevation)
			plat, plon := g.Coordinates(idx)
			dist := GreatCircleDistance(lat, lon, plat, plon)
			if Δ < bestΔ || (Δ == bestΔ && dist < bestDist) {
				best, bestΔ, bestDist = idx, Δ, dist
			}
		}
	}
	if best < 0 {
		// Every neighbour is sea; fall back to the raw nearest cell.
		return Point{Index: center, Elevation: elev.At(center)}, true
	}
	return Point{Index: best, Elevation: elev.At(best)}, true
}
