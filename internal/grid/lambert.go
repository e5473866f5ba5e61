package grid

import "math"

// LambertConformal is a Lambert conformal conic projected grid on a
// spherical earth, the projection used by HRRR and several regional
// models. Cell spacing is uniform in projected metres.
type LambertConformal struct {
	NxCells, NyCells int

	// Projection parameters in degrees.
	RefLon             float64 // central meridian λ0
	RefLat             float64 // latitude of origin φ0
	StdLat1, StdLat2   float64 // standard parallels
	FirstLat, FirstLon float64 // position of grid point (0,0)
	Dx, Dy             float64 // cell spacing in metres

	// Derived constants, filled by NewLambertConformal.
	n, f, ρ0 float64
	x0, y0   float64
}

const lambertRadius = 6371229.0 // sphere radius used by NCEP grids

// NewLambertConformal precomputes the projection constants and anchors
// the grid origin at (FirstLat, FirstLon).
func NewLambertConformal(g LambertConformal) *LambertConformal {
	φ1 := radians(g.StdLat1)
	φ2 := radians(g.StdLat2)

	if φ1 == φ2 {
		g.n = math.Sin(φ1)
	} else {
		g.n = math.Log(math.Cos(φ1)/math.Cos(φ2)) /
			math.Log(math.Tan(math.Pi/4+φ2/2)/math.Tan(math.Pi/4+φ1/2))
	}
	g.f = math.Cos(φ1) * math.Pow(math.Tan(math.Pi/4+φ1/2), g.n) / g.n
	g.ρ0 = lambertRadius * g.f / math.Pow(math.Tan(math.Pi/4+radians(g.RefLat)/2), g.n)

	g.x0, g.y0 = g.forward(g.FirstLat, g.FirstLon)
	return &g
}

func (g *LambertConformal) Count() int { return g.NxCells * g.NyCells }
func (g *LambertConformal) Nx() int    { return g.NxCells }
func (g *LambertConformal) Ny() int    { return g.NyCells }

// forward projects geographic coordinates to projected metres.
func (g *LambertConformal) forward(lat, lon float64) (x, y float64) {
	φ := radians(clampLat(lat))
	dλ := radians(normalize180(lon - g.RefLon))

	ρ := lambertRadius * g.f / math.Pow(math.Tan(math.Pi/4+φ/2), g.n)
	x = ρ * math.Sin(g.n*dλ)
	y = g.ρ0 - ρ*math.Cos(g.n*dλ)
	return x, y
}

// inverse unprojects projected metres to geographic coordinates.
func (g *LambertConformal) inverse(x, y float64) (lat, lon float64) {
	ρ := math.Sqrt(x*x + (g.ρ0-y)*(g.ρ0-y))
	if g.n < 0 {
		ρ = -ρ
	}
	θ := math.Atan2(x, g.ρ0-y)

	lat = degrees(2*math.Atan(math.Pow(lambertRadius*g.f/ρ, 1/g.n)) - math.Pi/2)
	lon = normalize180(g.RefLon + degrees(θ/g.n))
	return lat, lon
}

func (g *LambertConformal) Coordinates(index int) (float64, float64) {
	yi := index / g.NxCells
	xi := index % g.NxCells
	return g.inverse(g.x0+float64(xi)*g.Dx, g.y0+float64(yi)*g.Dy)
}

func (g *LambertConformal) Index(lat, lon float64) (int, bool) {
	x, y := g.forward(lat, lon)
	xi := int(math.Round((x - g.x0) / g.Dx))
	yi := int(math.Round((y - g.y0) / g.Dy))
	if xi < 0 || xi >= g.NxCells || yi < 0 || yi >= g.NyCells {
		return 0, false
	}
	return yi*g.NxCells + xi, true
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func normalize180(lon float64) float64 {
	for lon < -180 {
		lon += 360
	}
	for lon >= 180 {
		lon -= 360
	}
	return lon
}
