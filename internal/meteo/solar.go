package meteo

import (
	"math"
	"time"
)

// SolarConstant is the extra-terrestrial irradiance in W/m² at one
// astronomical unit.
const SolarConstant = 1367.0

// ExtraterrestrialRadiation returns the instantaneous irradiance in
// W/m² on a horizontal plane at the top of the atmosphere, zero when the
// sun is below the horizon. Solar position follows the Spencer (1971)
// Fourier fits.
func ExtraterrestrialRadiation(t time.Time, lat, lon float64) float64 {
	t = t.UTC()
	doy := float64(t.YearDay())
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600

	γ := 2 * math.Pi / 365 * (doy - 1 + (hour-12)/24)

	decl := 0.006918 - 0.399912*math.Cos(γ) + 0.070257*math.Sin(γ) -
		0.006758*math.Cos(2*γ) + 0.000907*math.Sin(2*γ) -
		0.002697*math.Cos(3*γ) + 0.00148*math.Sin(3*γ)

	// Equation of time in minutes.
	eqtime := 229.18 * (0.000075 + 0.001868*math.Cos(γ) - 0.032077*math.Sin(γ) -
		0.014615*math.Cos(2*γ) - 0.040849*math.Sin(2*γ))

	// Orbit eccentricity correction.
	e0 := 1.000110 + 0.034221*math.Cos(γ) + 0.001280*math.Sin(γ) +
		0.000719*math.Cos(2*γ) + 0.000077*math.Sin(2*γ)

	solarTime := hour + eqtime/60 + lon/15
	hourAngle := (solarTime - 12) * 15 * math.Pi / 180

	φ := lat * math.Pi / 180
	cosZenith := math.Sin(φ)*math.Sin(decl) + math.Cos(φ)*math.Cos(decl)*math.Cos(hourAngle)
	if cosZenith <= 0 {
		return 0
	}
	return SolarConstant * e0 * cosZenith
}

// AverageExtraterrestrialRadiation integrates the clear-sky profile over
// [start, end) with ten-minute substeps and returns the mean in W/m².
// This matches the trailing-average convention NWP models use for
// radiation output.
func AverageExtraterrestrialRadiation(start, end time.Time, lat, lon float64) float64 {
	if !end.After(start) {
		return 0
	}
	step := 10 * time.Minute
	if d := end.Sub(start); d < step {
		step = d
	}
	var sum float64
	var n int
	for t := start.Add(step / 2); t.Before(end); t = t.Add(step) {
		sum += ExtraterrestrialRadiation(t, lat, lon)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
