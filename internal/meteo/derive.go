package meteo

import "math"

// CloudCoverFromRelativeHumidity maps pressure-level relative humidity
// in percent to a cloud cover fraction in percent. Below the saturation
// onset the level is taken as clear; above it cover ramps linearly to
// overcast.
func CloudCoverFromRelativeHumidity(rh float64) float64 {
	if math.IsNaN(rh) {
		return math.NaN()
	}
	const onset = 70.0
	cc := (rh - onset) / (100 - onset) * 100
	return math.Max(0, math.Min(100, cc))
}

// DiffuseFraction returns the diffuse share of global shortwave
// radiation from the clearness index, after Erbs et al. (1982).
func DiffuseFraction(kt float64) float64 {
	switch {
	case math.IsNaN(kt):
		return math.NaN()
	case kt <= 0.22:
		return 1 - 0.09*kt
	case kt <= 0.8:
		return 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		return 0.165
	}
}

// DiffuseRadiation separates diffuse irradiance in W/m² out of global
// shortwave, given the average extra-terrestrial irradiance over the
// same interval. Night intervals (no extra-terrestrial input) are zero.
func DiffuseRadiation(shortwave, etr float64) float64 {
	if math.IsNaN(shortwave) {
		return math.NaN()
	}
	if etr <= 0 || shortwave <= 0 {
		return 0
	}
	kt := math.Min(shortwave/etr, 1)
	return DiffuseFraction(kt) * shortwave
}
