package interp

import (
	"math"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/meteo"
)

// etrEpsilon is the integrated clear-sky irradiance in W/m² below which
// deaveraging is numerically meaningless (polar night, high-latitude
// winter windows) and the kernel falls back to linear interpolation.
const etrEpsilon = 1.0

// resampleSolar refines a trailing-averaged irradiance series. Each
// source sample is the mean over its preceding source interval, so the
// kernel deaverages against the analytic extra-terrestrial profile,
// interpolates the resulting clearness ratio, and re-averages over each
// destination interval.
func resampleSolar(out, src []float32, srcRange, dstRange domain.TimeRange, lat, lon float64) {
	// Clearness ratio per source sample: measured average over its
	// trailing interval divided by the clear-sky average over the same
	// interval. NaN when the sample is missing, undefined (negative)
	// when the sun never rose in the interval.
	ratio := make([]float64, len(src))
	for j := range src {
		ts := srcRange.At(j)
		etr := meteo.AverageExtraterrestrialRadiation(
			ts.Time().Add(-time.Duration(srcRange.Dt)*time.Second), ts.Time(), lat, lon)
		switch {
		case math.IsNaN(float64(src[j])):
			ratio[j] = math.NaN()
		case etr < etrEpsilon:
			ratio[j] = -1
		default:
			ratio[j] = float64(src[j]) / etr
		}
	}

	for i := range out {
		t := dstRange.At(i)
		j, f := bracket(srcRange, t)
		a := ratioAt(ratio, j)
		b := a
		if f > 0 {
			b = ratioAt(ratio, j+1)
		}

		if math.IsNaN(a) || math.IsNaN(b) {
			out[i] = float32(math.NaN())
			continue
		}
		if a < 0 || b < 0 {
			// No clear-sky signal to deaverage against; the measured
			// values carry the shape instead.
			out[i] = linear(src, srcRange, t)
			if out[i] < 0 {
				out[i] = 0
			}
			continue
		}

		r := (1-f)*a + f*b
		etrDst := meteo.AverageExtraterrestrialRadiation(
			t.Time().Add(-time.Duration(dstRange.Dt)*time.Second), t.Time(), lat, lon)
		v := r * etrDst
		if v < 0 {
			v = 0
		}
		out[i] = float32(v)
	}
}

func ratioAt(ratio []float64, i int) float64 {
	if i < 0 {
		i = 0
	}
	if i >= len(ratio) {
		i = len(ratio) - 1
	}
	return ratio[i]
}
