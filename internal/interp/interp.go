// Package interp resamples model-step series onto finer query steps.
// Kernels only refine: the destination step must evenly divide the
// source step, and every kernel preserves NaN through its stencil.
package interp

import (
	"math"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
)

// Padding returns the number of source steps a kernel needs on each side
// of the query window, endpoint included. The reader widens its source
// fetch by Padding-1 steps per side.
func Padding(k domain.InterpolationKind) int {
	switch k {
	case domain.InterpHermite, domain.InterpSolarBackwards:
		return 2
	default:
		return 1
	}
}

// Resample maps src, sampled on srcRange, onto dstRange. srcRange must
// cover dstRange with the kernel's padding and use the coarser step.
func Resample(src []float32, srcRange, dstRange domain.TimeRange, v domain.Variable, lat, lon float64) []float32 {
	out := make([]float32, dstRange.Count())
	switch v.Interp {
	case domain.InterpHermite:
		for i := range out {
			out[i] = hermite(src, srcRange, dstRange.At(i), v.Bounds)
		}
	case domain.InterpSolarBackwards:
		resampleSolar(out, src, srcRange, dstRange, lat, lon)
	default:
		for i := range out {
			out[i] = linear(src, srcRange, dstRange.At(i))
		}
	}
	return out
}

// bracket locates the source sample at or before t and the interpolation
// fraction into the following step.
func bracket(srcRange domain.TimeRange, t domain.Timestamp) (i int, f float64) {
	d := int64(t) - int64(srcRange.Start)
	i = int(d / srcRange.Dt)
	f = float64(d%srcRange.Dt) / float64(srcRange.Dt)
	return i, f
}

func sample(src []float32, i int) float32 {
	if i < 0 {
		i = 0
	}
	if i >= len(src) {
		i = len(src) - 1
	}
	return src[i]
}

func linear(src []float32, srcRange domain.TimeRange, t domain.Timestamp) float32 {
	i, f := bracket(srcRange, t)
	a := sample(src, i)
	if f == 0 {
		return a
	}
	b := sample(src, i+1)
	return float32((1-f)*float64(a) + f*float64(b))
}

// hermite is a Catmull-Rom spline over the four samples bracketing t,
// clamped to the variable's physical bounds when declared.
func hermite(src []float32, srcRange domain.TimeRange, t domain.Timestamp, bounds *domain.Bounds) float32 {
	i, f := bracket(srcRange, t)
	if f == 0 {
		return sample(src, i)
	}
	p0 := float64(sample(src, i-1))
	p1 := float64(sample(src, i))
	p2 := float64(sample(src, i+1))
	p3 := float64(sample(src, i+2))

	y := 0.5 * (2*p1 + (-p0+p2)*f +
		(2*p0-5*p1+4*p2-p3)*f*f +
		(-p0+3*p1-3*p2+p3)*f*f*f)

	if bounds != nil && !math.IsNaN(y) {
		y = math.Max(float64(bounds.Lo), math.Min(float64(bounds.Hi), y))
	}
	return float32(y)
}
