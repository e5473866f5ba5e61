package interp

import (
	"math"
	"testing"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkRange(t *testing.T, start, end domain.Timestamp, dt int64) domain.TimeRange {
	t.Helper()
	tr, err := domain.NewTimeRange(start, end, dt)
	require.NoError(t, err)
	return tr
}

func TestPadding(t *testing.T) {
	assert.Equal(t, 1, Padding(domain.InterpLinear))
	assert.Equal(t, 2, Padding(domain.InterpHermite))
	assert.Equal(t, 2, Padding(domain.InterpSolarBackwards))
}

// TestLinearUpsample checks the two defining properties: exact values at
// source boundaries, and in-segment values between the neighbours.
func TestLinearUpsample(t *testing.T) {
	src := []float32{0, 3, 9, 6, 12}
	srcRange := mkRange(t, 0, 5*10800, 10800)
	dstRange := mkRange(t, 0, 4*10800, 3600)

	v := domain.Variable{Interp: domain.InterpLinear}
	got := Resample(src, srcRange, dstRange, v, 48, 8)
	require.Len(t, got, 12)

	for j := 0; j < 4; j++ {
		assert.Equal(t, src[j], got[j*3], "source boundary %d must be exact", j)
	}
	for i, x := range got {
		j := i / 3
		lo := math.Min(float64(src[j]), float64(src[j+1]))
		hi := math.Max(float64(src[j]), float64(src[j+1]))
		assert.GreaterOrEqual(t, float64(x), lo-1e-6, "step %d", i)
		assert.LessOrEqual(t, float64(x), hi+1e-6, "step %d", i)
	}

	// Midpoint of the first segment sits exactly between the neighbours.
	assert.InDelta(t, 1.0, float64(got[1]), 1e-6)
}

func TestLinearPreservesNaN(t *testing.T) {
	src := []float32{1, float32(math.NaN()), 3}
	srcRange := mkRange(t, 0, 3*7200, 7200)
	dstRange := mkRange(t, 0, 2*7200, 3600)

	v := domain.Variable{Interp: domain.InterpLinear}
	got := Resample(src, srcRange, dstRange, v, 0, 0)

	assert.False(t, math.IsNaN(float64(got[0])), "exact sample 0 is finite")
	assert.True(t, math.IsNaN(float64(got[1])), "segment into NaN is NaN")
	assert.True(t, math.IsNaN(float64(got[2])), "exact NaN sample stays NaN")
	assert.True(t, math.IsNaN(float64(got[3])), "segment out of NaN is NaN")
}

func TestHermitePassesThroughSamplesAndClamps(t *testing.T) {
	src := []float32{0, 90, 100, 95, 40, 50}
	srcRange := mkRange(t, 0, 6*7200, 7200)
	dstRange := mkRange(t, 2*7200, 4*7200, 3600)

	v := domain.Variable{
		Interp: domain.InterpHermite,
		Bounds: &domain.Bounds{Lo: 0, Hi: 100},
	}
	got := Resample(src, srcRange, dstRange, v, 0, 0)
	require.Len(t, got, 4)

	assert.Equal(t, float32(100), got[0], "source sample passes through")
	assert.Equal(t, float32(95), got[2])
	for i, x := range got {
		assert.GreaterOrEqual(t, float64(x), 0.0, "step %d below bounds", i)
		assert.LessOrEqual(t, float64(x), 100.0, "step %d above bounds", i)
	}
}

func TestHermitePreservesNaN(t *testing.T) {
	src := []float32{1, 2, float32(math.NaN()), 4, 5}
	srcRange := mkRange(t, 0, 5*7200, 7200)
	dstRange := mkRange(t, 0, 2*7200, 3600)

	v := domain.Variable{Interp: domain.InterpHermite}
	got := Resample(src, srcRange, dstRange, v, 0, 0)

	// The NaN sample sits in the stencil of every in-between step here.
	assert.True(t, math.IsNaN(float64(got[1])))
	assert.True(t, math.IsNaN(float64(got[3])))
}

func TestSolarBackwardsNonNegativeAndNaNPreserving(t *testing.T) {
	// A sunny-day trailing-average profile at 3-hourly steps, noon peak.
	src := []float32{0, 50, 300, 500, 420, float32(math.NaN()), 20, 0}
	srcRange := mkRange(t, 1700001*3600, (1700001+8*3)*3600, 10800)
	dstRange := mkRange(t, srcRange.Start, srcRange.End, 3600)

	v := domain.Variable{Interp: domain.InterpSolarBackwards}
	got := Resample(src, srcRange, dstRange, v, 47, 8)
	require.Len(t, got, 24)

	sawNaN := false
	for i, x := range got {
		if math.IsNaN(float64(x)) {
			sawNaN = true
			continue
		}
		assert.GreaterOrEqual(t, float64(x), 0.0, "step %d negative irradiance", i)
	}
	assert.True(t, sawNaN, "the missing source sample must propagate")
}

func TestSolarBackwardsPolarNightFallsBackToLinear(t *testing.T) {
	// Deep polar winter: extra-terrestrial radiation integrates to ~0,
	// so the kernel interpolates the measured values directly.
	winter := domain.Timestamp(1703980800) // 2023-12-31 00:00 UTC
	srcRange := mkRange(t, winter, winter+4*10800, 10800)
	dstRange := mkRange(t, winter, winter+3*10800, 3600)

	src := []float32{3, 6, 9, 12}
	v := domain.Variable{Interp: domain.InterpSolarBackwards}
	got := Resample(src, srcRange, dstRange, v, 85, 0)
	require.Len(t, got, 9)

	for j := 0; j < 3; j++ {
		assert.InDelta(t, float64(src[j]), float64(got[j*3]), 1e-5, "boundary %d", j)
	}
	assert.InDelta(t, 4.0, float64(got[1]), 1e-5, "linear between 3 and 6")
}
