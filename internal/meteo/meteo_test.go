package meteo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPressureHeightInverse(t *testing.T) {
	for _, h := range []float64{0, 110, 850, 1500, 3000, 5574, 11000} {
		p := PressureFromHeight(h)
		back := HeightFromPressure(p)
		assert.InDelta(t, h, back, 1e-6, "height %g", h)
	}
}

func TestPressureFromHeightAnchors(t *testing.T) {
	assert.InDelta(t, 1013.25, PressureFromHeight(0), 1e-9)
	// ICAO standard atmosphere: ~850 hPa near 1457 m, ~500 hPa near 5574 m.
	assert.InDelta(t, 850, PressureFromHeight(1457), 1)
	assert.InDelta(t, 500, PressureFromHeight(5574), 1)
}

func TestDewpoint(t *testing.T) {
	// Saturated air: dewpoint equals temperature.
	assert.InDelta(t, 20, Dewpoint(20, 100), 0.01)
	// Drier air has a lower dewpoint.
	assert.Less(t, Dewpoint(20, 50), 15.0)
	assert.True(t, math.IsNaN(Dewpoint(20, 0)))
}

func TestExtraterrestrialRadiation(t *testing.T) {
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	// Solstice noon at Greenwich latitude: strong irradiance.
	day := ExtraterrestrialRadiation(noon, 51.5, 0)
	assert.Greater(t, day, 1000.0)
	assert.Less(t, day, SolarConstant*1.04)

	// Local midnight: sun below horizon.
	assert.Equal(t, 0.0, ExtraterrestrialRadiation(midnight, 51.5, 0))
}

func TestAverageExtraterrestrialRadiation(t *testing.T) {
	start := time.Date(2024, 6, 21, 11, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	avg := AverageExtraterrestrialRadiation(start, end, 51.5, 0)
	assert.Greater(t, avg, 0.0)
	assert.LessOrEqual(t, avg, SolarConstant*1.04)

	// Polar night integrates to zero.
	dec := time.Date(2024, 12, 21, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, AverageExtraterrestrialRadiation(dec, dec.Add(time.Hour), 85, 0))
}

func TestCloudCoverFromRelativeHumidity(t *testing.T) {
	assert.Equal(t, 0.0, CloudCoverFromRelativeHumidity(40))
	assert.Equal(t, 100.0, CloudCoverFromRelativeHumidity(100))
	mid := CloudCoverFromRelativeHumidity(85)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 100.0)
	assert.True(t, math.IsNaN(CloudCoverFromRelativeHumidity(math.NaN())))
}

func TestDiffuseFraction(t *testing.T) {
	// Overcast sky: almost everything is diffuse.
	assert.InDelta(t, 1.0, DiffuseFraction(0.05), 0.01)
	// Clear sky: small diffuse share.
	assert.Equal(t, 0.165, DiffuseFraction(0.9))
	// The fraction stays within physical limits over the whole domain.
	for kt := 0.0; kt <= 1.0; kt += 0.01 {
		f := DiffuseFraction(kt)
		assert.GreaterOrEqual(t, f, 0.0, "kt=%g", kt)
		assert.LessOrEqual(t, f, 1.01, "kt=%g", kt)
	}
}

func TestDiffuseRadiation(t *testing.T) {
	assert.Equal(t, 0.0, DiffuseRadiation(100, 0), "night interval")
	assert.Equal(t, 0.0, DiffuseRadiation(0, 800))
	d := DiffuseRadiation(400, 900)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 400.0)
	assert.True(t, math.IsNaN(DiffuseRadiation(math.NaN(), 800)))
}
