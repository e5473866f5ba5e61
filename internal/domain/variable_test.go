package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtLevel(t *testing.T) {
	v := TemperatureLevel.AtLevel(850)
	assert.Equal(t, "temperature_850hPa", v.Name)
	assert.Equal(t, 850, v.Level)
	assert.False(t, v.Surface())

	// Re-levelling an already levelled variable swaps the suffix.
	v2 := v.AtLevel(500)
	assert.Equal(t, "temperature_500hPa", v2.Name)
}

func TestParseVariableName(t *testing.T) {
	cases := []struct {
		name  string
		ok    bool
		level int
	}{
		{"temperature_2m", true, 0},
		{"shortwave_radiation", true, 0},
		{"temperature_850hPa", true, 850},
		{"relativehumidity_700hPa", true, 700},
		{"cloudcover_500hPa", true, 500},
		{"geopotential_height_850hPa", true, 850},
		{"temperature_hPa", false, 0},
		{"nonsense", false, 0},
		{"temperature_-5hPa", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, ok := ParseVariableName(tc.name)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.name, v.Name)
				assert.Equal(t, tc.level, v.Level)
			}
		})
	}
}

func TestModelBracketLevels(t *testing.T) {
	m := &Model{PressureLevels: []int{250, 500, 700, 850, 1000}}

	lo, hi, ok := m.BracketLevels(950)
	require.True(t, ok)
	assert.Equal(t, 850, lo)
	assert.Equal(t, 1000, hi)

	_, _, ok = m.BracketLevels(100)
	assert.False(t, ok, "below the published span")
	_, _, ok = m.BracketLevels(1050)
	assert.False(t, ok, "above the published span")

	assert.True(t, m.HasLevel(700))
	assert.False(t, m.HasLevel(900))
}
