package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampFloorCeil(t *testing.T) {
	cases := []struct {
		name  string
		ts    Timestamp
		dt    int64
		floor Timestamp
		ceil  Timestamp
	}{
		{"aligned", 7200, 3600, 7200, 7200},
		{"mid", 7201, 3600, 7200, 10800},
		{"just below", 7199, 3600, 3600, 7200},
		{"negative", -1, 3600, -3600, 0},
		{"negative aligned", -3600, 3600, -3600, -3600},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.floor, tc.ts.Floor(tc.dt))
			assert.Equal(t, tc.ceil, tc.ts.Ceil(tc.dt))
		})
	}
}

func TestNewTimeRangeValidation(t *testing.T) {
	_, err := NewTimeRange(0, 3600, 3600)
	require.NoError(t, err)

	_, err = NewTimeRange(100, 3600, 3600)
	assert.Error(t, err, "unaligned start")

	_, err = NewTimeRange(7200, 3600, 3600)
	assert.Error(t, err, "end before start")

	_, err = NewTimeRange(0, 3600, 0)
	assert.Error(t, err, "zero step")
}

func TestTimeRangeCountAtIndex(t *testing.T) {
	tr, err := NewTimeRange(3600, 5*3600, 3600)
	require.NoError(t, err)

	assert.Equal(t, 4, tr.Count())
	assert.Equal(t, Timestamp(3600), tr.At(0))
	assert.Equal(t, Timestamp(4*3600), tr.At(3))
	assert.Equal(t, 2, tr.Index(3*3600))
}

func TestTimeRangeIntersect(t *testing.T) {
	tr, err := NewTimeRange(0, 10*3600, 3600)
	require.NoError(t, err)

	sub := tr.Intersect(2*3600, 5*3600)
	assert.Equal(t, Timestamp(2*3600), sub.Start)
	assert.Equal(t, Timestamp(5*3600), sub.End)
	assert.Equal(t, 3, sub.Count())

	empty := tr.Intersect(20*3600, 30*3600)
	assert.Equal(t, 0, empty.Count())
}

func TestTimeRangeWidenAlign(t *testing.T) {
	tr, err := NewTimeRange(7200, 6*3600, 3600)
	require.NoError(t, err)

	w := tr.Widen(2)
	assert.Equal(t, Timestamp(0), w.Start)
	assert.Equal(t, Timestamp(8*3600), w.End)

	a := tr.AlignTo(10800)
	assert.Equal(t, Timestamp(0), a.Start)
	assert.Equal(t, Timestamp(21600), a.End)
	assert.Equal(t, int64(10800), a.Dt)
}
