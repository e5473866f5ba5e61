package omfile

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampHeader is the shape used across the write/read tests: 100
// locations, 240 hourly steps, scalefactor 20.
func rampHeader() Header {
	return Header{
		NLocations:  100,
		NTime:       240,
		ChunkLoc:    DefaultChunkLoc,
		ChunkTime:   DefaultChunkTime(3600),
		ScaleFactor: 20,
	}
}

// rampProvider yields v[loc,t] = loc + t/24 for every chunk.
func rampProvider(c Chunk) []float32 {
	out := make([]float32, c.NLoc*c.NTime)
	for l := 0; l < c.NLoc; l++ {
		for t := 0; t < c.NTime; t++ {
			out[l*c.NTime+t] = float32(c.Loc0+l) + float32(c.T0+t)/24
		}
	}
	return out
}

func writeRamp(t *testing.T, path string, h Header) {
	t.Helper()
	require.NoError(t, Write(path, h, rampProvider))
}

func TestWriteThenPointRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temperature_2m_0.om")
	writeRamp(t, path, rampHeader())

	h, err := Open(path)
	require.NoError(t, err)
	defer h.Release()

	got, err := h.Read(42, 10, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, v := range got {
		want := 42 + float64(10+i)/24
		// Half a quantization step, plus float32 rounding of the decoded value.
		assert.InDelta(t, want, float64(v), 0.025+1e-5, "step %d", i)
	}
}

func TestQuantizationRoundTrip(t *testing.T) {
	const scale = 20
	for _, x := range []float32{0, 0.9, -12.34, 1638.3, -1638.3} {
		q := quantize(x, scale)
		back := dequantize(q, scale)
		assert.InDelta(t, x, back, 0.5/scale)
	}
}

func TestMissingRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v_0.om")
	h := rampHeader()
	require.NoError(t, Write(path, h, func(c Chunk) []float32 {
		out := rampProvider(c)
		// Poke a hole at (42, 15).
		if l, ts := 42-c.Loc0, 15-c.T0; l >= 0 && l < c.NLoc && ts >= 0 && ts < c.NTime {
			out[l*c.NTime+ts] = float32(math.NaN())
		}
		return out
	}))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Release()

	got, err := f.Read(42, 10, 10)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(got[5])), "hole should read back NaN")
	for i, v := range got {
		if i == 5 {
			continue
		}
		assert.InDelta(t, 42+float64(10+i)/24, float64(v), 0.025)
	}
}

func TestChunkingInvariance(t *testing.T) {
	dir := t.TempDir()
	shapes := []struct{ cl, ct uint32 }{
		{6, 183},
		{1, 240},
		{100, 7},
		{13, 31},
	}

	var reference []float32
	for i, shape := range shapes {
		h := rampHeader()
		h.ChunkLoc, h.ChunkTime = shape.cl, shape.ct
		path := filepath.Join(dir, "v.om")
		writeRamp(t, path, h)

		f, err := Open(path)
		require.NoError(t, err)
		got, err := f.Read(97, 0, 240)
		require.NoError(t, err)
		f.Release()

		if i == 0 {
			reference = got
			continue
		}
		assert.Equal(t, reference, got, "chunk shape %dx%d must not change values", shape.cl, shape.ct)
	}
}

func TestReadOutOfFileTimestepsAreNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v_0.om")
	writeRamp(t, path, rampHeader())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Release()

	got, err := f.Read(0, -5, 250)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.True(t, math.IsNaN(float64(got[i])))
	}
	assert.False(t, math.IsNaN(float64(got[5])))
	assert.True(t, math.IsNaN(float64(got[249])))
}

func TestReadLocationOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v_0.om")
	writeRamp(t, path, rampHeader())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Release()

	_, err = f.Read(100, 0, 1)
	assert.ErrorIs(t, err, domain.ErrOutOfRange)
}

func TestAllMissingChunkOccupiesNoPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v_0.om")
	h := Header{NLocations: 6, NTime: 8, ChunkLoc: 6, ChunkTime: 8, ScaleFactor: 20}
	require.NoError(t, Write(path, h, func(c Chunk) []float32 {
		out := make([]float32, c.NLoc*c.NTime)
		for i := range out {
			out[i] = float32(math.NaN())
		}
		return out
	}))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize+indexEntrySize), fi.Size(), "all-missing file is header+index only")

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Release()

	got, err := f.Read(3, 0, 8)
	require.NoError(t, err)
	for _, v := range got {
		assert.True(t, math.IsNaN(float64(v)))
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.om")
	require.NoError(t, os.WriteFile(path, []byte("not a column file at all, just bytes"), 0o644))

	_, err := Open(path)
	assert.ErrorIs(t, err, domain.ErrFormatInvalid)
}

func TestOpenRejectsTruncatedIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v_0.om")
	writeRamp(t, path, rampHeader())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:headerSize+4], 0o644))

	_, err = Open(path)
	assert.ErrorIs(t, err, domain.ErrFormatInvalid)
}

func TestCodecZigzagVarint(t *testing.T) {
	for _, d := range []int16{0, 1, -1, 63, -64, 127, -128, 16383, -16384, math.MaxInt16, math.MinInt16} {
		u := zigzag(d)
		assert.Equal(t, d, unzigzag(u))

		buf := putVarint(nil, u)
		back, n := getVarint(buf)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, u, back)
	}
}

func TestCacheReopensAfterRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v_0.om")
	writeRamp(t, path, rampHeader())

	cache, err := NewCache(4)
	require.NoError(t, err)
	defer cache.Close()

	h1, err := cache.Acquire(path)
	require.NoError(t, err)
	v1, err := h1.Read(0, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(v1[0]), 0.025)

	// Rewrite the file with shifted values; rename gives it a new inode.
	require.NoError(t, Write(path, rampHeader(), func(c Chunk) []float32 {
		out := rampProvider(c)
		for i := range out {
			out[i] += 100
		}
		return out
	}))

	h2, err := cache.Acquire(path)
	require.NoError(t, err)
	v2, err := h2.Read(0, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, float64(v2[0]), 0.025, "stale handle must be superseded")

	// The superseded mapping stays readable until released.
	v1again, err := h1.Read(0, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(v1again[0]), 0.025)

	h1.Release()
	h2.Release()
}

func TestCacheMissingFile(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Acquire(filepath.Join(t.TempDir(), "absent.om"))
	assert.True(t, os.IsNotExist(err))
}
