package omfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
)

// Handle is an open, memory-mapped column file. Handles are read-only
// and safe for concurrent use; writers replace the file wholesale via
// [Write] and never touch an open mapping.
type Handle struct {
	Header

	path  string
	data  []byte // whole-file mapping
	inode uint64
	mtime int64

	refs atomic.Int64
}

// Open maps the file and validates the header and chunk index.
func Open(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < headerSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrFormatInvalid, path, size)
	}

	data, err := mmapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	h := &Handle{path: path, data: data}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		h.inode = st.Ino
	}
	h.mtime = fi.ModTime().UnixNano()

	h.Header, err = unmarshalHeader(data)
	if err != nil {
		_ = munmapFile(data)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := h.checkIndex(size); err != nil {
		_ = munmapFile(data)
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	h.refs.Store(1)
	return h, nil
}

// checkIndex verifies every chunk index entry stays inside the file.
func (h *Handle) checkIndex(size int64) error {
	if h.payloadStart() > size {
		return fmt.Errorf("%w: chunk index extends past EOF", domain.ErrFormatInvalid)
	}
	payload := size - h.payloadStart()
	for i := 0; i < h.NChunks(); i++ {
		off, length := h.indexEntry(i)
		if length == 0 {
			continue
		}
		if off+int64(length) > payload {
			return fmt.Errorf("%w: chunk %d at %d+%d exceeds payload %d", domain.ErrFormatInvalid, i, off, length, payload)
		}
	}
	return nil
}

func (h *Handle) indexEntry(i int) (offset int64, length uint32) {
	e := h.data[headerSize+i*indexEntrySize:]
	return int64(binary.BigEndian.Uint64(e)), binary.BigEndian.Uint32(e[8:])
}

func (h *Handle) chunkPayload(i int) []byte {
	off, length := h.indexEntry(i)
	if length == 0 {
		return nil
	}
	start := h.payloadStart() + off
	return h.data[start : start+int64(length)]
}

// Path returns the file path the handle was opened from.
func (h *Handle) Path() string { return h.path }

// retainIfLive adds a reference unless the handle already dropped to
// zero and unmapped. The cache and in-flight readers each hold one.
func (h *Handle) retainIfLive() bool {
	for {
		r := h.refs.Load()
		if r == 0 {
			return false
		}
		if h.refs.CompareAndSwap(r, r+1) {
			return true
		}
	}
}

// Release drops a reference and unmaps when the last one goes.
func (h *Handle) Release() {
	if h.refs.Add(-1) == 0 {
		_ = munmapFile(h.data)
		h.data = nil
	}
}

// stale reports whether the directory entry no longer points at this
// handle's inode, i.e. a writer renamed a replacement into place.
func (h *Handle) stale(fi os.FileInfo) bool {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && h.inode != 0 {
		return st.Ino != h.inode
	}
	return fi.ModTime().UnixNano() != h.mtime
}

// Read returns count values for one location starting at timestep t0.
// Timesteps outside [0, NTime) fill with NaN. Only chunks overlapping
// the requested cells are decoded.
func (h *Handle) Read(location, t0, count int) ([]float32, error) {
	dst := make([]float32, count)
	if err := h.ReadInto(dst, location, t0); err != nil {
		return nil, err
	}
	return dst, nil
}

// ReadInto fills dst like Read, letting callers reuse buffers.
func (h *Handle) ReadInto(dst []float32, location, t0 int) error {
	if location < 0 || uint64(location) >= h.NLocations {
		return fmt.Errorf("%w: location %d of %d in %s", domain.ErrOutOfRange, location, h.NLocations, h.path)
	}
	for i := range dst {
		dst[i] = float32(math.NaN())
	}

	lo := max(t0, 0)
	hi := min(t0+len(dst), int(h.NTime))
	for t := lo; t < hi; {
		c := h.chunkAt(h.chunkIndexOf(location, t))
		if err := h.readChunkRow(dst, c, location, t0); err != nil {
			return err
		}
		t = c.T0 + c.NTime
	}
	return nil
}

// readChunkRow copies the overlap of one chunk's row for location into
// dst, where dst[0] corresponds to timestep t0.
func (h *Handle) readChunkRow(dst []float32, c Chunk, location, t0 int) error {
	payload := h.chunkPayload(c.Index)
	if payload == nil {
		return nil // all-missing chunk; dst already NaN
	}
	q, err := decodeChunk(payload, c.NLoc, c.NTime)
	if err != nil {
		return fmt.Errorf("%s: %w", h.path, err)
	}

	row := q[(location-c.Loc0)*c.NTime : (location-c.Loc0+1)*c.NTime]
	for i, qv := range row {
		t := c.T0 + i
		if j := t - t0; j >= 0 && j < len(dst) {
			dst[j] = dequantize(qv, h.ScaleFactor)
		}
	}
	return nil
}

// ReadBlock returns an nLoc×count block (row-major, time inner) starting
// at (loc0, t0). Out-of-file cells fill with NaN. Used by the shard
// merge path and the elevation loader.
func (h *Handle) ReadBlock(loc0, nLoc, t0, count int) ([]float32, error) {
	if loc0 < 0 || uint64(loc0+nLoc) > h.NLocations {
		return nil, fmt.Errorf("%w: locations [%d,%d) of %d in %s", domain.ErrOutOfRange, loc0, loc0+nLoc, h.NLocations, h.path)
	}
	dst := make([]float32, nLoc*count)
	for l := 0; l < nLoc; l++ {
		if err := h.ReadInto(dst[l*count:(l+1)*count], loc0+l, t0); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// WillNeed prefaults the chunks covering the given cell region. Advisory
// only; it never fails user-visibly.
func (h *Handle) WillNeed(loc0, nLoc, t0, count int) {
	if nLoc <= 0 || count <= 0 {
		return
	}
	l0 := max(loc0, 0)
	l1 := min(loc0+nLoc, int(h.NLocations))
	s0 := max(t0, 0)
	s1 := min(t0+count, int(h.NTime))
	if l0 >= l1 || s0 >= s1 {
		return
	}

	seen := -1
	for l := l0; l < l1; l += int(h.ChunkLoc) {
		for t := s0; t < s1; {
			ci := h.chunkIndexOf(l, t)
			if ci != seen {
				if p := h.chunkPayload(ci); p != nil {
					advise(p)
				}
				seen = ci
			}
			t = h.chunkAt(ci).T0 + h.chunkAt(ci).NTime
		}
	}
}
