// Package omfile implements the .om column file: one variable stored as
// a [location × time] matrix of scaled int16 cells, chunked in both
// dimensions, with each chunk independently compressed by 2-D delta
// coding plus zig-zag variable-byte encoding. Files are read through
// memory mapping and replaced atomically by temp-write plus rename.
package omfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
)

const (
	magic      = "OM\x01"
	version    = 1
	headerSize = 4 + 8 + 8 + 4 + 4 + 4 // magic+version, nLoc, nTime, chunkLoc, chunkTime, scalefactor

	// indexEntrySize is one chunk index record: offset u64 + length u32.
	indexEntrySize = 12

	// DefaultChunkLoc is the location-axis chunk width.
	DefaultChunkLoc = 6
)

// DefaultChunkTime returns the time-axis chunk width for a model step,
// sized so roughly twenty chunks cover a day-year of hourly data.
func DefaultChunkTime(dtSeconds int64) uint32 {
	ct := 183 * 3600 / dtSeconds
	if ct < 1 {
		ct = 1
	}
	return uint32(ct)
}

// Header describes the immutable logical shape of a column file.
type Header struct {
	NLocations  uint64
	NTime       uint64
	ChunkLoc    uint32
	ChunkTime   uint32
	ScaleFactor float32
}

func (h Header) chunksLoc() int {
	return int((h.NLocations + uint64(h.ChunkLoc) - 1) / uint64(h.ChunkLoc))
}

func (h Header) chunksTime() int {
	return int((h.NTime + uint64(h.ChunkTime) - 1) / uint64(h.ChunkTime))
}

// NChunks is the chunk index length: location-major, time minor.
func (h Header) NChunks() int {
	return h.chunksLoc() * h.chunksTime()
}

func (h Header) indexSize() int {
	return h.NChunks() * indexEntrySize
}

// payloadStart is the file offset compressed chunk offsets are relative to.
func (h Header) payloadStart() int64 {
	return int64(headerSize) + int64(h.indexSize())
}

// Chunk identifies one tile of the logical matrix.
type Chunk struct {
	Index      int // position in the chunk index
	Loc0, NLoc int // covered location range
	T0, NTime  int // covered timestep range
}

// chunkAt resolves chunk geometry from its index position.
func (h Header) chunkAt(index int) Chunk {
	cl := index / h.chunksTime()
	ct := index % h.chunksTime()

	c := Chunk{
		Index: index,
		Loc0:  cl * int(h.ChunkLoc),
		T0:    ct * int(h.ChunkTime),
	}
	c.NLoc = min(int(h.ChunkLoc), int(h.NLocations)-c.Loc0)
	c.NTime = min(int(h.ChunkTime), int(h.NTime)-c.T0)
	return c
}

// chunkIndexOf returns the index position of the chunk containing cell
// (location, timestep).
func (h Header) chunkIndexOf(location, timestep int) int {
	return (location/int(h.ChunkLoc))*h.chunksTime() + timestep/int(h.ChunkTime)
}

func (h Header) validate() error {
	if h.NLocations == 0 || h.NTime == 0 {
		return fmt.Errorf("%w: empty matrix %dx%d", domain.ErrFormatInvalid, h.NLocations, h.NTime)
	}
	if h.ChunkLoc == 0 || h.ChunkTime == 0 {
		return fmt.Errorf("%w: zero chunk shape %dx%d", domain.ErrFormatInvalid, h.ChunkLoc, h.ChunkTime)
	}
	if h.ScaleFactor <= 0 {
		return fmt.Errorf("%w: scalefactor %g", domain.ErrFormatInvalid, h.ScaleFactor)
	}
	return nil
}

// marshal writes the fixed header in big-endian order.
func (h Header) marshal() []byte {
	buf := make([]byte, headerSize)
	copy(buf, magic)
	buf[3] = version
	binary.BigEndian.PutUint64(buf[4:], h.NLocations)
	binary.BigEndian.PutUint64(buf[12:], h.NTime)
	binary.BigEndian.PutUint32(buf[20:], h.ChunkLoc)
	binary.BigEndian.PutUint32(buf[24:], h.ChunkTime)
	binary.BigEndian.PutUint32(buf[28:], math.Float32bits(h.ScaleFactor))
	return buf
}

// unmarshalHeader parses and validates the fixed header.
func unmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, fmt.Errorf("%w: file shorter than header", domain.ErrFormatInvalid)
	}
	if string(buf[:3]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", domain.ErrFormatInvalid)
	}
	if buf[3] != version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", domain.ErrFormatInvalid, buf[3])
	}
	h := Header{
		NLocations:  binary.BigEndian.Uint64(buf[4:]),
		NTime:       binary.BigEndian.Uint64(buf[12:]),
		ChunkLoc:    binary.BigEndian.Uint32(buf[20:]),
		ChunkTime:   binary.BigEndian.Uint32(buf[24:]),
		ScaleFactor: math.Float32frombits(binary.BigEndian.Uint32(buf[28:])),
	}
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}
