package omfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// ChunkProvider supplies the full cell values of one chunk, row-major
// with time as the inner dimension. Writers call it once per chunk in
// index order.
type ChunkProvider func(c Chunk) []float32

// Write builds a complete column file at a sibling temp path and renames
// it over target. The rename is the only publication point: readers see
// either the old file or the new one, never a partial write.
func Write(target string, h Header, provider ChunkProvider) error {
	if err := h.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	// Header and a zero index first; chunk offsets are known only after
	// the payload is streamed, so the index is patched in afterwards.
	index := make([]byte, h.indexSize())
	if _, err := tmp.Write(h.marshal()); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	if _, err := tmp.Write(index); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	var offset int64
	for i := 0; i < h.NChunks(); i++ {
		c := h.chunkAt(i)
		values := provider(c)
		if len(values) != c.NLoc*c.NTime {
			return fmt.Errorf("write %s: chunk %d provider returned %d cells, want %d", target, i, len(values), c.NLoc*c.NTime)
		}
		payload := encodeChunk(values, c.NLoc, c.NTime, h.ScaleFactor)
		if payload == nil {
			continue // all missing: zero-length index entry, no payload
		}
		if _, err := tmp.Write(payload); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		binary.BigEndian.PutUint64(index[i*indexEntrySize:], uint64(offset))
		binary.BigEndian.PutUint32(index[i*indexEntrySize+8:], uint32(len(payload)))
		offset += int64(len(payload))
	}

	if _, err := tmp.WriteAt(index, headerSize); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		tmp = nil
		os.Remove(name)
		return fmt.Errorf("write %s: %w", target, err)
	}
	tmp = nil

	if err := os.Rename(name, target); err != nil {
		os.Remove(name)
		return fmt.Errorf("publish %s: %w", target, err)
	}
	return nil
}
