package shard

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/omfile"
)

// Write overlays a block of values onto the rolling archive. values is
// nLoc×tr.Count(), row-major with time inner, covering grid locations
// [loc0, loc0+nLoc) over tr at the model's native step. Cells outside
// the block keep their previous contents; cells inside are replaced,
// NaN included. Each affected shard is rewritten and published by
// rename, so concurrent readers see the old or the new file, never a
// mix.
func (s *Splitter) Write(v domain.Variable, loc0, nLoc int, tr domain.TimeRange, values []float32) error {
	if tr.Dt != s.model.DtSeconds {
		return fmt.Errorf("shard write wants dt=%d, got %d", s.model.DtSeconds, tr.Dt)
	}
	if len(values) != nLoc*tr.Count() {
		return fmt.Errorf("shard write got %d cells, want %d×%d", len(values), nLoc, tr.Count())
	}
	gridCount := s.model.Grid.Count()
	if loc0 < 0 || loc0+nLoc > gridCount {
		return fmt.Errorf("%w: locations [%d,%d) of %d", domain.ErrOutOfRange, loc0, loc0+nLoc, gridCount)
	}
	if tr.Count() == 0 {
		return nil
	}

	for k := s.shardIndex(tr.Start); k <= s.shardIndex(tr.End-domain.Timestamp(tr.Dt)); k++ {
		sub := tr.Intersect(s.shardStart(k), s.shardStart(k+1))
		if sub.Count() == 0 {
			continue
		}
		if err := s.writeShard(v, k, loc0, nLoc, tr, sub, values); err != nil {
			return err
		}
	}
	return nil
}

// WriteFrame overlays a full-grid frame, the common ingest shape.
func (s *Splitter) WriteFrame(v domain.Variable, tr domain.TimeRange, values []float32) error {
	return s.Write(v, 0, s.model.Grid.Count(), tr, values)
}

// shardLock returns the mutex serializing writers of one shard file.
func (s *Splitter) shardLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// writeShard merges the block overlay into one rolling shard and
// publishes the rewritten file.
func (s *Splitter) writeShard(v domain.Variable, k int64, loc0, nLoc int, tr, sub domain.TimeRange, values []float32) error {
	path := s.rollingPath(v, k)
	lock := s.shardLock(path)
	lock.Lock()
	defer lock.Unlock()

	hdr := omfile.Header{
		NLocations:  uint64(s.model.Grid.Count()),
		NTime:       uint64(s.model.OmFileLength),
		ChunkLoc:    omfile.DefaultChunkLoc,
		ChunkTime:   omfile.DefaultChunkTime(s.model.DtSeconds),
		ScaleFactor: v.ScaleFactor,
	}

	// Keep whatever the previous file version holds outside the overlay.
	old, err := s.files.Acquire(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	if old != nil {
		hdr.ScaleFactor = old.ScaleFactor
		hdr.ChunkLoc = old.ChunkLoc
		hdr.ChunkTime = old.ChunkTime
		defer old.Release()
	}

	shardStart := s.shardStart(k)
	err = omfile.Write(path, hdr, func(c omfile.Chunk) []float32 {
		var block []float32
		if old != nil {
			block, _ = old.ReadBlock(c.Loc0, c.NLoc, c.T0, c.NTime)
		}
		if block == nil {
			block = make([]float32, c.NLoc*c.NTime)
			for i := range block {
				block[i] = float32(math.NaN())
			}
		}
		for l := max(c.Loc0, loc0); l < min(c.Loc0+c.NLoc, loc0+nLoc); l++ {
			for t := c.T0; t < c.T0+c.NTime; t++ {
				ts := shardStart + domain.Timestamp(int64(t)*tr.Dt)
				if ts < sub.Start || ts >= sub.End {
					continue
				}
				j := tr.Index(ts)
				block[(l-c.Loc0)*c.NTime+(t-c.T0)] = values[(l-loc0)*tr.Count()+j]
			}
		}
		return block
	})
	if err != nil {
		return err
	}

	s.files.Invalidate(path)
	return nil
}
