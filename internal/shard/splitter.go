// Package shard presents one endless time series per variable while
// persisting fixed-length column files. Reads stitch across rolling
// shards and the optional yearly archive; writes merge into the affected
// shards and publish each atomically.
package shard

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/omfile"
)

// reopenAttempts bounds the reopen loop when a writer renames a shard
// out from under a reader mid-acquire.
const reopenAttempts = 3

// Splitter routes per-variable reads and writes onto shard files for one
// model. It is safe for concurrent use; writers to the same shard
// serialize on a per-shard lock.
type Splitter struct {
	model *domain.Model
	files *omfile.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSplitter creates a Splitter over the model's storage roots.
func NewSplitter(m *domain.Model, files *omfile.Cache) *Splitter {
	return &Splitter{
		model: m,
		files: files,
		locks: make(map[string]*sync.Mutex),
	}
}

// Model returns the model this splitter serves.
func (s *Splitter) Model() *domain.Model { return s.model }

func (s *Splitter) rollingPath(v domain.Variable, k int64) string {
	return filepath.Join(s.model.OmfileDirectory, fmt.Sprintf("%s_%d.om", v.File(), k))
}

func (s *Splitter) yearlyPath(v domain.Variable, year int) string {
	return filepath.Join(s.model.OmfileArchive, fmt.Sprintf("%s_%d.om", v.File(), year))
}

// shardIndex maps a timestamp to its rolling shard number.
func (s *Splitter) shardIndex(t domain.Timestamp) int64 {
	w := s.model.ShardWidthSeconds()
	v := int64(t)
	k := v / w
	if v < 0 && v%w != 0 {
		k--
	}
	return k
}

func (s *Splitter) shardStart(k int64) domain.Timestamp {
	return domain.Timestamp(k * s.model.ShardWidthSeconds())
}

// archiveBoundary returns the start of the oldest rolling shard for v.
// Timestamps before it route to the yearly archive. Without an archive
// directory everything is rolling; without any rolling shard everything
// routes to the archive.
func (s *Splitter) archiveBoundary(v domain.Variable) domain.Timestamp {
	if s.model.OmfileArchive == "" {
		return domain.Timestamp(math.MinInt64)
	}
	entries, err := os.ReadDir(s.model.OmfileDirectory)
	if err != nil {
		return domain.Timestamp(math.MaxInt64)
	}
	prefix := v.File() + "_"
	oldest := int64(math.MaxInt64)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".om") {
			continue
		}
		k, err := strconv.ParseInt(name[len(prefix):len(name)-3], 10, 64)
		if err != nil {
			continue
		}
		if k < oldest {
			oldest = k
		}
	}
	if oldest == math.MaxInt64 {
		return domain.Timestamp(math.MaxInt64)
	}
	return s.shardStart(oldest)
}

// Read returns tr.Count() values for one grid point, stitched across
// every shard the range touches. Gaps fill with NaN. tr must use the
// model's native step.
func (s *Splitter) Read(v domain.Variable, location int, tr domain.TimeRange) ([]float32, error) {
	if tr.Dt != s.model.DtSeconds {
		return nil, fmt.Errorf("shard read wants dt=%d, got %d", s.model.DtSeconds, tr.Dt)
	}
	out := make([]float32, tr.Count())
	for i := range out {
		out[i] = float32(math.NaN())
	}
	if tr.Count() == 0 {
		return out, nil
	}

	boundary := s.archiveBoundary(v)
	err := s.forEachFile(v, tr, boundary, func(path string, fileStart domain.Timestamp, sub domain.TimeRange) error {
		return s.readFile(path, location, fileStart, sub, out[tr.Index(sub.Start):])
	})
	return out, err
}

// WillNeed prefaults the chunks a later Read of the same region will
// touch. Advisory only: every failure is swallowed.
func (s *Splitter) WillNeed(v domain.Variable, location int, tr domain.TimeRange) {
	if tr.Dt != s.model.DtSeconds || tr.Count() == 0 {
		return
	}
	boundary := s.archiveBoundary(v)
	_ = s.forEachFile(v, tr, boundary, func(path string, fileStart domain.Timestamp, sub domain.TimeRange) error {
		h, err := s.files.Acquire(path)
		if err != nil {
			return nil
		}
		defer h.Release()
		h.WillNeed(location, 1, int(int64(sub.Start-fileStart)/tr.Dt), sub.Count())
		return nil
	})
}

// forEachFile walks the shard files covering tr in time order, invoking
// fn with the file path, the timestamp of the file's first cell, and the
// sub-range served by that file.
func (s *Splitter) forEachFile(v domain.Variable, tr domain.TimeRange, boundary domain.Timestamp, fn func(path string, fileStart domain.Timestamp, sub domain.TimeRange) error) error {
	// Archive segment: per calendar year.
	if tr.Start < boundary {
		seg := tr.Intersect(tr.Start, minTimestamp(tr.End, boundary))
		for y := seg.Start.Time().Year(); seg.Count() > 0 && y <= (seg.End - domain.Timestamp(seg.Dt)).Time().Year(); y++ {
			ys := domain.Timestamp(time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
			ye := domain.Timestamp(time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
			sub := seg.Intersect(ys, ye)
			if sub.Count() == 0 {
				continue
			}
			if err := fn(s.yearlyPath(v, y), ys, sub); err != nil {
				return err
			}
		}
	}

	// Rolling segment: per shard.
	if tr.End > boundary {
		seg := tr.Intersect(maxTimestamp(tr.Start, boundary), tr.End)
		if seg.Count() == 0 {
			return nil
		}
		for k := s.shardIndex(seg.Start); k <= s.shardIndex(seg.End-domain.Timestamp(seg.Dt)); k++ {
			sub := seg.Intersect(s.shardStart(k), s.shardStart(k+1))
			if sub.Count() == 0 {
				continue
			}
			if err := fn(s.rollingPath(v, k), s.shardStart(k), sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// readFile reads sub from one shard file into out[0:sub.Count()]. A
// missing file is a gap and leaves the NaN fill in place; a file swapped
// by a concurrent rename is reopened a bounded number of times.
func (s *Splitter) readFile(path string, location int, fileStart domain.Timestamp, sub domain.TimeRange, out []float32) error {
	t0 := int(int64(sub.Start-fileStart) / sub.Dt)

	var lastErr error
	for attempt := 0; attempt < reopenAttempts; attempt++ {
		h, err := s.files.Acquire(path)
		if os.IsNotExist(err) {
			lastErr = err
			continue
		}
		if errors.Is(err, domain.ErrFormatInvalid) {
			s.files.Invalidate(path)
			lastErr = err
			continue
		}
		if err != nil {
			return fmt.Errorf("open shard: %w", err)
		}

		err = h.ReadInto(out[:sub.Count()], location, t0)
		h.Release()
		if errors.Is(err, domain.ErrFormatInvalid) {
			s.files.Invalidate(path)
			lastErr = err
			continue
		}
		return err
	}
	if lastErr != nil && os.IsNotExist(lastErr) {
		return nil // shard never materialized: a gap, not an error
	}
	return lastErr
}

func minTimestamp(a, b domain.Timestamp) domain.Timestamp {
	if a < b {
		return a
	}
	return b
}

func maxTimestamp(a, b domain.Timestamp) domain.Timestamp {
	if a > b {
		return a
	}
	return b
}

