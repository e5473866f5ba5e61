package shard

import (
	"fmt"
	"os"

	"github.com/couchcryptid/forecast-point-service/internal/grid"
	"github.com/couchcryptid/forecast-point-service/internal/omfile"
)

// LoadElevation reads a model's elevation companion file: a column file
// with one timestep holding terrain height per grid point, sea points
// carrying the sea sentinel. A missing file yields an empty map, which
// disables terrain-optimised point search.
func LoadElevation(path string) (grid.ElevationMap, error) {
	h, err := omfile.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load elevation: %w", err)
	}
	defer h.Release()

	if h.NTime != 1 {
		return nil, fmt.Errorf("load elevation: %s has %d timesteps, want 1", path, h.NTime)
	}
	m, err := h.ReadBlock(0, int(h.NLocations), 0, 1)
	if err != nil {
		return nil, fmt.Errorf("load elevation: %w", err)
	}
	return grid.ElevationMap(m), nil
}

// WriteElevation writes the elevation companion file for a grid.
func WriteElevation(path string, values []float32) error {
	hdr := omfile.Header{
		NLocations:  uint64(len(values)),
		NTime:       1,
		ChunkLoc:    omfile.DefaultChunkLoc,
		ChunkTime:   1,
		ScaleFactor: 1,
	}
	return omfile.Write(path, hdr, func(c omfile.Chunk) []float32 {
		return values[c.Loc0 : c.Loc0+c.NLoc]
	})
}
