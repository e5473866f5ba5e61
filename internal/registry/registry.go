// Package registry wires the configured NWP models to their storage
// roots and exposes the reader stacks the HTTP layer queries. Stack
// order is coarse to fine: the mixer lets the finest covering model win.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/forecast-point-service/internal/config"
	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/grid"
	"github.com/couchcryptid/forecast-point-service/internal/omfile"
	"github.com/couchcryptid/forecast-point-service/internal/shard"
)

// surfaceVariables is the column file set every model produces.
var surfaceVariables = []string{
	"temperature_2m", "relativehumidity_2m", "dewpoint_2m", "pressure_msl",
	"wind_u_component_10m", "wind_v_component_10m", "cloudcover",
	"precipitation", "shortwave_radiation",
}

// levelVariables are produced per pressure level.
var levelVariables = []string{"temperature", "geopotential_height", "relativehumidity"}

// Registry owns the handle cache, the model descriptors, and the
// per-model splitters.
type Registry struct {
	Cache *omfile.Cache

	models    []*domain.Model
	splitters map[string]*shard.Splitter
	stacks    map[string][]*shard.Splitter
}

// Load builds the model set under cfg.DataRoot and loads each model's
// elevation companion file when present.
func Load(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	cache, err := omfile.NewCache(cfg.HandleCacheSize)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		Cache:     cache,
		splitters: make(map[string]*shard.Splitter),
		stacks:    make(map[string][]*shard.Splitter),
	}

	for _, m := range defaultModels(cfg.DataRoot) {
		elev, err := shard.LoadElevation(filepath.Join(m.OmfileDirectory, "elevation.om"))
		if err != nil {
			logger.Warn("elevation map unusable, terrain-optimised search disabled",
				"model", m.Name, "error", err)
		}
		m.Elevation = elev

		r.models = append(r.models, m)
		r.splitters[m.Name] = shard.NewSplitter(m, cache)
		r.stacks[m.Name] = []*shard.Splitter{r.splitters[m.Name]}
		logger.Info("model registered", "model", m.Name,
			"grid_points", m.Grid.Count(), "dt_seconds", m.DtSeconds,
			"elevation_map", len(elev) > 0)
	}

	// best_match stacks every model coarse to fine.
	all := make([]*shard.Splitter, 0, len(r.models))
	for _, m := range r.models {
		all = append(all, r.splitters[m.Name])
	}
	r.stacks["best_match"] = all

	return r, nil
}

// Stack returns the splitter stack for an API model name, coarse to fine.
func (r *Registry) Stack(name string) ([]*shard.Splitter, bool) {
	s, ok := r.stacks[name]
	return s, ok
}

// Models lists the registered models, coarse to fine.
func (r *Registry) Models() []*domain.Model { return r.models }

// Splitter returns the splitter for one model name.
func (r *Registry) Splitter(name string) (*shard.Splitter, bool) {
	s, ok := r.splitters[name]
	return s, ok
}

// CheckReadiness reports whether any model has published data, so load
// balancers keep traffic away from an empty archive.
func (r *Registry) CheckReadiness(_ context.Context) error {
	for _, m := range r.models {
		entries, err := os.ReadDir(m.OmfileDirectory)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".om") {
				return nil
			}
		}
	}
	return errors.New("no column files published yet")
}

// variableSet expands the surface and per-level file stems for a model.
func variableSet(levels []int, withLevelCloudCover bool) map[string]bool {
	set := make(map[string]bool)
	for _, v := range surfaceVariables {
		set[v] = true
	}
	for _, l := range levels {
		for _, v := range levelVariables {
			set[variableAtLevel(v, l)] = true
		}
		if withLevelCloudCover {
			set[variableAtLevel("cloudcover", l)] = true
		}
	}
	return set
}

func variableAtLevel(stem string, level int) string {
	return fmt.Sprintf("%s_%dhPa", stem, level)
}

// defaultModels is the built-in model set: a global driver plus two
// nested regional refinements.
func defaultModels(root string) []*domain.Model {
	gfs := &domain.Model{
		Name: "gfs025",
		Grid: grid.Regular{
			NxCells: 1440, NyCells: 721,
			Lat0: -90, Lon0: 0, DLat: 0.25, DLon: 0.25,
		},
		DtSeconds:       3600,
		OmFileLength:    240,
		OmfileDirectory: filepath.Join(root, "gfs025"),
		OmfileArchive:   filepath.Join(root, "gfs025", "yearly"),
		PressureLevels:  []int{250, 500, 700, 850, 1000},
		Variables:       variableSet([]int{250, 500, 700, 850, 1000}, false),
		Capabilities: domain.Capabilities{
			InterpolatePressureLevels: true,
			CloudCoverFromRH:          true,
			DiffuseFromShortwave:      true,
		},
	}

	iconEU := &domain.Model{
		Name: "icon_eu",
		Grid: grid.Regular{
			NxCells: 1097, NyCells: 657,
			Lat0: 29.5, Lon0: -23.5, DLat: 0.0625, DLon: 0.0625,
		},
		DtSeconds:       3600,
		OmFileLength:    168,
		OmfileDirectory: filepath.Join(root, "icon_eu"),
		PressureLevels:  []int{300, 500, 700, 850, 950, 1000},
		Variables:       variableSet([]int{300, 500, 700, 850, 950, 1000}, false),
		Capabilities: domain.Capabilities{
			InterpolatePressureLevels: true,
			CloudCoverFromRH:          true,
			DiffuseFromShortwave:      true,
		},
	}

	hrrr := &domain.Model{
		Name: "hrrr",
		Grid: grid.NewLambertConformal(grid.LambertConformal{
			NxCells: 1799, NyCells: 1059,
			RefLon: -97.5, RefLat: 38.5, StdLat1: 38.5, StdLat2: 38.5,
			FirstLat: 21.138, FirstLon: -122.72,
			Dx: 3000, Dy: 3000,
		}),
		DtSeconds:       3600,
		OmFileLength:    126,
		OmfileDirectory: filepath.Join(root, "hrrr"),
		Variables:       variableSet(nil, false),
		Capabilities: domain.Capabilities{
			DiffuseFromShortwave: true,
		},
	}

	return []*domain.Model{gfs, iconEU, hrrr}
}
