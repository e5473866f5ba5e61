package domain

import (
	"github.com/couchcryptid/forecast-point-service/internal/grid"
)

// Capabilities records what a model can synthesize when a variable or
// pressure level is absent from its output. The reader consults this
// table instead of dispatching on concrete model types.
type Capabilities struct {
	// InterpolatePressureLevels permits synthesizing a missing pressure
	// level from the nearest bracketing levels.
	InterpolatePressureLevels bool

	// CloudCoverFromRH derives pressure-level cloud cover from relative
	// humidity when the model ships no cloud cover on levels.
	CloudCoverFromRH bool

	// DiffuseFromShortwave derives diffuse radiation from global
	// shortwave radiation via a separation model.
	DiffuseFromShortwave bool
}

// Model is one NWP source: a grid, a native timestep, storage roots, and
// the shard width of its column files.
type Model struct {
	Name string
	Grid grid.Grid

	// DtSeconds is the native model step, e.g. 3600 or 10800.
	DtSeconds int64

	// OmFileLength is the number of timesteps per rolling column file.
	OmFileLength int

	// OmfileDirectory holds the rolling shards; OmfileArchive optionally
	// holds one file per calendar year for older timestamps.
	OmfileDirectory string
	OmfileArchive   string

	// Elevation is the grid's terrain map, empty when not shipped.
	Elevation grid.ElevationMap

	// PressureLevels lists the hPa levels the model publishes, ascending.
	PressureLevels []int

	// Variables names the column files this model produces.
	Variables map[string]bool

	// StoredUnits overrides a variable's default stored unit for models
	// that archive in a different unit than the catalog assumes.
	StoredUnits map[string]Unit

	Capabilities Capabilities
}

// HasVariable reports whether the model writes a column file for v.
func (m *Model) HasVariable(v Variable) bool {
	return m.Variables[v.File()]
}

// HasLevel reports whether the model publishes the given pressure level.
func (m *Model) HasLevel(level int) bool {
	for _, l := range m.PressureLevels {
		if l == level {
			return true
		}
	}
	return false
}

// BracketLevels returns the nearest published levels below and above the
// requested one. ok is false when the level is outside the published
// span or the model publishes fewer than two levels.
func (m *Model) BracketLevels(level int) (lo, hi int, ok bool) {
	lo, hi = 0, 0
	for _, l := range m.PressureLevels {
		if l < level && (lo == 0 || l > lo) {
			lo = l
		}
		if l > level && (hi == 0 || l < hi) {
			hi = l
		}
	}
	return lo, hi, lo != 0 && hi != 0
}

// ShardWidthSeconds is the time span covered by one rolling shard.
func (m *Model) ShardWidthSeconds() int64 {
	return int64(m.OmFileLength) * m.DtSeconds
}
