// Package domain models the on-disk forecast archive and the vocabulary
// shared by the storage, reader, and mixer layers.
//
// # Archive layout
//
// Each NWP model (a [Model]) owns a directory of column files. A column
// file holds one variable for every grid point over a fixed number of
// timesteps:
//
//	<omfileDirectory>/<variable>_<shardIndex>.om    rolling archive
//	<omfileArchive>/<variable>_<year>.om            yearly archive, optional
//	<omfileDirectory>/elevation.om                  grid elevation map, optional
//
// Shard k of a variable covers timesteps
// [k*omFileLength*dt, (k+1)*omFileLength*dt) counted from the Unix epoch,
// so a timestamp maps to a shard by integer division alone. Timestamps
// older than the oldest rolling shard are served from the yearly archive
// when one is configured.
//
// # Time conventions
//
// A [Timestamp] is a UTC Unix epoch second. A [TimeRange] is half-open
// ([TimeRange.Start] inclusive, [TimeRange.End] exclusive) and both ends
// are aligned to its step. The reader and mixer only operate on aligned
// ranges; the HTTP layer aligns before calling down.
//
// # Values and missing data
//
// Cells are stored as int16, scaled by the variable's scalefactor.
// Missing data is NaN everywhere above the codec and math.MinInt16 on
// disk. Missing is never an error: gaps, absent shards, and absent
// variables all decode to NaN and propagate through derivations.
//
// # Units
//
// Variables declare SI-ish units as served on the wire: temperatures in
// °C, pressure in hPa (converted from Pa on read when a model stores
// pascal), wind in m/s, radiation in W/m², precipitation in mm.
package domain
