// Package reader serves point-oriented variable access for one model:
// it resolves the query position to a grid cell, fetches raw series
// through the shard layer, synthesizes missing pressure levels, derives
// absent variables where the model's capability table allows, and
// resamples onto the query step.
package reader

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/grid"
	"github.com/couchcryptid/forecast-point-service/internal/interp"
	"github.com/couchcryptid/forecast-point-service/internal/meteo"
	"github.com/couchcryptid/forecast-point-service/internal/shard"
)

// Series is a resampled value vector with its wire unit.
type Series struct {
	Values []float32
	Unit   domain.Unit
}

// Reader is bound to one (model, grid point) pair. Readers are cheap,
// created per request, and not safe for concurrent use.
type Reader struct {
	model    *domain.Model
	splitter *shard.Splitter
	point    grid.Point

	lat, lon        float64
	targetElevation float64
}

// New resolves the query position on the model's grid. Returns
// domain.ErrGridMiss when the position is outside the grid.
func New(splitter *shard.Splitter, lat, lon, elevation float64, mode grid.SearchMode) (*Reader, error) {
	m := splitter.Model()
	p, ok := grid.FindPoint(m.Grid, m.Elevation, lat, lon, elevation, mode)
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.Name, domain.ErrGridMiss)
	}
	return &Reader{
		model:           m,
		splitter:        splitter,
		point:           p,
		lat:             lat,
		lon:             lon,
		targetElevation: elevation,
	}, nil
}

// Model returns the model this reader serves.
func (r *Reader) Model() *domain.Model { return r.model }

// GridElevation returns the terrain height of the resolved grid cell.
func (r *Reader) GridElevation() float32 { return r.point.Elevation }

// Supports reports whether Get can produce v for this model, directly or
// through synthesis.
func (r *Reader) Supports(v domain.Variable) bool {
	if r.model.HasVariable(v) {
		return true
	}
	if v.Level > 0 {
		if v.Kind == domain.KindCloudCover && r.model.Capabilities.CloudCoverFromRH &&
			r.supportsLevel(domain.RelativeHumidityLevel.AtLevel(v.Level)) {
			return true
		}
		if r.model.Capabilities.InterpolatePressureLevels {
			if _, _, ok := r.model.BracketLevels(v.Level); ok {
				return true
			}
		}
		return false
	}
	if v.Kind == domain.KindDiffuseRadiation && r.model.Capabilities.DiffuseFromShortwave {
		return r.model.HasVariable(domain.ShortwaveRadiation)
	}
	return false
}

// supportsLevel is Supports without the derivation branches, used to
// avoid mutual recursion when checking derivation inputs.
func (r *Reader) supportsLevel(v domain.Variable) bool {
	if r.model.HasVariable(v) {
		return true
	}
	if r.model.Capabilities.InterpolatePressureLevels {
		_, _, ok := r.model.BracketLevels(v.Level)
		return ok
	}
	return false
}

// sourceRange maps the query range onto the model step, widened by the
// kernel padding when resampling will run.
func (r *Reader) sourceRange(v domain.Variable, tr domain.TimeRange) (domain.TimeRange, bool, error) {
	if tr.Dt == r.model.DtSeconds {
		return tr, false, nil
	}
	if tr.Dt > r.model.DtSeconds {
		return domain.TimeRange{}, false, fmt.Errorf("%w: query dt=%d, model %s dt=%d",
			domain.ErrUpsamplingForbidden, tr.Dt, r.model.Name, r.model.DtSeconds)
	}
	if r.model.DtSeconds%tr.Dt != 0 {
		return domain.TimeRange{}, false, fmt.Errorf("%w: query dt=%d does not divide model dt=%d",
			domain.ErrUpsamplingForbidden, tr.Dt, r.model.DtSeconds)
	}
	// The source window must include the sample at or after the last
	// destination step, so the end rounds past it rather than to it.
	dtSrc := r.model.DtSeconds
	src := domain.TimeRange{
		Start: tr.Start.Floor(dtSrc),
		End:   (tr.End - domain.Timestamp(tr.Dt)).Floor(dtSrc) + domain.Timestamp(2*dtSrc),
		Dt:    dtSrc,
	}
	return src.Widen(interp.Padding(v.Interp) - 1), true, nil
}

// Prefetch pushes willneed advice for every shard chunk Get will touch.
func (r *Reader) Prefetch(ctx context.Context, v domain.Variable, tr domain.TimeRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, _, err := r.sourceRange(v, tr)
	if err != nil {
		return err
	}
	for _, rv := range r.rawInputs(v) {
		r.splitter.WillNeed(rv, r.point.Index, src)
	}
	return nil
}

// rawInputs lists the column files Get will actually read for v.
func (r *Reader) rawInputs(v domain.Variable) []domain.Variable {
	if r.model.HasVariable(v) {
		return []domain.Variable{v}
	}
	if v.Level > 0 {
		if v.Kind == domain.KindCloudCover && r.model.Capabilities.CloudCoverFromRH {
			return r.rawInputs(domain.RelativeHumidityLevel.AtLevel(v.Level))
		}
		if lo, hi, ok := r.model.BracketLevels(v.Level); ok && r.model.Capabilities.InterpolatePressureLevels {
			return []domain.Variable{v.AtLevel(lo), v.AtLevel(hi)}
		}
		return nil
	}
	if v.Kind == domain.KindDiffuseRadiation && r.model.Capabilities.DiffuseFromShortwave {
		return []domain.Variable{domain.ShortwaveRadiation}
	}
	return nil
}

// Get returns tr.Count() values of v at the query point in v's wire
// unit, elevation-corrected and resampled as needed.
func (r *Reader) Get(ctx context.Context, v domain.Variable, tr domain.TimeRange) (Series, error) {
	src, resample, err := r.sourceRange(v, tr)
	if err != nil {
		return Series{}, err
	}

	values, err := r.fetch(ctx, v, src)
	if err != nil {
		return Series{}, err
	}

	unit := r.normalizeUnit(v, values)
	r.correctElevation(v, values)

	if resample {
		values = interp.Resample(values, src, tr, v, r.lat, r.lon)
	}
	return Series{Values: values, Unit: unit}, nil
}

// fetch reads the raw series at the model step, synthesizing when the
// model lacks the variable.
func (r *Reader) fetch(ctx context.Context, v domain.Variable, src domain.TimeRange) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.model.HasVariable(v) {
		return r.splitter.Read(v, r.point.Index, src)
	}
	if v.Level > 0 {
		return r.fetchLevel(ctx, v, src)
	}
	if v.Kind == domain.KindDiffuseRadiation && r.model.Capabilities.DiffuseFromShortwave &&
		r.model.HasVariable(domain.ShortwaveRadiation) {
		return r.fetchDiffuse(ctx, src)
	}
	return nil, fmt.Errorf("%s/%s: %w", r.model.Name, v.Name, domain.ErrVariableUnsupported)
}

// fetchLevel synthesizes a pressure-level variable the model does not
// publish at the requested level.
func (r *Reader) fetchLevel(ctx context.Context, v domain.Variable, src domain.TimeRange) ([]float32, error) {
	if v.Kind == domain.KindCloudCover && r.model.Capabilities.CloudCoverFromRH &&
		r.supportsLevel(domain.RelativeHumidityLevel.AtLevel(v.Level)) {
		rh, err := r.fetch(ctx, domain.RelativeHumidityLevel.AtLevel(v.Level), src)
		if err != nil {
			return nil, err
		}
		for i, x := range rh {
			rh[i] = float32(meteo.CloudCoverFromRelativeHumidity(float64(x)))
		}
		return rh, nil
	}

	lo, hi, ok := r.model.BracketLevels(v.Level)
	if !ok || !r.model.Capabilities.InterpolatePressureLevels {
		return nil, fmt.Errorf("%s/%s@%dhPa: %w", r.model.Name, v.Name, v.Level, domain.ErrVariableUnsupported)
	}

	a, err := r.fetch(ctx, v.AtLevel(lo), src)
	if err != nil {
		return nil, err
	}
	b, err := r.fetch(ctx, v.AtLevel(hi), src)
	if err != nil {
		return nil, err
	}

	w := float64(v.Level-lo) / float64(hi-lo)
	for i := range a {
		a[i] = blendLevel(v.Kind, float64(a[i]), float64(b[i]), w)
	}
	return a, nil
}

// blendLevel combines bracketing-level samples according to the
// variable's synthesis rule.
func blendLevel(kind domain.VariableKind, lo, hi, w float64) float32 {
	switch kind {
	case domain.KindGeopotentialHeight:
		// Heights interpolate in pressure space: the vertical coordinate
		// is pressure, not metres.
		p := (1-w)*meteo.PressureFromHeight(lo) + w*meteo.PressureFromHeight(hi)
		return float32(meteo.HeightFromPressure(p))
	case domain.KindRelativeHumidity:
		return float32((lo + hi) / 2)
	default:
		return float32((1-w)*lo + w*hi)
	}
}

// fetchDiffuse separates diffuse radiation out of global shortwave.
func (r *Reader) fetchDiffuse(ctx context.Context, src domain.TimeRange) ([]float32, error) {
	sw, err := r.fetch(ctx, domain.ShortwaveRadiation, src)
	if err != nil {
		return nil, err
	}
	for i, x := range sw {
		t := src.At(i).Time()
		etr := meteo.AverageExtraterrestrialRadiation(t.Add(-dtDuration(src.Dt)), t, r.lat, r.lon)
		sw[i] = float32(meteo.DiffuseRadiation(float64(x), etr))
	}
	return sw, nil
}

func dtDuration(s int64) time.Duration { return time.Duration(s) * time.Second }

// normalizeUnit converts stored units to wire units in place and
// returns the unit the series actually carries. A stored unit with no
// known conversion passes through unconverted; the mixer fails fast when
// stacked models then disagree.
func (r *Reader) normalizeUnit(v domain.Variable, values []float32) domain.Unit {
	stored := v.StoredUnit
	if u, ok := r.model.StoredUnits[v.File()]; ok {
		stored = u
	}
	switch {
	case stored == v.Unit:
		return v.Unit
	case stored == domain.UnitPascal && v.Unit == domain.UnitHectopascal:
		for i := range values {
			values[i] /= 100
		}
		return v.Unit
	default:
		return stored
	}
}

// correctElevation applies the lapse-rate adjustment from the grid cell
// terrain height to the query elevation.
func (r *Reader) correctElevation(v domain.Variable, values []float32) {
	if !v.ElevationCorrectable || v.Kind != domain.KindTemperature || v.Unit != domain.UnitCelsius {
		return
	}
	ge := float64(r.point.Elevation)
	if math.IsNaN(ge) || math.IsNaN(r.targetElevation) || r.point.Elevation == grid.SeaSentinel {
		return
	}
	delta := float32((ge - r.targetElevation) * meteo.LapseRate)
	for i := range values {
		values[i] += delta
	}
}
