// Package mixer overlays several model readers for one query point.
// Readers are ordered coarse to fine; for every timestep the finest
// model with a finite value wins, so regional detail sits on top of the
// global fallback.
package mixer

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/grid"
	"github.com/couchcryptid/forecast-point-service/internal/reader"
	"github.com/couchcryptid/forecast-point-service/internal/shard"
	"golang.org/x/sync/errgroup"
)

// Mixer stacks per-model readers, highest resolution last.
type Mixer struct {
	readers []*reader.Reader
}

// New resolves the query point on every model, keeping the models whose
// grid covers it. splitters must be ordered coarse to fine. Returns
// domain.ErrGridMiss when no grid covers the point at all.
func New(splitters []*shard.Splitter, lat, lon, elevation float64, mode grid.SearchMode) (*Mixer, error) {
	m := &Mixer{}
	for _, s := range splitters {
		r, err := reader.New(s, lat, lon, elevation, mode)
		if err != nil {
			// A regional model simply not covering the point is expected.
			continue
		}
		m.readers = append(m.readers, r)
	}
	if len(m.readers) == 0 {
		return nil, domain.ErrGridMiss
	}
	return m, nil
}

// Readers returns the participating readers, coarse to fine.
func (m *Mixer) Readers() []*reader.Reader { return m.readers }

// Supports reports whether at least one stacked model can produce v.
func (m *Mixer) Supports(v domain.Variable) bool {
	for _, r := range m.readers {
		if r.Supports(v) {
			return true
		}
	}
	return false
}

// Prefetch fans willneed advice out to every underlying reader.
func (m *Mixer) Prefetch(ctx context.Context, vars []domain.Variable, tr domain.TimeRange) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range m.readers {
		for _, v := range vars {
			if !r.Supports(v) {
				continue
			}
			g.Go(func() error {
				return r.Prefetch(ctx, v, tr)
			})
		}
	}
	return g.Wait()
}

// Get overlays v across the stack: position-wise, the last reader with a
// finite sample wins. The unit comes from the first reader contributing
// any finite value; disagreement is a programmer error and fails the
// request with domain.ErrUnitMismatch.
func (m *Mixer) Get(ctx context.Context, v domain.Variable, tr domain.TimeRange) (reader.Series, error) {
	out := reader.Series{Values: make([]float32, tr.Count()), Unit: v.Unit}
	for i := range out.Values {
		out.Values[i] = float32(math.NaN())
	}

	unitSet := false
	for _, r := range m.readers {
		if !r.Supports(v) {
			continue
		}
		s, err := r.Get(ctx, v, tr)
		if err != nil {
			return reader.Series{}, fmt.Errorf("model %s: %w", r.Model().Name, err)
		}

		contributed := false
		for i, x := range s.Values {
			if !math.IsNaN(float64(x)) {
				out.Values[i] = x
				contributed = true
			}
		}
		if contributed {
			if unitSet && s.Unit != out.Unit {
				return reader.Series{}, fmt.Errorf("%w: %s vs %s for %s",
					domain.ErrUnitMismatch, out.Unit, s.Unit, v.Name)
			}
			out.Unit = s.Unit
			unitSet = true
		}
	}
	return out, nil
}
