package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/observability"
	"github.com/couchcryptid/forecast-point-service/internal/shard"
)

// ModelStore exposes the registered models and their splitters.
// Implemented by registry.Registry.
type ModelStore interface {
	Models() []*domain.Model
	Splitter(name string) (*shard.Splitter, bool)
}

// Pipeline runs fetch-write-publish cycles over every registered model.
type Pipeline struct {
	reg       ModelStore
	source    RunSource
	publisher RunPublisher // nil disables run events
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	// lastIngested tracks the newest timestep written per model so the
	// next cycle only asks upstream for what is new.
	lastIngested map[string]domain.Timestamp
}

// New creates a Pipeline. Pass a nil publisher to disable run events.
func New(reg ModelStore, source RunSource, publisher RunPublisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		reg:          reg,
		source:       source,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
		lastIngested: make(map[string]domain.Timestamp),
	}
}

// CheckReadiness returns nil once at least one cycle has written data.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("ingest has not completed a cycle yet")
	}
	return nil
}

// Cycle fetches and writes the newest run of every model. Models fail
// independently; the first error is returned after all models ran.
func (p *Pipeline) Cycle(ctx context.Context) error {
	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)

	var firstErr error
	for _, m := range p.reg.Models() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.cycleModel(ctx, m); err != nil {
			p.metrics.IngestCycles.WithLabelValues(m.Name, "error").Inc()
			p.logger.Error("ingest cycle failed", "model", m.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.metrics.IngestCycles.WithLabelValues(m.Name, "success").Inc()
	}
	return firstErr
}

func (p *Pipeline) cycleModel(ctx context.Context, m *domain.Model) error {
	start := time.Now()

	frames, err := p.source.FetchRun(ctx, m, p.lastIngested[m.Name])
	if err != nil {
		return fmt.Errorf("fetch run: %w", err)
	}
	if len(frames) == 0 {
		p.logger.Debug("no new frames", "model", m.Name)
		return nil
	}

	splitter, ok := p.reg.Splitter(m.Name)
	if !ok {
		return fmt.Errorf("no splitter registered for %s", m.Name)
	}

	var names []string
	timesteps := 0
	newest := p.lastIngested[m.Name]
	for _, f := range frames {
		tr, err := f.TimeRange()
		if err != nil {
			return fmt.Errorf("frame %s: %w", f.Variable, err)
		}
		v, ok := domain.ParseVariableName(f.Variable)
		if !ok {
			p.logger.Warn("skipping unknown frame variable", "model", m.Name, "variable", f.Variable)
			continue
		}
		if err := splitter.WriteFrame(v, tr, f.Values); err != nil {
			return fmt.Errorf("write %s: %w", f.Variable, err)
		}
		p.metrics.FramesWritten.Inc()
		names = append(names, f.Variable)
		timesteps = max(timesteps, tr.Count())
		if tr.End > newest {
			newest = tr.End
		}
	}
	if len(names) == 0 {
		return nil
	}
	p.lastIngested[m.Name] = newest
	p.ready.Store(true)

	if p.publisher != nil {
		ev := RunEvent{
			Model:      m.Name,
			Variables:  names,
			Timesteps:  timesteps,
			IngestedAt: time.Now().UTC(),
		}
		if err := p.publisher.PublishRun(ctx, ev); err != nil {
			// Data is already durable; a lost event only delays consumers.
			p.logger.Warn("publish run event failed", "model", m.Name, "error", err)
		}
	}

	p.metrics.IngestCycleDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("ingest cycle complete", "model", m.Name,
		"frames", len(names), "timesteps", timesteps,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}
