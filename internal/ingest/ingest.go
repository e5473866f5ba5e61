// Package ingest pulls decoded model-run frames from an upstream source
// on a schedule, merges them into the rolling archive through the shard
// layer, and announces completed runs.
package ingest

import (
	"context"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
)

// Frame is one grid-shaped block of decoded model output: a full-grid
// series for a single variable over an aligned time range, row-major
// with time as the inner dimension.
type Frame struct {
	Variable  string           `json:"variable"`
	Start     domain.Timestamp `json:"start"`
	End       domain.Timestamp `json:"end"`
	DtSeconds int64            `json:"dt_seconds"`
	Values    []float32        `json:"values"`
}

// TimeRange returns the frame's validated time range.
func (f Frame) TimeRange() (domain.TimeRange, error) {
	return domain.NewTimeRange(f.Start, f.End, f.DtSeconds)
}

// RunEvent announces a completed ingest cycle for one model.
type RunEvent struct {
	Model      string    `json:"model"`
	Variables  []string  `json:"variables"`
	Timesteps  int       `json:"timesteps"`
	IngestedAt time.Time `json:"ingested_at"`
}

// RunSource fetches the frames of the newest model run. The GRIB
// download and decode live behind this interface.
type RunSource interface {
	FetchRun(ctx context.Context, model *domain.Model, since domain.Timestamp) ([]Frame, error)
}

// RunPublisher announces completed ingest cycles downstream.
type RunPublisher interface {
	PublishRun(ctx context.Context, ev RunEvent) error
}
