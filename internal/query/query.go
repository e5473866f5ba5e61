// Package query turns a validated forecast request into a response: it
// resolves the time window against the clock, stacks the requested
// model's readers through the mixer, and converts units for the wire.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/grid"
	"github.com/couchcryptid/forecast-point-service/internal/mixer"
	"github.com/couchcryptid/forecast-point-service/internal/observability"
	"github.com/couchcryptid/forecast-point-service/internal/reader"
	"github.com/couchcryptid/forecast-point-service/internal/registry"
	"gonum.org/v1/gonum/floats"
)

// Defaults and limits for the query window.
const (
	DefaultForecastDays = 7
	MaxForecastDays     = 16
	hourlyStep          = 3600
)

// Request is a validated point forecast query.
type Request struct {
	Model     string
	Latitude  float64
	Longitude float64
	Elevation float64 // NaN when the client did not supply one

	Hourly []string

	StartDate, EndDate string // YYYY-MM-DD, both or neither
	ForecastDays       int
	PastDays           int

	CurrentWeather bool

	TemperatureUnit   string // celsius|fahrenheit
	WindspeedUnit     string // ms|kmh|mph|kn
	PrecipitationUnit string // mm|inch
	TimeFormat        string // iso8601|unixtime
}

// CurrentWeather is the synthesized conditions block.
type CurrentWeather struct {
	Temperature   Float `json:"temperature"`
	Windspeed     Float `json:"windspeed"`
	Winddirection Float `json:"winddirection"`
	Time          any   `json:"time"`
}

// Response mirrors the JSON document served to clients.
type Response struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Elevation        float64 `json:"elevation"`
	GenerationTimeMs float64 `json:"generationtime_ms"`

	Hourly      map[string]any    `json:"hourly,omitempty"`
	HourlyUnits map[string]string `json:"hourly_units,omitempty"`

	CurrentWeather *CurrentWeather `json:"current_weather,omitempty"`
}

// Service executes forecast queries against the model registry.
type Service struct {
	reg     *registry.Registry
	metrics *observability.Metrics
}

// New creates a query service.
func New(reg *registry.Registry, metrics *observability.Metrics) *Service {
	return &Service{reg: reg, metrics: metrics}
}

// Run executes one query. Validation errors, unknown models, and grid
// misses surface as errors the HTTP layer maps onto status codes.
func (s *Service) Run(ctx context.Context, req Request) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		s.metrics.QueriesServed.WithLabelValues(req.Model, statusLabel(err)).Inc()
	}()

	stack, ok := s.reg.Stack(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", ErrBadRequest, req.Model)
	}

	vars, err := resolveVariables(req.Hourly)
	if err != nil {
		return nil, err
	}

	tr, err := resolveWindow(req)
	if err != nil {
		return nil, err
	}

	mx, err := mixer.New(stack, req.Latitude, req.Longitude, req.Elevation, searchMode(req))
	if err != nil {
		return nil, err
	}

	need := vars
	if req.CurrentWeather {
		need = append(append([]domain.Variable{}, vars...),
			domain.Temperature2m, domain.WindU10m, domain.WindV10m)
	}
	if err = mx.Prefetch(ctx, need, tr); err != nil {
		return nil, err
	}

	resp = &Response{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Elevation: gridElevation(mx),
	}

	if len(vars) > 0 {
		resp.Hourly = map[string]any{"time": marshalTimes(tr, req.TimeFormat)}
		resp.HourlyUnits = map[string]string{}
		for _, v := range vars {
			var series reader.Series
			if series, err = mx.Get(ctx, v, tr); err != nil {
				return nil, err
			}
			values, unit := convertUnit(v, series.Values, req)
			resp.Hourly[v.Name] = Floats(values)
			resp.HourlyUnits[v.Name] = unit
			s.metrics.VariablesServed.Inc()
		}
	}

	if req.CurrentWeather {
		var cw *CurrentWeather
		if cw, err = s.currentWeather(ctx, mx, req); err != nil {
			return nil, err
		}
		resp.CurrentWeather = cw
	}

	resp.GenerationTimeMs = float64(time.Since(start).Microseconds()) / 1000
	s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	return resp, nil
}

// currentWeather reads the most recent completed hour.
func (s *Service) currentWeather(ctx context.Context, mx *mixer.Mixer, req Request) (*CurrentWeather, error) {
	now := domain.Now().Floor(hourlyStep)
	tr := domain.TimeRange{Start: now, End: now + hourlyStep, Dt: hourlyStep}

	temp, err := mx.Get(ctx, domain.Temperature2m, tr)
	if err != nil {
		return nil, err
	}
	u, err := mx.Get(ctx, domain.WindU10m, tr)
	if err != nil {
		return nil, err
	}
	v, err := mx.Get(ctx, domain.WindV10m, tr)
	if err != nil {
		return nil, err
	}

	t, _ := convertUnit(domain.Temperature2m, temp.Values, req)
	uw := float64(u.Values[0])
	vw := float64(v.Values[0])
	speed := math.Hypot(uw, vw)
	dir := math.Mod(math.Atan2(-uw, -vw)*180/math.Pi+360, 360)

	swind, _ := convertUnit(domain.WindU10m, []float32{float32(speed)}, req)

	return &CurrentWeather{
		Temperature:   Float(t[0]),
		Windspeed:     Float(swind[0]),
		Winddirection: Float(round1(dir)),
		Time:          marshalTime(now, req.TimeFormat),
	}, nil
}

// convertUnit maps a series from wire units to the client's requested
// units and returns the unit label.
func convertUnit(v domain.Variable, in []float32, req Request) ([]float64, string) {
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = float64(x)
	}

	unit := v.Unit.String()
	switch {
	case v.Unit == domain.UnitCelsius && req.TemperatureUnit == "fahrenheit":
		floats.Scale(1.8, out)
		floats.AddConst(32, out)
		unit = "°F"
	case v.Unit == domain.UnitMetrePerSecond && req.WindspeedUnit == "kmh":
		floats.Scale(3.6, out)
		unit = "km/h"
	case v.Unit == domain.UnitMetrePerSecond && req.WindspeedUnit == "mph":
		floats.Scale(2.23694, out)
		unit = "mph"
	case v.Unit == domain.UnitMetrePerSecond && req.WindspeedUnit == "kn":
		floats.Scale(1.94384, out)
		unit = "kn"
	case v.Unit == domain.UnitMillimetre && req.PrecipitationUnit == "inch":
		floats.Scale(1/25.4, out)
		unit = "inch"
	}
	for i := range out {
		out[i] = round2(out[i])
	}
	return out, unit
}

// resolveVariables parses the hourly variable list against the catalog,
// accepting pressure-level names like temperature_850hPa.
func resolveVariables(names []string) ([]domain.Variable, error) {
	vars := make([]domain.Variable, 0, len(names))
	for _, name := range names {
		v, err := lookupVariable(name)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

func lookupVariable(name string) (domain.Variable, error) {
	if v, ok := domain.ParseVariableName(name); ok {
		return v, nil
	}
	return domain.Variable{}, fmt.Errorf("%w: unknown variable %q", ErrBadRequest, name)
}

// resolveWindow computes the hourly query range from explicit dates or
// from now-relative day counts.
func resolveWindow(req Request) (domain.TimeRange, error) {
	if req.StartDate != "" || req.EndDate != "" {
		if req.StartDate == "" || req.EndDate == "" {
			return domain.TimeRange{}, fmt.Errorf("%w: start_date and end_date must be given together", ErrBadRequest)
		}
		s, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("%w: bad start_date", ErrBadRequest)
		}
		e, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return domain.TimeRange{}, fmt.Errorf("%w: bad end_date", ErrBadRequest)
		}
		if e.Before(s) {
			return domain.TimeRange{}, fmt.Errorf("%w: end_date before start_date", ErrBadRequest)
		}
		return domain.NewTimeRange(
			domain.Timestamp(s.Unix()),
			domain.Timestamp(e.AddDate(0, 0, 1).Unix()),
			hourlyStep)
	}

	days := req.ForecastDays
	if days == 0 {
		days = DefaultForecastDays
	}
	if days < 1 || days > MaxForecastDays {
		return domain.TimeRange{}, fmt.Errorf("%w: forecast_days must be in (0,%d]", ErrBadRequest, MaxForecastDays)
	}
	if req.PastDays < 0 || req.PastDays > 92 {
		return domain.TimeRange{}, fmt.Errorf("%w: past_days out of range", ErrBadRequest)
	}

	today := domain.Now().Floor(86400)
	start := today - domain.Timestamp(int64(req.PastDays)*86400)
	end := today + domain.Timestamp(int64(days)*86400)
	return domain.NewTimeRange(start, end, hourlyStep)
}

func searchMode(req Request) grid.SearchMode {
	if math.IsNaN(req.Elevation) {
		return grid.ModeNearest
	}
	return grid.ModeTerrainOptimised
}

func gridElevation(mx *mixer.Mixer) float64 {
	readers := mx.Readers()
	// Finest covering model's terrain height, matching the value the
	// mixer's winning samples were corrected against.
	for i := len(readers) - 1; i >= 0; i-- {
		if e := float64(readers[i].GridElevation()); !math.IsNaN(e) && e != float64(grid.SeaSentinel) {
			return e
		}
	}
	return 0
}

func marshalTimes(tr domain.TimeRange, format string) []any {
	out := make([]any, tr.Count())
	for i := range out {
		out[i] = marshalTime(tr.At(i), format)
	}
	return out
}

func marshalTime(t domain.Timestamp, format string) any {
	if format == "unixtime" {
		return int64(t)
	}
	return t.Time().Format("2006-01-02T15:04")
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrGridMiss):
		return "grid_miss"
	default:
		return "error"
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
