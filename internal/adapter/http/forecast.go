package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/query"
)

// queryTimeout is the per-request deadline the storage core checks
// before every shard access.
const queryTimeout = 10 * time.Second

// ForecastService executes a validated point query.
type ForecastService interface {
	Run(ctx context.Context, req query.Request) (*query.Response, error)
}

func (s *Server) handleForecast(svc ForecastService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
		defer cancel()

		req, err := parseForecastRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := svc.Run(ctx, req)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, resp)
		case errors.Is(err, query.ErrBadRequest):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrGridMiss):
			writeError(w, http.StatusBadRequest, domain.ErrGridMiss)
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, errors.New("query deadline exceeded"))
		default:
			s.logger.Error("forecast query failed", "model", req.Model, "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		}
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": true, "reason": err.Error()})
}

// parseForecastRequest validates the query string into a query.Request.
func parseForecastRequest(r *http.Request) (query.Request, error) {
	q := r.URL.Query()

	lat, err := parseFloat(q.Get("latitude"))
	if err != nil {
		return query.Request{}, badParam("latitude")
	}
	lon, err := parseFloat(q.Get("longitude"))
	if err != nil {
		return query.Request{}, badParam("longitude")
	}
	if math.Abs(lat) > 90 {
		return query.Request{}, badParam("latitude")
	}
	if math.Abs(lon) > 180 {
		return query.Request{}, badParam("longitude")
	}

	elevation := math.NaN()
	if v := q.Get("elevation"); v != "" {
		if elevation, err = parseFloat(v); err != nil {
			return query.Request{}, badParam("elevation")
		}
	}

	forecastDays, err := parseIntDefault(q.Get("forecast_days"), 0)
	if err != nil || (q.Get("forecast_days") != "" && forecastDays <= 0) {
		return query.Request{}, badParam("forecast_days")
	}
	pastDays, err := parseIntDefault(q.Get("past_days"), 0)
	if err != nil {
		return query.Request{}, badParam("past_days")
	}

	req := query.Request{
		Model:     r.PathValue("model"),
		Latitude:  lat,
		Longitude: lon,
		Elevation: elevation,

		Hourly: splitList(q["hourly"]),

		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		ForecastDays: forecastDays,
		PastDays:     pastDays,

		CurrentWeather: q.Get("current_weather") == "true",

		TemperatureUnit:   enumOrDefault(q.Get("temperature_unit"), "celsius", "celsius", "fahrenheit"),
		WindspeedUnit:     enumOrDefault(q.Get("windspeed_unit"), "ms", "ms", "kmh", "mph", "kn"),
		PrecipitationUnit: enumOrDefault(q.Get("precipitation_unit"), "mm", "mm", "inch"),
		TimeFormat:        enumOrDefault(q.Get("timeformat"), "iso8601", "iso8601", "unixtime"),
	}

	if f := q.Get("format"); f != "" && f != "json" {
		return query.Request{}, badParam("format")
	}
	return req, nil
}

func badParam(name string) error {
	return &paramError{name: name}
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "invalid parameter " + e.name }

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// splitList flattens repeated and comma-separated list parameters:
// hourly=a,b&hourly=c yields [a b c].
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func enumOrDefault(v, def string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
