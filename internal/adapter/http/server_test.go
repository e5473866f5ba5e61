package http

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockService struct {
	lastReq query.Request
	resp    *query.Response
	err     error
}

func (m *mockService) Run(_ context.Context, req query.Request) (*query.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return &query.Response{Latitude: req.Latitude, Longitude: req.Longitude}, nil
}

func newTestServer(svc ForecastService, ready ReadinessChecker) *Server {
	return NewServer(":0", svc, ready, slog.Default())
}

// --- tests ---

func TestHealthz(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	ready := &mockReadiness{}
	srv := newTestServer(&mockService{}, ready)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ready.err = errors.New("no data yet")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestForecastHappyPath(t *testing.T) {
	svc := &mockService{}
	srv := newTestServer(svc, &mockReadiness{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/forecast/gfs025?latitude=47.37&longitude=8.54&hourly=temperature_2m,relativehumidity_2m&windspeed_unit=kmh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gfs025", svc.lastReq.Model)
	assert.InDelta(t, 47.37, svc.lastReq.Latitude, 1e-9)
	assert.Equal(t, []string{"temperature_2m", "relativehumidity_2m"}, svc.lastReq.Hourly)
	assert.Equal(t, "kmh", svc.lastReq.WindspeedUnit)
	assert.True(t, math.IsNaN(svc.lastReq.Elevation), "unset elevation is NaN")
}

func TestForecastValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"missing latitude", "/v1/forecast/gfs025?longitude=8"},
		{"latitude over 90", "/v1/forecast/gfs025?latitude=91&longitude=8"},
		{"longitude over 180", "/v1/forecast/gfs025?latitude=47&longitude=181"},
		{"bad elevation", "/v1/forecast/gfs025?latitude=47&longitude=8&elevation=high"},
		{"bad forecast days", "/v1/forecast/gfs025?latitude=47&longitude=8&forecast_days=soon"},
		{"csv format unsupported", "/v1/forecast/gfs025?latitude=47&longitude=8&format=csv"},
	}
	srv := newTestServer(&mockService{}, &mockReadiness{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestForecastErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrGridMiss, http.StatusBadRequest},
		{query.ErrBadRequest, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv := newTestServer(&mockService{err: tc.err}, &mockReadiness{})
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/v1/forecast/gfs025?latitude=47&longitude=8", nil))
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["error"])
	}
}

func TestForecastGzip(t *testing.T) {
	srv := newTestServer(&mockService{}, &mockReadiness{})

	req := httptest.NewRequest(http.MethodGet, "/v1/forecast/gfs025?latitude=47&longitude=8", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(plain, &body))
	assert.InDelta(t, 47.0, body["latitude"], 1e-9)
}
