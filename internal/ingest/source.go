package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/sony/gobreaker"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")
)

// HTTPSource fetches decoded frames from the upstream decoder service,
// with retries, exponential backoff, and a circuit breaker so a broken
// upstream cannot pile up requests across cycles.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewHTTPSource creates a frame source for the given base URL, expected
// to serve GET {base}/{model}/frames?since=<unix>.
func NewHTTPSource(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPSource {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "frame-upstream",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &HTTPSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		circuit:    cb,
		logger:     logger,
	}
}

// FetchRun asks upstream for every frame newer than since.
func (s *HTTPSource) FetchRun(ctx context.Context, model *domain.Model, since domain.Timestamp) ([]Frame, error) {
	u := fmt.Sprintf("%s/%s/frames?%s", s.baseURL, url.PathEscape(model.Name),
		url.Values{"since": {strconv.FormatInt(int64(since), 10)}}.Encode())

	const maxRetries = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		frames, err := s.fetchOnce(ctx, u)
		if err == nil {
			return frames, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		s.logger.Warn("frame fetch failed, retrying",
			"model", model.Name, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("fetch frames after %d retries: %w", maxRetries, lastErr)
}

func (s *HTTPSource) fetchOnce(ctx context.Context, u string) ([]Frame, error) {
	result, err := s.circuit.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		var frames []Frame
		if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
			return nil, fmt.Errorf("decode frames: %w", err)
		}
		return frames, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Frame), nil
}

// retryable reports whether another attempt can help.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, errUnexpected) {
		return false
	}
	return true
}
