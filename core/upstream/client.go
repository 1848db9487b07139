package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ftc-sync/core/metrics"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnexpectedStatus is returned for non-200 API responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

const breakerName = "ftc-api"

// Client talks to the FTC Events API. It is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	token    string
	timeout  time.Duration

	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient creates a client with request pacing and a circuit breaker.
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	timeout := time.Duration(cfg.PageTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Client errors mean the request was wrong, not that the API is down.
		IsSuccessful: func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < http.StatusInternalServerError && statusErr.Code != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		token:    cfg.Token,
		timeout:  timeout,
		http:     &http.Client{},
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  breaker,
		logger:   logger,
	}
}

// StatusError describes a non-200 API response.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s (%s)", ErrUnexpectedStatus, e.Code, http.StatusText(e.Code), e.Path)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// ListTeams returns one page of a season's teams. Pages are 1-based.
func (c *Client) ListTeams(ctx context.Context, season, page int) (*TeamsPage, error) {
	query := url.Values{}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}

	var resp TeamsPage
	if err := c.getJSON(ctx, "teams", fmt.Sprintf("/%d/teams", season), query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEvents returns every event of a season.
func (c *Client) ListEvents(ctx context.Context, season int) ([]Event, error) {
	var resp eventsResponse
	if err := c.getJSON(ctx, "events", fmt.Sprintf("/%d/events", season), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		return []Event{}, nil
	}
	return resp.Events, nil
}

// ListEventMatches returns the match results of one event, each tagged with eventCode.
func (c *Client) ListEventMatches(ctx context.Context, season int, eventCode string) ([]Match, error) {
	var resp matchesResponse
	path := fmt.Sprintf("/%d/matches/%s", season, url.PathEscape(eventCode))
	if err := c.getJSON(ctx, "matches", path, nil, &resp); err != nil {
		return nil, err
	}

	matches := resp.Matches
	if matches == nil {
		matches = []Match{}
	}
	for i := range matches {
		matches[i].EventCode = eventCode
	}
	return matches, nil
}

// getJSON performs one paced, breaker-guarded GET bounded by the page timeout.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})
	elapsed := time.Since(start)

	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.ObserveUpstream(endpoint, result, elapsed)
		c.logger.Debug("Upstream request failed",
			zap.String("path", path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	metrics.ObserveUpstream(endpoint, "success", elapsed)

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return body, nil
}
