// Package travel estimates driving time from a user's location to an
// airport. The primary source is a Distance Matrix style HTTP API; a
// fallback source can be chained behind it for when the primary is down.
package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/models"
)

var (
	// ErrUnavailable indicates the travel-time source could not produce an
	// estimate for infrastructure reasons.
	ErrUnavailable = errors.New("travel time source unavailable")

	// ErrNoRoute indicates there is no driving route between the points.
	ErrNoRoute = errors.New("no driving route between points")
)

// Estimator produces driving-time estimates between two points.
type Estimator interface {
	DrivingTime(ctx context.Context, from, to models.Location) (time.Duration, error)
}

// Client queries a Distance Matrix style API for driving times.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client satisfies the Estimator interface at compile time.
var _ Estimator = (*Client)(nil)

// NewClient creates a driving-time client for the given API base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Wire types for the Distance Matrix response.
type matrixResponse struct {
	Status string      `json:"status"`
	Rows   []matrixRow `json:"rows"`
}

type matrixRow struct {
	Elements []matrixElement `json:"elements"`
}

type matrixElement struct {
	Status   string `json:"status"`
	Duration struct {
		Value int64 `json:"value"` // seconds
	} `json:"duration"`
}

// DrivingTime returns the estimated driving duration from from to to.
func (c *Client) DrivingTime(ctx context.Context, from, to models.Location) (time.Duration, error) {
	params := url.Values{}
	params.Set("origins", fmt.Sprintf("%f,%f", from.Latitude, from.Longitude))
	params.Set("destinations", fmt.Sprintf("%f,%f", to.Latitude, to.Longitude))
	params.Set("mode", "driving")
	params.Set("units", "imperial")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	var matrix matrixResponse
	if err := json.Unmarshal(body, &matrix); err != nil {
		return 0, fmt.Errorf("%w: parsing response: %v", ErrUnavailable, err)
	}

	if matrix.Status != "OK" {
		return 0, fmt.Errorf("%w: api status %q", ErrUnavailable, matrix.Status)
	}
	if len(matrix.Rows) == 0 || len(matrix.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("%w: empty matrix", ErrUnavailable)
	}

	element := matrix.Rows[0].Elements[0]
	if element.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %q", ErrNoRoute, element.Status)
	}

	estimate := time.Duration(element.Duration.Value) * time.Second
	c.logger.Debug("driving time estimated",
		zap.Duration("estimate", estimate))
	return estimate, nil
}

// Chain tries each estimator in order and returns the first successful
// estimate. ErrNoRoute is terminal: if the primary says there is no route,
// the fallback will not invent one.
type Chain struct {
	estimators []Estimator
	logger     *zap.Logger
}

// Ensure Chain satisfies the Estimator interface at compile time.
var _ Estimator = (*Chain)(nil)

// NewChain builds an estimator chain. At least one estimator is required.
func NewChain(logger *zap.Logger, estimators ...Estimator) *Chain {
	return &Chain{
		estimators: estimators,
		logger:     logger,
	}
}

// DrivingTime consults the chained estimators in order.
func (c *Chain) DrivingTime(ctx context.Context, from, to models.Location) (time.Duration, error) {
	var lastErr error
	for i, est := range c.estimators {
		estimate, err := est.DrivingTime(ctx, from, to)
		if err == nil {
			return estimate, nil
		}
		if errors.Is(err, ErrNoRoute) {
			return 0, err
		}
		c.logger.Warn("travel time source failed, trying next",
			zap.Int("source", i),
			zap.Error(err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no sources configured", ErrUnavailable)
	}
	return 0, lastErr
}
