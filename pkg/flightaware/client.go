// Package flightaware is a client for the FlightAware FlightXML flight-data
// API: flight status lookups and push-alert subscription management. Every
// call is billed, so the client rate-limits itself and reports transport
// failures to an optional FailureRecorder for outage detection.
package flightaware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "justlanded-tracker/1.0"

// howMany bounds the number of results returned by a flight lookup. A
// flight number rarely has more than a handful of upcoming legs.
const howMany = 15

var (
	// ErrUnavailable indicates the provider could not be reached or answered
	// with a retriable server error. These failures feed outage detection.
	ErrUnavailable = errors.New("flight data provider unavailable")

	// ErrFlightGone indicates the provider answered but no longer reports
	// the requested flight. Flights age out of the provider's data a few
	// hours after landing.
	ErrFlightGone = errors.New("flight no longer reported by provider")

	// ErrRejected indicates the provider refused the request, for example an
	// unknown alert ID or malformed parameters. Not a provider failure.
	ErrRejected = errors.New("request rejected by provider")
)

// FailureRecorder receives a signal for every provider transport failure.
// The outage tracker implements it; a nil recorder disables reporting.
type FailureRecorder interface {
	RecordFailure()
}

// FlightInfo is the provider's current view of a single flight leg.
type FlightInfo struct {
	FlightID           string
	FlightNumber       string
	Origin             string
	Destination        string
	ScheduledDeparture time.Time
	EstimatedArrival   time.Time
	DepartedAt         *time.Time
	LandedAt           *time.Time
	Canceled           bool
	Diverted           bool
}

// Alert is one push-alert subscription registered with the provider.
type Alert struct {
	ID           string
	FlightID     string
	FlightNumber string
}

// Client is the operation set the scheduling components need from the
// flight-data provider.
type Client interface {
	// LookupStatus returns the provider's current view of the flight
	// identified by flightID. Returns ErrFlightGone when the provider no
	// longer reports it.
	LookupStatus(ctx context.Context, flightID, flightNumber string) (*FlightInfo, error)

	// RegisterAlert subscribes to push alerts for a flight and returns the
	// provider-assigned alert ID.
	RegisterAlert(ctx context.Context, flightID, flightNumber string) (string, error)

	// CancelAlert removes an alert subscription. Returns ErrRejected when
	// the provider does not know the alert ID.
	CancelAlert(ctx context.Context, alertID string) error

	// ListAlerts returns every alert subscription registered under this
	// account.
	ListAlerts(ctx context.Context) ([]Alert, error)

	// CancelAlerts cancels alert subscriptions in batches, returning how
	// many were removed and how many failed. Already-gone alerts count as
	// removed; a failure for one ID does not block the rest. The error is
	// non-nil only when the context ends the run early.
	CancelAlerts(ctx context.Context, alertIDs []string) (canceled, failed int, err error)
}

// Config holds the settings for the HTTP client.
type Config struct {
	BaseURL         string
	Username        string
	APIKey          string
	Timeout         time.Duration
	RateLimit       float64 // requests per second
	RateBurst       int
	DeleteBatchSize int
}

// HTTPClient implements Client against the FlightXML JSON API.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   FailureRecorder
	logger     *zap.Logger
}

// Ensure HTTPClient satisfies the Client interface at compile time.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a FlightXML client. recorder may be nil.
func NewHTTPClient(cfg Config, recorder FailureRecorder, logger *zap.Logger) *HTTPClient {
	if cfg.DeleteBatchSize <= 0 {
		cfg.DeleteBatchSize = 20
	}
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		recorder: recorder,
		logger:   logger,
	}
}

// Wire types. The FlightXML API wraps every response in an envelope named
// after the endpoint and reports times as epoch seconds.

type flightInfoExResponse struct {
	Error  string `json:"error,omitempty"`
	Result *struct {
		Flights []flightInfoEntry `json:"flights"`
	} `json:"FlightInfoExResult,omitempty"`
}

type flightInfoEntry struct {
	FaFlightID           string `json:"faFlightID"`
	Ident                string `json:"ident"`
	Origin               string `json:"origin"`
	Destination          string `json:"destination"`
	FiledDepartureTime   int64  `json:"filed_departuretime"`
	EstimatedArrivalTime int64  `json:"estimatedarrivaltime"`
	ActualDepartureTime  int64  `json:"actualdeparturetime"`
	ActualArrivalTime    int64  `json:"actualarrivaltime"`
	Diverted             string `json:"diverted"`
}

type setAlertResponse struct {
	Error  string `json:"error,omitempty"`
	Result int64  `json:"SetAlertResult"`
}

type deleteAlertResponse struct {
	Error  string `json:"error,omitempty"`
	Result int    `json:"DeleteAlertResult"`
}

type getAlertsResponse struct {
	Error  string `json:"error,omitempty"`
	Result *struct {
		NumAlerts int          `json:"num_alerts"`
		Alerts    []alertEntry `json:"alerts"`
	} `json:"GetAlertsResult,omitempty"`
}

type alertEntry struct {
	AlertID    int64  `json:"alert_id"`
	Ident      string `json:"ident"`
	FaFlightID string `json:"faFlightID"`
}

// LookupStatus fetches all legs filed under the flight number and picks out
// the one matching flightID.
func (c *HTTPClient) LookupStatus(ctx context.Context, flightID, flightNumber string) (*FlightInfo, error) {
	params := url.Values{}
	params.Set("ident", flightNumber)
	params.Set("howMany", strconv.Itoa(howMany))

	var resp flightInfoExResponse
	if err := c.get(ctx, "/FlightInfoEx", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		// The API reports unknown flight numbers as an error payload.
		c.logger.Debug("flight lookup returned no data",
			zap.String("flight_number", flightNumber),
			zap.String("api_error", resp.Error))
		return nil, fmt.Errorf("%w: %s", ErrFlightGone, flightNumber)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: malformed lookup response", ErrRejected)
	}

	for _, entry := range resp.Result.Flights {
		if entry.FaFlightID == flightID {
			return entryToFlightInfo(entry), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFlightGone, flightID)
}

// RegisterAlert creates a push-alert subscription for the flight.
func (c *HTTPClient) RegisterAlert(ctx context.Context, flightID, flightNumber string) (string, error) {
	params := url.Values{}
	params.Set("alert_id", "0")
	params.Set("ident", flightNumber)
	params.Set("channels", "{16 e_filed e_departure e_arrival e_diverted e_cancelled}")
	params.Set("max_weekly", "1000")

	var resp setAlertResponse
	if err := c.get(ctx, "/SetAlert", params, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	if resp.Result <= 0 {
		return "", fmt.Errorf("%w: provider returned alert id %d", ErrRejected, resp.Result)
	}

	alertID := strconv.FormatInt(resp.Result, 10)
	c.logger.Info("registered flight alert",
		zap.String("flight_id", flightID),
		zap.String("flight_number", flightNumber),
		zap.String("alert_id", alertID))
	return alertID, nil
}

// CancelAlert deletes a push-alert subscription.
func (c *HTTPClient) CancelAlert(ctx context.Context, alertID string) error {
	params := url.Values{}
	params.Set("alert_id", alertID)

	var resp deleteAlertResponse
	if err := c.get(ctx, "/DeleteAlert", params, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	if resp.Result != 1 {
		return fmt.Errorf("%w: alert %s not deleted", ErrRejected, alertID)
	}

	c.logger.Debug("cancelled flight alert", zap.String("alert_id", alertID))
	return nil
}

// ListAlerts returns every alert subscription registered under the account.
func (c *HTTPClient) ListAlerts(ctx context.Context) ([]Alert, error) {
	var resp getAlertsResponse
	if err := c.get(ctx, "/GetAlerts", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("%w: malformed alerts response", ErrRejected)
	}

	alerts := make([]Alert, 0, len(resp.Result.Alerts))
	for _, entry := range resp.Result.Alerts {
		if entry.AlertID <= 0 {
			continue
		}
		alerts = append(alerts, Alert{
			ID:           strconv.FormatInt(entry.AlertID, 10),
			FlightID:     entry.FaFlightID,
			FlightNumber: entry.Ident,
		})
	}
	return alerts, nil
}

// CancelAlerts deletes subscriptions in batches of DeleteBatchSize, checking
// for cancellation between batches so a large orphan list cannot pin a run.
// An alert the provider no longer knows counts as removed. A failure for one
// ID is logged and skipped; the ID stays a candidate for the next run.
func (c *HTTPClient) CancelAlerts(ctx context.Context, alertIDs []string) (int, int, error) {
	canceled, failed := 0, 0
	for start := 0; start < len(alertIDs); start += c.cfg.DeleteBatchSize {
		if err := ctx.Err(); err != nil {
			return canceled, failed, err
		}

		end := start + c.cfg.DeleteBatchSize
		if end > len(alertIDs) {
			end = len(alertIDs)
		}

		for _, id := range alertIDs[start:end] {
			err := c.CancelAlert(ctx, id)
			switch {
			case err == nil:
				canceled++
			case errors.Is(err, ErrRejected):
				// Already gone on the provider side.
				canceled++
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return canceled, failed, err
			default:
				failed++
				c.logger.Warn("alert cancellation failed",
					zap.String("alert_id", id),
					zap.Error(err))
			}
		}
	}
	return canceled, failed, nil
}

// get performs a rate-limited GET against the API and decodes the JSON
// response into out. Transport errors and retriable status codes are
// reported to the failure recorder and returned as ErrUnavailable.
func (c *HTTPClient) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	reqURL := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure()
		c.logger.Warn("provider request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isRetriable(resp.StatusCode) {
			c.recordFailure()
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parsing response: %v", ErrRejected, err)
	}
	return nil
}

func (c *HTTPClient) recordFailure() {
	if c.recorder != nil {
		c.recorder.RecordFailure()
	}
}

// isRetriable reports whether the status code indicates a transient
// provider-side failure.
func isRetriable(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// entryToFlightInfo converts a wire entry to the domain view. Epoch zero
// means "has not happened"; a -1 departure time marks a cancelled flight.
func entryToFlightInfo(entry flightInfoEntry) *FlightInfo {
	info := &FlightInfo{
		FlightID:           entry.FaFlightID,
		FlightNumber:       entry.Ident,
		Origin:             entry.Origin,
		Destination:        entry.Destination,
		ScheduledDeparture: epochToTime(entry.FiledDepartureTime),
		EstimatedArrival:   epochToTime(entry.EstimatedArrivalTime),
		Canceled:           entry.ActualDepartureTime == -1,
		Diverted:           entry.Diverted != "",
	}
	if entry.ActualDepartureTime > 0 {
		t := epochToTime(entry.ActualDepartureTime)
		info.DepartedAt = &t
	}
	if entry.ActualArrivalTime > 0 {
		t := epochToTime(entry.ActualArrivalTime)
		info.LandedAt = &t
	}
	return info
}

func epochToTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
