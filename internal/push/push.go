// Package push delivers flight reminders to users' devices through an HTTP
// push-notification relay. Delivery is fire-and-forget: a failed send is not
// retried here, because the next dispatcher pass re-evaluates the flight and
// sends again if the reminder is still due.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
)

// Notification sounds bundled with the mobile client.
const (
	SoundDefault = "announcement.wav"
	SoundTakeoff = "takeoff.wav"
	SoundLanding = "landing.wav"
)

// ErrSendFailed indicates the relay did not accept the notification.
var ErrSendFailed = errors.New("push delivery failed")

// Notification is a single push message addressed to one user. The relay
// owns the mapping from user to registered devices.
type Notification struct {
	UserID string
	Type   string
	Body   string
	Sound  string
}

// Sender delivers notifications. Implemented by Gateway; mocked in tests.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// HTTPClient is the interface used to send HTTP requests. *http.Client
// satisfies this interface, and it can be replaced with a mock in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Gateway sends notifications to the configured push relay.
type Gateway struct {
	cfg     config.PushConfig
	version string
	client  HTTPClient
	logger  *zap.Logger
}

// Ensure Gateway satisfies the Sender interface at compile time.
var _ Sender = (*Gateway)(nil)

// NewGateway creates a push gateway with the given dependencies.
func NewGateway(cfg config.PushConfig, version string, client HTTPClient, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		version: version,
		client:  client,
		logger:  logger,
	}
}

// pushPayload is the relay's wire format: an APNS aps dictionary plus the
// notification type and target identifiers. The relay expands each user
// identifier to that user's registered device tokens.
type pushPayload struct {
	DeviceTokens     []string `json:"device_tokens"`
	NotificationType string   `json:"notification_type"`
	APS              aps      `json:"aps"`
}

type aps struct {
	Alert string `json:"alert"`
	Sound string `json:"sound"`
}

// Send posts the notification to the relay. The notification body must be
// non-empty; empty messages are refused before any network call.
func (g *Gateway) Send(ctx context.Context, n *Notification) error {
	if n.Body == "" {
		return fmt.Errorf("refusing to send empty notification body")
	}

	req, err := g.buildRequest(n)
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout.Duration)
	defer cancel()
	req = req.WithContext(sendCtx)

	resp, err := g.client.Do(req)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		g.logger.Warn("push request failed",
			zap.String("type", n.Type),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("push relay refused notification",
			zap.String("type", n.Type),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	g.logger.Debug("push notification sent",
		zap.String("type", n.Type),
		zap.Int("status_code", resp.StatusCode))
	return nil
}

// buildRequest constructs the HTTP POST request for the notification.
func (g *Gateway) buildRequest(n *Notification) (*http.Request, error) {
	sound := n.Sound
	if sound == "" {
		sound = SoundDefault
	}

	payload := pushPayload{
		DeviceTokens:     []string{n.UserID},
		NotificationType: n.Type,
		APS: aps{
			Alert: n.Body,
			Sound: sound,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling push payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("tracker/%s", g.version))
	req.Header.Set("X-Request-ID", uuid.New().String())

	if g.cfg.AuthToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.cfg.AuthToken))
	}

	return req, nil
}
