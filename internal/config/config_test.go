package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testdataPath(name string) string {
	return filepath.Join("testdata", name)
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(testdataPath("valid_config.yaml"))
	require.NoError(t, err)

	// App
	assert.Equal(t, "tracker", cfg.App.Name)
	assert.Equal(t, "1.0.0", cfg.App.Version)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "json", cfg.App.LogFormat)

	// Store
	assert.Equal(t, "/data/flights.db", cfg.Store.DBPath)

	// Storage monitor
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "/data", cfg.Storage.VolumePath)
	assert.Equal(t, 15*time.Minute, cfg.Storage.MonitorInterval.Duration)
	assert.Equal(t, 80, cfg.Storage.WarningThreshold)
	assert.Equal(t, 90, cfg.Storage.CriticalThreshold)

	// FlightAware
	assert.Equal(t, "https://flightxml.example.com/json/FlightXML2", cfg.FlightAware.BaseURL)
	assert.Equal(t, "justlanded", cfg.FlightAware.Username)
	assert.Equal(t, "file-api-key", cfg.FlightAware.APIKey)
	assert.Equal(t, 15*time.Second, cfg.FlightAware.Timeout.Duration)
	assert.Equal(t, 5.0, cfg.FlightAware.RateLimit)
	assert.Equal(t, 10, cfg.FlightAware.RateBurst)
	assert.Equal(t, 20, cfg.FlightAware.DeleteBatchSize)

	// Push
	assert.Equal(t, "https://push.example.com/api/send", cfg.Push.URL)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout.Duration)

	// Travel
	assert.Equal(t, "https://routes.example.com/v1/drivetime", cfg.Travel.URL)
	assert.Equal(t, "https://backup-routes.example.com/v1/drivetime", cfg.Travel.FallbackURL)
	assert.Equal(t, "travel-key", cfg.Travel.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Travel.Timeout.Duration)

	// Lifecycle
	assert.True(t, cfg.Lifecycle.Enabled)
	assert.Equal(t, 3*time.Hour, cfg.Lifecycle.Interval.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Lifecycle.GracePeriod.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.RetentionPeriod.Duration)

	// Reminders
	assert.Equal(t, 1*time.Minute, cfg.Reminders.Interval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Reminders.SoonLeadTime.Duration)
	assert.Equal(t, 9*time.Minute, cfg.Reminders.DeboardDomestic.Duration)
	assert.Equal(t, 29*time.Minute, cfg.Reminders.DeboardInternational.Duration)
	assert.Equal(t, 1.0, cfg.Reminders.MinDistanceMiles)
	assert.Equal(t, 200.0, cfg.Reminders.MaxDistanceMiles)
	assert.Equal(t, 6*time.Hour, cfg.Reminders.ArrivalHorizon.Duration)
	assert.Equal(t, 1*time.Minute, cfg.Reminders.LockTTL.Duration)

	// Reconciler
	assert.True(t, cfg.Reconciler.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Reconciler.Interval.Duration)
	assert.True(t, cfg.Reconciler.OnStartup)

	// Outage
	assert.Equal(t, 5*time.Minute, cfg.Outage.Interval.Duration)
	assert.Equal(t, 10, cfg.Outage.MinFailures)
	assert.Equal(t, 5.0, cfg.Outage.MaxFailuresPerMinute)
	assert.Equal(t, 10*time.Second, cfg.Outage.ProbeTimeout.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Outage.RecoveryWait.Duration)

	// Metrics
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 8080, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	// Health
	assert.Equal(t, "/healthz", cfg.Health.LivenessPath)
	assert.Equal(t, "/ready", cfg.Health.ReadinessPath)
	assert.Equal(t, 8080, cfg.Health.Port)
}

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	cfg, err := Load(testdataPath("minimal_config.yaml"))
	require.NoError(t, err)

	// Provided values should be kept.
	assert.Equal(t, "https://flightxml.example.com/json/FlightXML2", cfg.FlightAware.BaseURL)
	assert.Equal(t, "https://push.example.com/api/send", cfg.Push.URL)
	assert.Equal(t, "https://routes.example.com/v1/drivetime", cfg.Travel.URL)

	// All defaults should be applied.
	assert.Equal(t, "tracker", cfg.App.Name)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, "json", cfg.App.LogFormat)
	assert.Equal(t, "/data/flights.db", cfg.Store.DBPath)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, "/data", cfg.Storage.VolumePath)
	assert.Equal(t, 15*time.Minute, cfg.Storage.MonitorInterval.Duration)
	assert.Equal(t, 80, cfg.Storage.WarningThreshold)
	assert.Equal(t, 90, cfg.Storage.CriticalThreshold)
	assert.Equal(t, 15*time.Second, cfg.FlightAware.Timeout.Duration)
	assert.Equal(t, 5.0, cfg.FlightAware.RateLimit)
	assert.Equal(t, 10, cfg.FlightAware.RateBurst)
	assert.Equal(t, 20, cfg.FlightAware.DeleteBatchSize)
	assert.Equal(t, 10*time.Second, cfg.Push.Timeout.Duration)
	assert.Equal(t, 10*time.Second, cfg.Travel.Timeout.Duration)
	assert.True(t, cfg.Lifecycle.Enabled)
	assert.Equal(t, 3*time.Hour, cfg.Lifecycle.Interval.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Lifecycle.GracePeriod.Duration)
	assert.Equal(t, 24*time.Hour, cfg.Lifecycle.RetentionPeriod.Duration)
	assert.Equal(t, 1*time.Minute, cfg.Reminders.Interval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Reminders.SoonLeadTime.Duration)
	assert.Equal(t, 9*time.Minute, cfg.Reminders.DeboardDomestic.Duration)
	assert.Equal(t, 29*time.Minute, cfg.Reminders.DeboardInternational.Duration)
	assert.Equal(t, 1.0, cfg.Reminders.MinDistanceMiles)
	assert.Equal(t, 200.0, cfg.Reminders.MaxDistanceMiles)
	assert.Equal(t, 6*time.Hour, cfg.Reminders.ArrivalHorizon.Duration)
	assert.Equal(t, 1*time.Minute, cfg.Reminders.LockTTL.Duration)
	assert.True(t, cfg.Reconciler.Enabled)
	assert.Equal(t, 2*time.Hour, cfg.Reconciler.Interval.Duration)
	assert.False(t, cfg.Reconciler.OnStartup)
	assert.Equal(t, 5*time.Minute, cfg.Outage.Interval.Duration)
	assert.Equal(t, 10, cfg.Outage.MinFailures)
	assert.Equal(t, 5.0, cfg.Outage.MaxFailuresPerMinute)
	assert.Equal(t, 10*time.Second, cfg.Outage.ProbeTimeout.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Outage.RecoveryWait.Duration)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 8080, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "/healthz", cfg.Health.LivenessPath)
	assert.Equal(t, "/ready", cfg.Health.ReadinessPath)
	assert.Equal(t, 8080, cfg.Health.Port)
}

func TestLoadMissingProviderURL(t *testing.T) {
	content := `
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flightaware.baseURL is required")
}

func TestLoadMissingPushURL(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
travel:
  url: https://routes.example.com/v1/drivetime
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push.url is required")
}

func TestLoadMissingTravelURL(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
push:
  url: https://push.example.com/api/send
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "travel.url is required")
}

func TestLoadMalformedYAML(t *testing.T) {
	content := `
this is: [not: valid yaml
  broken: {
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadInvalidLogLevel(t *testing.T) {
	content := `
app:
  logLevel: verbose
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.logLevel must be one of")
}

func TestLoadInvalidLogFormat(t *testing.T) {
	content := `
app:
  logFormat: xml
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.logFormat must be one of")
}

func TestLoadInvalidDistanceBand(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
reminders:
  minDistanceMiles: 300
  maxDistanceMiles: 200
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reminders.minDistanceMiles")
}

func TestLoadInvalidStorageThresholds(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
storage:
  monitorInterval: 15m
  warningThreshold: 95
  criticalThreshold: 90
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.warningThreshold")
}

func TestEnvOverrideDBPath(t *testing.T) {
	t.Setenv("DB_PATH", "/override/flights.db")

	cfg, err := Load(testdataPath("minimal_config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/override/flights.db", cfg.Store.DBPath)
}

func TestEnvOverrideFlightAwareAPIKey(t *testing.T) {
	t.Setenv("FLIGHTAWARE_API_KEY", "env-api-key")

	cfg, err := Load(testdataPath("minimal_config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-api-key", cfg.FlightAware.APIKey)
}

func TestEnvOverridePushAuthToken(t *testing.T) {
	t.Setenv("PUSH_AUTH_TOKEN", "secret-token-123")

	cfg, err := Load(testdataPath("minimal_config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "secret-token-123", cfg.Push.AuthToken)
}

func TestEnvOverrideTravelAPIKey(t *testing.T) {
	t.Setenv("TRAVEL_API_KEY", "env-travel-key")

	cfg, err := Load(testdataPath("minimal_config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-travel-key", cfg.Travel.APIKey)
}

func TestDurationUnmarshalYAML(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
  timeout: 45s
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
reminders:
  soonLeadTime: 20m
`
	path := writeTempConfig(t, content)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.FlightAware.Timeout.Duration)
	assert.Equal(t, 20*time.Minute, cfg.Reminders.SoonLeadTime.Duration)
}

func TestInvalidDurationValue(t *testing.T) {
	content := `
flightaware:
  baseURL: https://flightxml.example.com/json/FlightXML2
  timeout: not-a-duration
push:
  url: https://push.example.com/api/send
travel:
  url: https://routes.example.com/v1/drivetime
`
	path := writeTempConfig(t, content)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

// writeTempConfig writes the given YAML content to a temporary file and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}
