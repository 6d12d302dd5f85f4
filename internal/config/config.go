// Package config handles loading, validating, and applying defaults to the
// tracker configuration. Configuration is read from a YAML file and
// may be overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that implements yaml.Unmarshaler
// so that Go-style duration strings (e.g. "30s", "5m") can be used in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a YAML scalar as a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML serialises the duration back to a human-readable string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config is the top-level configuration for the tracker service.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	Storage     StorageConfig     `yaml:"storage"`
	FlightAware FlightAwareConfig `yaml:"flightaware"`
	Push        PushConfig        `yaml:"push"`
	Travel      TravelConfig      `yaml:"travel"`
	Lifecycle   LifecycleConfig   `yaml:"lifecycle"`
	Reminders   RemindersConfig   `yaml:"reminders"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`
	Outage      OutageConfig      `yaml:"outage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Health      HealthConfig      `yaml:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// StoreConfig controls the SQLite flight store.
type StoreConfig struct {
	DBPath string `yaml:"dbPath"`
}

// StorageConfig controls the volume and database size monitor. Thresholds
// are volume usage percentages.
type StorageConfig struct {
	Enabled           bool     `yaml:"enabled"`
	VolumePath        string   `yaml:"volumePath"`
	MonitorInterval   Duration `yaml:"monitorInterval"`
	WarningThreshold  int      `yaml:"warningThreshold"`
	CriticalThreshold int      `yaml:"criticalThreshold"`
}

// FlightAwareConfig configures the flight-data provider client. Every lookup
// is billed per call, so the rate limit and batch size bound the worst-case
// spend of a single run.
type FlightAwareConfig struct {
	BaseURL         string   `yaml:"baseURL"`
	Username        string   `yaml:"username"`
	APIKey          string   `yaml:"apiKey"`
	Timeout         Duration `yaml:"timeout"`
	RateLimit       float64  `yaml:"rateLimit"` // requests per second
	RateBurst       int      `yaml:"rateBurst"`
	DeleteBatchSize int      `yaml:"deleteBatchSize"`
}

// PushConfig configures the push-notification gateway.
type PushConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`

	// AuthToken is populated from the PUSH_AUTH_TOKEN environment variable.
	// It is never read from the config file.
	AuthToken string `yaml:"-"`
}

// TravelConfig configures the driving-time estimator. FallbackURL, when set,
// is consulted only after the primary source fails.
type TravelConfig struct {
	URL         string   `yaml:"url"`
	FallbackURL string   `yaml:"fallbackURL"`
	APIKey      string   `yaml:"apiKey"`
	Timeout     Duration `yaml:"timeout"`
}

// LifecycleConfig controls the flight lifecycle monitor.
type LifecycleConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Interval        Duration `yaml:"interval"`
	GracePeriod     Duration `yaml:"gracePeriod"`
	RetentionPeriod Duration `yaml:"retentionPeriod"`
}

// RemindersConfig controls the reminder dispatcher. The deboarding buffers
// estimate touchdown-to-curb time and differ for international arrivals.
// Users closer than MinDistanceMiles to the destination airport (already
// there) or farther than MaxDistanceMiles (not driving) get no reminders.
// ArrivalHorizon bounds travel-estimator spend: flights arriving further out
// than the horizon cannot be due yet and are skipped without an estimate.
type RemindersConfig struct {
	Interval             Duration `yaml:"interval"`
	SoonLeadTime         Duration `yaml:"soonLeadTime"`
	DeboardDomestic      Duration `yaml:"deboardDomestic"`
	DeboardInternational Duration `yaml:"deboardInternational"`
	MinDistanceMiles     float64  `yaml:"minDistanceMiles"`
	MaxDistanceMiles     float64  `yaml:"maxDistanceMiles"`
	ArrivalHorizon       Duration `yaml:"arrivalHorizon"`
	LockTTL              Duration `yaml:"lockTTL"`
}

// ReconcilerConfig controls the alert subscription reconciler.
type ReconcilerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Interval  Duration `yaml:"interval"`
	OnStartup bool     `yaml:"onStartup"`
}

// OutageConfig controls provider outage detection. An outage begins when at
// least MinFailures provider failures land within the rolling window at a
// rate above MaxFailuresPerMinute, and ends when a probe call succeeds or no
// failure has been seen for RecoveryWait.
type OutageConfig struct {
	Interval             Duration `yaml:"interval"`
	MinFailures          int      `yaml:"minFailures"`
	MaxFailuresPerMinute float64  `yaml:"maxFailuresPerMinute"`
	ProbeTimeout         Duration `yaml:"probeTimeout"`
	RecoveryWait         Duration `yaml:"recoveryWait"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the health/readiness probe endpoints.
type HealthConfig struct {
	LivenessPath  string `yaml:"livenessPath"`
	ReadinessPath string `yaml:"readinessPath"`
	Port          int    `yaml:"port"`
}

// Load reads the YAML configuration file at path, applies defaults, applies
// environment-variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-valued fields with the observed deployment
// policy values. Every reminder/lifecycle/outage threshold is tunable here
// rather than hardcoded at its call site.
func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "tracker"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "json"
	}

	// Store defaults
	if c.Store.DBPath == "" {
		c.Store.DBPath = "/data/flights.db"
	}

	// Storage monitor defaults, same section-omitted heuristic as lifecycle.
	if c.Storage.MonitorInterval.Duration == 0 {
		c.Storage.Enabled = true
		c.Storage.MonitorInterval.Duration = 15 * time.Minute
	}
	if c.Storage.VolumePath == "" {
		c.Storage.VolumePath = "/data"
	}
	if c.Storage.WarningThreshold == 0 {
		c.Storage.WarningThreshold = 80
	}
	if c.Storage.CriticalThreshold == 0 {
		c.Storage.CriticalThreshold = 90
	}

	// FlightAware defaults
	if c.FlightAware.Timeout.Duration == 0 {
		c.FlightAware.Timeout.Duration = 15 * time.Second
	}
	if c.FlightAware.RateLimit == 0 {
		c.FlightAware.RateLimit = 5
	}
	if c.FlightAware.RateBurst == 0 {
		c.FlightAware.RateBurst = 10
	}
	if c.FlightAware.DeleteBatchSize == 0 {
		c.FlightAware.DeleteBatchSize = 20
	}

	// Push defaults
	if c.Push.Timeout.Duration == 0 {
		c.Push.Timeout.Duration = 10 * time.Second
	}

	// Travel defaults
	if c.Travel.Timeout.Duration == 0 {
		c.Travel.Timeout.Duration = 10 * time.Second
	}

	// Lifecycle defaults. If the entire section was omitted (Interval is
	// zero), enable the monitor with all defaults; callers who want it off
	// must set enabled: false alongside an interval.
	if c.Lifecycle.Interval.Duration == 0 {
		c.Lifecycle.Enabled = true
		c.Lifecycle.Interval.Duration = 3 * time.Hour
	}
	if c.Lifecycle.GracePeriod.Duration == 0 {
		c.Lifecycle.GracePeriod.Duration = 2 * time.Hour
	}
	if c.Lifecycle.RetentionPeriod.Duration == 0 {
		c.Lifecycle.RetentionPeriod.Duration = 24 * time.Hour
	}

	// Reminder defaults
	if c.Reminders.Interval.Duration == 0 {
		c.Reminders.Interval.Duration = 1 * time.Minute
	}
	if c.Reminders.SoonLeadTime.Duration == 0 {
		c.Reminders.SoonLeadTime.Duration = 5 * time.Minute
	}
	if c.Reminders.DeboardDomestic.Duration == 0 {
		c.Reminders.DeboardDomestic.Duration = 9 * time.Minute
	}
	if c.Reminders.DeboardInternational.Duration == 0 {
		c.Reminders.DeboardInternational.Duration = 29 * time.Minute
	}
	if c.Reminders.MinDistanceMiles == 0 {
		c.Reminders.MinDistanceMiles = 1
	}
	if c.Reminders.MaxDistanceMiles == 0 {
		c.Reminders.MaxDistanceMiles = 200
	}
	if c.Reminders.ArrivalHorizon.Duration == 0 {
		// Driving 200 miles takes well under six hours, so nothing beyond
		// the horizon can be due within a run.
		c.Reminders.ArrivalHorizon.Duration = 6 * time.Hour
	}
	if c.Reminders.LockTTL.Duration == 0 {
		c.Reminders.LockTTL.Duration = 1 * time.Minute
	}

	// Reconciler defaults, same section-omitted heuristic as lifecycle.
	if c.Reconciler.Interval.Duration == 0 {
		c.Reconciler.Enabled = true
		c.Reconciler.OnStartup = false
		c.Reconciler.Interval.Duration = 2 * time.Hour
	}

	// Outage defaults
	if c.Outage.Interval.Duration == 0 {
		c.Outage.Interval.Duration = 5 * time.Minute
	}
	if c.Outage.MinFailures == 0 {
		c.Outage.MinFailures = 10
	}
	if c.Outage.MaxFailuresPerMinute == 0 {
		c.Outage.MaxFailuresPerMinute = 5
	}
	if c.Outage.ProbeTimeout.Duration == 0 {
		c.Outage.ProbeTimeout.Duration = 10 * time.Second
	}
	if c.Outage.RecoveryWait.Duration == 0 {
		c.Outage.RecoveryWait.Duration = 5 * time.Minute
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Enabled = true
		c.Metrics.Port = 8080
		c.Metrics.Path = "/metrics"
	} else {
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	// Health defaults
	if c.Health.LivenessPath == "" {
		c.Health.LivenessPath = "/healthz"
	}
	if c.Health.ReadinessPath == "" {
		c.Health.ReadinessPath = "/ready"
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8080
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Store.DBPath = v
	}
	if v := os.Getenv("FLIGHTAWARE_API_KEY"); v != "" {
		c.FlightAware.APIKey = v
	}
	if v := os.Getenv("PUSH_AUTH_TOKEN"); v != "" {
		c.Push.AuthToken = v
	}
	if v := os.Getenv("TRAVEL_API_KEY"); v != "" {
		c.Travel.APIKey = v
	}
}

// validate checks that all required fields are populated and that enum values
// are within the allowed set.
func (c *Config) validate() error {
	if c.FlightAware.BaseURL == "" {
		return fmt.Errorf("flightaware.baseURL is required")
	}
	if c.Push.URL == "" {
		return fmt.Errorf("push.url is required")
	}
	if c.Travel.URL == "" {
		return fmt.Errorf("travel.url is required")
	}

	// Validate log level
	switch c.App.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("app.logLevel must be one of: debug, info, warn, error; got %q", c.App.LogLevel)
	}

	// Validate log format
	switch c.App.LogFormat {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("app.logFormat must be one of: json, text; got %q", c.App.LogFormat)
	}

	if c.Reminders.MinDistanceMiles >= c.Reminders.MaxDistanceMiles {
		return fmt.Errorf("reminders.minDistanceMiles (%v) must be less than reminders.maxDistanceMiles (%v)",
			c.Reminders.MinDistanceMiles, c.Reminders.MaxDistanceMiles)
	}
	if c.Outage.MinFailures < 0 {
		return fmt.Errorf("outage.minFailures must not be negative; got %d", c.Outage.MinFailures)
	}
	if c.Storage.WarningThreshold >= c.Storage.CriticalThreshold {
		return fmt.Errorf("storage.warningThreshold (%d) must be less than storage.criticalThreshold (%d)",
			c.Storage.WarningThreshold, c.Storage.CriticalThreshold)
	}
	if c.FlightAware.DeleteBatchSize < 1 {
		return fmt.Errorf("flightaware.deleteBatchSize must be at least 1; got %d", c.FlightAware.DeleteBatchSize)
	}

	return nil
}
