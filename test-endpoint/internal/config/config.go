// Package config handles loading and validation of the test-endpoint
// configuration from a YAML file with sensible defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the test-endpoint.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Behavior   BehaviorConfig   `yaml:"behavior"`
	Logging    LoggingConfig    `yaml:"logging"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	Provider   ProviderConfig   `yaml:"provider"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	PushPath     string        `yaml:"pushPath"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// BehaviorConfig controls how the simulated services respond. Failure and
// delay apply to the push path and to the flight-status endpoints alike, so
// mode "failure" doubles as a provider outage simulator.
type BehaviorConfig struct {
	// Mode determines response behavior: "success", "failure", "delay", or "random".
	Mode string `yaml:"mode"`
	// FailureRate is the probability of failure when Mode is "random" (0.0-1.0).
	FailureRate float64 `yaml:"failureRate"`
	// DelayMs is the response delay in milliseconds when Mode is "delay".
	DelayMs int `yaml:"delayMs"`
	// StatusCode is the HTTP status code returned on failure.
	StatusCode int `yaml:"statusCode"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Format is either "json" or "pretty".
	Format string `yaml:"format"`
	// Level is the minimum log level (e.g. "debug", "info", "warn", "error").
	Level string `yaml:"level"`
	// IncludeHeaders logs incoming HTTP headers when true.
	IncludeHeaders bool `yaml:"includeHeaders"`
	// IncludeBody logs the full request body when true.
	IncludeBody bool `yaml:"includeBody"`
}

// DuplicatesConfig controls redelivery detection on the push path. A
// repeated (notification type, device token) pair counts as a redelivery,
// so restart the endpoint between scenarios that reuse the same device.
type DuplicatesConfig struct {
	// Enabled turns on duplicate push detection.
	Enabled bool `yaml:"enabled"`
	// MaxTracked is the maximum number of delivery keys held in memory.
	MaxTracked int `yaml:"maxTracked"`
}

// ProviderConfig controls the simulated flight-status API.
type ProviderConfig struct {
	// Enabled serves the FlightInfoEx/SetAlert/DeleteAlert/GetAlerts
	// endpoints when true.
	Enabled bool `yaml:"enabled"`
	// Flights are the fixtures served by FlightInfoEx. Offsets are
	// resolved against the wall clock on every request, so fixtures never
	// go stale while the endpoint runs.
	Flights []FlightFixture `yaml:"flights"`
}

// FlightFixture describes one simulated flight leg.
type FlightFixture struct {
	// FlightID is the provider's opaque leg identifier (faFlightID).
	FlightID string `yaml:"flightId"`
	// Ident is the flight number the leg is filed under.
	Ident string `yaml:"ident"`
	// Origin and Destination are airport codes.
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	// DepartsInMinutes and ArrivesInMinutes offset the filed departure and
	// estimated arrival from now; negative values place them in the past.
	DepartsInMinutes int `yaml:"departsInMinutes"`
	ArrivesInMinutes int `yaml:"arrivesInMinutes"`
	// Landed marks the leg as arrived LandedMinutesAgo minutes ago.
	Landed           bool `yaml:"landed"`
	LandedMinutesAgo int  `yaml:"landedMinutesAgo"`
	// Canceled marks the leg as cancelled.
	Canceled bool `yaml:"canceled"`
	// Diverted marks the leg as diverted.
	Diverted bool `yaml:"diverted"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8090,
			PushPath:     "/push",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Behavior: BehaviorConfig{
			Mode:        "success",
			FailureRate: 0.0,
			DelayMs:     0,
			StatusCode:  500,
		},
		Logging: LoggingConfig{
			Format:         "json",
			Level:          "info",
			IncludeHeaders: true,
			IncludeBody:    true,
		},
		Duplicates: DuplicatesConfig{
			Enabled:    true,
			MaxTracked: 10000,
		},
		Provider: ProviderConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML configuration file at the given path and returns a Config
// with any unset fields filled in from Defaults(). If path is empty the
// defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Behavior.Mode {
	case "success", "failure", "delay", "random":
		// valid
	default:
		return fmt.Errorf("invalid behavior mode %q: must be success, failure, delay, or random", cfg.Behavior.Mode)
	}

	if cfg.Behavior.FailureRate < 0.0 || cfg.Behavior.FailureRate > 1.0 {
		return fmt.Errorf("failureRate must be between 0.0 and 1.0, got %f", cfg.Behavior.FailureRate)
	}

	switch cfg.Logging.Format {
	case "json", "pretty":
		// valid
	default:
		return fmt.Errorf("invalid logging format %q: must be json or pretty", cfg.Logging.Format)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	for i, f := range cfg.Provider.Flights {
		if f.Ident == "" {
			return fmt.Errorf("provider flight %d: ident is required", i)
		}
		if f.FlightID == "" {
			return fmt.Errorf("provider flight %d (%s): flightId is required", i, f.Ident)
		}
	}

	return nil
}
