//go:build integration

// Package integration_test contains end-to-end integration tests for the
// tracker service. Tests exercise the full pipeline from the SQLite flight
// store through reminder delivery using httptest doubles for the flight-data
// provider, the push relay, and the travel-time API.
package integration_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/lifecycle"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/internal/models"
	"github.com/justlanded/tracker/internal/outage"
	"github.com/justlanded/tracker/internal/push"
	"github.com/justlanded/tracker/internal/reconciler"
	"github.com/justlanded/tracker/internal/reminder"
	"github.com/justlanded/tracker/internal/store"
	"github.com/justlanded/tracker/internal/travel"
	"github.com/justlanded/tracker/pkg/flightaware"
)

// ---------------------------------------------------------------------------
// Fake flight-data provider
// ---------------------------------------------------------------------------

// providerFlight is one flight leg the fake FlightXML endpoint serves.
// Times are epoch seconds; zero means "has not happened" and a -1 departure
// marks a cancelled flight, matching the provider's wire conventions.
type providerFlight struct {
	FlightID         string
	Ident            string
	Origin           string
	Destination      string
	FiledDeparture   int64
	EstimatedArrival int64
	ActualDeparture  int64
	ActualArrival    int64
	Diverted         string
}

type providerAlert struct {
	Ident    string
	FlightID string
}

// fakeProvider implements the four FlightXML endpoints the client uses, with
// in-memory flight and alert state, per-endpoint call counting, and failure
// injection for outage scenarios.
type fakeProvider struct {
	mu          sync.Mutex
	flights     []providerFlight
	alerts      map[string]providerAlert
	ghosts      map[string]bool
	nextAlertID int64
	down        bool
	failDeletes map[string]bool
	calls       map[string]int

	server *httptest.Server
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{
		alerts:      make(map[string]providerAlert),
		ghosts:      make(map[string]bool),
		nextAlertID: 500,
		failDeletes: make(map[string]bool),
		calls:       make(map[string]int),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

func (p *fakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[r.URL.Path]++
	if p.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/FlightInfoEx":
		ident := r.URL.Query().Get("ident")
		var entries []map[string]interface{}
		for _, f := range p.flights {
			if f.Ident != ident {
				continue
			}
			entries = append(entries, map[string]interface{}{
				"faFlightID":           f.FlightID,
				"ident":                f.Ident,
				"origin":               f.Origin,
				"destination":          f.Destination,
				"filed_departuretime":  f.FiledDeparture,
				"estimatedarrivaltime": f.EstimatedArrival,
				"actualdeparturetime":  f.ActualDeparture,
				"actualarrivaltime":    f.ActualArrival,
				"diverted":             f.Diverted,
			})
		}
		if len(entries) == 0 {
			fmt.Fprintf(w, `{"error":"NO_DATA %s"}`, ident)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"FlightInfoExResult": map[string]interface{}{"flights": entries},
		})

	case "/SetAlert":
		id := p.nextAlertID
		p.nextAlertID++
		p.alerts[strconv.FormatInt(id, 10)] = providerAlert{
			Ident: r.URL.Query().Get("ident"),
		}
		fmt.Fprintf(w, `{"SetAlertResult":%d}`, id)

	case "/DeleteAlert":
		id := r.URL.Query().Get("alert_id")
		if p.failDeletes[id] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if p.ghosts[id] {
			delete(p.alerts, id)
			delete(p.ghosts, id)
			fmt.Fprintf(w, `{"error":"NO_ALERT %s"}`, id)
			return
		}
		if _, ok := p.alerts[id]; !ok {
			fmt.Fprintf(w, `{"error":"NO_ALERT %s"}`, id)
			return
		}
		delete(p.alerts, id)
		fmt.Fprint(w, `{"DeleteAlertResult":1}`)

	case "/GetAlerts":
		entries := make([]map[string]interface{}, 0, len(p.alerts))
		for id, a := range p.alerts {
			n, _ := strconv.ParseInt(id, 10, 64)
			entries = append(entries, map[string]interface{}{
				"alert_id":   n,
				"ident":      a.Ident,
				"faFlightID": a.FlightID,
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"GetAlertsResult": map[string]interface{}{
				"num_alerts": len(entries),
				"alerts":     entries,
			},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// setFlights replaces the provider's flight data.
func (p *fakeProvider) setFlights(flights ...providerFlight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flights = flights
}

// addAlert seeds an alert subscription with a fixed ID.
func (p *fakeProvider) addAlert(id, ident, flightID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts[id] = providerAlert{Ident: ident, FlightID: flightID}
}

// addGhostAlert seeds an alert that shows up in listings but answers
// NO_ALERT on deletion, as happens when it is removed out of band
// between the list and the delete.
func (p *fakeProvider) addGhostAlert(id, ident, flightID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts[id] = providerAlert{Ident: ident, FlightID: flightID}
	p.ghosts[id] = true
}

// alertIDs returns the IDs of all live alert subscriptions, sorted.
func (p *fakeProvider) alertIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.alerts))
	for id := range p.alerts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// setDown makes every endpoint answer 503 until cleared.
func (p *fakeProvider) setDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
}

// failDelete makes deletion of the given alert ID answer 503.
func (p *fakeProvider) failDelete(id string, fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDeletes[id] = fail
}

// callCount returns how many requests have hit the given endpoint path.
func (p *fakeProvider) callCount(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// ---------------------------------------------------------------------------
// Push relay recorder
// ---------------------------------------------------------------------------

// pushMessage is the relay wire payload as the recorder sees it.
type pushMessage struct {
	DeviceTokens     []string `json:"device_tokens"`
	NotificationType string   `json:"notification_type"`
	APS              struct {
		Alert string `json:"alert"`
		Sound string `json:"sound"`
	} `json:"aps"`
}

// pushRecorder is an httptest push relay that records delivered payloads and
// can be made to refuse deliveries.
type pushRecorder struct {
	mu       sync.Mutex
	received []pushMessage
	auths    []string
	failing  bool

	server *httptest.Server
}

func newPushRecorder() *pushRecorder {
	p := &pushRecorder{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.failing {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var msg pushMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.received = append(p.received, msg)
		p.auths = append(p.auths, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	return p
}

// messages returns a snapshot of the recorded payloads.
func (p *pushRecorder) messages() []pushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]pushMessage, len(p.received))
	copy(cp, p.received)
	return cp
}

// authHeaders returns the Authorization header of each recorded delivery.
func (p *pushRecorder) authHeaders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(p.auths))
	copy(cp, p.auths)
	return cp
}

// setFailing makes the relay refuse deliveries until cleared.
func (p *pushRecorder) setFailing(failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = failing
}

// ---------------------------------------------------------------------------
// Travel-time API double
// ---------------------------------------------------------------------------

// fakeTravel is an httptest Distance Matrix endpoint with a fixed driving
// time and injectable failure modes.
type fakeTravel struct {
	mu            sync.Mutex
	driveSeconds  int64
	elementStatus string
	down          bool
	calls         int

	server *httptest.Server
}

func newFakeTravel(drive time.Duration) *fakeTravel {
	f := &fakeTravel{
		driveSeconds:  int64(drive / time.Second),
		elementStatus: "OK",
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls++
		if f.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","rows":[{"elements":[{"status":%q,"duration":{"value":%d}}]}]}`,
			f.elementStatus, f.driveSeconds)
	}))
	return f
}

// setDrive changes the driving time served to subsequent requests.
func (f *fakeTravel) setDrive(drive time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driveSeconds = int64(drive / time.Second)
}

// setDown makes the endpoint answer 503 until cleared.
func (f *fakeTravel) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// callCount returns how many estimate requests have been served.
func (f *fakeTravel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

// testEnv bundles all shared dependencies for an integration test run. The
// store, provider client, push gateway, and travel client are the real
// implementations; only the remote ends are doubles.
type testEnv struct {
	Store     *store.SQLiteStore
	Config    *config.Config
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Outage    *outage.Tracker
	Client    *flightaware.HTTPClient
	Sender    *push.Gateway
	Estimator travel.Estimator

	Provider *fakeProvider
	Push     *pushRecorder
	Travel   *fakeTravel
}

// setupTestEnv creates an in-memory SQLite store, the three httptest
// doubles, a test configuration pointing at them, and real clients wired
// through a shared outage tracker. The returned cleanup function must be
// called to tear everything down.
func setupTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("failed to create in-memory store: %v", err)
	}

	provider := newFakeProvider()
	pushRec := newPushRecorder()
	travelAPI := newFakeTravel(40 * time.Minute)

	cfg := newTestConfig(provider.server.URL, pushRec.server.URL, travelAPI.server.URL)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	tracker := outage.NewTracker(cfg.Outage.MinFailures, logger)

	faClient := flightaware.NewHTTPClient(flightaware.Config{
		BaseURL:         cfg.FlightAware.BaseURL,
		Username:        cfg.FlightAware.Username,
		APIKey:          cfg.FlightAware.APIKey,
		Timeout:         cfg.FlightAware.Timeout.Duration,
		RateLimit:       cfg.FlightAware.RateLimit,
		RateBurst:       cfg.FlightAware.RateBurst,
		DeleteBatchSize: cfg.FlightAware.DeleteBatchSize,
	}, tracker, logger)

	sender := push.NewGateway(cfg.Push, cfg.App.Version, &http.Client{Timeout: 5 * time.Second}, logger)
	estimator := travel.NewClient(cfg.Travel.URL, cfg.Travel.APIKey, cfg.Travel.Timeout.Duration, logger)

	env := &testEnv{
		Store:     st,
		Config:    cfg,
		Metrics:   m,
		Logger:    logger,
		Outage:    tracker,
		Client:    faClient,
		Sender:    sender,
		Estimator: estimator,
		Provider:  provider,
		Push:      pushRec,
		Travel:    travelAPI,
	}

	cleanup := func() {
		provider.server.Close()
		pushRec.server.Close()
		travelAPI.server.Close()
		st.Close()
		_ = logger.Sync()
	}

	return env, cleanup
}

// newMonitor builds a lifecycle monitor over the environment's dependencies.
func (e *testEnv) newMonitor() *lifecycle.Monitor {
	return lifecycle.NewMonitor(e.Store, e.Client, e.Outage, e.Config.Lifecycle, e.Metrics, e.Logger)
}

// newDispatcher builds a reminder dispatcher over the environment's
// dependencies.
func (e *testEnv) newDispatcher() *reminder.Dispatcher {
	return reminder.NewDispatcher(e.Store, e.Estimator, e.Sender, e.Outage, e.Config.Reminders, e.Metrics, e.Logger)
}

// newReconciler builds an alert reconciler over the environment's
// dependencies.
func (e *testEnv) newReconciler() *reconciler.Reconciler {
	return reconciler.NewReconciler(e.Store, e.Client, e.Outage, e.Config.Reconciler, e.Metrics, e.Logger)
}

// newOutageMonitor builds an outage monitor over the environment's
// dependencies.
func (e *testEnv) newOutageMonitor() *outage.Monitor {
	return outage.NewMonitor(e.Outage, e.Client, e.Config.Outage, e.Metrics, e.Logger)
}

// newTestConfig creates a Config suitable for integration tests, pointing
// the three clients at the httptest doubles. The reminder thresholds are
// round numbers so expected message bodies are predictable.
func newTestConfig(providerURL, pushURL, travelURL string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:      "tracker-integration-test",
			Version:   "test",
			LogLevel:  "debug",
			LogFormat: "text",
		},
		Store: config.StoreConfig{
			DBPath: ":memory:",
		},
		FlightAware: config.FlightAwareConfig{
			BaseURL:         providerURL,
			Username:        "testuser",
			APIKey:          "testkey",
			Timeout:         config.Duration{Duration: 5 * time.Second},
			RateLimit:       1000,
			RateBurst:       1000,
			DeleteBatchSize: 2,
		},
		Push: config.PushConfig{
			URL:       pushURL,
			Timeout:   config.Duration{Duration: 5 * time.Second},
			AuthToken: "test-token",
		},
		Travel: config.TravelConfig{
			URL:     travelURL,
			Timeout: config.Duration{Duration: 5 * time.Second},
		},
		Lifecycle: config.LifecycleConfig{
			Enabled:         true,
			Interval:        config.Duration{Duration: 100 * time.Millisecond},
			GracePeriod:     config.Duration{Duration: 2 * time.Hour},
			RetentionPeriod: config.Duration{Duration: 24 * time.Hour},
		},
		Reminders: config.RemindersConfig{
			Interval:             config.Duration{Duration: 100 * time.Millisecond},
			SoonLeadTime:         config.Duration{Duration: 20 * time.Minute},
			DeboardDomestic:      config.Duration{Duration: 10 * time.Minute},
			DeboardInternational: config.Duration{Duration: 30 * time.Minute},
			MinDistanceMiles:     1,
			MaxDistanceMiles:     200,
			ArrivalHorizon:       config.Duration{Duration: 6 * time.Hour},
			LockTTL:              config.Duration{Duration: time.Minute},
		},
		Reconciler: config.ReconcilerConfig{
			Enabled:   true,
			Interval:  config.Duration{Duration: time.Second},
			OnStartup: true,
		},
		Outage: config.OutageConfig{
			Interval:             config.Duration{Duration: time.Second},
			MinFailures:          5,
			MaxFailuresPerMinute: 5,
			ProbeTimeout:         config.Duration{Duration: 2 * time.Second},
			RecoveryWait:         config.Duration{Duration: 5 * time.Minute},
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Port:    0,
			Path:    "/metrics",
		},
		Health: config.HealthConfig{
			LivenessPath:  "/healthz",
			ReadinessPath: "/ready",
			Port:          0,
		},
	}
}

// trackedFlight creates an active SFO-to-LAX flight arriving arrivesIn from
// now, with the user in downtown Los Angeles a short drive from the airport.
// Times are truncated to the second because the store persists RFC3339 text.
func trackedFlight(id string, arrivesIn time.Duration) *models.TrackedFlight {
	now := time.Now().Truncate(time.Second)
	return &models.TrackedFlight{
		ID:               id,
		UserID:           "user-" + id,
		FlightNumber:     "UA815",
		State:            models.StateActive,
		RemindersEnabled: true,
		Origin: models.AirportInfo{
			Code: "SFO",
			Name: "San Francisco Intl",
			Location: models.Location{
				Latitude:  37.6213,
				Longitude: -122.3790,
			},
		},
		Destination: models.AirportInfo{
			Code:     "LAX",
			Name:     "Los Angeles Intl",
			Terminal: "4",
			Location: models.Location{
				Latitude:  33.9416,
				Longitude: -118.4085,
			},
		},
		ScheduledDeparture: now.Add(arrivesIn - 90*time.Minute),
		ScheduledArrival:   now.Add(arrivesIn),
		EstimatedArrival:   now.Add(arrivesIn),
		UserLocation: &models.Location{
			Latitude:  34.0522,
			Longitude: -118.2437,
		},
	}
}
