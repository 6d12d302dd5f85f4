// Package server implements the HTTP handlers for the test-endpoint: a push
// relay sink, a simulated flight-status API, stats reporting, and health
// checking.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/justlanded/tracker/test-endpoint/internal/config"
	"github.com/justlanded/tracker/test-endpoint/internal/stats"
)

// PushPayload represents the JSON body sent by the tracker's push gateway.
// The structure mirrors the relay's wire format.
type PushPayload struct {
	DeviceTokens     []string `json:"device_tokens"`
	NotificationType string   `json:"notification_type"`
	APS              APSBody  `json:"aps"`
}

// APSBody carries the notification content within a push payload.
type APSBody struct {
	Alert string `json:"alert"`
	Sound string `json:"sound"`
}

// alertRecord is one registered alert subscription.
type alertRecord struct {
	Ident string
}

// Server is the test-endpoint HTTP server.
type Server struct {
	cfg   config.Config
	stats *stats.Stats
	mux   *http.ServeMux

	// redelivery tracking
	seenMu   sync.Mutex
	seenKeys map[string]struct{}
	seenList []string // ring buffer for eviction

	// simulated alert registry
	alertMu     sync.Mutex
	alerts      map[int64]alertRecord
	nextAlertID int64
}

// New creates a new Server with the given configuration.
func New(cfg config.Config) *Server {
	s := &Server{
		cfg:         cfg,
		stats:       stats.New(),
		mux:         http.NewServeMux(),
		seenKeys:    make(map[string]struct{}),
		alerts:      make(map[int64]alertRecord),
		nextAlertID: 1,
	}

	s.mux.HandleFunc(cfg.Server.PushPath, s.handlePush)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/health", s.handleHealth)

	if cfg.Provider.Enabled {
		s.mux.HandleFunc("/FlightInfoEx", s.handleFlightInfo)
		s.mux.HandleFunc("/SetAlert", s.handleSetAlert)
		s.mux.HandleFunc("/DeleteAlert", s.handleDeleteAlert)
		s.mux.HandleFunc("/GetAlerts", s.handleGetAlerts)
	}

	return s
}

// Handler returns the http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleStats returns the current delivery statistics as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logError("failed to encode stats response: %v", err)
	}
}

// handlePush processes incoming reminder deliveries.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	// Validate Content-Type
	ct := r.Header.Get("Content-Type")
	if ct != "application/json" {
		http.Error(w, `{"error":"Content-Type must be application/json"}`, http.StatusUnsupportedMediaType)
		return
	}

	// A real relay rejects unauthenticated pushes; so does the simulation.
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
		return
	}

	// Log headers if configured
	if s.cfg.Logging.IncludeHeaders {
		s.logInfo("headers: Authorization=%s X-Request-ID=%s", auth, r.Header.Get("X-Request-ID"))
	}

	// Parse JSON body
	var payload PushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"invalid JSON: %s"}`, err.Error()), http.StatusBadRequest)
		return
	}

	if len(payload.DeviceTokens) == 0 {
		http.Error(w, `{"error":"device_tokens must not be empty"}`, http.StatusBadRequest)
		return
	}
	if payload.NotificationType == "" {
		http.Error(w, `{"error":"notification_type is required"}`, http.StatusBadRequest)
		return
	}

	// Log body if configured
	if s.cfg.Logging.IncludeBody {
		s.logInfo("push: type=%s tokens=%v alert=%q sound=%s",
			payload.NotificationType, payload.DeviceTokens, payload.APS.Alert, payload.APS.Sound)
	}

	// Redelivery check: a (type, token) pair arriving twice means the
	// tracker retried a delivery or sent the same reminder twice.
	fresh := 0
	for _, token := range payload.DeviceTokens {
		key := payload.NotificationType + "|" + token
		if s.cfg.Duplicates.Enabled && s.isDuplicate(key) {
			s.stats.RecordDuplicate()
			s.logInfo("duplicate delivery detected: type=%s token=%s", payload.NotificationType, token)
			continue
		}
		s.trackKey(key)
		s.stats.RecordPush(payload.NotificationType, token)
		fresh++
	}
	if fresh == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"duplicate","message":"delivery already received"}`)
		return
	}

	// Apply behavior mode
	switch s.cfg.Behavior.Mode {
	case "failure":
		s.respondFailure(w)
		return

	case "delay":
		time.Sleep(time.Duration(s.cfg.Behavior.DelayMs) * time.Millisecond)
		s.respondAccepted(w, fresh)
		return

	case "random":
		if rand.Float64() < s.cfg.Behavior.FailureRate {
			s.respondFailure(w)
			return
		}
		s.respondAccepted(w, fresh)
		return

	default: // "success"
		s.respondAccepted(w, fresh)
		return
	}
}

func (s *Server) respondAccepted(w http.ResponseWriter, delivered int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"accepted","delivered":%d}`, delivered)
}

func (s *Server) respondFailure(w http.ResponseWriter) {
	statusCode := s.cfg.Behavior.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprint(w, `{"status":"error","message":"simulated failure"}`)
}

// isDuplicate checks whether the given delivery key has already been seen.
func (s *Server) isDuplicate(key string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	_, exists := s.seenKeys[key]
	return exists
}

// trackKey records a delivery key, evicting the oldest entry if the set is
// at capacity.
func (s *Server) trackKey(key string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	// Evict oldest if at capacity
	if len(s.seenList) >= s.cfg.Duplicates.MaxTracked {
		evict := s.seenList[0]
		s.seenList = s.seenList[1:]
		delete(s.seenKeys, evict)
	}

	s.seenKeys[key] = struct{}{}
	s.seenList = append(s.seenList, key)
}

// ---- Simulated flight-status API ----

// simulateOutage applies the behavior mode to a flight-status endpoint. It
// reports true when the request was answered with a simulated failure, which
// lets mode "failure" double as a full provider outage.
func (s *Server) simulateOutage(w http.ResponseWriter) bool {
	switch s.cfg.Behavior.Mode {
	case "failure":
		s.respondFailure(w)
		return true
	case "delay":
		time.Sleep(time.Duration(s.cfg.Behavior.DelayMs) * time.Millisecond)
		return false
	case "random":
		if rand.Float64() < s.cfg.Behavior.FailureRate {
			s.respondFailure(w)
			return true
		}
		return false
	default:
		return false
	}
}

// handleFlightInfo serves FlightInfoEx lookups from the configured fixtures.
// Time offsets are resolved against the wall clock per request.
func (s *Server) handleFlightInfo(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordProviderCall("FlightInfoEx")
	if s.simulateOutage(w) {
		return
	}

	ident := r.URL.Query().Get("ident")
	now := time.Now()

	type entry struct {
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

	var entries []entry
	for _, f := range s.cfg.Provider.Flights {
		if f.Ident != ident {
			continue
		}
		e := entry{
			FaFlightID:           f.FlightID,
			Ident:                f.Ident,
			Origin:               f.Origin,
			Destination:          f.Destination,
			FiledDepartureTime:   now.Add(time.Duration(f.DepartsInMinutes) * time.Minute).Unix(),
			EstimatedArrivalTime: now.Add(time.Duration(f.ArrivesInMinutes) * time.Minute).Unix(),
		}
		switch {
		case f.Canceled:
			e.ActualDepartureTime = -1
		case f.DepartsInMinutes < 0:
			e.ActualDepartureTime = e.FiledDepartureTime
		}
		if f.Landed {
			e.ActualArrivalTime = now.Add(-time.Duration(f.LandedMinutesAgo) * time.Minute).Unix()
		}
		if f.Diverted {
			e.Diverted = "true"
		}
		entries = append(entries, e)
	}

	w.Header().Set("Content-Type", "application/json")
	if len(entries) == 0 {
		fmt.Fprintf(w, `{"error":"NO_DATA flight not found for ident %s"}`, ident)
		return
	}

	resp := map[string]interface{}{
		"FlightInfoExResult": map[string]interface{}{
			"flights": entries,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logError("failed to encode flight info response: %v", err)
	}
}

// handleSetAlert registers an alert subscription and returns its ID.
func (s *Server) handleSetAlert(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordProviderCall("SetAlert")
	if s.simulateOutage(w) {
		return
	}

	s.alertMu.Lock()
	id := s.nextAlertID
	s.nextAlertID++
	s.alerts[id] = alertRecord{Ident: r.URL.Query().Get("ident")}
	s.alertMu.Unlock()

	s.logInfo("alert registered: id=%d ident=%s", id, r.URL.Query().Get("ident"))
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"SetAlertResult":%d}`, id)
}

// handleDeleteAlert removes an alert subscription.
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordProviderCall("DeleteAlert")
	if s.simulateOutage(w) {
		return
	}

	raw := r.URL.Query().Get("alert_id")
	id, err := strconv.ParseInt(raw, 10, 64)

	s.alertMu.Lock()
	_, exists := s.alerts[id]
	if exists {
		delete(s.alerts, id)
	}
	s.alertMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err != nil || !exists {
		fmt.Fprintf(w, `{"error":"NO_ALERT alert %s not found"}`, raw)
		return
	}

	s.logInfo("alert deleted: id=%d", id)
	fmt.Fprint(w, `{"DeleteAlertResult":1}`)
}

// handleGetAlerts lists all registered alert subscriptions.
func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	s.stats.RecordProviderCall("GetAlerts")
	if s.simulateOutage(w) {
		return
	}

	type entry struct {
		AlertID int64  `json:"alert_id"`
		Ident   string `json:"ident"`
	}

	s.alertMu.Lock()
	entries := make([]entry, 0, len(s.alerts))
	for id, a := range s.alerts {
		entries = append(entries, entry{AlertID: id, Ident: a.Ident})
	}
	s.alertMu.Unlock()

	resp := map[string]interface{}{
		"GetAlertsResult": map[string]interface{}{
			"num_alerts": len(entries),
			"alerts":     entries,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logError("failed to encode alerts response: %v", err)
	}
}

func (s *Server) logInfo(format string, args ...interface{}) {
	if s.cfg.Logging.Format == "json" {
		msg := fmt.Sprintf(format, args...)
		log.Printf(`{"level":"info","msg":"%s","time":"%s"}`, msg, time.Now().Format(time.RFC3339))
	} else {
		log.Printf("[INFO] "+format, args...)
	}
}

func (s *Server) logError(format string, args ...interface{}) {
	if s.cfg.Logging.Format == "json" {
		msg := fmt.Sprintf(format, args...)
		log.Printf(`{"level":"error","msg":"%s","time":"%s"}`, msg, time.Now().Format(time.RFC3339))
	} else {
		log.Printf("[ERROR] "+format, args...)
	}
}
