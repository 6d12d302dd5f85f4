// Package metrics defines and registers all Prometheus metrics used by the
// flight tracker. Metrics are organised by functional area and share the
// common "tracker_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector used by the tracker.
type Metrics struct {
	// ---------------------------------------------------------------
	// Flight Tracking
	// ---------------------------------------------------------------

	// TrackedFlights tracks the number of tracked flights by state.
	TrackedFlights *prometheus.GaugeVec

	// FlightTransitionsTotal counts flight state transitions by target state.
	FlightTransitionsTotal *prometheus.CounterVec

	// FlightsPurgedTotal counts stale flight records removed by retention.
	FlightsPurgedTotal prometheus.Counter

	// ---------------------------------------------------------------
	// Flight Data Provider
	// ---------------------------------------------------------------

	// ProviderErrorsTotal counts failed provider calls by operation and kind.
	ProviderErrorsTotal *prometheus.CounterVec

	// AlertsRegisteredTotal counts flight alerts registered with the provider.
	AlertsRegisteredTotal prometheus.Counter

	// AlertsCanceledTotal counts provider alerts canceled, by reason.
	AlertsCanceledTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Reminders
	// ---------------------------------------------------------------

	// ReminderRunsTotal counts reminder dispatch runs by status.
	ReminderRunsTotal *prometheus.CounterVec

	// ReminderRunDuration observes how long each dispatch run takes.
	ReminderRunDuration prometheus.Histogram

	// RemindersSentTotal counts leave reminders delivered, by kind.
	RemindersSentTotal *prometheus.CounterVec

	// RemindersSkippedTotal counts reminder candidates skipped, by reason.
	RemindersSkippedTotal *prometheus.CounterVec

	// LockConflictsTotal counts flight lock claims lost to another worker.
	LockConflictsTotal prometheus.Counter

	// TravelEstimatesTotal counts travel time lookups by status.
	TravelEstimatesTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Push Delivery
	// ---------------------------------------------------------------

	// PushFailuresTotal counts push notifications the relay did not accept.
	PushFailuresTotal *prometheus.CounterVec

	// PushDuration observes the time taken to deliver a push notification.
	PushDuration prometheus.Histogram

	// ---------------------------------------------------------------
	// Lifecycle
	// ---------------------------------------------------------------

	// LifecycleRunsTotal counts lifecycle sweeps by status.
	LifecycleRunsTotal *prometheus.CounterVec

	// LifecycleRunDuration observes how long each lifecycle sweep takes.
	LifecycleRunDuration prometheus.Histogram

	// LifecycleVerificationsTotal counts provider lookups made to verify
	// flights past their estimated arrival, by outcome.
	LifecycleVerificationsTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Alert Reconciliation
	// ---------------------------------------------------------------

	// ReconciliationRunsTotal counts alert reconciliation runs by status.
	ReconciliationRunsTotal *prometheus.CounterVec

	// ReconciliationDuration observes how long each reconciliation run takes.
	ReconciliationDuration prometheus.Histogram

	// OrphanAlertsTotal counts orphaned provider alerts detected.
	OrphanAlertsTotal prometheus.Counter

	// ---------------------------------------------------------------
	// Outage Detection
	// ---------------------------------------------------------------

	// OutageActive indicates whether a provider outage is in effect (1 = yes).
	OutageActive prometheus.Gauge

	// OutagesTotal counts provider outages declared.
	OutagesTotal prometheus.Counter

	// ProviderFailureCount tracks the rolling provider failure count.
	ProviderFailureCount prometheus.Gauge

	// ProviderFailureRate tracks the rolling provider failure rate per minute.
	ProviderFailureRate prometheus.Gauge

	// OutageProbesTotal counts recovery probe calls by result.
	OutageProbesTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------

	// DBSizeBytes tracks the database file size.
	DBSizeBytes prometheus.Gauge

	// StoreConflictsTotal counts version-checked updates lost to a concurrent
	// writer, by operation.
	StoreConflictsTotal *prometheus.CounterVec

	// ---------------------------------------------------------------
	// Storage Volume
	// ---------------------------------------------------------------

	// StorageVolumeSizeBytes tracks the total size of the data volume.
	StorageVolumeSizeBytes prometheus.Gauge

	// StorageVolumeUsedBytes tracks the used bytes on the data volume.
	StorageVolumeUsedBytes prometheus.Gauge

	// StorageVolumeAvailableBytes tracks the available bytes on the data volume.
	StorageVolumeAvailableBytes prometheus.Gauge

	// StorageVolumeUsagePercent tracks volume usage as a percentage.
	StorageVolumeUsagePercent prometheus.Gauge

	// StorageVolumeInodesTotal tracks the total inodes on the data volume.
	StorageVolumeInodesTotal prometheus.Gauge

	// StorageVolumeInodesUsed tracks the used inodes on the data volume.
	StorageVolumeInodesUsed prometheus.Gauge

	// StoragePressure indicates the current storage pressure level; exactly
	// one of the none/warning/critical series is 1 at a time.
	StoragePressure *prometheus.GaugeVec

	// ---------------------------------------------------------------
	// Component Health
	// ---------------------------------------------------------------

	// ComponentUp indicates whether a component is healthy (1) or not (0).
	ComponentUp *prometheus.GaugeVec

	// ComponentLastSuccess records the Unix timestamp of each component's last success.
	ComponentLastSuccess *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics with the supplied
// registerer. Pass prometheus.DefaultRegisterer for global registration or a
// custom registry for testing.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{}

	// -------------------------------------------------------------------
	// Flight Tracking Metrics
	// -------------------------------------------------------------------

	m.TrackedFlights = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_flights",
		Help: "Number of tracked flights by state.",
	}, []string{"state"})
	registerer.MustRegister(m.TrackedFlights)

	m.FlightTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_flight_transitions_total",
		Help: "Total flight state transitions by target state.",
	}, []string{"to_state"})
	registerer.MustRegister(m.FlightTransitionsTotal)

	m.FlightsPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_flights_purged_total",
		Help: "Total stale flight records removed by retention.",
	})
	registerer.MustRegister(m.FlightsPurgedTotal)

	// -------------------------------------------------------------------
	// Flight Data Provider Metrics
	// -------------------------------------------------------------------

	m.ProviderErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_provider_errors_total",
		Help: "Failed provider calls by operation and error kind.",
	}, []string{"operation", "kind"})
	registerer.MustRegister(m.ProviderErrorsTotal)

	m.AlertsRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_alerts_registered_total",
		Help: "Total flight alerts registered with the provider.",
	})
	registerer.MustRegister(m.AlertsRegisteredTotal)

	m.AlertsCanceledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_alerts_canceled_total",
		Help: "Total provider alerts canceled, by reason.",
	}, []string{"reason"})
	registerer.MustRegister(m.AlertsCanceledTotal)

	// -------------------------------------------------------------------
	// Reminder Metrics
	// -------------------------------------------------------------------

	m.ReminderRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_reminder_runs_total",
		Help: "Total reminder dispatch runs by status.",
	}, []string{"status"})
	registerer.MustRegister(m.ReminderRunsTotal)

	m.ReminderRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_reminder_run_duration_seconds",
		Help:    "Duration of each reminder dispatch run.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
	registerer.MustRegister(m.ReminderRunDuration)

	m.RemindersSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_reminders_sent_total",
		Help: "Total leave reminders delivered, by kind.",
	}, []string{"kind"})
	registerer.MustRegister(m.RemindersSentTotal)

	m.RemindersSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_reminders_skipped_total",
		Help: "Total reminder candidates skipped, by reason.",
	}, []string{"reason"})
	registerer.MustRegister(m.RemindersSkippedTotal)

	m.LockConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_lock_conflicts_total",
		Help: "Total flight lock claims lost to another worker.",
	})
	registerer.MustRegister(m.LockConflictsTotal)

	m.TravelEstimatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_travel_estimates_total",
		Help: "Total travel time lookups by status.",
	}, []string{"status"})
	registerer.MustRegister(m.TravelEstimatesTotal)

	// -------------------------------------------------------------------
	// Push Delivery Metrics
	// -------------------------------------------------------------------

	m.PushFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_push_failures_total",
		Help: "Push notifications the relay did not accept, by reminder kind.",
	}, []string{"kind"})
	registerer.MustRegister(m.PushFailuresTotal)

	m.PushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_push_duration_seconds",
		Help:    "Time taken to deliver a push notification.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
	registerer.MustRegister(m.PushDuration)

	// -------------------------------------------------------------------
	// Lifecycle Metrics
	// -------------------------------------------------------------------

	m.LifecycleRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_lifecycle_runs_total",
		Help: "Total lifecycle sweeps by status.",
	}, []string{"status"})
	registerer.MustRegister(m.LifecycleRunsTotal)

	m.LifecycleRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_lifecycle_run_duration_seconds",
		Help:    "Duration of each lifecycle sweep.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
	registerer.MustRegister(m.LifecycleRunDuration)

	m.LifecycleVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_lifecycle_verifications_total",
		Help: "Provider lookups made to verify overdue flights, by outcome.",
	}, []string{"outcome"})
	registerer.MustRegister(m.LifecycleVerificationsTotal)

	// -------------------------------------------------------------------
	// Alert Reconciliation Metrics
	// -------------------------------------------------------------------

	m.ReconciliationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_reconciliation_runs_total",
		Help: "Total alert reconciliation runs by status.",
	}, []string{"status"})
	registerer.MustRegister(m.ReconciliationRunsTotal)

	m.ReconciliationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_reconciliation_duration_seconds",
		Help:    "Duration of each alert reconciliation run.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
	registerer.MustRegister(m.ReconciliationDuration)

	m.OrphanAlertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_orphan_alerts_total",
		Help: "Total orphaned provider alerts detected.",
	})
	registerer.MustRegister(m.OrphanAlertsTotal)

	// -------------------------------------------------------------------
	// Outage Detection Metrics
	// -------------------------------------------------------------------

	m.OutageActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_outage_active",
		Help: "Whether a provider outage is in effect (1 = yes, 0 = no).",
	})
	registerer.MustRegister(m.OutageActive)

	m.OutagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_outages_total",
		Help: "Total provider outages declared.",
	})
	registerer.MustRegister(m.OutagesTotal)

	m.ProviderFailureCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_provider_failure_count",
		Help: "Provider failures currently inside the rolling window.",
	})
	registerer.MustRegister(m.ProviderFailureCount)

	m.ProviderFailureRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_provider_failure_rate_per_minute",
		Help: "Provider failure rate over the rolling window, per minute.",
	})
	registerer.MustRegister(m.ProviderFailureRate)

	m.OutageProbesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_outage_probes_total",
		Help: "Recovery probe calls made during an outage, by result.",
	}, []string{"result"})
	registerer.MustRegister(m.OutageProbesTotal)

	// -------------------------------------------------------------------
	// Database Metrics
	// -------------------------------------------------------------------

	m.DBSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_db_size_bytes",
		Help: "Size of the database file in bytes.",
	})
	registerer.MustRegister(m.DBSizeBytes)

	m.StorageVolumeSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_size_bytes",
		Help: "Total size of the data volume in bytes.",
	})
	registerer.MustRegister(m.StorageVolumeSizeBytes)

	m.StorageVolumeUsedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_used_bytes",
		Help: "Used bytes on the data volume.",
	})
	registerer.MustRegister(m.StorageVolumeUsedBytes)

	m.StorageVolumeAvailableBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_available_bytes",
		Help: "Available bytes on the data volume.",
	})
	registerer.MustRegister(m.StorageVolumeAvailableBytes)

	m.StorageVolumeUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_usage_percent",
		Help: "Data volume usage percentage.",
	})
	registerer.MustRegister(m.StorageVolumeUsagePercent)

	m.StorageVolumeInodesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_inodes_total",
		Help: "Total inodes on the data volume.",
	})
	registerer.MustRegister(m.StorageVolumeInodesTotal)

	m.StorageVolumeInodesUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_storage_volume_inodes_used",
		Help: "Used inodes on the data volume.",
	})
	registerer.MustRegister(m.StorageVolumeInodesUsed)

	m.StoragePressure = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_storage_pressure",
		Help: "Storage pressure level; one of none/warning/critical is 1.",
	}, []string{"level"})
	registerer.MustRegister(m.StoragePressure)

	m.StoreConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_store_conflicts_total",
		Help: "Version-checked updates lost to a concurrent writer, by operation.",
	}, []string{"operation"})
	registerer.MustRegister(m.StoreConflictsTotal)

	// -------------------------------------------------------------------
	// Component Health Metrics
	// -------------------------------------------------------------------

	m.ComponentUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_component_up",
		Help: "Whether a component is healthy (1) or not (0).",
	}, []string{"component"})
	registerer.MustRegister(m.ComponentUp)

	m.ComponentLastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tracker_component_last_success_timestamp",
		Help: "Unix timestamp of each component's last successful run.",
	}, []string{"component"})
	registerer.MustRegister(m.ComponentLastSuccess)

	return m
}

// New creates a Metrics instance registered against the default Prometheus
// registry. This is a convenience wrapper for use in production code and
// tests that do not need an isolated registry.
func New() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// RecordTransition increments the transition counter for the given target
// state (e.g. "landed", "stale").
func (m *Metrics) RecordTransition(toState string) {
	m.FlightTransitionsTotal.WithLabelValues(toState).Inc()
}

// RecordReminderSent increments the sent counter for the given reminder kind
// (e.g. "leave_soon", "leave_now").
func (m *Metrics) RecordReminderSent(kind string) {
	m.RemindersSentTotal.WithLabelValues(kind).Inc()
}

// RecordProviderError increments the provider error counter for the given
// operation and error kind (e.g. "unavailable", "rejected").
func (m *Metrics) RecordProviderError(operation, kind string) {
	m.ProviderErrorsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordOutageState sets the outage gauge. OutagesTotal is incremented by the
// outage monitor on the healthy to outage transition only, so it counts
// distinct outages rather than checks.
func (m *Metrics) RecordOutageState(active bool) {
	if active {
		m.OutageActive.Set(1)
	} else {
		m.OutageActive.Set(0)
	}
}
