package outage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/pkg/flightaware"
)

// Monitor periodically evaluates the failure window against the configured
// thresholds, declares outages, and probes the provider during an outage to
// detect recovery.
type Monitor struct {
	tracker *Tracker
	client  flightaware.Client
	cfg     config.OutageConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMonitor creates a new Monitor with the provided dependencies.
func NewMonitor(tracker *Tracker, client flightaware.Client, cfg config.OutageConfig, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		tracker: tracker,
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the outage evaluation loop, running at the configured
// interval. The loop stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval.Duration)
	defer ticker.Stop()

	m.logger.Info("outage monitor started",
		zap.Duration("interval", m.cfg.Interval.Duration),
		zap.Int("min_failures", m.cfg.MinFailures),
		zap.Float64("max_failures_per_minute", m.cfg.MaxFailuresPerMinute),
		zap.Duration("recovery_wait", m.cfg.RecoveryWait.Duration),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("outage monitor stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs a single outage evaluation. While the provider is healthy
// it declares an outage once the window holds at least MinFailures failures
// arriving faster than MaxFailuresPerMinute. During an outage it ends the
// outage when the provider answers a probe call, or when no failure has been
// seen for RecoveryWait.
func (m *Monitor) Check(ctx context.Context) {
	count := m.tracker.Count()
	rate := m.tracker.Rate()
	m.metrics.ProviderFailureCount.Set(float64(count))
	m.metrics.ProviderFailureRate.Set(rate)

	if m.tracker.Healthy() {
		if count >= m.cfg.MinFailures && rate > m.cfg.MaxFailuresPerMinute {
			if m.tracker.MarkOutage() {
				m.metrics.OutagesTotal.Inc()
				m.logger.Warn("provider outage declared",
					zap.Int("failures", count),
					zap.Float64("failures_per_minute", rate),
				)
			}
		}
		m.metrics.RecordOutageState(!m.tracker.Healthy())
		return
	}

	if m.recovered(ctx) {
		elapsed := m.tracker.MarkHealthy()
		m.metrics.ProviderFailureCount.Set(0)
		m.metrics.ProviderFailureRate.Set(0)
		m.logger.Info("provider outage over", zap.Duration("duration", elapsed))
	}
	// Every check leaves the gauge agreeing with the tracker state.
	m.metrics.RecordOutageState(!m.tracker.Healthy())
}

// recovered reports whether the current outage should end. A quiet period
// since the last failure counts as recovery; a successful probe call counts
// even while failures are recent. A failed probe feeds the failure window
// through the provider client, which pushes the quiet period out.
func (m *Monitor) recovered(ctx context.Context) bool {
	last := m.tracker.LastFailure()
	if last.IsZero() || time.Since(last) >= m.cfg.RecoveryWait.Duration {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout.Duration)
	defer cancel()

	if _, err := m.client.ListAlerts(probeCtx); err != nil {
		m.metrics.OutageProbesTotal.WithLabelValues("failure").Inc()
		m.logger.Debug("outage probe failed", zap.Error(err))
		return false
	}

	m.metrics.OutageProbesTotal.WithLabelValues("success").Inc()
	m.logger.Debug("outage probe succeeded")
	return true
}
