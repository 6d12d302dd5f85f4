// Package lifecycle implements the periodic sweep that retires finished
// flights. Flights known to have landed beyond the grace period move to
// stale directly; flights that are merely overdue are verified against the
// provider first. Stale records past the retention period are purged to
// prevent unbounded growth of the tracked_flights table.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/internal/models"
	"github.com/justlanded/tracker/internal/outage"
	"github.com/justlanded/tracker/internal/store"
	"github.com/justlanded/tracker/pkg/flightaware"
)

// Summary reports what a single sweep did.
type Summary struct {
	// Checked is the number of non-stale flights examined.
	Checked int

	// Landed is the number of flights confirmed landed this sweep.
	Landed int

	// Stale is the number of flights retired this sweep.
	Stale int

	// Skipped is the number of flights left untouched because the provider
	// could not be reached for them.
	Skipped int

	// Conflicts is the number of updates lost to a concurrent writer.
	Conflicts int

	// Errors is the number of per-flight failures other than skips.
	Errors int

	// Purged is the number of stale records removed by retention.
	Purged int64
}

// Monitor drives tracked flights through their lifecycle: active flights are
// confirmed landed, landed flights are retired after the grace period, and
// retired records are eventually purged.
type Monitor struct {
	store   store.Store
	client  flightaware.Client
	outage  *outage.Tracker
	cfg     config.LifecycleConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMonitor creates a new Monitor with the provided dependencies.
func NewMonitor(st store.Store, client flightaware.Client, tracker *outage.Tracker, cfg config.LifecycleConfig, m *metrics.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		store:   st,
		client:  client,
		outage:  tracker,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the sweep loop, running at the configured interval. The loop
// stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval.Duration)
	defer ticker.Stop()

	m.logger.Info("lifecycle monitor started",
		zap.Duration("interval", m.cfg.Interval.Duration),
		zap.Duration("grace_period", m.cfg.GracePeriod.Duration),
		zap.Duration("retention_period", m.cfg.RetentionPeriod.Duration),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("lifecycle monitor stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error("lifecycle sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs a single lifecycle pass. The whole pass is skipped while a
// provider outage is in effect. Flights landed beyond the grace period are
// retired without a provider call; overdue flights are verified against the
// provider first. Retired records older than the retention period are purged
// at the end.
func (m *Monitor) Sweep(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	if !m.outage.Healthy() {
		m.logger.Info("lifecycle sweep skipped: provider outage in effect")
		m.metrics.LifecycleRunsTotal.WithLabelValues("outage").Inc()
		return sum, nil
	}

	flights, err := m.store.ListNotStale()
	if err != nil {
		m.metrics.LifecycleRunsTotal.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("listing tracked flights: %w", err)
	}

	now := time.Now()
	for _, f := range flights {
		select {
		case <-ctx.Done():
			m.logger.Info("lifecycle sweep interrupted by context cancellation",
				zap.Int("checked_so_far", sum.Checked),
			)
			m.metrics.LifecycleRunsTotal.WithLabelValues("interrupted").Inc()
			return sum, ctx.Err()
		default:
		}

		sum.Checked++
		m.sweepFlight(ctx, f, now, &sum)
	}

	purged, err := m.store.PurgeStale(m.cfg.RetentionPeriod.Duration)
	if err != nil {
		m.logger.Error("purging stale flights failed", zap.Error(err))
		sum.Errors++
	} else if purged > 0 {
		sum.Purged = purged
		m.metrics.FlightsPurgedTotal.Add(float64(purged))

		// Reclaim the pages freed by the purge.
		if err := m.store.RunIncrementalVacuum(); err != nil {
			m.logger.Error("incremental vacuum failed", zap.Error(err))
			// Not a fatal error; the sweep still completed.
		}
	}

	m.updateGauges()

	duration := time.Since(start)
	m.metrics.LifecycleRunDuration.Observe(duration.Seconds())
	m.metrics.LifecycleRunsTotal.WithLabelValues("success").Inc()
	m.metrics.ComponentLastSuccess.WithLabelValues("lifecycle").Set(float64(time.Now().Unix()))

	m.logger.Info("lifecycle sweep completed",
		zap.Int("checked", sum.Checked),
		zap.Int("landed", sum.Landed),
		zap.Int("stale", sum.Stale),
		zap.Int("skipped", sum.Skipped),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("errors", sum.Errors),
		zap.Int64("purged", sum.Purged),
		zap.Duration("duration", duration),
	)

	return sum, nil
}

// sweepFlight decides the fate of a single flight as of now.
func (m *Monitor) sweepFlight(ctx context.Context, f *models.TrackedFlight, now time.Time, sum *Summary) {
	grace := m.cfg.GracePeriod.Duration

	// Known landed long enough ago: retire without consulting the provider.
	if f.IsOld(grace, now) {
		m.retire(ctx, f, sum)
		return
	}

	if !f.IsProbablyOld(grace, now) {
		return
	}

	// Overdue but not confirmed landed: verify against the provider before
	// deciding anything.
	info, err := m.client.LookupStatus(ctx, f.ID, f.FlightNumber)
	switch {
	case err == nil:
		m.applyVerified(ctx, f, info, now, sum)
	case errors.Is(err, flightaware.ErrFlightGone):
		// The provider no longer knows the flight; it has aged out.
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("gone").Inc()
		m.retire(ctx, f, sum)
	case errors.Is(err, flightaware.ErrUnavailable):
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("unavailable").Inc()
		m.logger.Warn("provider unavailable while verifying flight",
			zap.String("flight_id", f.ID),
		)
		sum.Skipped++
	default:
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("error").Inc()
		m.metrics.RecordProviderError("flight_info", "rejected")
		m.logger.Error("verifying flight failed",
			zap.String("flight_id", f.ID),
			zap.Error(err),
		)
		sum.Errors++
	}
}

// applyVerified folds a fresh provider answer for an overdue flight back
// into the store.
func (m *Monitor) applyVerified(ctx context.Context, f *models.TrackedFlight, info *flightaware.FlightInfo, now time.Time, sum *Summary) {
	switch {
	case info.LandedAt != nil && now.Sub(*info.LandedAt) > m.cfg.GracePeriod.Duration:
		// Landed long ago; no point parking it in the landed state first.
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("landed").Inc()
		m.retire(ctx, f, sum)

	case info.LandedAt != nil:
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("landed").Inc()
		if err := m.store.MarkLanded(f.ID, *info.LandedAt, f.Version); err != nil {
			m.recordUpdateFailure(f, "mark_landed", err, sum)
			return
		}
		sum.Landed++
		m.metrics.RecordTransition(models.StateLanded)
		m.logger.Info("flight confirmed landed",
			zap.String("flight_id", f.ID),
			zap.String("flight_number", f.FlightNumber),
			zap.Time("landed_at", *info.LandedAt),
		)

	case info.Canceled:
		// A canceled flight never arrives; once overdue it is done.
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("canceled").Inc()
		m.retire(ctx, f, sum)

	default:
		m.metrics.LifecycleVerificationsTotal.WithLabelValues("active").Inc()
		if info.EstimatedArrival.IsZero() || info.EstimatedArrival.Equal(f.EstimatedArrival) {
			return
		}
		if err := m.store.UpdateArrival(f.ID, info.EstimatedArrival, f.Version); err != nil {
			m.recordUpdateFailure(f, "update_arrival", err, sum)
			return
		}
		m.logger.Debug("arrival estimate refreshed",
			zap.String("flight_id", f.ID),
			zap.Time("estimated_arrival", info.EstimatedArrival),
		)
	}
}

// retire cancels the flight's alert subscription and moves the record to
// stale. The store clears the subscription reference in the same update, so
// a stale flight never references an alert.
func (m *Monitor) retire(ctx context.Context, f *models.TrackedFlight, sum *Summary) {
	if f.HasAlert() {
		err := m.client.CancelAlert(ctx, f.AlertID)
		if err != nil && !errors.Is(err, flightaware.ErrRejected) {
			// Keep the alert reference so the next sweep retries the cancel.
			m.logger.Warn("canceling alert for retiring flight failed",
				zap.String("flight_id", f.ID),
				zap.String("alert_id", f.AlertID),
				zap.Error(err),
			)
			sum.Skipped++
			return
		}
		m.metrics.AlertsCanceledTotal.WithLabelValues("stale").Inc()
	}

	if err := m.store.MarkStale(f.ID, f.Version); err != nil {
		m.recordUpdateFailure(f, "mark_stale", err, sum)
		return
	}

	sum.Stale++
	m.metrics.RecordTransition(models.StateStale)
	m.logger.Info("flight retired",
		zap.String("flight_id", f.ID),
		zap.String("flight_number", f.FlightNumber),
	)
}

// recordUpdateFailure classifies a failed store update: a version conflict
// is a silent skip, anything else is an error.
func (m *Monitor) recordUpdateFailure(f *models.TrackedFlight, operation string, err error, sum *Summary) {
	if errors.Is(err, store.ErrConflict) {
		sum.Conflicts++
		m.metrics.StoreConflictsTotal.WithLabelValues(operation).Inc()
		m.logger.Debug("update lost a version race",
			zap.String("flight_id", f.ID),
			zap.String("operation", operation),
		)
		return
	}
	sum.Errors++
	m.logger.Error("store update failed",
		zap.String("flight_id", f.ID),
		zap.String("operation", operation),
		zap.Error(err),
	)
}

// updateGauges refreshes the flight-count and database-size gauges.
func (m *Monitor) updateGauges() {
	counts, err := m.store.CountByState()
	if err != nil {
		m.logger.Error("counting flights by state failed", zap.Error(err))
	} else {
		for state, n := range counts {
			m.metrics.TrackedFlights.WithLabelValues(state).Set(float64(n))
		}
	}

	size, err := m.store.GetDatabaseSizeBytes()
	if err != nil {
		m.logger.Error("reading database size failed", zap.Error(err))
		return
	}
	m.metrics.DBSizeBytes.Set(float64(size))
}
