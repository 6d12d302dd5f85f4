// Package reconciler implements the periodic pass that keeps the provider's
// alert subscriptions aligned with the flight store. Every subscription the
// provider holds is billed, so an alert no tracked flight references is pure
// cost: the pass lists both sides, diffs them, and cancels the orphans.
// Cancellation is at-least-once; an orphan that fails to cancel stays a
// candidate for the next pass.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/internal/outage"
	"github.com/justlanded/tracker/internal/store"
	"github.com/justlanded/tracker/pkg/flightaware"
)

// Summary reports what a single reconciliation pass found and did.
type Summary struct {
	// ProviderAlerts is how many alert subscriptions the provider reported.
	ProviderAlerts int

	// Referenced is how many subscription IDs non-stale tracked flights
	// reference.
	Referenced int

	// Orphans is how many provider alerts nothing references.
	Orphans int

	// Canceled is how many orphans were removed this pass, counting alerts
	// the provider had already forgotten.
	Canceled int

	// Failed is how many orphans could not be canceled. They remain
	// candidates for the next pass.
	Failed int
}

// Reconciler periodically compares the provider's alert subscriptions
// against the flight store and cancels the subscriptions nothing references.
type Reconciler struct {
	store   store.Store
	client  flightaware.Client
	outage  *outage.Tracker
	cfg     config.ReconcilerConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewReconciler creates a new Reconciler with the provided dependencies.
func NewReconciler(st store.Store, client flightaware.Client, tracker *outage.Tracker, cfg config.ReconcilerConfig, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   st,
		client:  client,
		outage:  tracker,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the reconciliation loop. If cfg.OnStartup is true an initial
// pass runs immediately; subsequent passes are triggered at the configured
// interval. The loop stops when ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("alert reconciler started",
		zap.Duration("interval", r.cfg.Interval.Duration),
		zap.Bool("on_startup", r.cfg.OnStartup),
	)

	if r.cfg.OnStartup {
		if _, err := r.Reconcile(ctx); err != nil {
			r.logger.Error("startup reconciliation failed", zap.Error(err))
		}
	}

	ticker := time.NewTicker(r.cfg.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("alert reconciler stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				r.logger.Error("reconciliation failed", zap.Error(err))
			}
		}
	}
}

// Reconcile performs a single reconciliation pass. The pass is skipped
// entirely while a provider outage is in effect. A cancellation failure for
// one orphan does not fail the pass: the ID is counted, logged by the
// client, and retried next time. The returned error is non-nil only when a
// listing fails or the context ends the pass early.
func (r *Reconciler) Reconcile(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	if !r.outage.Healthy() {
		r.logger.Info("reconciliation skipped: provider outage in effect")
		r.metrics.ReconciliationRunsTotal.WithLabelValues("outage").Inc()
		return sum, nil
	}

	alerts, err := r.client.ListAlerts(ctx)
	if err != nil {
		r.metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("listing provider alerts: %w", err)
	}
	sum.ProviderAlerts = len(alerts)

	referenced, err := r.store.ListAlertIDs()
	if err != nil {
		r.metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("listing referenced alert IDs: %w", err)
	}
	sum.Referenced = len(referenced)

	refSet := make(map[string]struct{}, len(referenced))
	for _, id := range referenced {
		refSet[id] = struct{}{}
	}

	var orphans []string
	for _, alert := range alerts {
		if _, ok := refSet[alert.ID]; ok {
			continue
		}
		r.logger.Warn("orphaned provider alert detected",
			zap.String("alert_id", alert.ID),
			zap.String("flight_id", alert.FlightID),
			zap.String("flight_number", alert.FlightNumber),
		)
		orphans = append(orphans, alert.ID)
	}
	sum.Orphans = len(orphans)

	if len(orphans) > 0 {
		r.metrics.OrphanAlertsTotal.Add(float64(len(orphans)))

		canceled, failed, err := r.client.CancelAlerts(ctx, orphans)
		sum.Canceled = canceled
		sum.Failed = failed
		r.metrics.AlertsCanceledTotal.WithLabelValues("orphaned").Add(float64(canceled))
		if err != nil {
			r.metrics.ReconciliationRunsTotal.WithLabelValues("interrupted").Inc()
			return sum, fmt.Errorf("canceling orphaned alerts: %w", err)
		}
	}

	duration := time.Since(start)
	r.metrics.ReconciliationDuration.Observe(duration.Seconds())
	r.metrics.ReconciliationRunsTotal.WithLabelValues("success").Inc()
	r.metrics.ComponentLastSuccess.WithLabelValues("reconciler").Set(float64(time.Now().Unix()))

	r.logger.Info("reconciliation completed",
		zap.Int("provider_alerts", sum.ProviderAlerts),
		zap.Int("referenced", sum.Referenced),
		zap.Int("orphans", sum.Orphans),
		zap.Int("canceled", sum.Canceled),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", duration),
	)

	return sum, nil
}
