// Package reminder implements the high-frequency dispatch pass that tells
// users when to leave for the airport. Each pass re-derives every candidate
// flight's leave-by time from its freshest arrival estimate and the current
// driving time, so a reminder reflects conditions at send time rather than
// at tracking time. A leave-soon reminder fires once ahead of the leave-by
// time and a leave-now reminder fires once at it; the persisted marker only
// ever moves forward, so neither repeats.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justlanded/tracker/internal/config"
	"github.com/justlanded/tracker/internal/metrics"
	"github.com/justlanded/tracker/internal/models"
	"github.com/justlanded/tracker/internal/outage"
	"github.com/justlanded/tracker/internal/push"
	"github.com/justlanded/tracker/internal/store"
	"github.com/justlanded/tracker/internal/travel"
)

// Summary reports what a single dispatch pass did.
type Summary struct {
	// Evaluated is the number of candidate flights examined.
	Evaluated int

	// Sent is the number of reminders delivered.
	Sent int

	// Skipped is the number of candidates excluded from dispatch (disabled,
	// out of range, no location, no driving route, terminal status).
	Skipped int

	// Conflicts is the number of flights another worker was already
	// handling, detected by the flight lock or a version race.
	Conflicts int

	// Errors is the number of per-flight failures: travel lookups, push
	// deliveries, and store writes. Each is retried on the next pass.
	Errors int
}

// Dispatcher evaluates tracked flights against their leave-by times and
// delivers leave-soon and leave-now reminders.
type Dispatcher struct {
	store     store.Store
	estimator travel.Estimator
	sender    push.Sender
	outage    *outage.Tracker
	cfg       config.RemindersConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewDispatcher creates a new Dispatcher with the provided dependencies.
func NewDispatcher(st store.Store, estimator travel.Estimator, sender push.Sender, tracker *outage.Tracker, cfg config.RemindersConfig, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:     st,
		estimator: estimator,
		sender:    sender,
		outage:    tracker,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// Start begins the dispatch loop, running at the configured interval. The
// loop stops when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval.Duration)
	defer ticker.Stop()

	d.logger.Info("reminder dispatcher started",
		zap.Duration("interval", d.cfg.Interval.Duration),
		zap.Duration("soon_lead_time", d.cfg.SoonLeadTime.Duration),
		zap.Duration("lock_ttl", d.cfg.LockTTL.Duration),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("reminder dispatcher stopping", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			if _, err := d.Dispatch(ctx); err != nil {
				d.logger.Error("reminder dispatch failed", zap.Error(err))
			}
		}
	}
}

// Dispatch performs a single pass over the reminder candidates. The whole
// pass is skipped while a provider outage is in effect; a missed reminder
// is re-evaluated by the next pass, at most a minute later.
func (d *Dispatcher) Dispatch(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	if !d.outage.Healthy() {
		d.logger.Info("reminder dispatch skipped: provider outage in effect")
		d.metrics.ReminderRunsTotal.WithLabelValues("outage").Inc()
		return sum, nil
	}

	candidates, err := d.store.ListReminderCandidates()
	if err != nil {
		d.metrics.ReminderRunsTotal.WithLabelValues("error").Inc()
		return sum, fmt.Errorf("listing reminder candidates: %w", err)
	}

	now := time.Now()
	for _, f := range candidates {
		select {
		case <-ctx.Done():
			d.logger.Info("reminder dispatch interrupted by context cancellation",
				zap.Int("evaluated_so_far", sum.Evaluated),
			)
			d.metrics.ReminderRunsTotal.WithLabelValues("interrupted").Inc()
			return sum, ctx.Err()
		default:
		}

		sum.Evaluated++
		d.dispatchFlight(ctx, f, now, &sum)
	}

	duration := time.Since(start)
	d.metrics.ReminderRunDuration.Observe(duration.Seconds())
	d.metrics.ReminderRunsTotal.WithLabelValues("success").Inc()
	d.metrics.ComponentLastSuccess.WithLabelValues("reminders").Set(float64(time.Now().Unix()))

	d.logger.Info("reminder dispatch completed",
		zap.Int("evaluated", sum.Evaluated),
		zap.Int("sent", sum.Sent),
		zap.Int("skipped", sum.Skipped),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("errors", sum.Errors),
		zap.Duration("duration", duration),
	)

	return sum, nil
}

// dispatchFlight evaluates a single candidate as of now and sends whichever
// reminder is due, if any.
func (d *Dispatcher) dispatchFlight(ctx context.Context, f *models.TrackedFlight, now time.Time, sum *Summary) {
	if reason := d.excluded(f); reason != "" {
		sum.Skipped++
		d.metrics.RemindersSkippedTotal.WithLabelValues(reason).Inc()
		d.logger.Debug("reminder candidate excluded",
			zap.String("flight_id", f.ID),
			zap.String("reason", reason),
		)
		return
	}

	// Far-future arrivals cannot be due inside this pass; skip them before
	// paying for a travel estimate.
	if f.BestArrival().Sub(now) > d.cfg.ArrivalHorizon.Duration {
		return
	}

	travelTime, err := d.estimator.DrivingTime(ctx, *f.UserLocation, f.Destination.Location)
	switch {
	case err == nil:
		d.metrics.TravelEstimatesTotal.WithLabelValues("success").Inc()
	case errors.Is(err, travel.ErrNoRoute):
		// The user cannot drive there, so a leave-by time is meaningless.
		d.metrics.TravelEstimatesTotal.WithLabelValues("no_route").Inc()
		sum.Skipped++
		d.metrics.RemindersSkippedTotal.WithLabelValues("no_route").Inc()
		d.logger.Debug("no driving route to destination airport",
			zap.String("flight_id", f.ID),
		)
		return
	default:
		d.metrics.TravelEstimatesTotal.WithLabelValues("error").Inc()
		sum.Errors++
		d.logger.Warn("travel time lookup failed",
			zap.String("flight_id", f.ID),
			zap.Error(err),
		)
		return
	}

	kind := d.dueReminder(f, travelTime, now)
	if kind == "" {
		return
	}

	d.send(ctx, f, travelTime, kind, now, sum)
}

// excluded returns the reason a flight must not receive reminders, or the
// empty string if it is eligible. The candidate query already filters most
// of these; the re-check matters for the fresh read done under the flight
// lock, where any of them may have changed.
func (d *Dispatcher) excluded(f *models.TrackedFlight) string {
	switch {
	case f.State != models.StateActive:
		return "inactive"
	case !f.RemindersEnabled:
		return "disabled"
	case f.Canceled:
		return "canceled"
	case f.Diverted:
		return "diverted"
	case f.Marker == models.MarkerLeaveNowSent:
		return "already_sent"
	case f.UserLocation == nil:
		return "no_location"
	}

	dist := f.UserLocation.DistanceMiles(f.Destination.Location)
	switch {
	case dist < d.cfg.MinDistanceMiles:
		return "at_airport"
	case dist > d.cfg.MaxDistanceMiles:
		return "too_far"
	}
	return ""
}

// leaveBy computes when the user must start driving: arrival, minus the
// drive, minus the time the traveller needs to get off the plane and reach
// the curb. International arrivals get the longer deboarding buffer.
func (d *Dispatcher) leaveBy(f *models.TrackedFlight, travelTime time.Duration) time.Time {
	deboard := d.cfg.DeboardDomestic.Duration
	if f.International {
		deboard = d.cfg.DeboardInternational.Duration
	}
	return f.BestArrival().Add(-travelTime - deboard)
}

// dueReminder decides which reminder, if any, is due as of now. Leave-now
// supersedes leave-soon when both thresholds have passed, and the marker
// never moves backwards: once leave-soon is sent only leave-now remains,
// and once leave-now is sent nothing does.
func (d *Dispatcher) dueReminder(f *models.TrackedFlight, travelTime time.Duration, now time.Time) string {
	leaveBy := d.leaveBy(f, travelTime)
	switch {
	case f.Marker != models.MarkerLeaveNowSent && !now.Before(leaveBy):
		return models.ReminderLeaveNow
	case f.Marker == models.MarkerNone && !now.Before(leaveBy.Add(-d.cfg.SoonLeadTime.Duration)):
		return models.ReminderLeaveSoon
	default:
		return ""
	}
}

// send delivers one reminder under the per-flight advisory lock. The flight
// is re-read once the lock is held and the decision re-derived from the
// fresh record, so two overlapping passes cannot both send for the same
// crossing: the loser of the lock skips, and a pass arriving after the
// marker moved finds nothing due. The marker is persisted only after a
// successful push; a failed push leaves it untouched for the next pass to
// retry.
func (d *Dispatcher) send(ctx context.Context, f *models.TrackedFlight, travelTime time.Duration, kind string, now time.Time, sum *Summary) {
	owner := uuid.New().String()
	ok, err := d.store.AcquireFlightLock(f.ID, owner, d.cfg.LockTTL.Duration)
	if err != nil {
		sum.Errors++
		d.logger.Error("acquiring flight lock failed",
			zap.String("flight_id", f.ID),
			zap.Error(err),
		)
		return
	}
	if !ok {
		sum.Conflicts++
		d.metrics.LockConflictsTotal.Inc()
		d.logger.Debug("flight locked by another worker",
			zap.String("flight_id", f.ID),
		)
		return
	}
	defer func() {
		if err := d.store.ReleaseFlightLock(f.ID, owner); err != nil {
			d.logger.Warn("releasing flight lock failed",
				zap.String("flight_id", f.ID),
				zap.Error(err),
			)
		}
	}()

	fresh, err := d.store.GetFlight(f.ID)
	if err != nil {
		sum.Errors++
		d.logger.Error("re-reading flight under lock failed",
			zap.String("flight_id", f.ID),
			zap.Error(err),
		)
		return
	}

	// The due decision was made on a possibly stale read; re-derive it on
	// the record as it is now that the lock is held.
	if reason := d.excluded(fresh); reason != "" {
		sum.Conflicts++
		d.logger.Debug("flight changed before lock was held",
			zap.String("flight_id", fresh.ID),
			zap.String("reason", reason),
		)
		return
	}
	kind = d.dueReminder(fresh, travelTime, now)
	if kind == "" {
		sum.Conflicts++
		d.logger.Debug("reminder already handled by another pass",
			zap.String("flight_id", fresh.ID),
		)
		return
	}

	n := &push.Notification{
		UserID: fresh.UserID,
		Type:   kind,
		Body:   reminderBody(fresh, kind, d.leaveBy(fresh, travelTime).Sub(now)),
		Sound:  push.SoundDefault,
	}

	pushStart := time.Now()
	err = d.sender.Send(ctx, n)
	d.metrics.PushDuration.Observe(time.Since(pushStart).Seconds())
	if err != nil {
		sum.Errors++
		d.metrics.PushFailuresTotal.WithLabelValues(kind).Inc()
		d.logger.Warn("reminder delivery failed",
			zap.String("flight_id", fresh.ID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}

	sum.Sent++
	d.metrics.RecordReminderSent(kind)
	d.logger.Info("reminder sent",
		zap.String("flight_id", fresh.ID),
		zap.String("flight_number", fresh.FlightNumber),
		zap.String("user_id", fresh.UserID),
		zap.String("kind", kind),
	)

	if err := d.store.SetMarker(fresh.ID, models.MarkerFor(kind), fresh.Version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Delivered, but a concurrent writer moved the record before the
			// marker landed; the next pass may repeat this reminder once.
			sum.Conflicts++
			d.metrics.StoreConflictsTotal.WithLabelValues("set_marker").Inc()
			d.logger.Warn("marker update lost a version race after send",
				zap.String("flight_id", fresh.ID),
				zap.String("kind", kind),
			)
			return
		}
		sum.Errors++
		d.logger.Error("persisting reminder marker failed",
			zap.String("flight_id", fresh.ID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}
