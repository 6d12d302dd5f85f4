//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justlanded/tracker/internal/lifecycle"
	"github.com/justlanded/tracker/internal/models"
	"github.com/justlanded/tracker/internal/reconciler"
	"github.com/justlanded/tracker/internal/reminder"
)

// TestOutageFlow_ProviderOutageGatesAndRecovers walks the full provider
// outage lifecycle: transport failures accumulate in the shared failure
// window until the outage monitor declares an outage, every periodic
// component then gates itself without touching the provider or the travel
// API, and a successful probe after the provider comes back ends the outage
// and lets the backlog drain on the next sweep.
func TestOutageFlow_ProviderOutageGatesAndRecovers(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()

	// Five long-overdue flights, each needing provider verification.
	for i := 1; i <= 5; i++ {
		f := trackedFlight(fmt.Sprintf("fl-o%d", i), -3*time.Hour)
		require.NoError(t, env.Store.InsertFlight(f))
	}

	env.Provider.setDown(true)

	// Every verification fails; each failure lands in the shared window.
	sum, err := env.newMonitor().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Checked)
	assert.Equal(t, 5, sum.Skipped)
	assert.Equal(t, 0, sum.Stale)

	assert.Equal(t, 5, env.Outage.Count())
	assert.True(t, env.Outage.Healthy(), "failures alone do not flip the state; the monitor does")

	// Five failures inside a second clears both thresholds.
	om := env.newOutageMonitor()
	om.Check(ctx)
	require.False(t, env.Outage.Healthy(), "outage should be declared")

	// While the outage holds, no component touches the provider or pays for
	// a travel estimate.
	infoCalls := env.Provider.callCount("/FlightInfoEx")
	alertCalls := env.Provider.callCount("/GetAlerts")
	travelCalls := env.Travel.callCount()

	dsum, err := env.newDispatcher().Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.Summary{}, dsum)

	lsum, err := env.newMonitor().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Summary{}, lsum)

	rsum, err := env.newReconciler().Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciler.Summary{}, rsum)

	assert.Equal(t, infoCalls, env.Provider.callCount("/FlightInfoEx"))
	assert.Equal(t, alertCalls, env.Provider.callCount("/GetAlerts"))
	assert.Equal(t, travelCalls, env.Travel.callCount())

	// Provider comes back; the next check probes it and ends the outage.
	env.Provider.setDown(false)

	om.Check(ctx)
	assert.True(t, env.Outage.Healthy(), "successful probe should end the outage")
	assert.Equal(t, 0, env.Outage.Count(), "recovery clears the failure window")
	assert.Equal(t, alertCalls+1, env.Provider.callCount("/GetAlerts"), "recovery should be probed, not assumed")

	// With the gate lifted the backlog drains: the provider no longer knows
	// these flights, so the sweep retires them.
	sum, err = env.newMonitor().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Checked)
	assert.Equal(t, 5, sum.Stale)
	assert.Equal(t, 0, sum.Skipped)

	stored, err := env.Store.GetFlight("fl-o1")
	require.NoError(t, err)
	assert.Equal(t, models.StateStale, stored.State)
}

// TestOutageFlow_FailedProbeKeepsOutageInEffect verifies that a probe
// answered with another failure keeps the outage going and feeds the
// failure window rather than resetting it.
func TestOutageFlow_FailedProbeKeepsOutageInEffect(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		f := trackedFlight(fmt.Sprintf("fl-p%d", i), -3*time.Hour)
		require.NoError(t, env.Store.InsertFlight(f))
	}

	env.Provider.setDown(true)

	_, err := env.newMonitor().Sweep(ctx)
	require.NoError(t, err)

	om := env.newOutageMonitor()
	om.Check(ctx)
	require.False(t, env.Outage.Healthy())

	// Still down: the probe fails and the outage holds.
	om.Check(ctx)
	assert.False(t, env.Outage.Healthy(), "failed probe must not end the outage")
	assert.Equal(t, 6, env.Outage.Count(), "the failed probe joins the failure window")
}
