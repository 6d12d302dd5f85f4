package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/justlanded/tracker/internal/models"
)

func TestPrettyInterval(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "now"},
		{500 * time.Millisecond, "now"},
		{time.Second, "1 second"},
		{45 * time.Second, "45 seconds"},
		{time.Minute, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{19*time.Minute + 30*time.Second, "19 minutes"},
		{time.Hour, "1 hour"},
		{time.Hour + time.Minute, "1 hour 1 minute"},
		{2*time.Hour + 5*time.Minute, "2 hours 5 minutes"},
		{23*time.Hour + 59*time.Minute, "23 hours 59 minutes"},
		{25 * time.Hour, "1 day"},
		{3*24*time.Hour + 7*time.Hour, "3 days"},
		{-90 * time.Second, "1 minute"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, prettyInterval(tc.in), "prettyInterval(%v)", tc.in)
	}
}

func messageFlight(terminal string) *models.TrackedFlight {
	return &models.TrackedFlight{
		ID:           "fl-msg",
		FlightNumber: "UA815",
		Destination: models.AirportInfo{
			Code:     "LAX",
			Name:     "Los Angeles Intl",
			Terminal: terminal,
		},
	}
}

func TestReminderBodyWithTerminal(t *testing.T) {
	f := messageFlight("4")

	soon := reminderBody(f, models.ReminderLeaveSoon, 19*time.Minute+30*time.Second)
	assert.Equal(t, "Leave for Los Angeles Intl in 19 minutes. Flight UA815 arrives at terminal 4.", soon)

	now := reminderBody(f, models.ReminderLeaveNow, 0)
	assert.Equal(t, "Leave now for Los Angeles Intl. Flight UA815 arrives at terminal 4.", now)
}

func TestReminderBodyInternationalTerminal(t *testing.T) {
	f := messageFlight("I")

	soon := reminderBody(f, models.ReminderLeaveSoon, 5*time.Minute)
	assert.Equal(t, "Leave for Los Angeles Intl in 5 minutes. Flight UA815 arrives at the international terminal.", soon)

	now := reminderBody(f, models.ReminderLeaveNow, 0)
	assert.Equal(t, "Leave now for Los Angeles Intl. Flight UA815 arrives at the international terminal.", now)
}

func TestReminderBodyNoTerminal(t *testing.T) {
	f := messageFlight("")

	soon := reminderBody(f, models.ReminderLeaveSoon, time.Minute)
	assert.Equal(t, "Leave for Los Angeles Intl in 1 minute. Flight UA815 arrives soon.", soon)

	now := reminderBody(f, models.ReminderLeaveNow, 0)
	assert.Equal(t, "Leave now for Los Angeles Intl. Flight UA815 arrives soon.", now)
}

func TestReminderBodyFallsBackToAirportCode(t *testing.T) {
	f := messageFlight("")
	f.Destination.Name = ""

	body := reminderBody(f, models.ReminderLeaveNow, 0)
	assert.Equal(t, "Leave now for LAX. Flight UA815 arrives soon.", body)
}
