package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/justlanded/tracker/internal/models"
)

// internationalTerminal is the terminal code providers use for a dedicated
// international arrivals terminal.
const internationalTerminal = "I"

// prettyInterval renders a duration the way a person would say it: "45
// seconds", "1 minute", "2 hours 5 minutes". Anything of a day or more is
// rounded to whole days, and the zero duration reads as "now".
func prettyInterval(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = -secs
	}

	days := secs / 86400
	if days > 0 {
		if days > 1 {
			return fmt.Sprintf("%d days", days)
		}
		return "1 day"
	}

	hours := secs / 3600
	minutes := (secs % 3600) / 60

	parts := make([]string, 0, 2)
	switch {
	case hours > 1:
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	case hours == 1:
		parts = append(parts, "1 hour")
	}
	switch {
	case minutes > 1:
		parts = append(parts, fmt.Sprintf("%d minutes", minutes))
	case minutes == 1:
		parts = append(parts, "1 minute")
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}

	switch {
	case secs > 1:
		return fmt.Sprintf("%d seconds", secs)
	case secs == 1:
		return "1 second"
	default:
		return "now"
	}
}

// destName returns the friendliest available name for the destination
// airport.
func destName(f *models.TrackedFlight) string {
	if f.Destination.Name != "" {
		return f.Destination.Name
	}
	return f.Destination.Code
}

// reminderBody renders the push text for a reminder of the given kind. The
// wording names the arrival terminal when it is known. timeToLeave is how
// long the user has before they must start driving; it appears in the
// leave-soon wording only.
func reminderBody(f *models.TrackedFlight, kind string, timeToLeave time.Duration) string {
	dest := destName(f)

	if kind == models.ReminderLeaveNow {
		switch {
		case f.Destination.Terminal == internationalTerminal:
			return fmt.Sprintf("Leave now for %s. Flight %s arrives at the international terminal.", dest, f.FlightNumber)
		case f.Destination.Terminal != "":
			return fmt.Sprintf("Leave now for %s. Flight %s arrives at terminal %s.", dest, f.FlightNumber, f.Destination.Terminal)
		default:
			return fmt.Sprintf("Leave now for %s. Flight %s arrives soon.", dest, f.FlightNumber)
		}
	}

	in := prettyInterval(timeToLeave)
	switch {
	case f.Destination.Terminal == internationalTerminal:
		return fmt.Sprintf("Leave for %s in %s. Flight %s arrives at the international terminal.", dest, in, f.FlightNumber)
	case f.Destination.Terminal != "":
		return fmt.Sprintf("Leave for %s in %s. Flight %s arrives at terminal %s.", dest, in, f.FlightNumber, f.Destination.Terminal)
	default:
		return fmt.Sprintf("Leave for %s in %s. Flight %s arrives soon.", dest, in, f.FlightNumber)
	}
}
