package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// ArrivalTimeLayout is the wall-clock layout used in alert messages.
const ArrivalTimeLayout = "03:04 PM"

// minReportedOffsetHours is the smallest forecast alignment error mentioned in a message.
const minReportedOffsetHours = 0.1

// ArrivalTime is departure plus the time to cover distanceMeters at a constant speedKmh.
// It ignores any per-point duration reported by the routing provider.
func ArrivalTime(departure time.Time, distanceMeters, speedKmh float64) time.Time {
	if speedKmh <= 0 {
		return departure
	}
	seconds := distanceMeters / 1000 / speedKmh * 3600
	return departure.Add(time.Duration(seconds * float64(time.Second)))
}

// Classify maps a weather sample to a severity. A nil sample means the lookup failed.
func Classify(w *models.WeatherSample) models.Severity {
	switch {
	case w == nil:
		return models.SeverityUnknown
	case w.Precipitating:
		return models.SeverityHigh
	case strings.Contains(strings.ToLower(w.Description), "cloud"):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Message renders the alert text for a waypoint.
func Message(name, arrival string, severity models.Severity, w *models.WeatherSample) string {
	var msg string
	switch severity {
	case models.SeverityUnknown:
		return "Weather data unavailable for " + name
	case models.SeverityHigh:
		msg = fmt.Sprintf("Rain Alert: Expect rains in %s at %s.", name, arrival)
	case models.SeverityMedium:
		msg = fmt.Sprintf("Cloudy skies expected in %s at %s.", name, arrival)
	default:
		msg = fmt.Sprintf("Clear weather expected in %s at %s.", name, arrival)
	}
	if w != nil && w.AlignmentErrorHours >= minReportedOffsetHours {
		msg += fmt.Sprintf(" (forecast offset %.1fh)", w.AlignmentErrorHours)
	}
	return msg
}

// BuildAlert derives the alert for a waypoint from its weather sample (nil on failure).
func BuildAlert(wp models.Waypoint, arrival time.Time, loc *time.Location, w *models.WeatherSample) models.Alert {
	if loc == nil {
		loc = time.UTC
	}
	local := arrival.In(loc).Format(ArrivalTimeLayout)
	severity := Classify(w)
	return models.Alert{
		LocationName:     wp.Name,
		ArrivalTimeLocal: local,
		Message:          Message(wp.Name, local, severity, w),
		Severity:         severity,
		Weather:          w,
		Coordinates:      wp.Location,
	}
}
