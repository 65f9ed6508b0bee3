// Package waypoint derives evenly spaced sampling points along a route polyline.
package waypoint

import (
	"fmt"
	"math"

	"github.com/kjstillabower/rain-route-planner/internal/geo"
	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// thresholdEpsilon absorbs rounding when a threshold lands exactly on the path end.
const thresholdEpsilon = 1e-6

// Interpolate walks path and emits a waypoint every intervalMeters of cumulative
// path length, interpolating linearly inside the segment that crosses each threshold.
// The source and destination are not included. Durations are proportional to
// distance when totalDistanceMeters > 0.
//
// The number of waypoints is floor(PathLength(path) / intervalMeters).
func Interpolate(path []models.Coordinate, intervalMeters, totalDistanceMeters, totalDurationSeconds float64) []models.Waypoint {
	if len(path) < 2 || intervalMeters <= 0 || math.IsNaN(intervalMeters) || math.IsInf(intervalMeters, 0) {
		return nil
	}

	var (
		out               []models.Waypoint
		accumulated       float64
		distanceFromStart float64
		step              = 1
		nextThreshold     = intervalMeters
	)
	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		seg := geo.DistanceMeters(from, to)

		// seg == 0 cannot satisfy the condition twice for the same threshold.
		for accumulated+seg >= nextThreshold-thresholdEpsilon {
			remaining := nextThreshold - accumulated
			ratio := 0.0
			if seg > 0 {
				ratio = clamp(remaining/seg, 0, 1)
			}
			distAtPoint := distanceFromStart + remaining
			duration := 0.0
			if totalDistanceMeters > 0 {
				duration = totalDurationSeconds * (distAtPoint / totalDistanceMeters)
			}
			out = append(out, models.Waypoint{
				Name:                    PlaceholderName(nextThreshold),
				Location:                geo.Lerp(from, to, ratio),
				DistanceFromStartMeters: distAtPoint,
				DurationSeconds:         duration,
			})
			// k*interval rather than repeated addition keeps thresholds free of drift.
			step++
			nextThreshold = float64(step) * intervalMeters
		}

		accumulated += seg
		distanceFromStart += seg
	}
	return out
}

// PlaceholderName is the "~N km" name a generated waypoint carries until it is reverse geocoded.
func PlaceholderName(distanceMeters float64) string {
	return fmt.Sprintf("~%d km", int64(math.Round(distanceMeters/1000)))
}

// Count returns how many equal segments a route of totalDistanceMeters is split into
// for a target spacing of spacingKm: max(1, floor(totalKm / spacingKm)).
func Count(totalDistanceMeters, spacingKm float64) int {
	if spacingKm <= 0 {
		return 1
	}
	n := int(math.Floor(totalDistanceMeters / 1000 / spacingKm))
	if n < 1 {
		return 1
	}
	return n
}

// Interval returns the actual interpolation interval: the route divided into Count equal parts.
// Spacing is a target; the interval equals spacingKm only when it divides the route evenly.
func Interval(totalDistanceMeters, spacingKm float64) float64 {
	return totalDistanceMeters / float64(Count(totalDistanceMeters, spacingKm))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
