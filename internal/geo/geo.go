// Package geo holds the geodesy helpers used by the route pipeline.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

const earthRadiusMeters = 6371000

// DistanceMeters returns the haversine great-circle distance between a and b.
// Inputs are not validated.
func DistanceMeters(a, b models.Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// PathLength returns the cumulative segment length of path in meters.
func PathLength(path []models.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}

// Lerp linearly interpolates latitude and longitude between a and b.
func Lerp(a, b models.Coordinate, ratio float64) models.Coordinate {
	return models.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*ratio,
		Lng: a.Lng + (b.Lng-a.Lng)*ratio,
	}
}

// Sample returns n+1 points evenly spaced (in degrees) from a to b, both ends included.
func Sample(a, b models.Coordinate, n int) []models.Coordinate {
	if n < 1 {
		n = 1
	}
	out := make([]models.Coordinate, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, Lerp(a, b, float64(i)/float64(n)))
	}
	return append(out, b)
}

// DecodePolyline decodes a precision-5 encoded polyline (Google / OpenRouteService format).
func DecodePolyline(encoded string) ([]models.Coordinate, error) {
	if encoded == "" {
		return nil, errors.New("empty polyline")
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	out := make([]models.Coordinate, 0, len(coords))
	for _, c := range coords {
		out = append(out, models.Coordinate{Lat: c[0], Lng: c[1]})
	}
	return out, nil
}

// RoundKey rounds c to 3 decimal places (~110 m) and joins it as "lat,lng".
func RoundKey(c models.Coordinate) string {
	return fmt.Sprintf("%.3f,%.3f", c.Lat, c.Lng)
}

// Valid reports whether c is inside the WGS84 latitude/longitude ranges.
func Valid(c models.Coordinate) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
