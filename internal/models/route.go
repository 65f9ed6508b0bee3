package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Coordinate is a WGS84 point. Immutable value.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteGeometry is the normalized output of a routing provider.
// Consecutive points need not be equidistant.
type RouteGeometry struct {
	Path                 []Coordinate
	TotalDistanceMeters  float64
	TotalDurationSeconds float64
	Provider             string
}

// Waypoint is a sampling point along a route.
type Waypoint struct {
	Name                    string     `json:"name"`
	Location                Coordinate `json:"location"`
	DistanceFromStartMeters float64    `json:"distanceFromStart"`
	ArrivalTime             *time.Time `json:"arrivalTime"`
	DurationSeconds         float64    `json:"duration"`
}

// Generated reports whether the waypoint still carries an interpolation placeholder name ("~N km").
func (w Waypoint) Generated() bool {
	return len(w.Name) > 0 && w.Name[0] == '~'
}

// Route is the route half of a route check response.
type Route struct {
	Waypoints            []Waypoint   `json:"waypoints"`
	TotalDurationSeconds float64      `json:"totalDuration"`
	TotalDistanceMeters  float64      `json:"totalDistance"`
	RoutePath            []Coordinate `json:"routePath"`
}

// RouteCheck is the full response of a route check.
type RouteCheck struct {
	Route         Route   `json:"route"`
	WeatherAlerts []Alert `json:"weatherAlerts"`
}

// RouteRequest is the caller input for a route check. Zero Speed/Spacing use service defaults.
type RouteRequest struct {
	Source        string  `json:"source"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departureTime"`
	Speed         FlexFloat `json:"speed"`
	Spacing       FlexFloat `json:"spacing"`
}

// FlexFloat decodes a JSON number, a numeric string or "" (zero). Form clients
// send edited numeric fields as strings.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] != '"' {
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*f = FlexFloat(v)
	return nil
}
