// Package export renders a route check as KML for map tools or XLSX for spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"image/color"

	kml "github.com/twpayne/go-kml"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

var severityColors = map[models.Severity]color.Color{
	models.SeverityHigh:    color.RGBA{R: 220, G: 38, B: 38, A: 255},
	models.SeverityMedium:  color.RGBA{R: 234, G: 179, B: 8, A: 255},
	models.SeverityLow:     color.RGBA{R: 22, G: 163, B: 74, A: 255},
	models.SeverityUnknown: color.RGBA{R: 107, G: 114, B: 128, A: 255},
}

// KML renders the route path as a LineString and each alert as a styled Placemark.
func KML(check models.RouteCheck) ([]byte, error) {
	styles := make(map[models.Severity]*kml.SharedElement, len(severityColors))
	children := []kml.Element{kml.Name(routeTitle(check))}
	for _, sev := range []models.Severity{models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityUnknown} {
		s := kml.SharedStyle("severity-"+string(sev),
			kml.IconStyle(kml.Color(severityColors[sev]), kml.Scale(1.1)),
		)
		styles[sev] = s
		children = append(children, s)
	}
	children = append(children, kml.SharedStyle("route",
		kml.LineStyle(kml.Color(color.RGBA{R: 37, G: 99, B: 235, A: 255}), kml.Width(4)),
	))

	if len(check.Route.RoutePath) >= 2 {
		coords := make([]kml.Coordinate, len(check.Route.RoutePath))
		for i, c := range check.Route.RoutePath {
			coords[i] = kml.Coordinate{Lon: c.Lng, Lat: c.Lat}
		}
		children = append(children, kml.Placemark(
			kml.Name("Route"),
			kml.StyleURL("#route"),
			kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...)),
		))
	}

	for _, a := range check.WeatherAlerts {
		style, ok := styles[a.Severity]
		if !ok {
			style = styles[models.SeverityUnknown]
		}
		children = append(children, kml.Placemark(
			kml.Name(a.LocationName),
			kml.Description(fmt.Sprintf("%s [%s, ETA %s]", a.Message, a.Severity, a.ArrivalTimeLocal)),
			kml.StyleURL(style.URL()),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: a.Coordinates.Lng, Lat: a.Coordinates.Lat})),
		))
	}

	var buf bytes.Buffer
	if err := kml.KML(kml.Document(children...)).WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("write kml: %w", err)
	}
	return buf.Bytes(), nil
}

func routeTitle(check models.RouteCheck) string {
	wps := check.Route.Waypoints
	if len(wps) < 2 {
		return "Route"
	}
	return wps[0].Name + " to " + wps[len(wps)-1].Name
}
