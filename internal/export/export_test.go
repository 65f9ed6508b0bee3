package export

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

func sampleCheck() models.RouteCheck {
	t0 := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	t1 := t0.Add(2 * time.Hour)
	mumbai := models.Coordinate{Lat: 19.076, Lng: 72.8777}
	lonavala := models.Coordinate{Lat: 18.75, Lng: 73.4}
	pune := models.Coordinate{Lat: 18.5204, Lng: 73.8567}
	return models.RouteCheck{
		Route: models.Route{
			Waypoints: []models.Waypoint{
				{Name: "Mumbai", Location: mumbai, ArrivalTime: &t0},
				{Name: "Lonavala", Location: lonavala, DistanceFromStartMeters: 83_000, ArrivalTime: &t1},
				{Name: "Pune", Location: pune, DistanceFromStartMeters: 120_000, ArrivalTime: &t1},
			},
			TotalDistanceMeters:  120_000,
			TotalDurationSeconds: 9_000,
			RoutePath:            []models.Coordinate{mumbai, lonavala, pune},
		},
		WeatherAlerts: []models.Alert{
			{LocationName: "Mumbai", ArrivalTimeLocal: "11:30 AM", Message: "Clear weather expected in Mumbai at 11:30 AM.", Severity: models.SeverityLow, Coordinates: mumbai,
				Weather: &models.WeatherSample{TemperatureC: 29.5, Description: "clear sky", Provider: "mock"}},
			{LocationName: "Lonavala", ArrivalTimeLocal: "01:30 PM", Message: "Rain Alert: Expect rains in Lonavala at 01:30 PM.", Severity: models.SeverityHigh, Coordinates: lonavala,
				Weather: &models.WeatherSample{TemperatureC: 22, Description: "light rain", Precipitating: true, Provider: "mock"}},
			{LocationName: "Pune", ArrivalTimeLocal: "01:30 PM", Message: "Weather data unavailable for Pune", Severity: models.SeverityUnknown, Coordinates: pune},
		},
	}
}

func TestKML(t *testing.T) {
	out, err := KML(sampleCheck())
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "<LineString>")
	assert.Contains(t, doc, "<name>Mumbai to Pune</name>")
	assert.Contains(t, doc, "<name>Lonavala</name>")
	assert.Contains(t, doc, "#severity-high")
	assert.Regexp(t, `73\.40*,18\.750*`, doc)
	assert.Equal(t, 4, strings.Count(doc, "<Placemark>"))

	// Well-formed XML.
	dec := xml.NewDecoder(bytes.NewReader(out))
	for {
		_, err := dec.Token()
		if err != nil {
			assert.Equal(t, "EOF", err.Error())
			break
		}
	}
}

func TestKML_NoPath(t *testing.T) {
	out, err := KML(models.RouteCheck{})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<LineString>")
}

func TestXLSX(t *testing.T) {
	out, err := XLSX(sampleCheck())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(alertsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Waypoint", rows[0][0])
	assert.Equal(t, "Lonavala", rows[2][0])
	assert.Equal(t, "83", rows[2][3])
	assert.Equal(t, "high", rows[2][6])
	assert.Equal(t, "light rain", rows[2][8])
	assert.Equal(t, "unknown", rows[3][6])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Route", "Mumbai to Pune"}, summary[0])
	assert.Equal(t, []string{"High", "1"}, summary[4])
}
