package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

const (
	alertsSheet  = "Alerts"
	summarySheet = "Summary"
)

var alertHeaders = []interface{}{
	"Waypoint", "Lat", "Lng", "Distance (km)", "Arrival (UTC)", "Arrival (local)",
	"Severity", "Temperature (C)", "Description", "Provider", "Alert",
}

// XLSX renders one row per waypoint plus a summary sheet.
func XLSX(check models.RouteCheck) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", alertsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(alertsSheet)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", alertHeaders); err != nil {
		return nil, err
	}

	for i, wp := range check.Route.Waypoints {
		row := []interface{}{
			wp.Name, wp.Location.Lat, wp.Location.Lng, round2(wp.DistanceFromStartMeters / 1000), "", "",
			"", "", "", "", "",
		}
		if wp.ArrivalTime != nil {
			row[4] = wp.ArrivalTime.UTC().Format("2006-01-02 15:04")
		}
		if i < len(check.WeatherAlerts) {
			a := check.WeatherAlerts[i]
			row[5] = a.ArrivalTimeLocal
			row[6] = string(a.Severity)
			row[10] = a.Message
			if a.Weather != nil {
				row[7] = a.Weather.TemperatureC
				row[8] = a.Weather.Description
				row[9] = a.Weather.Provider
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	counts := map[models.Severity]int{}
	for _, a := range check.WeatherAlerts {
		counts[a.Severity]++
	}
	summary := [][]interface{}{
		{"Route", routeTitle(check)},
		{"Distance (km)", round2(check.Route.TotalDistanceMeters / 1000)},
		{"Duration (h)", round2(check.Route.TotalDurationSeconds / 3600)},
		{"Waypoints", len(check.Route.Waypoints)},
		{"High", counts[models.SeverityHigh]},
		{"Medium", counts[models.SeverityMedium]},
		{"Low", counts[models.SeverityLow]},
		{"Unknown", counts[models.SeverityUnknown]},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
