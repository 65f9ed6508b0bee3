package models

import "time"

// WeatherSample is a point-in-time weather reading or forecast for a waypoint.
type WeatherSample struct {
	TemperatureC        float64   `json:"temperature"`
	Description         string    `json:"description"`
	Precipitating       bool      `json:"rain"`
	HumidityPct         float64   `json:"humidity"`
	WindSpeedMs         float64   `json:"windSpeed"`
	ForecastTime        time.Time `json:"forecastTime"`
	IsForecast          bool      `json:"isForecast"`
	AlignmentErrorHours float64   `json:"alignmentErrorHours"`
	Provider            string    `json:"provider"`
}

// Severity classifies the hazard at a waypoint's ETA.
type Severity string

const (
	SeverityLow     Severity = "low"
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityUnknown Severity = "unknown"
)

// Alert is the weather outlook for one waypoint. Weather is nil when the lookup failed.
type Alert struct {
	LocationName     string         `json:"location"`
	ArrivalTimeLocal string         `json:"arrivalTime"`
	Message          string         `json:"alert"`
	Severity         Severity       `json:"severity"`
	Weather          *WeatherSample `json:"weatherData"`
	Coordinates      Coordinate     `json:"coords"`
}
