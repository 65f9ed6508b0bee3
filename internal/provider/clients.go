package provider

import (
	"context"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// Provider names used as strategy names, breaker keys and metric labels.
const (
	NameOpenRoute          = "openroute"
	NameNominatim          = "nominatim"
	NameOpenWeather        = "openweather"
	NameOpenWeatherCurrent = "openweather-current"
	NameOpenMeteo          = "open-meteo"
	NameMock               = "mock"
	NameCentroid           = "centroid"
)

// OpenRouteAPI is the subset of client.OpenRouteClient the chains use.
type OpenRouteAPI interface {
	Configured() bool
	Geocode(ctx context.Context, text, country string) (models.Coordinate, error)
	Reverse(ctx context.Context, at models.Coordinate) (string, error)
	Directions(ctx context.Context, from, to models.Coordinate) (models.RouteGeometry, error)
}

// NominatimAPI is the subset of client.NominatimClient the chains use.
type NominatimAPI interface {
	Configured() bool
	Search(ctx context.Context, query string) (models.Coordinate, error)
	Reverse(ctx context.Context, at models.Coordinate) (string, error)
}

// OpenWeatherAPI is the subset of client.OpenWeatherClient the weather chain uses.
type OpenWeatherAPI interface {
	Configured() bool
	Forecast(ctx context.Context, at models.Coordinate) ([]models.WeatherSample, error)
	Current(ctx context.Context, at models.Coordinate) (models.WeatherSample, error)
}

// OpenMeteoAPI is the subset of client.OpenMeteoClient the weather chain uses.
type OpenMeteoAPI interface {
	Configured() bool
	Hourly(ctx context.Context, at models.Coordinate) ([]models.WeatherSample, error)
}

type configurable interface{ Configured() bool }

// availability returns an Available func for c; a nil client is never available.
func availability(c configurable) func() bool {
	return func() bool { return c != nil && c.Configured() }
}
