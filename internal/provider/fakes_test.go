package provider

import (
	"context"
	"sync/atomic"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

type fakeORS struct {
	configured bool
	geocode    func(text string) (models.Coordinate, error)
	reverse    func(at models.Coordinate) (string, error)
	directions func(from, to models.Coordinate) (models.RouteGeometry, error)

	geocodeCalls atomic.Int32
	reverseCalls atomic.Int32
	routeCalls   atomic.Int32
	queries      []string
}

func (f *fakeORS) Configured() bool { return f.configured }

func (f *fakeORS) Geocode(_ context.Context, text, _ string) (models.Coordinate, error) {
	f.geocodeCalls.Add(1)
	f.queries = append(f.queries, text)
	return f.geocode(text)
}

func (f *fakeORS) Reverse(_ context.Context, at models.Coordinate) (string, error) {
	f.reverseCalls.Add(1)
	return f.reverse(at)
}

func (f *fakeORS) Directions(_ context.Context, from, to models.Coordinate) (models.RouteGeometry, error) {
	f.routeCalls.Add(1)
	return f.directions(from, to)
}

type fakeNominatim struct {
	configured bool
	search     func(q string) (models.Coordinate, error)
	reverse    func(at models.Coordinate) (string, error)

	searchCalls  atomic.Int32
	reverseCalls atomic.Int32
}

func (f *fakeNominatim) Configured() bool { return f.configured }

func (f *fakeNominatim) Search(_ context.Context, q string) (models.Coordinate, error) {
	f.searchCalls.Add(1)
	return f.search(q)
}

func (f *fakeNominatim) Reverse(_ context.Context, at models.Coordinate) (string, error) {
	f.reverseCalls.Add(1)
	return f.reverse(at)
}

type fakeOpenWeather struct {
	configured bool
	forecast   func(at models.Coordinate) ([]models.WeatherSample, error)
	current    func(at models.Coordinate) (models.WeatherSample, error)
}

func (f *fakeOpenWeather) Configured() bool { return f.configured }

func (f *fakeOpenWeather) Forecast(_ context.Context, at models.Coordinate) ([]models.WeatherSample, error) {
	return f.forecast(at)
}

func (f *fakeOpenWeather) Current(_ context.Context, at models.Coordinate) (models.WeatherSample, error) {
	return f.current(at)
}

type fakeOpenMeteo struct {
	configured bool
	hourly     func(at models.Coordinate) ([]models.WeatherSample, error)
}

func (f *fakeOpenMeteo) Configured() bool { return f.configured }

func (f *fakeOpenMeteo) Hourly(_ context.Context, at models.Coordinate) ([]models.WeatherSample, error) {
	return f.hourly(at)
}
