package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/client"
	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// ErrOutsideHorizon is returned when a forecast series does not reach the requested time.
var ErrOutsideHorizon = errors.New("outside forecast horizon")

// WeatherOptions controls the weather chain.
type WeatherOptions struct {
	MockEnabled bool
	// MaxForecastOffset rejects a series whose nearest entry is further than this
	// from the requested time, so the next strategy is tried. Zero means 6h.
	MaxForecastOffset time.Duration
	Now               func() time.Time
}

type weatherQuery struct {
	At   models.Coordinate
	Time time.Time
}

// WeatherSource returns conditions at a coordinate for a target time.
type WeatherSource struct {
	chain *Chain[weatherQuery, models.WeatherSample]
}

// NewWeatherSource builds the weather chain: openweather forecast, open-meteo, openweather current, then mock when enabled.
func NewWeatherSource(ow OpenWeatherAPI, om OpenMeteoAPI, breakers Breakers, opts WeatherOptions) *WeatherSource {
	if opts.MaxForecastOffset <= 0 {
		opts.MaxForecastOffset = 6 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var strategies []Strategy[weatherQuery, models.WeatherSample]
	if ow != nil {
		cb := breakers.get(NameOpenWeather)
		strategies = append(strategies, Strategy[weatherQuery, models.WeatherSample]{
			Name:      NameOpenWeather,
			Available: availability(ow),
			Fn: func(ctx context.Context, q weatherQuery) (models.WeatherSample, error) {
				series, err := guarded(ctx, cb, func(ctx context.Context) ([]models.WeatherSample, error) {
					return ow.Forecast(ctx, q.At)
				})
				if err != nil {
					return models.WeatherSample{}, err
				}
				return nearestWithin(series, q.Time, opts.MaxForecastOffset)
			},
		})
	}
	if om != nil {
		cb := breakers.get(NameOpenMeteo)
		strategies = append(strategies, Strategy[weatherQuery, models.WeatherSample]{
			Name:      NameOpenMeteo,
			Available: availability(om),
			Fn: func(ctx context.Context, q weatherQuery) (models.WeatherSample, error) {
				series, err := guarded(ctx, cb, func(ctx context.Context) ([]models.WeatherSample, error) {
					return om.Hourly(ctx, q.At)
				})
				if err != nil {
					return models.WeatherSample{}, err
				}
				return nearestWithin(series, q.Time, opts.MaxForecastOffset)
			},
		})
	}
	if ow != nil {
		cb := breakers.get(NameOpenWeather)
		now := opts.Now
		strategies = append(strategies, Strategy[weatherQuery, models.WeatherSample]{
			Name:      NameOpenWeatherCurrent,
			Available: availability(ow),
			Fn: func(ctx context.Context, q weatherQuery) (models.WeatherSample, error) {
				s, err := guarded(ctx, cb, func(ctx context.Context) (models.WeatherSample, error) {
					return ow.Current(ctx, q.At)
				})
				if err != nil {
					return models.WeatherSample{}, err
				}
				s.IsForecast = false
				s.AlignmentErrorHours = math.Abs(q.Time.Sub(now()).Hours())
				s.Provider = NameOpenWeatherCurrent
				return s, nil
			},
		})
	}
	if opts.MockEnabled {
		strategies = append(strategies, Strategy[weatherQuery, models.WeatherSample]{
			Name: NameMock,
			Fn: func(_ context.Context, q weatherQuery) (models.WeatherSample, error) {
				return MockWeather(q.At, q.Time), nil
			},
		})
	}
	return &WeatherSource{chain: NewChain("weather", strategies...)}
}

// Weather returns the best available sample for at around time t.
func (w *WeatherSource) Weather(ctx context.Context, at models.Coordinate, t time.Time) (models.WeatherSample, error) {
	s, _, err := w.chain.Run(ctx, weatherQuery{At: at, Time: t})
	if err != nil {
		return models.WeatherSample{}, fmt.Errorf("weather: %w", err)
	}
	return s, nil
}

// Nearest returns the series entry closest in time to t, with its alignment
// error filled in. ok is false for an empty series.
func Nearest(series []models.WeatherSample, t time.Time) (models.WeatherSample, bool) {
	if len(series) == 0 {
		return models.WeatherSample{}, false
	}
	best := 0
	bestDiff := absDuration(series[0].ForecastTime.Sub(t))
	for i := 1; i < len(series); i++ {
		if d := absDuration(series[i].ForecastTime.Sub(t)); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	s := series[best]
	s.AlignmentErrorHours = bestDiff.Hours()
	return s, true
}

func nearestWithin(series []models.WeatherSample, t time.Time, maxOffset time.Duration) (models.WeatherSample, error) {
	s, ok := Nearest(series, t)
	if !ok {
		return models.WeatherSample{}, fmt.Errorf("empty forecast series: %w", client.ErrNotFound)
	}
	if s.AlignmentErrorHours > maxOffset.Hours() {
		return models.WeatherSample{}, fmt.Errorf("%w: nearest entry %.1fh from arrival", ErrOutsideHorizon, s.AlignmentErrorHours)
	}
	return s, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
