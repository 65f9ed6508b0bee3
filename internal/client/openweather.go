package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// DefaultOpenWeatherURL is the OpenWeatherMap 2.5 API base.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// demoAPIKey is the placeholder key shipped in sample configs; it never authenticates.
const demoAPIKey = "demo"

// OpenWeatherClient fetches current conditions and the 5-day/3-hour forecast.
type OpenWeatherClient struct {
	base
	apiKey  string
	baseURL string
}

func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	apiKey = strings.TrimSpace(apiKey)
	if strings.EqualFold(apiKey, demoAPIKey) {
		apiKey = ""
	}
	return &OpenWeatherClient{
		base:    newBase("openweather", timeout, ""),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether a usable API key is present.
func (c *OpenWeatherClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

type openWeatherEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain map[string]float64 `json:"rain"`
	Snow map[string]float64 `json:"snow"`
}

type openWeatherForecast struct {
	List []openWeatherEntry `json:"list"`
}

// Forecast returns the forecast series for a coordinate, ordered by time.
func (c *OpenWeatherClient) Forecast(ctx context.Context, at models.Coordinate) ([]models.WeatherSample, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("openweather: %w", ErrMissingCredential)
	}
	var resp openWeatherForecast
	if err := c.get(ctx, "/forecast", at, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, fmt.Errorf("openweather forecast: empty series: %w", ErrNotFound)
	}
	samples := make([]models.WeatherSample, 0, len(resp.List))
	for _, e := range resp.List {
		samples = append(samples, e.sample(true))
	}
	return samples, nil
}

// Current returns observed conditions at a coordinate.
func (c *OpenWeatherClient) Current(ctx context.Context, at models.Coordinate) (models.WeatherSample, error) {
	if !c.Configured() {
		return models.WeatherSample{}, fmt.Errorf("openweather: %w", ErrMissingCredential)
	}
	var resp openWeatherEntry
	if err := c.get(ctx, "/weather", at, &resp); err != nil {
		return models.WeatherSample{}, err
	}
	s := resp.sample(false)
	if resp.Dt == 0 {
		s.ForecastTime = time.Now().UTC()
	}
	return s, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, path string, at models.Coordinate, out any) error {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	return c.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	}, out)
}

func (e openWeatherEntry) sample(forecast bool) models.WeatherSample {
	description, group := "", ""
	if len(e.Weather) > 0 {
		group = e.Weather[0].Main
		description = e.Weather[0].Description
		if description == "" {
			description = group
		}
	}
	return models.WeatherSample{
		TemperatureC:  e.Main.Temp,
		Description:   description,
		Precipitating: e.Rain["1h"] > 0 || e.Rain["3h"] > 0 || e.Snow["1h"] > 0 || e.Snow["3h"] > 0 || precipitationGroup(group),
		HumidityPct:   e.Main.Humidity,
		WindSpeedMs:   e.Wind.Speed,
		ForecastTime:  time.Unix(e.Dt, 0).UTC(),
		IsForecast:    forecast,
		Provider:      "openweather",
	}
}

func precipitationGroup(group string) bool {
	switch group {
	case "Rain", "Drizzle", "Thunderstorm", "Snow":
		return true
	}
	return false
}
