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

// DefaultOpenMeteoURL is the keyless Open-Meteo forecast API base.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1"

const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteoClient fetches hourly forecast series. It needs no credential.
type OpenMeteoClient struct {
	base
	baseURL string
	enabled bool
}

func NewOpenMeteoClient(baseURL string, enabled bool, timeout time.Duration) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoClient{
		base:    newBase("open-meteo", timeout, ""),
		baseURL: strings.TrimRight(baseURL, "/"),
		enabled: enabled,
	}
}

// Configured reports whether the client is enabled.
func (c *OpenMeteoClient) Configured() bool {
	return c != nil && c.enabled
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Humidity      []float64 `json:"relative_humidity_2m"`
		Precipitation []float64 `json:"precipitation"`
		WeatherCode   []int     `json:"weather_code"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// Hourly returns the hourly forecast series for a coordinate, ordered by time.
func (c *OpenMeteoClient) Hourly(ctx context.Context, at models.Coordinate) ([]models.WeatherSample, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("open-meteo disabled: %w", ErrMissingCredential)
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	params.Set("hourly", "temperature_2m,relative_humidity_2m,precipitation,weather_code,wind_speed_10m")
	params.Set("wind_speed_unit", "ms")
	params.Set("timezone", "UTC")
	params.Set("forecast_days", "7")

	var resp openMeteoResponse
	err := c.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+params.Encode(), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}

	h := resp.Hourly
	samples := make([]models.WeatherSample, 0, len(h.Time))
	for i, ts := range h.Time {
		t, err := time.ParseInLocation(openMeteoTimeLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse open-meteo time %q: %w", ts, err)
		}
		code := intAt(h.WeatherCode, i)
		samples = append(samples, models.WeatherSample{
			TemperatureC:  floatAt(h.Temperature, i),
			Description:   WeatherCodeDescription(code),
			Precipitating: floatAt(h.Precipitation, i) > 0 || precipitationCode(code),
			HumidityPct:   floatAt(h.Humidity, i),
			WindSpeedMs:   floatAt(h.WindSpeed, i),
			ForecastTime:  t,
			IsForecast:    true,
			Provider:      "open-meteo",
		})
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("open-meteo: empty series: %w", ErrNotFound)
	}
	return samples, nil
}

// WeatherCodeDescription maps a WMO weather interpretation code to text.
func WeatherCodeDescription(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code == 1:
		return "mainly clear"
	case code == 2:
		return "partly cloudy"
	case code == 3:
		return "overcast clouds"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	}
	return "unknown"
}

func precipitationCode(code int) bool {
	return (code >= 51 && code <= 67) || (code >= 80 && code <= 82) || code >= 95
}

func floatAt(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

func intAt(v []int, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}
