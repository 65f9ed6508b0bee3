package client

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// TestHandleErrorResponse verifies HTTP status codes map to the sentinel errors
// the provider chains and metrics rely on.
func TestHandleErrorResponse(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusUnauthorized, ErrInvalidAPIKey},
		{http.StatusForbidden, ErrInvalidAPIKey},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrUpstreamFailure},
		{http.StatusBadGateway, ErrUpstreamFailure},
		{http.StatusBadRequest, ErrUpstreamFailure},
	}
	for _, tt := range tests {
		err := handleErrorResponse(&http.Response{StatusCode: tt.status})
		if tt.want == nil {
			if err != nil {
				t.Errorf("status %d: unexpected error %v", tt.status, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "success", 204: "success", 429: "rate_limited", 404: "client_error", 503: "server_error", 302: "error"}
	for code, want := range tests {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %q, want %q", code, got, want)
		}
	}
}

// TestFetch_ForwardsCorrelationID verifies the request correlation ID is sent upstream.
func TestFetch_ForwardsCorrelationID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Correlation-ID")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	b := newBase("test", time.Second, "")
	ctx := observability.WithCorrelationID(context.Background(), "corr-123")
	_, err := b.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("fetch() error = %v", err)
	}
	if got != "corr-123" {
		t.Errorf("X-Correlation-ID = %q, want corr-123", got)
	}
}

// TestFetch_Timeout verifies the per-call timeout bounds a slow upstream.
func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	b := newBase("test", 50*time.Millisecond, "")
	_, err := b.fetch(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	if err == nil {
		t.Fatal("fetch() expected timeout error")
	}
	if CategorizeError(err) != ErrorCategoryTimeout {
		t.Errorf("CategorizeError() = %v, want timeout", CategorizeError(err))
	}
}

func TestNewBase_DefaultTimeout(t *testing.T) {
	b := newBase("test", 0, "")
	if b.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", b.timeout, DefaultTimeout)
	}
}

func TestOpenRouteClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geocode/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "ors-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("text") != "Pune, India" || r.URL.Query().Get("boundary.country") != "IN" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[73.8567,18.5204]},"properties":{"label":"Pune"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenRouteClient("ors-key", srv.URL, time.Second)
	got, err := c.Geocode(context.Background(), "Pune, India", "IN")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if !approx(got.Lat, 18.5204) || !approx(got.Lng, 73.8567) {
		t.Errorf("Geocode() = %+v", got)
	}
}

func TestOpenRouteClient_Geocode_NoFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	c := NewOpenRouteClient("ors-key", srv.URL, time.Second)
	if _, err := c.Geocode(context.Background(), "Nowhere", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Geocode() error = %v, want ErrNotFound", err)
	}
}

// TestOpenRouteClient_MissingKey verifies no network call is made without a key.
func TestOpenRouteClient_MissingKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewOpenRouteClient("", srv.URL, time.Second)
	if c.Configured() {
		t.Error("Configured() = true without key")
	}
	_, err := c.Directions(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Directions() error = %v, want ErrMissingCredential", err)
	}
	if called {
		t.Error("upstream was called without a credential")
	}
}

func TestOpenRouteClient_Reverse(t *testing.T) {
	tests := []struct {
		name  string
		props string
		want  string
	}{
		{"name", `{"name":"Nashik","region":"Maharashtra"}`, "Nashik"},
		{"locality fallback", `{"locality":"Igatpuri","region":"Maharashtra"}`, "Igatpuri"},
		{"region fallback", `{"region":"Maharashtra"}`, "Maharashtra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("point.lat") == "" || r.URL.Query().Get("point.lon") == "" {
					t.Errorf("missing point params: %s", r.URL.RawQuery)
				}
				w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[73.7,20.0]},"properties":` + tt.props + `}]}`))
			}))
			defer srv.Close()

			c := NewOpenRouteClient("ors-key", srv.URL, time.Second)
			got, err := c.Reverse(context.Background(), models.Coordinate{Lat: 20, Lng: 73.7})
			if err != nil {
				t.Fatalf("Reverse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reverse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenRouteClient_Directions_FeatureCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/directions/driving-car/geojson" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"summary":{"distance":1500.5,"duration":120}},"geometry":{"type":"LineString","coordinates":[[72.8,19.0],[72.81,19.01],[72.82,19.02]]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenRouteClient("ors-key", srv.URL, time.Second)
	got, err := c.Directions(context.Background(), models.Coordinate{Lat: 19, Lng: 72.8}, models.Coordinate{Lat: 19.02, Lng: 72.82})
	if err != nil {
		t.Fatalf("Directions() error = %v", err)
	}
	if len(got.Path) != 3 {
		t.Fatalf("len(Path) = %d, want 3", len(got.Path))
	}
	if !approx(got.Path[0].Lat, 19.0) || !approx(got.Path[0].Lng, 72.8) {
		t.Errorf("Path[0] = %+v, coordinates must be swapped from [lng,lat]", got.Path[0])
	}
	if got.TotalDistanceMeters != 1500.5 || got.TotalDurationSeconds != 120 {
		t.Errorf("summary = %v m, %v s", got.TotalDistanceMeters, got.TotalDurationSeconds)
	}
	if got.Provider != "openroute" {
		t.Errorf("Provider = %q", got.Provider)
	}
}

func TestParseDirections_RoutesShape(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantLen  int
		wantLat0 float64
	}{
		{
			name:     "encoded polyline",
			body:     `{"routes":[{"summary":{"distance":5000,"duration":300},"geometry":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"}]}`,
			wantLen:  3,
			wantLat0: 38.5,
		},
		{
			name:     "coordinates object",
			body:     `{"routes":[{"summary":{"distance":5000,"duration":300},"geometry":{"coordinates":[[77.1,28.7],[77.2,28.6]]}}]}`,
			wantLen:  2,
			wantLat0: 28.7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDirections([]byte(tt.body))
			if err != nil {
				t.Fatalf("parseDirections() error = %v", err)
			}
			if len(got.Path) != tt.wantLen {
				t.Fatalf("len(Path) = %d, want %d", len(got.Path), tt.wantLen)
			}
			if !approx(got.Path[0].Lat, tt.wantLat0) {
				t.Errorf("Path[0].Lat = %v, want %v", got.Path[0].Lat, tt.wantLat0)
			}
			if got.TotalDistanceMeters != 5000 || got.TotalDurationSeconds != 300 {
				t.Errorf("summary = %v m, %v s", got.TotalDistanceMeters, got.TotalDurationSeconds)
			}
		})
	}
}

func TestParseDirections_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty routes", `{"routes":[]}`},
		{"single point", `{"routes":[{"summary":{},"geometry":{"coordinates":[[77.1,28.7]]}}]}`},
		{"missing geometry", `{"routes":[{"summary":{"distance":1}}]}`},
		{"not json", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseDirections([]byte(tt.body)); err == nil {
				t.Error("parseDirections() expected error")
			}
		})
	}
}

// TestParseDirections_MissingDistance verifies the path length is used when the summary omits distance.
func TestParseDirections_MissingDistance(t *testing.T) {
	got, err := parseDirections([]byte(`{"routes":[{"summary":{},"geometry":{"coordinates":[[0,0],[0,1]]}}]}`))
	if err != nil {
		t.Fatalf("parseDirections() error = %v", err)
	}
	if got.TotalDistanceMeters < 111000 || got.TotalDistanceMeters > 111400 {
		t.Errorf("TotalDistanceMeters = %v, want ~111195", got.TotalDistanceMeters)
	}
}

func TestNominatimClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "rain-route-planner/test" {
			t.Errorf("User-Agent = %q", ua)
		}
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			t.Errorf("request = %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`[{"lat":"26.9124","lon":"75.7873"}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "rain-route-planner/test", time.Second, 100)
	got, err := c.Search(context.Background(), "Jaipur, India")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !approx(got.Lat, 26.9124) || !approx(got.Lng, 75.7873) {
		t.Errorf("Search() = %+v", got)
	}
}

func TestNominatimClient_Search_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", time.Second, 100)
	if _, err := c.Search(context.Background(), "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Search() error = %v, want ErrNotFound", err)
	}
}

func TestNominatimClient_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("zoom") != "10" {
			t.Errorf("zoom = %q", r.URL.Query().Get("zoom"))
		}
		w.Write([]byte(`{"address":{"village":"Khopoli","county":"Raigad","state":"Maharashtra"}}`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", time.Second, 100)
	got, err := c.Reverse(context.Background(), models.Coordinate{Lat: 18.79, Lng: 73.34})
	if err != nil {
		t.Fatalf("Reverse() error = %v", err)
	}
	if got != "Khopoli" {
		t.Errorf("Reverse() = %q, want Khopoli", got)
	}
}

func TestNominatimClient_RequiresUserAgent(t *testing.T) {
	c := NewNominatimClient("http://127.0.0.1:1", "", time.Second, 1)
	if c.Configured() {
		t.Error("Configured() = true without User-Agent")
	}
	if _, err := c.Search(context.Background(), "x"); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Search() error = %v, want ErrMissingCredential", err)
	}
}

// TestNominatimClient_Throttle verifies calls beyond the configured rate wait for a token.
func TestNominatimClient_Throttle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "ua", time.Second, 10)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), "x"); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("3 calls at 10 req/s took %v, want >= 150ms", elapsed)
	}
}

func TestOpenWeatherClient_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/forecast" || q.Get("appid") != "ow-key" || q.Get("units") != "metric" {
			t.Errorf("request = %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"list":[
			{"dt":1700000000,"main":{"temp":24.5,"humidity":80},"weather":[{"main":"Rain","description":"light rain"}],"wind":{"speed":3.2},"rain":{"3h":0.6}},
			{"dt":1700010800,"main":{"temp":26,"humidity":60},"weather":[{"main":"Clouds","description":"scattered clouds"}],"wind":{"speed":2}}
		]}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("ow-key", srv.URL, time.Second)
	got, err := c.Forecast(context.Background(), models.Coordinate{Lat: 19, Lng: 72.8})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Precipitating || got[0].Description != "light rain" || !got[0].IsForecast {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Precipitating {
		t.Errorf("got[1].Precipitating = true for clouds")
	}
	if !got[1].ForecastTime.Equal(time.Unix(1700010800, 0)) {
		t.Errorf("got[1].ForecastTime = %v", got[1].ForecastTime)
	}
}

func TestOpenWeatherClient_SnowIsPrecipitation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list":[
			{"dt":1700000000,"main":{"temp":-2},"weather":[{"main":"Snow","description":"light snow"}]},
			{"dt":1700010800,"main":{"temp":-1},"weather":[{"main":"Clouds","description":"overcast clouds"}],"snow":{"3h":0.4}},
			{"dt":1700021600,"main":{"temp":0},"weather":[{"main":"Clouds","description":"broken clouds"}],"snow":{"3h":0}}
		]}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("ow-key", srv.URL, time.Second)
	got, err := c.Forecast(context.Background(), models.Coordinate{Lat: 32.2, Lng: 77.2})
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	want := []bool{true, true, false}
	for i, w := range want {
		if got[i].Precipitating != w {
			t.Errorf("got[%d].Precipitating = %v, want %v (%s)", i, got[i].Precipitating, w, got[i].Description)
		}
	}
}

func TestOpenWeatherClient_Current(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"dt":1700000000,"main":{"temp":30,"humidity":40},"weather":[{"main":"Clear","description":"clear sky"}],"wind":{"speed":1.5}}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("ow-key", srv.URL, time.Second)
	got, err := c.Current(context.Background(), models.Coordinate{Lat: 19, Lng: 72.8})
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.IsForecast || got.Precipitating || got.TemperatureC != 30 || got.WindSpeedMs != 1.5 {
		t.Errorf("Current() = %+v", got)
	}
}

func TestOpenWeatherClient_InvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("bad-key", srv.URL, time.Second)
	_, err := c.Current(context.Background(), models.Coordinate{})
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("Current() error = %v, want ErrInvalidAPIKey", err)
	}
}

// TestNewOpenWeatherClient_DemoKey verifies the sample "demo" key counts as unset.
func TestNewOpenWeatherClient_DemoKey(t *testing.T) {
	for _, key := range []string{"", "demo", " DEMO "} {
		if NewOpenWeatherClient(key, "", time.Second).Configured() {
			t.Errorf("Configured() = true for key %q", key)
		}
	}
	if !NewOpenWeatherClient("real-key", "", time.Second).Configured() {
		t.Error("Configured() = false for real key")
	}
}

func TestOpenMeteoClient_Hourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/forecast" || q.Get("wind_speed_unit") != "ms" || !strings.Contains(q.Get("hourly"), "weather_code") {
			t.Errorf("request = %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"hourly":{
			"time":["2024-06-01T00:00","2024-06-01T01:00"],
			"temperature_2m":[27.1,26.8],
			"relative_humidity_2m":[88,90],
			"precipitation":[0,1.2],
			"weather_code":[3,63],
			"wind_speed_10m":[4.1,5.0]}}`))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(srv.URL, true, time.Second)
	got, err := c.Hourly(context.Background(), models.Coordinate{Lat: 19, Lng: 72.8})
	if err != nil {
		t.Fatalf("Hourly() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Precipitating || got[0].Description != "overcast clouds" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if !got[1].Precipitating || got[1].Description != "rain" {
		t.Errorf("got[1] = %+v", got[1])
	}
	want := time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)
	if !got[1].ForecastTime.Equal(want) {
		t.Errorf("got[1].ForecastTime = %v, want %v", got[1].ForecastTime, want)
	}
}

func TestOpenMeteoClient_Disabled(t *testing.T) {
	c := NewOpenMeteoClient("", false, time.Second)
	if _, err := c.Hourly(context.Background(), models.Coordinate{}); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("Hourly() error = %v, want ErrMissingCredential", err)
	}
}

func TestWeatherCodeDescription(t *testing.T) {
	tests := map[int]string{0: "clear sky", 2: "partly cloudy", 3: "overcast clouds", 45: "fog", 53: "drizzle", 65: "rain", 81: "rain showers", 95: "thunderstorm", 42: "unknown"}
	for code, want := range tests {
		if got := WeatherCodeDescription(code); got != want {
			t.Errorf("WeatherCodeDescription(%d) = %q, want %q", code, got, want)
		}
	}
}
