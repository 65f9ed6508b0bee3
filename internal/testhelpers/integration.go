//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/rain-route-planner/internal/cache"
	"github.com/kjstillabower/rain-route-planner/internal/circuitbreaker"
	"github.com/kjstillabower/rain-route-planner/internal/client"
	"github.com/kjstillabower/rain-route-planner/internal/provider"
	"github.com/kjstillabower/rain-route-planner/internal/service"
)

// IntegrationTestConfig holds live provider settings for integration tests.
type IntegrationTestConfig struct {
	OpenRouteKey       string
	WeatherKey         string
	NominatimUserAgent string
	CacheBackend       string // "in_memory" or "memcached"
	MemcachedAddr      string
}

// GetIntegrationConfig loads integration settings from the environment.
// Skips the test unless OPENROUTE_API_KEY is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	orsKey := os.Getenv("OPENROUTE_API_KEY")
	if orsKey == "" {
		t.Skip("OPENROUTE_API_KEY not set, skipping integration test")
	}
	ua := os.Getenv("NOMINATIM_USER_AGENT")
	if ua == "" {
		ua = "rain-route-planner-integration"
	}
	addr := os.Getenv("MEMCACHED_ADDRS")
	if addr == "" {
		addr = "localhost:11211"
	}
	return IntegrationTestConfig{
		OpenRouteKey:       orsKey,
		WeatherKey:         os.Getenv("WEATHER_API_KEY"),
		NominatimUserAgent: ua,
		CacheBackend:       os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr:      addr,
	}
}

// SetupIntegrationService wires a RouteService against the live providers.
// Weather falls back to Open-Meteo when no OpenWeather key is set. The returned
// cleanup closes any shared cache connection.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.RouteService, func()) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	var places cache.PlaceCache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2, time.Hour)
		if err == nil && mc.Ping() == nil {
			places = mc
			cleanup = func() { _ = mc.Close() }
			logger.Info("using memcached place cache", zap.String("addr", cfg.MemcachedAddr))
		} else {
			logger.Info("memcached not available, using in-memory place cache")
		}
	}
	if places == nil {
		lc, err := cache.NewLRUCache(1000)
		if err != nil {
			t.Fatalf("NewLRUCache() error = %v", err)
		}
		places = lc
	}

	ors := client.NewOpenRouteClient(cfg.OpenRouteKey, "", 15*time.Second)
	nom := client.NewNominatimClient("", cfg.NominatimUserAgent, 15*time.Second, 1)
	ow := client.NewOpenWeatherClient(cfg.WeatherKey, "", 15*time.Second)
	om := client.NewOpenMeteoClient("", true, 15*time.Second)

	breakers := provider.Breakers{}
	for _, name := range []string{provider.NameOpenRoute, provider.NameNominatim, provider.NameOpenWeather, provider.NameOpenMeteo} {
		breakers[name] = circuitbreaker.New(circuitbreaker.Config{Name: name, FailureThreshold: 5, SuccessThreshold: 1, Timeout: 30 * time.Second})
	}

	svc := service.NewRouteService(
		provider.NewGeocoder(ors, nom, breakers, provider.DefaultGeocodeOptions()),
		provider.NewRouter(ors, breakers, provider.RouteOptions{}),
		provider.NewReverseGeocoder(places, ors, nom, breakers),
		provider.NewWeatherSource(ow, om, breakers, provider.WeatherOptions{MaxForecastOffset: 6 * time.Hour}),
		nil,
		service.Options{NamingCap: 20},
	)
	return svc, cleanup
}
