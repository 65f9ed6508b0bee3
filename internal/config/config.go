package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	RequestTimeout   time.Duration
	MinPlaceLength   int
	MaxPlaceLength   int
	DefaultSpeedKmh  float64
	MaxSpeedKmh      float64
	DefaultSpacingKm float64
	MinSpacingKm     float64

	OpenRouteAPIKey  string
	OpenRouteURL     string
	OpenRouteTimeout time.Duration

	NominatimURL       string
	NominatimUserAgent string
	NominatimRPS       float64
	NominatimTimeout   time.Duration

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	OpenMeteoURL     string
	OpenMeteoEnabled bool
	OpenMeteoTimeout time.Duration

	WeatherMockEnabled bool
	MaxForecastOffset  time.Duration
	WeatherConcurrency int

	RouteMockEnabled  bool
	MockSegmentMeters float64

	NamingCap   int
	NamingBatch int

	CacheBackend string // "in_memory", "memcached" or "valkey"
	CacheSize    int
	CacheTTL     time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	ValkeyAddr string

	RateLimitRPS     int
	RateLimitBurst   int
	BreakerFailures  int
	BreakerOpenFor   time.Duration
	BreakerSuccesses int

	AlertTimezone   string
	NATSURL         string
	NATSPrefix      string
	NATSSeverities  []string
	ShutdownTimeout time.Duration
	ReadyDelay      time.Duration
	MetricsWindow   time.Duration

	OverloadThresholdPct int
	DegradedErrorPct     int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout          string  `yaml:"timeout"`
		MinPlaceLength   int     `yaml:"min_place_length"`
		MaxPlaceLength   int     `yaml:"max_place_length"`
		DefaultSpeedKmh  float64 `yaml:"default_speed_kmh"`
		MaxSpeedKmh      float64 `yaml:"max_speed_kmh"`
		DefaultSpacingKm float64 `yaml:"default_spacing_km"`
		MinSpacingKm     float64 `yaml:"min_spacing_km"`
	} `yaml:"request"`

	Providers struct {
		OpenRoute struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"openroute"`
		Nominatim struct {
			URL       string  `yaml:"url"`
			UserAgent string  `yaml:"user_agent"`
			RPS       float64 `yaml:"rps"`
			Timeout   string  `yaml:"timeout"`
		} `yaml:"nominatim"`
		OpenWeather struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"openweather"`
		OpenMeteo struct {
			URL     string `yaml:"url"`
			Enabled *bool  `yaml:"enabled"`
			Timeout string `yaml:"timeout"`
		} `yaml:"open_meteo"`
	} `yaml:"providers"`

	Weather struct {
		MockEnabled       *bool  `yaml:"mock_enabled"`
		MaxForecastOffset string `yaml:"max_forecast_offset"`
		Concurrency       int    `yaml:"concurrency"`
	} `yaml:"weather"`

	Route struct {
		MockEnabled       *bool   `yaml:"mock_enabled"`
		MockSegmentMeters float64 `yaml:"mock_segment_meters"`
	} `yaml:"route"`

	Naming struct {
		Cap   int `yaml:"cap"`
		Batch int `yaml:"batch"`
	} `yaml:"naming"`

	Cache struct {
		Backend   string `yaml:"backend"`
		Size      int    `yaml:"size"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Valkey struct {
			Addr string `yaml:"addr"`
		} `yaml:"valkey"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			FailureThreshold int    `yaml:"failure_threshold"`
			OpenTimeout      string `yaml:"open_timeout"`
			SuccessThreshold int    `yaml:"success_threshold"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Alerts struct {
		Timezone string `yaml:"timezone"`
		NATS     struct {
			URL           string   `yaml:"url"`
			SubjectPrefix string   `yaml:"subject_prefix"`
			Severities    []string `yaml:"severities"`
		} `yaml:"nats"`
	} `yaml:"alerts"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		ReadyDelay           string `yaml:"ready_delay"`
		MetricsWindow        string `yaml:"metrics_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	OpenRouteAPIKey string `yaml:"openroute_api_key"`
	WeatherAPIKey   string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// Provider keys come from env (OPENROUTE_API_KEY, WEATHER_API_KEY) or the secrets file.
// A missing key is not an error: the matching providers are switched off. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 60*time.Second)
	cfg.MinPlaceLength = positiveInt(fc.Request.MinPlaceLength, 1)
	cfg.MaxPlaceLength = positiveInt(fc.Request.MaxPlaceLength, 100)
	cfg.DefaultSpeedKmh = positiveFloat(fc.Request.DefaultSpeedKmh, 60)
	cfg.MaxSpeedKmh = positiveFloat(fc.Request.MaxSpeedKmh, 200)
	cfg.DefaultSpacingKm = positiveFloat(fc.Request.DefaultSpacingKm, 3)
	cfg.MinSpacingKm = positiveFloat(fc.Request.MinSpacingKm, 0.5)

	cfg.OpenRouteAPIKey = firstNonEmpty(os.Getenv("OPENROUTE_API_KEY"), sec.OpenRouteAPIKey)
	cfg.OpenRouteURL = firstNonEmpty(fc.Providers.OpenRoute.URL, "https://api.openrouteservice.org")
	cfg.OpenRouteTimeout = parseDurationOrZero(fc.Providers.OpenRoute.Timeout, 15*time.Second)

	cfg.NominatimURL = firstNonEmpty(fc.Providers.Nominatim.URL, "https://nominatim.openstreetmap.org")
	cfg.NominatimUserAgent = firstNonEmpty(os.Getenv("NOMINATIM_USER_AGENT"), fc.Providers.Nominatim.UserAgent)
	cfg.NominatimRPS = positiveFloat(fc.Providers.Nominatim.RPS, 1)
	cfg.NominatimTimeout = parseDurationOrZero(fc.Providers.Nominatim.Timeout, 15*time.Second)

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if strings.EqualFold(strings.TrimSpace(cfg.WeatherAPIKey), "demo") {
		cfg.WeatherAPIKey = ""
	}
	cfg.WeatherAPIURL = firstNonEmpty(fc.Providers.OpenWeather.URL, "https://api.openweathermap.org/data/2.5")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.Providers.OpenWeather.Timeout, 15*time.Second)

	cfg.OpenMeteoURL = firstNonEmpty(fc.Providers.OpenMeteo.URL, "https://api.open-meteo.com/v1")
	cfg.OpenMeteoEnabled = boolOr(fc.Providers.OpenMeteo.Enabled, true)
	cfg.OpenMeteoTimeout = parseDurationOrZero(fc.Providers.OpenMeteo.Timeout, 15*time.Second)

	cfg.WeatherMockEnabled = boolOr(fc.Weather.MockEnabled, true)
	cfg.MaxForecastOffset = parseDuration(fc.Weather.MaxForecastOffset, 6*time.Hour)
	cfg.WeatherConcurrency = positiveInt(fc.Weather.Concurrency, 4)

	cfg.RouteMockEnabled = boolOr(fc.Route.MockEnabled, true)
	cfg.MockSegmentMeters = positiveFloat(fc.Route.MockSegmentMeters, 1000)

	cfg.NamingCap = positiveInt(fc.Naming.Cap, 120)
	cfg.NamingBatch = positiveInt(fc.Naming.Batch, 5)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheSize = positiveInt(fc.Cache.Size, 10000)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 24*time.Hour)
	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Cache.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = positiveInt(fc.Cache.Memcached.MaxIdleConns, 2)
	cfg.ValkeyAddr = firstNonEmpty(strings.TrimSpace(os.Getenv("VALKEY_ADDR")), strings.TrimSpace(fc.Cache.Valkey.Addr), "localhost:6379")

	cfg.RateLimitRPS = positiveInt(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = positiveInt(fc.Reliability.RateLimitBurst, 40)
	cfg.BreakerFailures = positiveInt(fc.Reliability.CircuitBreaker.FailureThreshold, 5)
	cfg.BreakerOpenFor = parseDuration(fc.Reliability.CircuitBreaker.OpenTimeout, 30*time.Second)
	cfg.BreakerSuccesses = positiveInt(fc.Reliability.CircuitBreaker.SuccessThreshold, 2)

	cfg.AlertTimezone = firstNonEmpty(fc.Alerts.Timezone, "Asia/Kolkata")
	cfg.NATSURL = firstNonEmpty(strings.TrimSpace(os.Getenv("NATS_URL")), strings.TrimSpace(fc.Alerts.NATS.URL))
	cfg.NATSPrefix = firstNonEmpty(fc.Alerts.NATS.SubjectPrefix, "route.alerts")
	cfg.NATSSeverities = fc.Alerts.NATS.Severities
	if len(cfg.NATSSeverities) == 0 {
		cfg.NATSSeverities = []string{"high"}
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ReadyDelay = parseDurationOrZero(fc.Lifecycle.ReadyDelay, 0)
	cfg.MetricsWindow = parseDuration(fc.Lifecycle.MetricsWindow, 60*time.Second)
	cfg.OverloadThresholdPct = positiveInt(fc.Lifecycle.OverloadThresholdPct, 80)
	cfg.DegradedErrorPct = positiveInt(fc.Lifecycle.DegradedErrorPct, 20)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// Location resolves AlertTimezone. validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AlertTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func positiveInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func positiveFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// validate performs post-load validation of configuration values.
// Provider timeouts must be positive and RequestTimeout is raised above the
// slowest provider timeout.
func validate(cfg *Config) error {
	timeouts := map[string]time.Duration{
		"providers.openroute.timeout":   cfg.OpenRouteTimeout,
		"providers.nominatim.timeout":   cfg.NominatimTimeout,
		"providers.openweather.timeout": cfg.WeatherAPITimeout,
		"providers.open_meteo.timeout":  cfg.OpenMeteoTimeout,
	}
	var slowest time.Duration
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
		if d > slowest {
			slowest = d
		}
	}
	if cfg.RequestTimeout <= slowest {
		cfg.RequestTimeout = slowest + time.Second
	}
	if cfg.MinPlaceLength > cfg.MaxPlaceLength {
		return fmt.Errorf("request.min_place_length (%d) exceeds max_place_length (%d)", cfg.MinPlaceLength, cfg.MaxPlaceLength)
	}
	if cfg.DefaultSpeedKmh > cfg.MaxSpeedKmh {
		return fmt.Errorf("request.default_speed_kmh (%g) exceeds max_speed_kmh (%g)", cfg.DefaultSpeedKmh, cfg.MaxSpeedKmh)
	}
	if cfg.DefaultSpacingKm < cfg.MinSpacingKm {
		return fmt.Errorf("request.default_spacing_km (%g) is below min_spacing_km (%g)", cfg.DefaultSpacingKm, cfg.MinSpacingKm)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached", "valkey":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or valkey, got %q", cfg.CacheBackend)
	}
	if _, err := time.LoadLocation(cfg.AlertTimezone); err != nil {
		return fmt.Errorf("alerts.timezone %q: %w", cfg.AlertTimezone, err)
	}
	return nil
}
