package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/rain-route-planner/internal/cache"
	"github.com/kjstillabower/rain-route-planner/internal/circuitbreaker"
	"github.com/kjstillabower/rain-route-planner/internal/client"
	"github.com/kjstillabower/rain-route-planner/internal/config"
	httphandler "github.com/kjstillabower/rain-route-planner/internal/http"
	"github.com/kjstillabower/rain-route-planner/internal/lifecycle"
	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/notify"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
	"github.com/kjstillabower/rain-route-planner/internal/provider"
	"github.com/kjstillabower/rain-route-planner/internal/service"
	"github.com/kjstillabower/rain-route-planner/internal/validation"
)

func main() {
	logger, err := observability.NewLogger(os.Getenv("ENV_NAME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	lifecycle.ReadyAfter(ctx, cfg.ReadyDelay)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	var flushers []observability.Flusher
	if a.publisher != nil {
		flushers = append(flushers, a.publisher)
	}
	if err := observability.FlushTelemetry(shutdownCtx, logger, flushers...); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	a.close()
	logger.Info("shutdown complete")
}

// app is the wired service: the HTTP handler plus resources to release on exit.
type app struct {
	handler   http.Handler
	publisher *notify.NATSPublisher
	closers   []func() error
	logger    *zap.Logger
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("close", zap.Error(err))
		}
	}
}

// newApp builds clients, fallback chains, the pipeline and the router from cfg.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}

	places, cachePing, err := newPlaceCache(cfg, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := places.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	ors := client.NewOpenRouteClient(cfg.OpenRouteAPIKey, cfg.OpenRouteURL, cfg.OpenRouteTimeout)
	nom := client.NewNominatimClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, cfg.NominatimRPS)
	ow := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	om := client.NewOpenMeteoClient(cfg.OpenMeteoURL, cfg.OpenMeteoEnabled, cfg.OpenMeteoTimeout)

	breakers := newBreakers(cfg, provider.NameOpenRoute, provider.NameNominatim, provider.NameOpenWeather, provider.NameOpenMeteo)
	providers := map[string]bool{
		provider.NameOpenRoute:   ors.Configured(),
		provider.NameNominatim:   nom.Configured(),
		provider.NameOpenWeather: ow.Configured(),
		provider.NameOpenMeteo:   om.Configured(),
	}
	logger.Info("providers", zap.Any("configured", providers),
		zap.Bool("route_mock", cfg.RouteMockEnabled), zap.Bool("weather_mock", cfg.WeatherMockEnabled))

	var publisher service.AlertPublisher
	if cfg.NATSURL != "" {
		severities := make([]models.Severity, 0, len(cfg.NATSSeverities))
		for _, s := range cfg.NATSSeverities {
			severities = append(severities, models.Severity(s))
		}
		p, err := notify.Connect(cfg.NATSURL, cfg.NATSPrefix, severities, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.publisher = p
		publisher = p
		a.closers = append(a.closers, func() error { p.Close(); return nil })
		logger.Info("alert fan-out enabled", zap.String("subject_prefix", cfg.NATSPrefix))
	}

	svc := service.NewRouteService(
		provider.NewGeocoder(ors, nom, breakers, provider.DefaultGeocodeOptions()),
		provider.NewRouter(ors, breakers, provider.RouteOptions{
			MockEnabled:       cfg.RouteMockEnabled,
			MockSegmentMeters: cfg.MockSegmentMeters,
		}),
		provider.NewReverseGeocoder(places, ors, nom, breakers),
		provider.NewWeatherSource(ow, om, breakers, provider.WeatherOptions{
			MockEnabled:       cfg.WeatherMockEnabled,
			MaxForecastOffset: cfg.MaxForecastOffset,
		}),
		publisher,
		service.Options{
			Limits: validation.Limits{
				DefaultSpeedKmh:  cfg.DefaultSpeedKmh,
				MaxSpeedKmh:      cfg.MaxSpeedKmh,
				DefaultSpacingKm: cfg.DefaultSpacingKm,
				MinSpacingKm:     cfg.MinSpacingKm,
			},
			MinPlaceLength:     cfg.MinPlaceLength,
			MaxPlaceLength:     cfg.MaxPlaceLength,
			NamingCap:          cfg.NamingCap,
			NamingBatch:        cfg.NamingBatch,
			WeatherConcurrency: cfg.WeatherConcurrency,
			Location:           cfg.Location(),
		},
	)

	healthConfig := &httphandler.HealthConfig{
		Window:               cfg.MetricsWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StartTime:            time.Now(),
		Providers:            providers,
		Breakers:             breakers,
		CachePing:            cachePing,
	}
	if a.publisher != nil {
		healthConfig.AlertsConnected = a.publisher.Connected
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.MetricsWindow)

	h := httphandler.NewHandler(svc, healthConfig, logger)
	a.handler = httphandler.NewRouter(h, logger, limiter, cfg.RequestTimeout)
	return a, nil
}

// newPlaceCache selects the reverse-geocode cache backend. cachePing is nil for
// the in-process LRU.
func newPlaceCache(cfg *config.Config, logger *zap.Logger) (cache.PlaceCache, func() error, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Ping, nil
	case "valkey":
		vc, err := cache.NewValkeyCache(cfg.ValkeyAddr, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("valkey cache: %w", err)
		}
		logger.Info("cache backend: valkey", zap.String("addr", cfg.ValkeyAddr))
		return vc, vc.Ping, nil
	default:
		lc, err := cache.NewLRUCache(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("cache backend: in_memory", zap.Int("size", cfg.CacheSize))
		return lc, nil, nil
	}
}

// newBreakers creates one breaker per network provider, exporting state changes as metrics.
func newBreakers(cfg *config.Config, names ...string) provider.Breakers {
	breakers := make(provider.Breakers, len(names))
	for _, name := range names {
		breakers[name] = circuitbreaker.New(circuitbreaker.Config{
			Name:             name,
			FailureThreshold: cfg.BreakerFailures,
			SuccessThreshold: cfg.BreakerSuccesses,
			Timeout:          cfg.BreakerOpenFor,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
			},
		})
		observability.CircuitBreakerState.WithLabelValues(name).Set(0)
	}
	return breakers
}
