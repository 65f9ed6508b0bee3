package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
	"github.com/kjstillabower/rain-route-planner/internal/validation"
	"github.com/kjstillabower/rain-route-planner/internal/waypoint"
)

var (
	// ErrInvalidRequest marks caller input errors (HTTP 400).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRouteUnavailable is returned when no routing strategy, mock included, produced geometry.
	ErrRouteUnavailable = errors.New("route unavailable")
)

// destinationToleranceMeters drops interpolated waypoints that would duplicate the destination.
const destinationToleranceMeters = 1.0

// Geocoder resolves a place name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (models.Coordinate, error)
}

// Router returns the driving geometry between two coordinates.
type Router interface {
	Route(ctx context.Context, src, dst models.Coordinate, speedKmh float64) (models.RouteGeometry, error)
}

// Namer names a coordinate. It never fails.
type Namer interface {
	Name(ctx context.Context, at models.Coordinate) string
}

// WeatherSource returns the weather at a coordinate nearest to t.
type WeatherSource interface {
	Weather(ctx context.Context, at models.Coordinate, t time.Time) (models.WeatherSample, error)
}

// AlertPublisher fans out alerts of a completed check.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, source, destination string, alerts []models.Alert)
}

// Options tunes the pipeline. Zero values take defaults.
type Options struct {
	Limits             validation.Limits
	MinPlaceLength     int
	MaxPlaceLength     int
	NamingCap          int
	NamingBatch        int
	WeatherConcurrency int
	Location           *time.Location
	Now                func() time.Time
}

// RouteService runs the route check pipeline: geocode, route, interpolate,
// name, then align weather to each waypoint's ETA.
type RouteService struct {
	geocoder  Geocoder
	router    Router
	namer     Namer
	weather   WeatherSource
	publisher AlertPublisher
	opts      Options
}

// NewRouteService wires the pipeline. namer and publisher may be nil.
func NewRouteService(geocoder Geocoder, router Router, namer Namer, weather WeatherSource, publisher AlertPublisher, opts Options) *RouteService {
	if opts.Limits == (validation.Limits{}) {
		opts.Limits = validation.DefaultLimits()
	}
	if opts.MaxPlaceLength <= 0 {
		opts.MaxPlaceLength = 100
	}
	if opts.NamingCap <= 0 {
		opts.NamingCap = DefaultNamingCap
	}
	if opts.NamingBatch <= 0 {
		opts.NamingBatch = DefaultNamingBatch
	}
	if opts.WeatherConcurrency <= 0 {
		opts.WeatherConcurrency = 4
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RouteService{
		geocoder:  geocoder,
		router:    router,
		namer:     namer,
		weather:   weather,
		publisher: publisher,
		opts:      opts,
	}
}

type checkInput struct {
	source, destination string
	departure           time.Time
	speedKmh            float64
	spacingKm           float64
}

func (s *RouteService) validate(req models.RouteRequest) (checkInput, error) {
	src, err := validation.ValidatePlace(req.Source, s.opts.MinPlaceLength, s.opts.MaxPlaceLength)
	if err != nil {
		return checkInput{}, fmt.Errorf("%w: source: %v", ErrInvalidRequest, err)
	}
	dst, err := validation.ValidatePlace(req.Destination, s.opts.MinPlaceLength, s.opts.MaxPlaceLength)
	if err != nil {
		return checkInput{}, fmt.Errorf("%w: destination: %v", ErrInvalidRequest, err)
	}
	departure, err := validation.ParseDepartureTime(req.DepartureTime, s.opts.Location, s.opts.Now())
	if err != nil {
		return checkInput{}, fmt.Errorf("%w: departureTime: %v", ErrInvalidRequest, err)
	}
	return checkInput{
		source:      src,
		destination: dst,
		departure:   departure,
		speedKmh:    s.opts.Limits.Speed(float64(req.Speed)),
		spacingKm:   s.opts.Limits.Spacing(float64(req.Spacing)),
	}, nil
}

// CheckRoute plans the route for req and returns waypoints with per-waypoint weather alerts.
// Provider failures degrade to fallbacks; only invalid input, an unroutable
// pair or a canceled context return an error.
func (s *RouteService) CheckRoute(ctx context.Context, req models.RouteRequest) (models.RouteCheck, error) {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	in, err := s.validate(req)
	if err != nil {
		observability.RouteChecksTotal.WithLabelValues("invalid").Inc()
		return models.RouteCheck{}, err
	}

	var srcCoord, dstCoord models.Coordinate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		srcCoord, err = s.geocoder.Geocode(gctx, in.source)
		return err
	})
	g.Go(func() (err error) {
		dstCoord, err = s.geocoder.Geocode(gctx, in.destination)
		return err
	})
	if err := g.Wait(); err != nil {
		observability.RouteChecksTotal.WithLabelValues("error").Inc()
		return models.RouteCheck{}, fmt.Errorf("geocode: %w", err)
	}

	geometry, err := s.router.Route(ctx, srcCoord, dstCoord, in.speedKmh)
	if err != nil {
		if ctx.Err() != nil {
			observability.RouteChecksTotal.WithLabelValues("error").Inc()
			return models.RouteCheck{}, ctx.Err()
		}
		observability.RouteChecksTotal.WithLabelValues("no_route").Inc()
		return models.RouteCheck{}, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}

	waypoints := buildWaypoints(in, srcCoord, dstCoord, geometry)
	waypoints = s.nameWaypoints(ctx, waypoints)
	waypoints, alerts := s.align(ctx, waypoints, in)
	if err := ctx.Err(); err != nil {
		observability.RouteChecksTotal.WithLabelValues("error").Inc()
		return models.RouteCheck{}, err
	}

	if s.publisher != nil {
		s.publisher.PublishAlerts(ctx, in.source, in.destination, alerts)
	}

	observability.WaypointsPerRoute.Observe(float64(len(waypoints)))
	for _, a := range alerts {
		observability.AlertsTotal.WithLabelValues(string(a.Severity)).Inc()
	}
	observability.RouteChecksTotal.WithLabelValues("success").Inc()
	logger.Info("route checked",
		zap.String("source", in.source),
		zap.String("destination", in.destination),
		zap.String("routeProvider", geometry.Provider),
		zap.Float64("distanceKm", geometry.TotalDistanceMeters/1000),
		zap.Int("waypoints", len(waypoints)),
		zap.Duration("duration", time.Since(start)),
	)

	return models.RouteCheck{
		Route: models.Route{
			Waypoints:            waypoints,
			TotalDurationSeconds: geometry.TotalDurationSeconds,
			TotalDistanceMeters:  geometry.TotalDistanceMeters,
			RoutePath:            geometry.Path,
		},
		WeatherAlerts: alerts,
	}, nil
}

// buildWaypoints returns source, the interpolated waypoints and destination in traversal order.
func buildWaypoints(in checkInput, src, dst models.Coordinate, g models.RouteGeometry) []models.Waypoint {
	total := g.TotalDistanceMeters
	interval := waypoint.Interval(total, in.spacingKm)
	interpolated := waypoint.Interpolate(g.Path, interval, total, g.TotalDurationSeconds)

	out := make([]models.Waypoint, 0, len(interpolated)+2)
	out = append(out, models.Waypoint{Name: in.source, Location: src})
	for _, wp := range interpolated {
		if wp.DistanceFromStartMeters >= total-destinationToleranceMeters {
			continue
		}
		out = append(out, wp)
	}
	return append(out, models.Waypoint{
		Name:                    in.destination,
		Location:                dst,
		DistanceFromStartMeters: total,
		DurationSeconds:         g.TotalDurationSeconds,
	})
}

// align returns waypoints stamped with their ETA and one alert per waypoint, in
// waypoint order. A failed weather lookup yields an "unknown" alert.
func (s *RouteService) align(ctx context.Context, waypoints []models.Waypoint, in checkInput) ([]models.Waypoint, []models.Alert) {
	logger := observability.LoggerFromContext(ctx)
	out := make([]models.Waypoint, len(waypoints))
	alerts := make([]models.Alert, len(waypoints))

	var g errgroup.Group
	g.SetLimit(s.opts.WeatherConcurrency)
	for i, wp := range waypoints {
		arrival := ArrivalTime(in.departure, wp.DistanceFromStartMeters, in.speedKmh)
		wp.ArrivalTime = &arrival
		out[i] = wp
		g.Go(func() error {
			var sample *models.WeatherSample
			w, err := s.weather.Weather(ctx, wp.Location, arrival)
			if err != nil {
				logger.Warn("weather unavailable for waypoint",
					zap.String("waypoint", wp.Name),
					zap.Error(err),
				)
			} else {
				sample = &w
			}
			alerts[i] = BuildAlert(wp, arrival, s.opts.Location, sample)
			return nil
		})
	}
	_ = g.Wait()
	return out, alerts
}
