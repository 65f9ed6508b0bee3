package provider

import (
	"context"
	"fmt"

	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// RouteOptions controls the routing chain.
type RouteOptions struct {
	MockEnabled       bool
	MockSegmentMeters float64
}

type routeQuery struct {
	From, To models.Coordinate
	SpeedKmh float64
}

// Router produces route geometry through OpenRouteService with a straight-line fallback.
type Router struct {
	chain *Chain[routeQuery, models.RouteGeometry]
}

// NewRouter builds the route chain: openroute, then the straight-line mock when enabled.
func NewRouter(ors OpenRouteAPI, breakers Breakers, opts RouteOptions) *Router {
	var strategies []Strategy[routeQuery, models.RouteGeometry]
	if ors != nil {
		cb := breakers.get(NameOpenRoute)
		strategies = append(strategies, Strategy[routeQuery, models.RouteGeometry]{
			Name:      NameOpenRoute,
			Available: availability(ors),
			Fn: func(ctx context.Context, q routeQuery) (models.RouteGeometry, error) {
				return guarded(ctx, cb, func(ctx context.Context) (models.RouteGeometry, error) {
					return ors.Directions(ctx, q.From, q.To)
				})
			},
		})
	}
	if opts.MockEnabled {
		strategies = append(strategies, Strategy[routeQuery, models.RouteGeometry]{
			Name: NameMock,
			Fn: func(_ context.Context, q routeQuery) (models.RouteGeometry, error) {
				return MockRoute(q.From, q.To, q.SpeedKmh, opts.MockSegmentMeters), nil
			},
		})
	}
	return &Router{chain: NewChain("route", strategies...)}
}

// Route returns driving geometry from src to dst. speedKmh only shapes the mock duration.
func (r *Router) Route(ctx context.Context, src, dst models.Coordinate, speedKmh float64) (models.RouteGeometry, error) {
	g, _, err := r.chain.Run(ctx, routeQuery{From: src, To: dst, SpeedKmh: speedKmh})
	if err != nil {
		return models.RouteGeometry{}, fmt.Errorf("route: %w", err)
	}
	return g, nil
}
