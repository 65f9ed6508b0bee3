package provider

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/rain-route-planner/internal/cache"
	"github.com/kjstillabower/rain-route-planner/internal/geo"
	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

// PlaceholderName is returned (and cached) when no provider can name a coordinate.
const PlaceholderName = "Waypoint"

// ReverseGeocoder names coordinates through a shared place cache, then
// OpenRouteService and Nominatim. Concurrent lookups of the same rounded
// coordinate share one upstream call.
type ReverseGeocoder struct {
	cache cache.PlaceCache
	chain *Chain[models.Coordinate, string]
	group singleflight.Group
}

// NewReverseGeocoder builds the reverse chain (openroute, nominatim) behind places.
func NewReverseGeocoder(places cache.PlaceCache, ors OpenRouteAPI, nom NominatimAPI, breakers Breakers) *ReverseGeocoder {
	var strategies []Strategy[models.Coordinate, string]
	if ors != nil {
		cb := breakers.get(NameOpenRoute)
		strategies = append(strategies, Strategy[models.Coordinate, string]{
			Name:      NameOpenRoute,
			Available: availability(ors),
			Fn: func(ctx context.Context, at models.Coordinate) (string, error) {
				return guarded(ctx, cb, func(ctx context.Context) (string, error) {
					return ors.Reverse(ctx, at)
				})
			},
		})
	}
	if nom != nil {
		cb := breakers.get(NameNominatim)
		strategies = append(strategies, Strategy[models.Coordinate, string]{
			Name:      NameNominatim,
			Available: availability(nom),
			Fn: func(ctx context.Context, at models.Coordinate) (string, error) {
				return guarded(ctx, cb, func(ctx context.Context) (string, error) {
					return nom.Reverse(ctx, at)
				})
			},
		})
	}
	return &ReverseGeocoder{
		cache: places,
		chain: NewChain("reverse", strategies...),
	}
}

// Name returns a human-readable place name for at. It never fails: a full miss
// yields PlaceholderName, which is cached like any other answer.
func (r *ReverseGeocoder) Name(ctx context.Context, at models.Coordinate) string {
	key := geo.RoundKey(at)
	logger := observability.LoggerFromContext(ctx)

	if r.cache != nil {
		name, ok, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			observability.PlaceCacheLookupsTotal.WithLabelValues("error").Inc()
			logger.Warn("place cache get failed", zap.String("key", key), zap.Error(err))
		case ok:
			observability.PlaceCacheLookupsTotal.WithLabelValues("hit").Inc()
			return name
		default:
			observability.PlaceCacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	// The shared lookup outlives any one caller; each caller stops waiting on its own ctx.
	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		name, _, err := r.chain.Run(lookupCtx, at)
		if err != nil {
			name = PlaceholderName
		}
		if r.cache != nil {
			if err := r.cache.Set(lookupCtx, key, name); err != nil {
				logger.Warn("place cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return name, nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return PlaceholderName
	}
}
