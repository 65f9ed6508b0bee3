package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/rain-route-planner/internal/client"
	"github.com/kjstillabower/rain-route-planner/internal/models"
	"github.com/kjstillabower/rain-route-planner/internal/observability"
)

// ErrEmptyQuery is returned when a place name is blank.
var ErrEmptyQuery = errors.New("empty place name")

// Centroid is the geographic center of India, returned when no geocoder matches.
var Centroid = models.Coordinate{Lat: 20.5937, Lng: 78.9629}

// GeocodeOptions controls query expansion for forward geocoding.
type GeocodeOptions struct {
	Country     string   // appended to queries, e.g. "India"
	CountryCode string   // ISO 3166 alpha-2 boundary for OpenRouteService, e.g. "IN"
	Qualifiers  []string // region qualifiers tried between name and country
}

// DefaultGeocodeOptions matches the service's India deployment.
func DefaultGeocodeOptions() GeocodeOptions {
	return GeocodeOptions{Country: "India", CountryCode: "IN", Qualifiers: []string{"district", "city"}}
}

// Geocoder resolves city names through OpenRouteService, Nominatim and a fixed city table.
type Geocoder struct {
	chain *Chain[string, models.Coordinate]
	opts  GeocodeOptions
}

// NewGeocoder builds the forward chain: openroute, nominatim, then the mock city table.
func NewGeocoder(ors OpenRouteAPI, nom NominatimAPI, breakers Breakers, opts GeocodeOptions) *Geocoder {
	g := &Geocoder{opts: opts}
	var strategies []Strategy[string, models.Coordinate]
	if ors != nil {
		cb := breakers.get(NameOpenRoute)
		strategies = append(strategies, Strategy[string, models.Coordinate]{
			Name:      NameOpenRoute,
			Available: availability(ors),
			Fn: g.variants(func(ctx context.Context, q string) (models.Coordinate, error) {
				return guarded(ctx, cb, func(ctx context.Context) (models.Coordinate, error) {
					return ors.Geocode(ctx, q, opts.CountryCode)
				})
			}),
		})
	}
	if nom != nil {
		cb := breakers.get(NameNominatim)
		strategies = append(strategies, Strategy[string, models.Coordinate]{
			Name:      NameNominatim,
			Available: availability(nom),
			Fn: g.variants(func(ctx context.Context, q string) (models.Coordinate, error) {
				return guarded(ctx, cb, func(ctx context.Context) (models.Coordinate, error) {
					return nom.Search(ctx, q)
				})
			}),
		})
	}
	strategies = append(strategies, Strategy[string, models.Coordinate]{
		Name: NameMock,
		Fn: func(_ context.Context, name string) (models.Coordinate, error) {
			if c, ok := MockCity(name); ok {
				return c, nil
			}
			return models.Coordinate{}, fmt.Errorf("mock city %q: %w", name, client.ErrNotFound)
		},
	})
	g.chain = NewChain("geocode", strategies...)
	return g
}

// Geocode resolves name to a coordinate. It never fails for a non-empty name:
// when every provider misses, the country centroid is returned.
func (g *Geocoder) Geocode(ctx context.Context, name string) (models.Coordinate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Coordinate{}, ErrEmptyQuery
	}
	c, _, err := g.chain.Run(ctx, name)
	if err == nil {
		return c, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.Coordinate{}, ctxErr
	}
	observability.LoggerFromContext(ctx).Warn("geocode fell back to centroid",
		zap.String("place", name),
		zap.Error(err),
	)
	return Centroid, nil
}

// variants tries fn for each query variant in order. Not-found answers move on
// to the next variant; any other error ends the strategy.
func (g *Geocoder) variants(fn func(ctx context.Context, q string) (models.Coordinate, error)) func(context.Context, string) (models.Coordinate, error) {
	return func(ctx context.Context, name string) (models.Coordinate, error) {
		var lastErr error
		for _, q := range QueryVariants(name, g.opts.Country, g.opts.Qualifiers) {
			c, err := fn(ctx, q)
			if err == nil {
				return c, nil
			}
			if !errors.Is(err, client.ErrNotFound) {
				return models.Coordinate{}, err
			}
			lastErr = err
		}
		return models.Coordinate{}, lastErr
	}
}

// QueryVariants expands a place name into geocoder queries, most literal first:
// "name", "name, Country", then "name, qualifier, Country" per qualifier.
// A name that already mentions the country is used as given.
func QueryVariants(name, country string, qualifiers []string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	out := []string{name}
	if country == "" || strings.Contains(strings.ToLower(name), strings.ToLower(country)) {
		return out
	}
	out = append(out, name+", "+country)
	for _, q := range qualifiers {
		out = append(out, name+", "+q+", "+country)
	}
	return out
}
