package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjstillabower/rain-route-planner/internal/geo"
	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimClient queries Nominatim search and reverse endpoints. The public
// instance requires an identifying User-Agent and at most one request per second.
type NominatimClient struct {
	base
	baseURL string
	limiter *rate.Limiter
}

// NewNominatimClient creates a client throttled to requestsPerSecond (1 when ≤ 0).
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, requestsPerSecond float64) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &NominatimClient{
		base:    newBase("nominatim", timeout, userAgent),
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// Configured reports whether a User-Agent is set; Nominatim rejects anonymous clients.
func (c *NominatimClient) Configured() bool {
	return c != nil && c.userAgent != ""
}

type nominatimPlace struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Suburb  string `json:"suburb"`
		County  string `json:"county"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// Search resolves free text to the first result's coordinate.
func (c *NominatimClient) Search(ctx context.Context, query string) (models.Coordinate, error) {
	if !c.Configured() {
		return models.Coordinate{}, fmt.Errorf("nominatim: %w", ErrMissingCredential)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "0")

	var places []nominatimPlace
	if err := c.get(ctx, "/search", params, &places); err != nil {
		return models.Coordinate{}, err
	}
	if len(places) == 0 {
		return models.Coordinate{}, fmt.Errorf("nominatim search %q: %w", query, ErrNotFound)
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parse nominatim lat: %w", err)
	}
	lng, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parse nominatim lon: %w", err)
	}
	return models.Coordinate{Lat: lat, Lng: lng}, nil
}

// Reverse returns the most specific settlement name around a coordinate.
func (c *NominatimClient) Reverse(ctx context.Context, at models.Coordinate) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("nominatim: %w", ErrMissingCredential)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("zoom", "10")
	params.Set("addressdetails", "1")

	var place nominatimPlace
	if err := c.get(ctx, "/reverse", params, &place); err != nil {
		return "", err
	}
	a := place.Address
	for _, name := range []string{a.City, a.Town, a.Village, a.Suburb, a.County, a.State, a.Country} {
		if name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("nominatim reverse %s: %w", geo.RoundKey(at), ErrNotFound)
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("nominatim throttle: %w", err)
	}
	return c.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	}, out)
}
