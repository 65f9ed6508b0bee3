package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kjstillabower/rain-route-planner/internal/geo"
	"github.com/kjstillabower/rain-route-planner/internal/models"
)

// DefaultOpenRouteURL is the public OpenRouteService API base.
const DefaultOpenRouteURL = "https://api.openrouteservice.org"

const geocodeLayers = "locality,borough,county,region,macroregion"

// OpenRouteClient talks to OpenRouteService geocoding and directions endpoints.
type OpenRouteClient struct {
	base
	apiKey  string
	baseURL string
}

func NewOpenRouteClient(apiKey, baseURL string, timeout time.Duration) *OpenRouteClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouteURL
	}
	return &OpenRouteClient{
		base:    newBase("openroute", timeout, ""),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether an API key is present.
func (c *OpenRouteClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Geocode resolves free text to the first matching coordinate, restricted to country when set.
func (c *OpenRouteClient) Geocode(ctx context.Context, text, country string) (models.Coordinate, error) {
	if !c.Configured() {
		return models.Coordinate{}, fmt.Errorf("openroute: %w", ErrMissingCredential)
	}
	params := url.Values{}
	params.Set("text", text)
	params.Set("size", "1")
	params.Set("layers", geocodeLayers)
	if country != "" {
		params.Set("boundary.country", country)
	}

	fc, err := c.featureCollection(ctx, "/geocode/search", params)
	if err != nil {
		return models.Coordinate{}, err
	}
	for _, f := range fc.Features {
		if p, ok := f.Geometry.(orb.Point); ok {
			return models.Coordinate{Lat: p.Lat(), Lng: p.Lon()}, nil
		}
	}
	return models.Coordinate{}, fmt.Errorf("openroute geocode %q: %w", text, ErrNotFound)
}

// Reverse returns the most specific place name for a coordinate.
func (c *OpenRouteClient) Reverse(ctx context.Context, at models.Coordinate) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("openroute: %w", ErrMissingCredential)
	}
	params := url.Values{}
	params.Set("point.lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	params.Set("point.lon", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	params.Set("size", "1")

	fc, err := c.featureCollection(ctx, "/geocode/reverse", params)
	if err != nil {
		return "", err
	}
	if len(fc.Features) > 0 {
		props := fc.Features[0].Properties
		for _, key := range []string{"name", "locality", "region", "county", "state", "country"} {
			if name := props.MustString(key, ""); name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("openroute reverse %s: %w", geo.RoundKey(at), ErrNotFound)
}

func (c *OpenRouteClient) featureCollection(ctx context.Context, path string, params url.Values) (*geojson.FeatureCollection, error) {
	body, err := c.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parse openroute response: %w", err)
	}
	return fc, nil
}

type directionsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Instructions bool         `json:"instructions"`
	Preference   string       `json:"preference"`
	Units        string       `json:"units"`
}

type routeSummary struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// directionsResponse covers both shapes the directions endpoint returns:
// a GeoJSON feature collection or a plain routes array.
type directionsResponse struct {
	Features json.RawMessage `json:"features"`
	Routes   []struct {
		Summary  routeSummary    `json:"summary"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
}

// Directions requests a driving route between two coordinates.
func (c *OpenRouteClient) Directions(ctx context.Context, from, to models.Coordinate) (models.RouteGeometry, error) {
	if !c.Configured() {
		return models.RouteGeometry{}, fmt.Errorf("openroute: %w", ErrMissingCredential)
	}
	payload, err := json.Marshal(directionsRequest{
		Coordinates:  [][2]float64{{from.Lng, from.Lat}, {to.Lng, to.Lat}},
		Instructions: false,
		Preference:   "fastest",
		Units:        "m",
	})
	if err != nil {
		return models.RouteGeometry{}, fmt.Errorf("encode directions request: %w", err)
	}

	body, err := c.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/driving-car/geojson", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return models.RouteGeometry{}, err
	}
	return parseDirections(body)
}

func parseDirections(body []byte) (models.RouteGeometry, error) {
	var probe directionsResponse
	if err := json.Unmarshal(body, &probe); err != nil {
		return models.RouteGeometry{}, fmt.Errorf("parse openroute directions: %w", err)
	}

	var (
		path    []models.Coordinate
		summary routeSummary
		err     error
	)
	switch {
	case len(probe.Features) > 0 && string(probe.Features) != "null":
		path, summary, err = parseDirectionsFeatures(body)
	case len(probe.Routes) > 0:
		summary = probe.Routes[0].Summary
		path, err = parseRouteGeometry(probe.Routes[0].Geometry)
	default:
		return models.RouteGeometry{}, fmt.Errorf("openroute directions: %w", ErrNotFound)
	}
	if err != nil {
		return models.RouteGeometry{}, err
	}
	if len(path) < 2 {
		return models.RouteGeometry{}, fmt.Errorf("openroute directions: geometry has %d points: %w", len(path), ErrNotFound)
	}

	distance := summary.Distance
	if distance <= 0 {
		distance = geo.PathLength(path)
	}
	return models.RouteGeometry{
		Path:                 path,
		TotalDistanceMeters:  distance,
		TotalDurationSeconds: summary.Duration,
		Provider:             "openroute",
	}, nil
}

func parseDirectionsFeatures(body []byte) ([]models.Coordinate, routeSummary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, routeSummary{}, fmt.Errorf("parse openroute directions: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, routeSummary{}, fmt.Errorf("openroute directions: %w", ErrNotFound)
	}
	f := fc.Features[0]

	var summary routeSummary
	if raw, ok := f.Properties["summary"].(map[string]interface{}); ok {
		summary.Distance, _ = raw["distance"].(float64)
		summary.Duration, _ = raw["duration"].(float64)
	}

	ls, ok := f.Geometry.(orb.LineString)
	if !ok {
		return nil, routeSummary{}, fmt.Errorf("openroute directions: unexpected geometry %T", f.Geometry)
	}
	return lineStringPath(ls), summary, nil
}

// parseRouteGeometry accepts either an encoded polyline string or a {coordinates} object.
func parseRouteGeometry(raw json.RawMessage) ([]models.Coordinate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("openroute directions: missing geometry")
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("parse openroute geometry: %w", err)
		}
		return geo.DecodePolyline(encoded)
	}

	var obj struct {
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parse openroute geometry: %w", err)
	}
	path := make([]models.Coordinate, 0, len(obj.Coordinates))
	for _, pair := range obj.Coordinates {
		if len(pair) < 2 {
			continue
		}
		path = append(path, models.Coordinate{Lat: pair[1], Lng: pair[0]})
	}
	return path, nil
}

func lineStringPath(ls orb.LineString) []models.Coordinate {
	path := make([]models.Coordinate, len(ls))
	for i, p := range ls {
		path[i] = models.Coordinate{Lat: p.Lat(), Lng: p.Lon()}
	}
	return path
}
