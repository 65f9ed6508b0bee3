package provider

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/kjstillabower/rain-route-planner/internal/geo"
	"github.com/kjstillabower/rain-route-planner/internal/models"
)

var mockCities = map[string]models.Coordinate{
	"mumbai":        {Lat: 19.0760, Lng: 72.8777},
	"bombay":        {Lat: 19.0760, Lng: 72.8777},
	"delhi":         {Lat: 28.7041, Lng: 77.1025},
	"new delhi":     {Lat: 28.6139, Lng: 77.2090},
	"bangalore":     {Lat: 12.9716, Lng: 77.5946},
	"bengaluru":     {Lat: 12.9716, Lng: 77.5946},
	"chennai":       {Lat: 13.0827, Lng: 80.2707},
	"kolkata":       {Lat: 22.5726, Lng: 88.3639},
	"hyderabad":     {Lat: 17.3850, Lng: 78.4867},
	"pune":          {Lat: 18.5204, Lng: 73.8567},
	"ahmedabad":     {Lat: 23.0225, Lng: 72.5714},
	"jaipur":        {Lat: 26.9124, Lng: 75.7873},
	"lucknow":       {Lat: 26.8467, Lng: 80.9462},
	"surat":         {Lat: 21.1702, Lng: 72.8311},
	"nagpur":        {Lat: 21.1458, Lng: 79.0882},
	"indore":        {Lat: 22.7196, Lng: 75.8577},
	"bhopal":        {Lat: 23.2599, Lng: 77.4126},
	"patna":         {Lat: 25.5941, Lng: 85.1376},
	"vadodara":      {Lat: 22.3072, Lng: 73.1812},
	"nashik":        {Lat: 19.9975, Lng: 73.7898},
	"chandigarh":    {Lat: 30.7333, Lng: 76.7794},
	"kochi":         {Lat: 9.9312, Lng: 76.2673},
	"goa":           {Lat: 15.4909, Lng: 73.8278},
	"visakhapatnam": {Lat: 17.6868, Lng: 83.2185},
	"coimbatore":    {Lat: 11.0168, Lng: 76.9558},
}

// MockCity looks up a well-known city by name (case-insensitive, trimmed).
// Anything after the first comma ("Pune, India") is ignored.
func MockCity(name string) (models.Coordinate, bool) {
	name, _, _ = strings.Cut(name, ",")
	c, ok := mockCities[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// MockRoute returns a straight line from src to dst sampled every segmentMeters,
// with duration derived from speedKmh.
func MockRoute(src, dst models.Coordinate, speedKmh, segmentMeters float64) models.RouteGeometry {
	if speedKmh <= 0 {
		speedKmh = 60
	}
	if segmentMeters <= 0 {
		segmentMeters = 1000
	}
	distance := geo.DistanceMeters(src, dst)
	n := int(math.Ceil(distance / segmentMeters))
	if n > 5000 {
		n = 5000
	}
	return models.RouteGeometry{
		Path:                 geo.Sample(src, dst, n),
		TotalDistanceMeters:  distance,
		TotalDurationSeconds: distance / (speedKmh * 1000 / 3600),
		Provider:             NameMock,
	}
}

var mockDescriptions = []string{"clear sky", "few clouds", "scattered clouds", "haze"}

// MockWeather returns a pseudo-random sample that is stable for a given
// rounded coordinate and hour of day, so repeated checks agree.
func MockWeather(at models.Coordinate, t time.Time) models.WeatherSample {
	h := fnv.New64a()
	h.Write([]byte(geo.RoundKey(at)))
	h.Write([]byte{byte(t.UTC().Hour())})
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	rain := r.Float64() > 0.7
	description := mockDescriptions[r.Intn(len(mockDescriptions))]
	if rain {
		description = "light rain"
	}
	return models.WeatherSample{
		TemperatureC:  math.Round((20+r.Float64()*15)*10) / 10,
		Description:   description,
		Precipitating: rain,
		HumidityPct:   math.Round(45 + r.Float64()*50),
		WindSpeedMs:   math.Round((1+r.Float64()*9)*10) / 10,
		ForecastTime:  t,
		IsForecast:    true,
		Provider:      NameMock,
	}
}
