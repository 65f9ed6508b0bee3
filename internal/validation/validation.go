package validation

import (
	"errors"
	"math"
	"strings"
	"time"
	"unicode"
)

// ErrPlaceEmpty is returned when a place name is empty or whitespace-only after trim.
var ErrPlaceEmpty = errors.New("place name is required")

// ErrPlaceTooShort is returned when a place name is below the minimum length.
var ErrPlaceTooShort = errors.New("place name too short")

// ErrPlaceTooLong is returned when a place name exceeds the maximum length.
var ErrPlaceTooLong = errors.New("place name too long")

// ErrPlaceInvalidChars is returned when a place name contains disallowed characters.
var ErrPlaceInvalidChars = errors.New("place name contains invalid characters")

// ErrInvalidDepartureTime is returned when departureTime matches none of the accepted layouts.
var ErrInvalidDepartureTime = errors.New("invalid departure time")

// ValidatePlace trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma,
// hyphen, period, apostrophe. Returns the trimmed string or an error suitable
// for 400 INVALID_REQUEST responses.
func ValidatePlace(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrPlaceEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrPlaceTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrPlaceTooLong
	}
	for _, c := range r {
		if !isAllowedPlaceRune(c) {
			return "", ErrPlaceInvalidChars
		}
	}
	return s, nil
}

func isAllowedPlaceRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// Limits bounds the numeric request fields.
type Limits struct {
	DefaultSpeedKmh  float64
	MaxSpeedKmh      float64
	DefaultSpacingKm float64
	MinSpacingKm     float64
}

// DefaultLimits: 60 km/h and 3 km by default, speed capped at 200 km/h, spacing floored at 0.5 km.
func DefaultLimits() Limits {
	return Limits{DefaultSpeedKmh: 60, MaxSpeedKmh: 200, DefaultSpacingKm: 3, MinSpacingKm: 0.5}
}

// Speed returns v when usable, the default when missing or non-positive, and the cap when above it.
func (l Limits) Speed(v float64) float64 {
	if !usable(v) {
		return l.DefaultSpeedKmh
	}
	if l.MaxSpeedKmh > 0 && v > l.MaxSpeedKmh {
		return l.MaxSpeedKmh
	}
	return v
}

// Spacing returns v when usable, the default when missing or non-positive, and the floor when below it.
func (l Limits) Spacing(v float64) float64 {
	if !usable(v) {
		return l.DefaultSpacingKm
	}
	if v < l.MinSpacingKm {
		return l.MinSpacingKm
	}
	return v
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

var departureLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDepartureTime accepts RFC 3339 or a zone-less local timestamp interpreted
// in loc. An empty string means now.
func ParseDepartureTime(s string, loc *time.Location, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range departureLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDepartureTime
}
