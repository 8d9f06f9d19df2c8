package domain

import (
	"context"
	"errors"
)

// Geocoding failures.
var (
	ErrNotFound        = errors.New("location not found")
	ErrRateLimited     = errors.New("rate limited by provider")
	ErrNetwork         = errors.New("network error")
	ErrMissingLocation = errors.New("no coordinates and no geocoder configured")
)

// Normals fetch failures.
var (
	ErrNoStation      = errors.New("no nearby station with normals")
	ErrIncompleteData = errors.New("incomplete normals coverage")
)

// ErrConversionImpossible is returned when normals carry no average
// temperature for any month.
var ErrConversionImpossible = errors.New("missing source value")

// ErrNoData is returned when a run produced no exportable city.
var ErrNoData = errors.New("no data collected")

// FailureReason maps an error to a short label used in logs and metric labels.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMissingLocation):
		return "missing_location"
	case errors.Is(err, ErrNoStation):
		return "no_station"
	case errors.Is(err, ErrIncompleteData):
		return "incomplete_data"
	case errors.Is(err, ErrConversionImpossible):
		return "conversion_impossible"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
