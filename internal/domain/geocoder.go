package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat       float64
	Lon       float64
	PlaceName string
}

// Geocoder resolves place names to coordinates.
type Geocoder interface {
	// Geocode converts a city and country to coordinates. An empty country
	// searches by city name alone. Implementations return an error wrapping
	// ErrNotFound, ErrRateLimited, or ErrNetwork on failure.
	Geocode(ctx context.Context, city, country string) (GeocodingResult, error)
}
