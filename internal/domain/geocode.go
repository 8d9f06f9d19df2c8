package domain

import (
	"context"
	"errors"
	"fmt"
)

// Locate fills in a record's coordinates when the input did not carry them.
// It searches "City, Country" first and falls back to the city name alone
// when that is not found. On failure the record is returned unchanged along
// with the error.
func Locate(ctx context.Context, rec CityRecord, geocoder Geocoder) (CityRecord, error) {
	if rec.Geo != nil {
		if rec.GeoSource == "" {
			rec.GeoSource = "input"
		}
		return rec, nil
	}
	if geocoder == nil {
		return rec, ErrMissingLocation
	}

	result, err := geocoder.Geocode(ctx, rec.City, rec.Country)
	if errors.Is(err, ErrNotFound) && rec.Country != "" {
		result, err = geocoder.Geocode(ctx, rec.City, "")
	}
	if err != nil {
		return rec, err
	}

	geo := Geo{Lat: result.Lat, Lon: result.Lon}
	if !geo.Valid() {
		return rec, fmt.Errorf("geocode %q: coordinates out of range: %w", rec.Label(), ErrNotFound)
	}

	rec.Geo = &geo
	rec.GeoSource = "geocoded"
	rec.PlaceName = result.PlaceName
	return rec, nil
}
