package domain

import "context"

// MonthNormals holds one month of climate normals in source units.
// Nil fields were not reported by the station.
type MonthNormals struct {
	Tavg *float64 // °C
	Tmin *float64 // °C
	Tmax *float64 // °C
	Prcp *float64 // mm
}

// Normals is a full year of station normals, January first.
type Normals struct {
	StationID   string
	StationName string
	Months      [12]MonthNormals
}

// NormalsSource retrieves climate normals for the station nearest a point.
type NormalsSource interface {
	// FetchNormals returns normals from the nearest station with sufficient
	// coverage, or an error wrapping ErrNoStation or ErrIncompleteData.
	FetchNormals(ctx context.Context, lat, lon float64) (Normals, error)
}
