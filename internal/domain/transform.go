package domain

import "fmt"

// ConvertNormals converts station normals to display units. Each of the four
// monthly figures is converted independently and missing values stay missing.
// It fails with ErrConversionImpossible when no month has an average
// temperature, since such a city can never match a temperature filter.
func ConvertNormals(n Normals, p Precision) (Climate, error) {
	var c Climate
	for i, m := range n.Months {
		c.TavgF[i] = convertTemp(m.Tavg, p.TempDecimals)
		c.TminF[i] = convertTemp(m.Tmin, p.TempDecimals)
		c.TmaxF[i] = convertTemp(m.Tmax, p.TempDecimals)
		c.PrcpIn[i] = convertPrecip(m.Prcp, p.PrecipDecimals)
	}
	if !c.TavgF.Present() {
		return Climate{}, fmt.Errorf("station %s: tavg: %w", n.StationID, ErrConversionImpossible)
	}
	c.StationID = n.StationID
	c.StationName = n.StationName
	return c, nil
}

// Enrich attaches converted climate data to a located record.
func Enrich(rec CityRecord, n Normals, p Precision) (CityRecord, error) {
	if rec.Geo == nil {
		return rec, ErrMissingLocation
	}
	climate, err := ConvertNormals(n, p)
	if err != nil {
		return rec, err
	}
	rec.Climate = &climate
	return rec, nil
}
