package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Months lists the calendar month abbreviations used as series keys.
var Months = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthIndex returns the zero-based index of a month abbreviation.
func MonthIndex(abbr string) (int, bool) {
	for i, m := range Months {
		if m == abbr {
			return i, true
		}
	}
	return 0, false
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinates are finite and within range.
func (g Geo) Valid() bool {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lon) {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Stage is the lifecycle position of a CityRecord.
type Stage string

const (
	StageUnlocated Stage = "unlocated"
	StageLocated   Stage = "located"
	StageEnriched  Stage = "enriched"
)

// CityRecord is one city moving through the pipeline.
type CityRecord struct {
	City    string
	Country string

	// Geo is nil until the record has been located.
	Geo       *Geo
	GeoSource string // "input" or "geocoded"
	PlaceName string // provider display name when geocoded

	// Climate is nil until the record has been enriched.
	Climate *Climate
}

// Stage derives the record's lifecycle stage from the fields it carries.
func (r CityRecord) Stage() Stage {
	switch {
	case r.Geo != nil && r.Climate != nil:
		return StageEnriched
	case r.Geo != nil:
		return StageLocated
	default:
		return StageUnlocated
	}
}

// Label is the human-readable "City, Country" form of the record.
func (r CityRecord) Label() string {
	if r.Country == "" {
		return r.City
	}
	return r.City + ", " + r.Country
}

// Climate holds the converted monthly series for one city.
type Climate struct {
	TavgF  MonthlyValues
	TminF  MonthlyValues
	TmaxF  MonthlyValues
	PrcpIn MonthlyValues

	StationID   string
	StationName string
}

// CityNormals is the exported form of an enriched record.
type CityNormals struct {
	City    string        `json:"city"`
	Country string        `json:"country"`
	Lat     float64       `json:"lat"`
	Lon     float64       `json:"lon"`
	TavgF   MonthlyValues `json:"tavg_f"`
	TminF   MonthlyValues `json:"tmin_f"`
	TmaxF   MonthlyValues `json:"tmax_f"`
	PrcpIn  MonthlyValues `json:"prcp_in"`
}

// Export returns the exported form of the record. ok is false unless the
// record is enriched, so climate data is never emitted without a location.
func (r CityRecord) Export() (CityNormals, bool) {
	if r.Stage() != StageEnriched {
		return CityNormals{}, false
	}
	return CityNormals{
		City:    r.City,
		Country: r.Country,
		Lat:     r.Geo.Lat,
		Lon:     r.Geo.Lon,
		TavgF:   r.Climate.TavgF,
		TminF:   r.Climate.TminF,
		TmaxF:   r.Climate.TmaxF,
		PrcpIn:  r.Climate.PrcpIn,
	}, true
}

// Dataset is the finalized set of exported cities.
type Dataset struct {
	Cities      []CityNormals
	GeneratedAt time.Time
}

// NewDataset collects the exportable records in input order.
func NewDataset(records []CityRecord) Dataset {
	cities := make([]CityNormals, 0, len(records))
	for _, r := range records {
		if c, ok := r.Export(); ok {
			cities = append(cities, c)
		}
	}
	return Dataset{Cities: cities, GeneratedAt: clock.Now().UTC()}
}

// MonthlyValues is a January-to-December series. A nil entry means the
// provider had no value for that month.
type MonthlyValues [12]*float64

// Get returns the value for a month abbreviation.
func (m MonthlyValues) Get(abbr string) *float64 {
	i, ok := MonthIndex(abbr)
	if !ok {
		return nil
	}
	return m[i]
}

// Present reports whether at least one month carries a value.
func (m MonthlyValues) Present() bool {
	for _, v := range m {
		if v != nil {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the series as an object keyed by month abbreviation,
// always in calendar order.
func (m MonthlyValues) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, abbr := range Months {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(abbr)
		buf.WriteString(`":`)
		if m[i] == nil || math.IsNaN(*m[i]) || math.IsInf(*m[i], 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(FormatValue(*m[i]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by month abbreviation. Unknown keys
// are rejected.
func (m *MonthlyValues) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out MonthlyValues
	for k, v := range raw {
		i, ok := MonthIndex(k)
		if !ok {
			return fmt.Errorf("unknown month key %q", k)
		}
		out[i] = v
	}
	*m = out
	return nil
}

// FormatValue renders a number in its shortest exact decimal form, as used in
// both the CSV and JSON artifacts.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
