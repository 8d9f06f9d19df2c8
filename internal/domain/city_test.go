package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyValues_MarshalJSON_CalendarOrder(t *testing.T) {
	var m MonthlyValues
	m[0] = f64(57)
	m[1] = f64(58.5)
	m[11] = f64(-3)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t,
		`{"Jan":57,"Feb":58.5,"Mar":null,"Apr":null,"May":null,"Jun":null,"Jul":null,"Aug":null,"Sep":null,"Oct":null,"Nov":null,"Dec":-3}`,
		string(data))
}

func TestMonthlyValues_MarshalJSON_NonFiniteIsNull(t *testing.T) {
	var m MonthlyValues
	m[0] = f64(math.Inf(1))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Jan":null`)
}

func TestMonthlyValues_UnmarshalJSON(t *testing.T) {
	var m MonthlyValues
	require.NoError(t, json.Unmarshal([]byte(`{"Mar":12.5,"Jan":null}`), &m))
	assert.Nil(t, m.Get("Jan"))
	assert.Equal(t, 12.5, *m.Get("Mar"))

	err := json.Unmarshal([]byte(`{"January":1}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "January")
}

func TestMonthIndex(t *testing.T) {
	i, ok := MonthIndex("Sep")
	assert.True(t, ok)
	assert.Equal(t, 8, i)

	_, ok = MonthIndex("sep")
	assert.False(t, ok)
}

func TestGeo_Valid(t *testing.T) {
	assert.True(t, Geo{Lat: 38.72, Lon: -9.14}.Valid())
	assert.True(t, Geo{Lat: -90, Lon: 180}.Valid())
	assert.False(t, Geo{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Geo{Lat: 0, Lon: -181}.Valid())
	assert.False(t, Geo{Lat: math.NaN(), Lon: 0}.Valid())
}

func TestCityRecord_ExportRequiresLocationAndClimate(t *testing.T) {
	climate := &Climate{}
	climate.TavgF[0] = f64(57)

	_, ok := CityRecord{City: "A", Climate: climate}.Export()
	assert.False(t, ok, "climate without location must not export")

	_, ok = CityRecord{City: "B", Geo: &Geo{Lat: 1, Lon: 2}}.Export()
	assert.False(t, ok, "location without climate must not export")

	out, ok := CityRecord{City: "C", Country: "X", Geo: &Geo{Lat: 1, Lon: 2}, Climate: climate}.Export()
	require.True(t, ok)
	assert.Equal(t, 1.0, out.Lat)
	assert.Equal(t, 2.0, out.Lon)
	assert.Equal(t, 57.0, *out.TavgF.Get("Jan"))
}

func TestNewDataset(t *testing.T) {
	frozen := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	climate := &Climate{}
	records := []CityRecord{
		{City: "Lisbon", Country: "Portugal", Geo: &Geo{Lat: 38.72, Lon: -9.14}, Climate: climate},
		{City: "Atlantis", Country: "Ocean"},
		{City: "Porto", Country: "Portugal", Geo: &Geo{Lat: 41.15, Lon: -8.61}, Climate: climate},
	}

	ds := NewDataset(records)
	require.Len(t, ds.Cities, 2)
	assert.Equal(t, "Lisbon", ds.Cities[0].City)
	assert.Equal(t, "Porto", ds.Cities[1].City)
	assert.Equal(t, frozen, ds.GeneratedAt)
}

func TestCityRecord_Label(t *testing.T) {
	assert.Equal(t, "Lisbon, Portugal", CityRecord{City: "Lisbon", Country: "Portugal"}.Label())
	assert.Equal(t, "Lisbon", CityRecord{City: "Lisbon"}.Label())
}
