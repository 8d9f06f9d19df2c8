package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func filled(v float64) domain.MonthlyValues {
	var mv domain.MonthlyValues
	for i := range mv {
		mv[i] = f64(v)
	}
	return mv
}

func sampleDataset() domain.Dataset {
	lisbon := domain.CityNormals{
		City: "Lisbon", Country: "Portugal", Lat: 38.7223, Lon: -9.1393,
		TavgF: filled(57), TminF: filled(46), TmaxF: filled(64), PrcpIn: filled(3.1),
	}
	reykjavik := domain.CityNormals{
		City: "Reykjavík", Country: "Iceland", Lat: 64.1466, Lon: -21.9426,
		TavgF: filled(33), TminF: filled(29), TmaxF: filled(37),
	}
	reykjavik.TminF[6] = nil
	return domain.Dataset{
		Cities:      []domain.CityNormals{lisbon, reykjavik},
		GeneratedAt: time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCSVHeader(t *testing.T) {
	h := CSVHeader()
	require.Len(t, h, 4+12*4)
	assert.Equal(t, []string{"City", "Country", "Lat", "Lon", "Jan_tavg_f", "Jan_tmin_f", "Jan_tmax_f", "Jan_prcp_in", "Feb_tavg_f"}, h[:9])
	assert.Equal(t, "Dec_prcp_in", h[len(h)-1])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDataset().Cities))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per city")

	lisbon := rows[1]
	assert.Equal(t, []string{"Lisbon", "Portugal", "38.7223", "-9.1393", "57", "46", "64", "3.1"}, lisbon[:8])

	reykjavik := rows[2]
	assert.Equal(t, "Reykjavík", reykjavik[0])
	assert.Equal(t, "", reykjavik[7], "missing precipitation is an empty cell")
	julTmin := 4 + 6*4 + 1
	assert.Equal(t, "Jul_tmin_f", rows[0][julTmin])
	assert.Equal(t, "", reykjavik[julTmin])
	assert.Equal(t, "37", reykjavik[julTmin+1])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleDataset().Cities[:1]))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `[{"city":"Lisbon","country":"Portugal","lat":38.7223,"lon":-9.1393,"tavg_f":{"Jan":57,"Feb":57,`), out)
	assert.Contains(t, out, `"prcp_in":{"Jan":3.1,`)
	assert.True(t, strings.HasSuffix(out, "}}]\n"))

	var decoded []domain.CityNormals
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 57.0, *decoded[0].TavgF.Get("Jan"))
}

func TestWriteJSON_NullsAndUnicode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleDataset().Cities[1:]))

	out := buf.String()
	assert.Contains(t, out, `"city":"Reykjavík"`)
	assert.Contains(t, out, `"prcp_in":{"Jan":null,`)
	assert.Contains(t, out, `"Jul":null`)
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteJSON_Stable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, WriteJSON(&a, sampleDataset().Cities))
	require.NoError(t, WriteJSON(&b, sampleDataset().Cities))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestRenderMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, sampleDataset(), DefaultFilters))

	out := buf.String()
	assert.Contains(t, out, `<option value="Jan">Jan</option>`)
	assert.Contains(t, out, `<option value="Dec">Dec</option>`)
	assert.Contains(t, out, `id="minTemp" type="number" value="50"`)
	assert.Contains(t, out, `id="maxTemp" type="number" value="75"`)
	assert.Contains(t, out, `id="maxPrcp" type="number" value="5"`)
	assert.Contains(t, out, `"city":"Lisbon"`)
	assert.Contains(t, out, `content="2026-01-02T03:04:05Z"`)
	assert.Contains(t, out, "leaflet.js")
	assert.NotContains(t, out, `id="file"`, "the standalone map has no file picker")
}

func TestRenderMap_EscapesCityNames(t *testing.T) {
	ds := sampleDataset()
	ds.Cities[0].City = "</script><script>alert(1)</script>"

	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, ds, DefaultFilters))

	assert.NotContains(t, buf.String(), "<script>alert(1)")
}

func TestRenderSite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSite(&buf, "data/dataset_monthly_normals.json", Filters{ComfortMinF: 60, ComfortMaxF: 80, PrecipMaxIn: 2.5}))

	out := buf.String()
	assert.Contains(t, out, `id="file" type="file"`)
	assert.Contains(t, out, `dataset_monthly_normals.json`)
	assert.Contains(t, out, `value="60"`)
	assert.Contains(t, out, `value="2.5"`)
	assert.NotContains(t, out, `"city":`, "the site page does not inline data")
}

func testExporter(dir string) *Exporter {
	return NewExporter(Options{
		OutputDir: dir,
		CSVName:   "dataset_monthly_normals.csv",
		JSONName:  "dataset_monthly_normals.json",
		HTMLName:  "comfort_map_dropdown.html",
		SiteDir:   "site",
		Filters:   DefaultFilters,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExporter_Load(t *testing.T) {
	dir := t.TempDir()
	paths, err := testExporter(dir).Load(context.Background(), sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "dataset_monthly_normals.csv"),
		filepath.Join(dir, "dataset_monthly_normals.json"),
		filepath.Join(dir, "comfort_map_dropdown.html"),
		filepath.Join(dir, "site", "index.html"),
		filepath.Join(dir, "site", "data", "dataset_monthly_normals.json"),
	}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}

	main, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	site, err := os.ReadFile(paths[4])
	require.NoError(t, err)
	assert.Equal(t, main, site, "site bundle carries the same dataset")
}

func TestExporter_Load_Idempotent(t *testing.T) {
	dir := t.TempDir()
	e := testExporter(dir)
	jsonPath := filepath.Join(dir, "dataset_monthly_normals.json")

	_, err := e.Load(context.Background(), sampleDataset())
	require.NoError(t, err)
	first, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	ds := sampleDataset()
	ds.GeneratedAt = ds.GeneratedAt.Add(time.Hour)
	_, err = e.Load(context.Background(), ds)
	require.NoError(t, err)
	second, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExporter_Load_NoData(t *testing.T) {
	dir := t.TempDir()
	paths, err := testExporter(dir).Load(context.Background(), domain.Dataset{})
	require.ErrorIs(t, err, domain.ErrNoData)
	assert.Empty(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written for an empty run")
}

func TestExporter_Load_Canceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testExporter(dir).Load(ctx, sampleDataset())
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExporter_Load_NoSite(t *testing.T) {
	dir := t.TempDir()
	e := testExporter(dir)
	e.opts.SiteDir = ""

	paths, err := e.Load(context.Background(), sampleDataset())
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.NoDirExists(t, filepath.Join(dir, "site"))
}

// cancelAfter reports context.Canceled from the n-th call to Err onward.
type cancelAfter struct {
	context.Context
	n, calls int
}

func (c *cancelAfter) Err() error {
	c.calls++
	if c.calls >= c.n {
		return context.Canceled
	}
	return nil
}

func TestExporter_Load_CanceledMidExport(t *testing.T) {
	for n := 2; n <= 6; n++ {
		t.Run(fmt.Sprintf("after %d checks", n), func(t *testing.T) {
			dir := t.TempDir()
			ctx := &cancelAfter{Context: context.Background(), n: n}

			paths, err := testExporter(dir).Load(ctx, sampleDataset())
			require.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, paths)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries, "no artifacts, temp files or site directories remain")
		})
	}
}

func TestExporter_Load_CanceledKeepsPreviousRun(t *testing.T) {
	dir := t.TempDir()
	e := testExporter(dir)
	_, err := e.Load(context.Background(), sampleDataset())
	require.NoError(t, err)
	csvPath := filepath.Join(dir, "dataset_monthly_normals.csv")
	before, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	ds := sampleDataset()
	ds.Cities = ds.Cities[:1]
	_, err = e.Load(&cancelAfter{Context: context.Background(), n: 4}, ds)
	require.ErrorIs(t, err, context.Canceled)

	after, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), entry.Name())
	}
}
