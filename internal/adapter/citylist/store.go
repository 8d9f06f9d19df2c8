// Package citylist reads the input city list and writes geocoded coordinates
// back to it. CSV (City,Country[,Lat,Lon]) and YAML lists are supported,
// selected by file extension.
package citylist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/fileutil"
	"gopkg.in/yaml.v3"
)

type format int

const (
	formatCSV format = iota
	formatYAML
)

// Store is a city list file.
type Store struct {
	path   string
	format format
	logger *slog.Logger
}

// NewStore returns a Store for path. The format follows the extension:
// .yaml and .yml are YAML, anything else is CSV.
func NewStore(path string, logger *slog.Logger) *Store {
	f := formatCSV
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f = formatYAML
	}
	return &Store{path: path, format: f, logger: logger}
}

// rowIssue is a problem with one entry of the list. A dropped entry is left
// out of the run; otherwise only its coordinates are discarded and the city
// is geocoded like any other.
type rowIssue struct {
	where   string
	err     error
	dropped bool
}

// Extract reads every city in file order. A malformed entry never fails the
// whole list: entries without a city name are dropped and entries with bad
// coordinates are kept unlocated, each with a warning.
func (s *Store) Extract(_ context.Context) ([]domain.CityRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open city list: %w", err)
	}
	defer f.Close()

	var (
		records []domain.CityRecord
		issues  []rowIssue
	)
	if s.format == formatYAML {
		records, issues, err = readYAML(f)
	} else {
		records, issues, err = readCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("read city list %s: %w", s.path, err)
	}

	for _, is := range issues {
		msg := "city list entry has invalid coordinates, will geocode"
		if is.dropped {
			msg = "city list entry skipped"
		}
		s.logger.Warn(msg, "path", s.path, "entry", is.where, "error", is.err)
	}
	return records, nil
}

// SaveLocations rewrites the list with the coordinates the records now carry,
// so a later run can skip geocoding. Cities that are still unlocated are
// written with empty coordinates.
func (s *Store) SaveLocations(_ context.Context, records []domain.CityRecord) error {
	write := writeCSV
	if s.format == formatYAML {
		write = writeYAML
	}
	err := fileutil.WriteAtomic(s.path, func(w io.Writer) error {
		return write(w, records)
	})
	if err != nil {
		return fmt.Errorf("save city list %s: %w", s.path, err)
	}
	return nil
}

// --- CSV ---

type columns struct {
	city, country, lat, lon int
}

func headerColumns(header []string) (columns, error) {
	cols := columns{city: -1, country: -1, lat: -1, lon: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "city":
			cols.city = i
		case "country":
			cols.country = i
		case "lat", "latitude":
			cols.lat = i
		case "lon", "lng", "longitude":
			cols.lon = i
		}
	}
	if cols.city < 0 || cols.country < 0 {
		return cols, errors.New("header must include City and Country columns")
	}
	return cols, nil
}

func readCSV(r io.Reader) ([]domain.CityRecord, []rowIssue, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, err
	}
	cols, err := headerColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		records []domain.CityRecord
		issues  []rowIssue
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, nil, err
			}
			issues = append(issues, rowIssue{where: fmt.Sprintf("line %d", perr.StartLine), err: err, dropped: true})
			continue
		}
		line, _ := cr.FieldPos(0)
		where := fmt.Sprintf("line %d", line)

		rec := domain.CityRecord{
			City:    field(row, cols.city),
			Country: field(row, cols.country),
		}
		if rec.City == "" {
			issues = append(issues, rowIssue{where: where, err: errEmptyCity, dropped: true})
			continue
		}
		geo, err := parseGeo(field(row, cols.lat), field(row, cols.lon))
		if err != nil {
			issues = append(issues, rowIssue{where: where, err: err})
		}
		rec.Geo = geo
		records = append(records, rec)
	}
	return records, issues, nil
}

var errEmptyCity = errors.New("empty city")

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseGeo returns nil when either coordinate is blank.
func parseGeo(lat, lon string) (*domain.Geo, error) {
	if lat == "" || lon == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", lon, err)
	}
	return checkGeo(domain.Geo{Lat: la, Lon: lo})
}

func checkGeo(g domain.Geo) (*domain.Geo, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("coordinates %v,%v out of range", g.Lat, g.Lon)
	}
	return &g, nil
}

func writeCSV(w io.Writer, records []domain.CityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"City", "Country", "Lat", "Lon"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.City, r.Country, "", ""}
		if r.Geo != nil {
			row[2] = domain.FormatValue(r.Geo.Lat)
			row[3] = domain.FormatValue(r.Geo.Lon)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// --- YAML ---

type yamlCity struct {
	City    string   `yaml:"city"`
	Country string   `yaml:"country"`
	Lat     *float64 `yaml:"lat,omitempty"`
	Lon     *float64 `yaml:"lon,omitempty"`
}

func readYAML(r io.Reader) ([]domain.CityRecord, []rowIssue, error) {
	var (
		entries []yamlCity
		issues  []rowIssue
	)
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		var terr *yaml.TypeError
		switch {
		case errors.Is(err, io.EOF):
			return nil, nil, errors.New("empty file")
		case errors.As(err, &terr):
			// Mistyped fields are left unset and the rest of the list decodes.
			for _, msg := range terr.Errors {
				issues = append(issues, rowIssue{where: "document", err: errors.New(msg)})
			}
		default:
			return nil, nil, err
		}
	}

	records := make([]domain.CityRecord, 0, len(entries))
	for i, e := range entries {
		where := fmt.Sprintf("entry %d", i+1)
		rec := domain.CityRecord{
			City:    strings.TrimSpace(e.City),
			Country: strings.TrimSpace(e.Country),
		}
		if rec.City == "" {
			issues = append(issues, rowIssue{where: where, err: errEmptyCity, dropped: true})
			continue
		}
		if e.Lat != nil && e.Lon != nil {
			geo, err := checkGeo(domain.Geo{Lat: *e.Lat, Lon: *e.Lon})
			if err != nil {
				issues = append(issues, rowIssue{where: where, err: err})
			}
			rec.Geo = geo
		}
		records = append(records, rec)
	}
	return records, issues, nil
}

func writeYAML(w io.Writer, records []domain.CityRecord) error {
	entries := make([]yamlCity, 0, len(records))
	for _, r := range records {
		e := yamlCity{City: r.City, Country: r.Country}
		if r.Geo != nil {
			lat, lon := r.Geo.Lat, r.Geo.Lon
			e.Lat, e.Lon = &lat, &lon
		}
		entries = append(entries, e)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return err
	}
	return enc.Close()
}
