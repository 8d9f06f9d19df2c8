// Command validate performs integrity checks across the artifacts of an ETL
// run: the CSV dataset and the JSON dataset. It verifies row parity, the
// location invariant, month coverage, and that both files carry the same
// values.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv dataset_monthly_normals.csv \
//	  -json dataset_monthly_normals.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/climate-normals-etl/internal/adapter/export"
	"github.com/couchcryptid/climate-normals-etl/internal/domain"
)

var measureKeys = []string{"tavg_f", "tmin_f", "tmax_f", "prcp_in"}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "dataset_monthly_normals.csv", "path to the CSV dataset")
	jsonPath := flag.String("json", "dataset_monthly_normals.json", "path to the JSON dataset")
	flag.Parse()

	if *csvPath == "" || *jsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *jsonPath, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, jsonPath string, out io.Writer) int {
	fmt.Fprintln(out, "=== Climate Normals Integrity Validation ===")
	fmt.Fprintln(out)

	header, rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load CSV: %v\n", err)
		return 1
	}

	cities, raw, err := loadJSON(jsonPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load JSON: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateParity(header, rows, cities),
		validateLocations(cities),
		validateCoverage(raw, cities),
		validateAgreement(header, rows, cities),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d CSV rows, %d JSON entries\n", len(rows), len(cities))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file %s", path)
	}
	return all[0], all[1:], nil
}

// loadJSON decodes the dataset twice: typed, and as raw objects so that
// missing month keys can be told apart from explicit nulls.
func loadJSON(path string) ([]domain.CityNormals, []map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var cities []domain.CityNormals
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, nil, err
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}
	return cities, raw, nil
}

// ── Phase 1: row parity ──

func validateParity(header []string, rows [][]string, cities []domain.CityNormals) *phase {
	p := &phase{name: "Phase 1: CSV/JSON row parity"}

	want := export.CSVHeader()
	if strings.Join(header, ",") != strings.Join(want, ",") {
		p.errorf("CSV header has %d columns, want %d (%s...)", len(header), len(want), strings.Join(want[:5], ","))
	}
	if len(rows) != len(cities) {
		p.errorf("CSV has %d rows, JSON has %d entries", len(rows), len(cities))
	}
	if len(cities) == 0 {
		p.errorf("dataset is empty")
	}

	for i := 0; i < len(rows) && i < len(cities); i++ {
		row := rows[i]
		if len(row) < 2 {
			p.errorf("CSV line %d: too few columns", i+2)
			continue
		}
		if row[0] != cities[i].City || row[1] != cities[i].Country {
			p.errorf("row %d: CSV %q/%q, JSON %q/%q", i+1, row[0], row[1], cities[i].City, cities[i].Country)
		}
	}
	return p
}

// ── Phase 2: location invariant ──

func validateLocations(cities []domain.CityNormals) *phase {
	p := &phase{name: "Phase 2: Location invariant"}
	for i, c := range cities {
		g := domain.Geo{Lat: c.Lat, Lon: c.Lon}
		if !g.Valid() {
			p.errorf("entry %d (%s): coordinates %v,%v out of range", i+1, c.City, c.Lat, c.Lon)
		}
		if c.Lat == 0 && c.Lon == 0 {
			p.errorf("entry %d (%s): coordinates are 0,0", i+1, c.City)
		}
	}
	return p
}

// ── Phase 3: month coverage ──

func validateCoverage(raw []map[string]json.RawMessage, cities []domain.CityNormals) *phase {
	p := &phase{name: "Phase 3: Month coverage"}

	for i, obj := range raw {
		for _, key := range measureKeys {
			series, ok := obj[key]
			if !ok {
				p.errorf("entry %d: missing %s", i+1, key)
				continue
			}
			var months map[string]json.RawMessage
			if err := json.Unmarshal(series, &months); err != nil {
				p.errorf("entry %d: %s: %v", i+1, key, err)
				continue
			}
			for _, m := range domain.Months {
				if _, ok := months[m]; !ok {
					p.errorf("entry %d: %s missing %s", i+1, key, m)
				}
			}
		}
	}

	for i, c := range cities {
		if !c.TavgF.Present() {
			p.errorf("entry %d (%s): no month has tavg_f", i+1, c.City)
		}
	}
	return p
}

// ── Phase 4: value agreement ──

func validateAgreement(header []string, rows [][]string, cities []domain.CityNormals) *phase {
	p := &phase{name: "Phase 4: CSV/JSON value agreement"}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	for i := 0; i < len(rows) && i < len(cities); i++ {
		row, c := rows[i], cities[i]
		compareCell(p, i, row, col, "Lat", domain.FormatValue(c.Lat))
		compareCell(p, i, row, col, "Lon", domain.FormatValue(c.Lon))

		series := map[string]domain.MonthlyValues{
			"tavg_f":  c.TavgF,
			"tmin_f":  c.TminF,
			"tmax_f":  c.TmaxF,
			"prcp_in": c.PrcpIn,
		}
		for _, key := range measureKeys {
			for mi, m := range domain.Months {
				want := ""
				if v := series[key][mi]; v != nil {
					want = domain.FormatValue(*v)
				}
				compareCell(p, i, row, col, m+"_"+key, want)
			}
		}
	}
	return p
}

func compareCell(p *phase, i int, row []string, col map[string]int, name, want string) {
	j, ok := col[name]
	if !ok || j >= len(row) {
		return
	}
	if row[j] != want {
		p.errorf("row %d %s: CSV %q, JSON %q", i+1, name, row[j], want)
	}
}
