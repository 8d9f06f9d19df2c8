package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var (
	mapTemplate  = template.Must(template.ParseFS(templateFS, "templates/common.html.tmpl", "templates/map.html.tmpl"))
	siteTemplate = template.Must(template.ParseFS(templateFS, "templates/common.html.tmpl", "templates/site.html.tmpl"))
)

// Filters are the initial values of the map's filter inputs.
type Filters struct {
	ComfortMinF float64
	ComfortMaxF float64
	PrecipMaxIn float64
}

// DefaultFilters is a 50–75 °F comfort band with at most 5 in of monthly rain.
var DefaultFilters = Filters{ComfortMinF: 50, ComfortMaxF: 75, PrecipMaxIn: 5}

type pageData struct {
	Filters
	Months      [12]string
	Cities      []domain.CityNormals
	DataPath    string
	GeneratedAt string
}

// RenderMap writes the self-contained map page with the dataset inlined.
func RenderMap(w io.Writer, ds domain.Dataset, f Filters) error {
	cities := ds.Cities
	if cities == nil {
		cities = []domain.CityNormals{}
	}
	data := pageData{
		Filters:     f,
		Months:      domain.Months,
		Cities:      cities,
		GeneratedAt: ds.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if err := mapTemplate.ExecuteTemplate(w, "map.html.tmpl", data); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// RenderSite writes the static site page, which fetches the dataset from
// dataPath at load time and offers a file picker as a fallback.
func RenderSite(w io.Writer, dataPath string, f Filters) error {
	data := pageData{
		Filters:  f,
		Months:   domain.Months,
		DataPath: dataPath,
	}
	if err := siteTemplate.ExecuteTemplate(w, "site.html.tmpl", data); err != nil {
		return fmt.Errorf("render site: %w", err)
	}
	return nil
}
