package export

import (
	"encoding/csv"
	"io"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
)

// measures are the per-month CSV column suffixes, in column order.
var measures = []string{"tavg_f", "tmin_f", "tmax_f", "prcp_in"}

// CSVHeader returns the dataset column names: City, Country, Lat, Lon, then
// the four measures for each month in calendar order.
func CSVHeader() []string {
	header := make([]string, 0, 4+len(domain.Months)*len(measures))
	header = append(header, "City", "Country", "Lat", "Lon")
	for _, m := range domain.Months {
		for _, suffix := range measures {
			header = append(header, m+"_"+suffix)
		}
	}
	return header
}

// WriteCSV writes one row per city. Missing values are empty cells.
func WriteCSV(w io.Writer, cities []domain.CityNormals) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}

	for _, c := range cities {
		row := make([]string, 0, 4+len(domain.Months)*len(measures))
		row = append(row, c.City, c.Country, domain.FormatValue(c.Lat), domain.FormatValue(c.Lon))
		for i := range domain.Months {
			row = append(row,
				cell(c.TavgF[i]),
				cell(c.TminF[i]),
				cell(c.TmaxF[i]),
				cell(c.PrcpIn[i]),
			)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return domain.FormatValue(*v)
}
