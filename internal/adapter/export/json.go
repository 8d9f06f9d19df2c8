package export

import (
	"encoding/json"
	"io"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
)

// WriteJSON writes the cities as a JSON array. The encoding depends only on
// the city values, so identical datasets produce identical bytes.
func WriteJSON(w io.Writer, cities []domain.CityNormals) error {
	if cities == nil {
		cities = []domain.CityNormals{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(cities)
}
