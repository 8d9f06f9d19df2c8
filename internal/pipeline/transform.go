package pipeline

import (
	"context"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
)

// CityTransformer implements Transformer using the domain functions, a
// geocoder and a normals source.
type CityTransformer struct {
	geocoder  domain.Geocoder
	normals   domain.NormalsSource
	precision domain.Precision
}

// NewTransformer creates a CityTransformer. Pass a nil geocoder to accept
// only cities whose coordinates are already in the input.
func NewTransformer(geocoder domain.Geocoder, normals domain.NormalsSource, precision domain.Precision) *CityTransformer {
	return &CityTransformer{
		geocoder:  geocoder,
		normals:   normals,
		precision: precision,
	}
}

func (t *CityTransformer) Locate(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error) {
	return domain.Locate(ctx, rec, t.geocoder)
}

func (t *CityTransformer) Enrich(ctx context.Context, rec domain.CityRecord) (domain.CityRecord, error) {
	if rec.Geo == nil {
		return rec, domain.ErrMissingLocation
	}
	n, err := t.normals.FetchNormals(ctx, rec.Geo.Lat, rec.Geo.Lon)
	if err != nil {
		return rec, err
	}
	return domain.Enrich(rec, n, t.precision)
}
