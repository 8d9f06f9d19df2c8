// Package throttle spaces out requests to shared public services.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"golang.org/x/time/rate"
)

// Geocoder wraps a domain.Geocoder so that at most one request is issued per
// interval, however many callers share it.
type Geocoder struct {
	inner   domain.Geocoder
	limiter *rate.Limiter
}

// NewGeocoder creates a throttling decorator. The first request goes out
// immediately; each later one waits until interval has passed since the last.
func NewGeocoder(inner domain.Geocoder, interval time.Duration) *Geocoder {
	return &Geocoder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (g *Geocoder) Geocode(ctx context.Context, city, country string) (domain.GeocodingResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode throttle: %w", err)
	}
	return g.inner.Geocode(ctx, city, country)
}
