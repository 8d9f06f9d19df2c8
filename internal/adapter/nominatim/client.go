// Package nominatim geocodes city names against an OpenStreetMap Nominatim
// instance.
package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/observability"
	"github.com/go-resty/resty/v2"
)

const provider = "nominatim"

// Client implements domain.Geocoder using the Nominatim search API.
// Nominatim's usage policy requires an identifying User-Agent and at most one
// request per second; callers wrap the client in a throttle.
type Client struct {
	http    *resty.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a Nominatim client against baseURL.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetTransport(observability.HTTPTransport())

	return &Client{http: rc, metrics: metrics, logger: logger}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves "city, country" (or just city) to the best-ranked match.
func (c *Client) Geocode(ctx context.Context, city, country string) (domain.GeocodingResult, error) {
	query := city
	if country != "" {
		query = city + ", " + country
	}

	result, err := c.search(ctx, query)
	c.metrics.GeocodeRequests.WithLabelValues(provider, outcome(err)).Inc()
	return result, err
}

func (c *Client) search(ctx context.Context, query string) (domain.GeocodingResult, error) {
	var places []place

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "jsonv2",
			"limit":  "1",
		}).
		ForceContentType("application/json").
		SetResult(&places).
		Get("/search")
	c.metrics.APIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return domain.GeocodingResult{}, ctx.Err()
		}
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: %w: %w", query, domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: %w", query, domain.ErrRateLimited)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: status %d: %w", query, resp.StatusCode(), domain.ErrNetwork)
	case !resp.IsSuccess():
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: status %d: %s", query, resp.StatusCode(), resp.Body())
	}

	if len(places) == 0 {
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: %w", query, domain.ErrNotFound)
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: parse lat %q: %w", query, p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("nominatim search %q: parse lon %q: %w", query, p.Lon, err)
	}

	c.logger.Debug("nominatim geocode", "query", query, "place", p.DisplayName)
	return domain.GeocodingResult{Lat: lat, Lon: lon, PlaceName: p.DisplayName}, nil
}

func outcome(err error) string {
	switch domain.FailureReason(err) {
	case "":
		return "success"
	case "not_found":
		return "not_found"
	default:
		return "error"
	}
}
