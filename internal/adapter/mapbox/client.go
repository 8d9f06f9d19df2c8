package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/observability"
)

const provider = "mapbox"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: observability.HTTPTransport(),
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode converts a city and country to coordinates.
func (c *Client) Geocode(ctx context.Context, city, country string) (domain.GeocodingResult, error) {
	query := city
	if country != "" {
		query = fmt.Sprintf("%s, %s", city, country)
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	result, err := c.doRequest(ctx, u+"?"+params.Encode(), query)
	c.metrics.GeocodeRequests.WithLabelValues(provider, outcome(err)).Inc()
	return result, err
}

func (c *Client) doRequest(ctx context.Context, fullURL, query string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.APIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("mapbox geocode %q: %w: %w", query, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.GeocodingResult{}, fmt.Errorf("mapbox geocode %q: %w", query, domain.ErrRateLimited)
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.GeocodingResult{}, fmt.Errorf("mapbox geocode %q: status %d: %w", query, resp.StatusCode, domain.ErrNetwork)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return domain.GeocodingResult{}, fmt.Errorf("mapbox geocode %q: %w", query, domain.ErrNotFound)
	}

	f := mapboxResp.Features[0]
	c.logger.Debug("mapbox geocode", "query", query, "place", f.PlaceName, "relevance", f.Relevance)
	return domain.GeocodingResult{
		Lon:       f.Center[0],
		Lat:       f.Center[1],
		PlaceName: f.PlaceName,
	}, nil
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

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
