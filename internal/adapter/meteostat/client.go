// Package meteostat fetches monthly climate normals from the Meteostat JSON
// API (RapidAPI edition).
package meteostat

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
	"github.com/patrickmn/go-cache"
)

const service = "meteostat"

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	StartYear  int
	EndYear    int
	Candidates int
}

// Client implements domain.NormalsSource. Station normals are cached for the
// lifetime of the client since neighbouring cities often share a station.
type Client struct {
	http    *resty.Client
	opts    Options
	cache   *cache.Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a Meteostat client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("x-rapidapi-key", opts.APIKey).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout).
		SetTransport(observability.HTTPTransport())

	return &Client{
		http:    rc,
		opts:    opts,
		cache:   cache.New(cache.NoExpiration, 0),
		metrics: metrics,
		logger:  logger,
	}
}

// API response types.

type stationsResponse struct {
	Data []station `json:"data"`
}

type station struct {
	ID       string            `json:"id"`
	Name     map[string]string `json:"name"`
	Distance float64           `json:"distance"`
}

func (s station) displayName() string {
	if n, ok := s.Name["en"]; ok {
		return n
	}
	for _, n := range s.Name {
		return n
	}
	return s.ID
}

type normalsResponse struct {
	Data []normalsRow `json:"data"`
}

type normalsRow struct {
	Month int      `json:"month"`
	Tavg  *float64 `json:"tavg"`
	Tmin  *float64 `json:"tmin"`
	Tmax  *float64 `json:"tmax"`
	Prcp  *float64 `json:"prcp"`
}

// stationNormals is the cached result of one station lookup.
type stationNormals struct {
	months  [12]domain.MonthNormals
	covered int
}

// FetchNormals walks the nearest stations in distance order and returns the
// first one reporting all twelve months for the configured period.
func (c *Client) FetchNormals(ctx context.Context, lat, lon float64) (domain.Normals, error) {
	n, err := c.fetchNormals(ctx, lat, lon)
	c.metrics.NormalsRequests.WithLabelValues(outcome(err)).Inc()
	return n, err
}

func (c *Client) fetchNormals(ctx context.Context, lat, lon float64) (domain.Normals, error) {
	stations, err := c.nearbyStations(ctx, lat, lon)
	if err != nil {
		return domain.Normals{}, err
	}
	if len(stations) == 0 {
		return domain.Normals{}, fmt.Errorf("no stations near %.4f,%.4f: %w", lat, lon, domain.ErrNoStation)
	}

	anyRows := false
	for _, st := range stations {
		sn, err := c.stationNormals(ctx, st.ID)
		if err != nil {
			return domain.Normals{}, err
		}
		if sn.covered == 0 {
			continue
		}
		anyRows = true
		if sn.covered < 12 {
			c.logger.Debug("station lacks full coverage", "station", st.ID, "months", sn.covered)
			continue
		}
		return domain.Normals{
			StationID:   st.ID,
			StationName: st.displayName(),
			Months:      sn.months,
		}, nil
	}

	if !anyRows {
		return domain.Normals{}, fmt.Errorf("%d stations near %.4f,%.4f returned no normals: %w",
			len(stations), lat, lon, domain.ErrNoStation)
	}
	return domain.Normals{}, fmt.Errorf("no station near %.4f,%.4f covers all months of %d-%d: %w",
		lat, lon, c.opts.StartYear, c.opts.EndYear, domain.ErrIncompleteData)
}

func (c *Client) nearbyStations(ctx context.Context, lat, lon float64) ([]station, error) {
	var body stationsResponse
	err := c.get(ctx, "/stations/nearby", map[string]string{
		"lat":   strconv.FormatFloat(lat, 'f', -1, 64),
		"lon":   strconv.FormatFloat(lon, 'f', -1, 64),
		"limit": strconv.Itoa(c.opts.Candidates),
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("nearby stations: %w", err)
	}
	if len(body.Data) > c.opts.Candidates {
		body.Data = body.Data[:c.opts.Candidates]
	}
	return body.Data, nil
}

func (c *Client) stationNormals(ctx context.Context, id string) (stationNormals, error) {
	if v, ok := c.cache.Get(id); ok {
		c.metrics.NormalsCache.WithLabelValues("hit").Inc()
		return v.(stationNormals), nil
	}
	c.metrics.NormalsCache.WithLabelValues("miss").Inc()

	var body normalsResponse
	err := c.get(ctx, "/stations/normals", map[string]string{
		"station": id,
		"start":   strconv.Itoa(c.opts.StartYear),
		"end":     strconv.Itoa(c.opts.EndYear),
	}, &body)
	if err != nil {
		return stationNormals{}, fmt.Errorf("station %s normals: %w", id, err)
	}

	var sn stationNormals
	var seen [12]bool
	for _, row := range body.Data {
		if row.Month < 1 || row.Month > 12 || seen[row.Month-1] {
			continue
		}
		seen[row.Month-1] = true
		sn.covered++
		sn.months[row.Month-1] = domain.MonthNormals{
			Tavg: row.Tavg,
			Tmin: row.Tmin,
			Tmax: row.Tmax,
			Prcp: row.Prcp,
		}
	}

	c.cache.Set(id, sn, cache.NoExpiration)
	return sn, nil
}

// get issues one API request and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		ForceContentType("application/json").
		SetResult(result).
		Get(path)
	c.metrics.APIDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("status %d: %w", resp.StatusCode(), domain.ErrNetwork)
	case !resp.IsSuccess():
		return fmt.Errorf("meteostat API error: status %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

func outcome(err error) string {
	switch reason := domain.FailureReason(err); reason {
	case "":
		return "success"
	case "no_station", "incomplete_data":
		return reason
	default:
		return "error"
	}
}
