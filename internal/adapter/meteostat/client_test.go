package meteostat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/climate-normals-etl/internal/domain"
	"github.com/couchcryptid/climate-normals-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

func testClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:    baseURL,
		APIKey:     testAPIKey,
		Timeout:    5 * time.Second,
		StartYear:  1991,
		EndYear:    2020,
		Candidates: 3,
	}, observability.NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fullYear renders twelve normals rows with the given January values and
// fixed values for the other months.
func fullYear(tavg, tmin, tmax, prcp float64) string {
	rows := make([]string, 0, 12)
	rows = append(rows, fmt.Sprintf(`{"month":1,"tavg":%v,"tmin":%v,"tmax":%v,"prcp":%v}`, tavg, tmin, tmax, prcp))
	for m := 2; m <= 12; m++ {
		rows = append(rows, fmt.Sprintf(`{"month":%d,"tavg":20,"tmin":15,"tmax":25,"prcp":null}`, m))
	}
	return `{"data":[` + strings.Join(rows, ",") + `]}`
}

func partialYear(months int) string {
	rows := make([]string, 0, months)
	for m := 1; m <= months; m++ {
		rows = append(rows, fmt.Sprintf(`{"month":%d,"tavg":10}`, m))
	}
	return `{"data":[` + strings.Join(rows, ",") + `]}`
}

// stubAPI serves /stations/nearby with the given station IDs and
// /stations/normals from the normals map (missing stations get empty data).
type stubAPI struct {
	stations     []string
	normals      map[string]string
	normalsCalls atomic.Int32
}

func (s *stubAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/stations/nearby":
		parts := make([]string, 0, len(s.stations))
		for i, id := range s.stations {
			parts = append(parts, fmt.Sprintf(`{"id":%q,"name":{"en":"Station %s"},"distance":%d}`, id, id, i*1000))
		}
		_, _ = fmt.Fprintf(w, `{"meta":{},"data":[%s]}`, strings.Join(parts, ","))
	case "/stations/normals":
		s.normalsCalls.Add(1)
		body, ok := s.normals[r.URL.Query().Get("station")]
		if !ok {
			body = `{"data":[]}`
		}
		_, _ = w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func TestClient_FetchNormals_Lisbon(t *testing.T) {
	api := &stubAPI{
		stations: []string{"08535"},
		normals:  map[string]string{"08535": fullYear(14, 8, 18, 80)},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("x-rapidapi-key"))
		if r.URL.Path == "/stations/normals" {
			assert.Equal(t, "1991", r.URL.Query().Get("start"))
			assert.Equal(t, "2020", r.URL.Query().Get("end"))
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	n, err := c.FetchNormals(context.Background(), 38.7223, -9.1393)
	require.NoError(t, err)

	assert.Equal(t, "08535", n.StationID)
	assert.Equal(t, "Station 08535", n.StationName)
	require.NotNil(t, n.Months[0].Tavg)
	assert.Equal(t, 14.0, *n.Months[0].Tavg)
	assert.Equal(t, 80.0, *n.Months[0].Prcp)
	assert.Nil(t, n.Months[5].Prcp, "null precipitation passes through")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsRequests.WithLabelValues("success")))
}

func TestClient_FetchNormals_SkipsIncompleteStation(t *testing.T) {
	api := &stubAPI{
		stations: []string{"near", "far"},
		normals: map[string]string{
			"near": partialYear(9),
			"far":  fullYear(5, 1, 9, 40),
		},
	}
	srv := httptest.NewServer(api)
	defer srv.Close()

	n, err := testClient(srv.URL).FetchNormals(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, "far", n.StationID)
}

func TestClient_FetchNormals_NoStation(t *testing.T) {
	srv := httptest.NewServer(&stubAPI{})
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchNormals(context.Background(), 0, -160)
	require.ErrorIs(t, err, domain.ErrNoStation)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsRequests.WithLabelValues("no_station")))
}

func TestClient_FetchNormals_StationsWithoutRows(t *testing.T) {
	srv := httptest.NewServer(&stubAPI{stations: []string{"a", "b"}})
	defer srv.Close()

	_, err := testClient(srv.URL).FetchNormals(context.Background(), 0, 0)
	require.ErrorIs(t, err, domain.ErrNoStation)
}

func TestClient_FetchNormals_IncompleteData(t *testing.T) {
	srv := httptest.NewServer(&stubAPI{
		stations: []string{"a", "b"},
		normals:  map[string]string{"a": partialYear(11), "b": partialYear(3)},
	})
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchNormals(context.Background(), 0, 0)
	require.ErrorIs(t, err, domain.ErrIncompleteData)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsRequests.WithLabelValues("incomplete_data")))
}

func TestClient_FetchNormals_DuplicateMonthsDoNotCount(t *testing.T) {
	rows := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, `{"month":1,"tavg":10}`)
	}
	srv := httptest.NewServer(&stubAPI{
		stations: []string{"dup"},
		normals:  map[string]string{"dup": `{"data":[` + strings.Join(rows, ",") + `]}`},
	})
	defer srv.Close()

	_, err := testClient(srv.URL).FetchNormals(context.Background(), 0, 0)
	require.ErrorIs(t, err, domain.ErrIncompleteData)
}

func TestClient_FetchNormals_CachesStation(t *testing.T) {
	api := &stubAPI{
		stations: []string{"shared"},
		normals:  map[string]string{"shared": fullYear(10, 5, 15, 50)},
	}
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchNormals(context.Background(), 1, 1)
	require.NoError(t, err)
	_, err = c.FetchNormals(context.Background(), 1.01, 1.01)
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.normalsCalls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsCache.WithLabelValues("miss")))
}

func TestClient_FetchNormals_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrRateLimited},
		{name: "server error", status: http.StatusServiceUnavailable, want: domain.ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := testClient(srv.URL)
			_, err := c.FetchNormals(context.Background(), 0, 0)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.NormalsRequests.WithLabelValues("error")))
		})
	}
}

func TestClient_FetchNormals_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"You are not subscribed to this API."}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchNormals(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
