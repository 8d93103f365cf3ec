package handlers

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rainfall-platform/internal/models"
	"rainfall-platform/internal/repository"
	"rainfall-platform/internal/services"
	"rainfall-platform/pkg/logging"
	"rainfall-platform/pkg/metrics"
)

// countingStore wraps a RecordStore and counts dataset reads
type countingStore struct {
	repository.RecordStore
	reads int
	err   error
}

func (c *countingStore) AllRecords(ctx context.Context) ([]models.RainfallRecord, error) {
	c.reads++
	if c.err != nil {
		return nil, c.err
	}
	return c.RecordStore.AllRecords(ctx)
}

func (c *countingStore) HealthCheck(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	return c.RecordStore.HealthCheck(ctx)
}

type testServer struct {
	handler   http.Handler
	store     *countingStore
	collector *metrics.Collector
}

func day(d int) time.Time {
	return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, records ...models.RainfallRecord) *testServer {
	t.Helper()

	if len(records) == 0 {
		records = []models.RainfallRecord{
			{Time: day(1), Value: 1.0},
			{Time: day(2), Value: 3.0},
			{Time: day(3), Value: 1.0},
		}
	}

	logger := logging.New(logging.Options{Service: "test", Output: io.Discard})
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry("rainfall_test", reg)

	store := &countingStore{RecordStore: repository.NewMemoryStore(records...)}
	queryService := services.NewQueryService(store, logger, collector)
	h := NewRainfallHandler(queryService, store, logger, collector)

	handler := NewRouter(h, logger, collector, RouterOptions{
		AllowedOrigins: []string{"https://dashboard.example.com"},
		ServerURL:      "http://localhost:5000",
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	return &testServer{handler: handler, store: store, collector: collector}
}

func (s *testServer) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type dataResponse struct {
	Data []struct {
		ID   int64    `json:"id"`
		Time string   `json:"time"`
		RGA  *float64 `json:"RG_A"`
	} `json:"data"`
	Statistics  map[string]*float64 `json:"statistics"`
	ValueCounts map[string]int      `json:"value_counts"`
	Warnings    []string            `json:"warnings"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) dataResponse {
	t.Helper()
	var body dataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestGetData_MinRainfall(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/data", "/data"} {
		t.Run(path, func(t *testing.T) {
			rec := srv.get(t, path+"?minRainfall=1.0")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decodeData(t, rec)
			require.Len(t, body.Data, 3)
			assert.Equal(t, "2023-01-01T00:00:00", body.Data[0].Time)
			assert.Equal(t, 1.6667, *body.Statistics["mean"])
			assert.Equal(t, 1.0, *body.Statistics["median"])
			assert.Equal(t, 2.0, *body.Statistics["range"])
			assert.Equal(t, 3.0, *body.Statistics["total_count"])
			assert.Equal(t, map[string]int{"1.0": 2, "3.0": 1}, body.ValueCounts)
			assert.Empty(t, body.Warnings)
		})
	}
}

func TestGetData_DateRange(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/api/data?startDate=2023-01-02&endDate=2023-01-02")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeData(t, rec)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 3.0, *body.Data[0].RGA)
	assert.Equal(t, 1.0, *body.Statistics["total_count"])
	assert.Contains(t, body.Statistics, "standard_deviation")
	assert.Nil(t, body.Statistics["standard_deviation"])
}

func TestGetData_InvalidParameter(t *testing.T) {
	tests := []struct {
		query     string
		parameter string
	}{
		{"specificRainfall=abc", "specificRainfall"},
		{"minRainfall=one", "minRainfall"},
		{"maxRainfall=1.0.0", "maxRainfall"},
		{"startDate=yesterday&endDate=2023-01-02", "startDate"},
	}

	for _, tt := range tests {
		t.Run(tt.parameter, func(t *testing.T) {
			srv := newTestServer(t)

			rec := srv.get(t, "/api/data?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.parameter, body.Parameter)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.Contains(t, body.Message, tt.parameter)

			assert.Equal(t, 0, srv.store.reads, "record store must not be queried")
			assert.Equal(t, 1.0, testutil.ToFloat64(srv.collector.APIRequestsTotal.WithLabelValues("/api/data", "GET", "400")))
			assert.Equal(t, 1.0, testutil.ToFloat64(srv.collector.QueryRejectedTotal.WithLabelValues(tt.parameter)))
		})
	}
}

func TestGetData_NoMatch(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/api/data?minRainfall=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"data": [],
		"statistics": {"mean": null, "median": null, "standard_deviation": null,
			"range": null, "highest": null, "lowest": null, "total_count": null},
		"value_counts": {}
	}`, rec.Body.String())
}

func TestGetData_ExactMatchWarning(t *testing.T) {
	srv := newTestServer(t)

	body := decodeData(t, srv.get(t, "/api/data?specificRainfall=3"))
	require.Len(t, body.Data, 1)
	assert.Len(t, body.Warnings, 1)
}

func TestGetData_StoreUnavailable(t *testing.T) {
	srv := newTestServer(t)
	srv.store.err = &models.StoreUnavailableError{Op: "all_records", Err: errors.New("connection refused")}

	rec := srv.get(t, "/api/data")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusServiceUnavailable, body.Code)
	assert.NotContains(t, body.Message, "connection refused")
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	srv.store.err = errors.New("disk gone")
	rec = srv.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/health", RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = srv.get(t, "/health")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/api/data", "Origin", "https://dashboard.example.com")
	assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = srv.get(t, "/api/data", "Origin", "https://elsewhere.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	readsBefore := srv.store.reads
	req := httptest.NewRequest(http.MethodOptions, "/api/data", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	preflight := httptest.NewRecorder()
	srv.handler.ServeHTTP(preflight, req)
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, readsBefore, srv.store.reads)
}

func TestCompression(t *testing.T) {
	records := make([]models.RainfallRecord, 200)
	for i := range records {
		records[i] = models.RainfallRecord{Time: day(1).Add(time.Duration(i) * time.Hour), Value: float64(i%7) / 4}
	}
	srv := newTestServer(t, records...)

	rec := srv.get(t, "/api/data", "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var body dataResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Data, 200)
}

func TestDocs(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.get(t, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.0", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/data")
	assert.Contains(t, doc.Paths, "/data")

	rec = srv.get(t, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "/api/docs/openapi.json"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.get(t, "/api/data")

	rec := srv.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rainfall_test_api_requests_total")
}

func TestAccessLogRecoversPanics(t *testing.T) {
	logger := logging.New(logging.Options{Service: "test", Output: io.Discard})
	collector := metrics.NewCollectorWithRegistry("rainfall_test", prometheus.NewRegistry())

	handler := NewAccessLogMiddleware(logger, collector, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "an unexpected error occurred")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues("panic", "unmatched")))
}

func TestAccessLogLabelsPanicsByRouteTemplate(t *testing.T) {
	logger := logging.New(logging.Options{Service: "test", Output: io.Discard})
	collector := metrics.NewCollectorWithRegistry("rainfall_test", prometheus.NewRegistry())

	router := mux.NewRouter()
	router.HandleFunc("/api/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}).Methods("GET")
	handler := NewAccessLogMiddleware(logger, collector, router)(router)

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/"+id, nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.APIErrorsTotal.WithLabelValues("panic", "/api/records/{id}")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.APIErrorsTotal), "one series regardless of path")
}
