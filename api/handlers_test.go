/*
handlers_test.go - Tests for API handlers

Tests for:
- Import status mapping (created, bad request, not found)
- Period queries and two-decimal values on the wire
- Import audit listing
- Metrics exposition
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quote-engine/quotes"
	"github.com/warp/quote-engine/store"
)

type testServer struct {
	router http.Handler
	dir    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	gw, err := store.Open(ctx, store.Options{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	reg := prometheus.NewRegistry()
	im, err := quotes.NewImporter(gw, quotes.ImportOptions{
		Now: func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}, quotes.NewMetrics(reg))
	require.NoError(t, err)

	h := NewHandler(quotes.NewService(gw, im))
	return &testServer{
		router: NewRouter(h, RouterOptions{Metrics: reg}),
		dir:    t.TempDir(),
	}
}

func (s *testServer) writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(s.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (s *testServer) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) importFile(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(http.MethodPost, "/api/quotes/import?path="+path)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestImport_Created(t *testing.T) {
	// GIVEN: A file with two valid records and one without a value
	s := newTestServer(t)
	path := s.writeFile(t, "jan.json", `[
		{"referenceMonth": "01/2024", "price": 1200.5},
		{"referenceMonth": "02/2024", "price": "1250.00"},
		{"referenceMonth": "03/2024"}
	]`)

	// WHEN: Importing it
	rec := s.importFile(t, path)

	// THEN: The run is reported with its counts
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jan.json", resp.File)
	assert.Equal(t, 2, resp.Imported)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, 0, resp.Rejected)
	assert.NotEmpty(t, resp.Message)
}

func TestImport_StatusMapping(t *testing.T) {
	s := newTestServer(t)
	malformed := s.writeFile(t, "bad.json", `[{"referenceMonth": "13/2024", "price": 1}]`)
	notArray := s.writeFile(t, "obj.json", `{"referenceMonth": "01/2024"}`)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing path", "/api/quotes/import", http.StatusBadRequest},
		{"missing file", "/api/quotes/import?path=" + filepath.Join(s.dir, "nope.json"), http.StatusNotFound},
		{"malformed record", "/api/quotes/import?path=" + malformed, http.StatusBadRequest},
		{"not an array", "/api/quotes/import?path=" + notArray, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeError(t, rec).Error)
		})
	}
}

func TestImport_WrongMethod(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/quotes/import?path=x.json")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPeriod_ReturnsRoundedValues(t *testing.T) {
	// GIVEN: Imported prices across three months
	s := newTestServer(t)
	path := s.writeFile(t, "q.json", `[
		{"referenceMonth": "03/2024", "price": "12.345"},
		{"referenceMonth": "01/2024", "price": 10},
		{"referenceMonth": "05/2024", "price": 99}
	]`)
	require.Equal(t, http.StatusCreated, s.importFile(t, path).Code)

	// WHEN: Querying January through March with mixed label layouts
	rec := s.do(http.MethodGet, "/api/quotes/period?start=2024-01&end=03/2024")

	// THEN: Points come back oldest first with two decimals
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[{"date":"2024-01-01","value":10.00},{"date":"2024-03-01","value":12.35}]`, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"value":12.35`)
	assert.Contains(t, rec.Body.String(), `"value":10.00`)
}

func TestPeriod_Empty(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/quotes/period?start=2020-01&end=2020-12")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPeriod_BadRequests(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{
		"/api/quotes/period",
		"/api/quotes/period?start=2024-01",
		"/api/quotes/period?start=2024-13&end=2024-12",
		"/api/quotes/period?start=january&end=2024-12",
		"/api/quotes/period?start=2024-06&end=2024-01",
	} {
		rec := s.do(http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListImports(t *testing.T) {
	// GIVEN: Two imports of different files
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.importFile(t, s.writeFile(t, "Jan-Prices.json", `[{"referenceMonth":"01/2024","price":1}]`)).Code)
	require.Equal(t, http.StatusCreated, s.importFile(t, s.writeFile(t, "feb.json", `[]`)).Code)

	// WHEN: Listing all, then filtering by file name
	all := s.do(http.MethodGet, "/api/quotes/imports")
	filtered := s.do(http.MethodGet, "/api/quotes/imports?file=jan")

	// THEN
	require.Equal(t, http.StatusOK, all.Code)
	var runs []ImportRunDTO
	require.NoError(t, json.Unmarshal(all.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, quotes.DefaultSource, r.Source)
		assert.Equal(t, "2024-06-01T12:00:00Z", r.RanAt)
		assert.NotEmpty(t, r.ID)
	}

	require.Equal(t, http.StatusOK, filtered.Code)
	runs = nil
	require.NoError(t, json.Unmarshal(filtered.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "Jan-Prices.json", runs[0].FileName)
	assert.Equal(t, 1, runs[0].Imported)
}

func TestListImports_InvalidLimit(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/quotes/imports?limit=-1").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/quotes/imports?limit=ten").Code)
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/quotes/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.importFile(t, s.writeFile(t, "m.json", `[{"referenceMonth":"01/2024","price":1}]`)).Code)

	rec := s.do(http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "quotes_import_runs_total"), body)
	assert.Contains(t, body, `quotes_import_records_total{outcome="created"} 1`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	router := NewRouter(&Handler{}, RouterOptions{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_DeveloperLogsRequestDetail(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	// GIVEN: One router in developer mode and one without
	dev := NewRouter(&Handler{}, RouterOptions{Developer: true})
	plain := NewRouter(&Handler{}, RouterOptions{})

	// WHEN
	dev.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/quotes/ping?source=x", nil))
	devOut := buf.String()
	buf.Reset()
	plain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/quotes/ping?source=x", nil))

	// THEN: Only developer mode writes the detail line
	assert.Contains(t, devOut, `[API] GET /api/quotes/ping query="source=x" status=200 bytes=4`)
	assert.NotContains(t, buf.String(), "[API]")
}
