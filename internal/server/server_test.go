package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/processor"
	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uploadKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Ridge</name>
    <Placemark>
      <LineString>
        <coordinates>
          7.000,46.000,1000 7.001,46.001,1010 7.002,46.002,1030
          7.003,46.003,1025 7.004,46.004,1050
        </coordinates>
      </LineString>
    </Placemark>
    <Placemark>
      <name>Cairn</name>
      <Point><coordinates>7.004,46.004,1050</coordinates></Point>
    </Placemark>
  </Document>
</kml>`

func newTestServer(t *testing.T) (*ServerContext, *Metrics, string) {
	t.Helper()

	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(out, "ridge"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "ridge", processor.ProfileFile), []byte(`{"name":"Ridge"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(out, "ridge", "chart.webp"), []byte("RIFF"), 0o600))

	cfg := config.Default()
	cfg.Routes = []config.Route{
		{Name: "ridge", Source: "ridge.kml", Aliases: []string{"r"}},
		{Name: "missing", Source: "missing.kml"},
	}

	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	return NewServerContext(cfg, out, nil, m), m, out
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServerContextSkipsMissingProfiles(t *testing.T) {
	s, _, _ := newTestServer(t)

	require.Len(t, s.Routes, 1)
	assert.Equal(t, "ridge", s.Routes[0].Name)
	assert.Equal(t, map[string]string{"ridge": "ridge", "r": "ridge"}, s.RouteResolver)
}

func TestHandleProfile(t *testing.T) {
	s, m, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/profile?rename=0:Summit", uploadKML)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var p profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Ridge", p.Name)
	assert.Len(t, p.Samples, 5)
	require.Len(t, p.Waypoints, 1)
	assert.Equal(t, "Summit", p.Waypoints[0].Name)
	assert.Equal(t, 4, p.Waypoints[0].RouteIndex)
	first, last := p.Samples[0].SmoothedElevation, p.Samples[4].SmoothedElevation
	require.True(t, first.Valid && last.Valid)
	assert.InDelta(t, last.V-first.V, p.Statistics.TotalAscentM-p.Statistics.TotalDescentM, 1e-9)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Builds.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Requests.WithLabelValues("POST /api/profile", "POST", "200")), 0)
}

func TestHandleProfileOverrides(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost,
		"/api/profile?distance=haversine&grade_method=min_span&min_span_km=0.2&max_grade=max&elevation_smoothing=none",
		uploadKML)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p profile.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "haversine", string(p.Settings.Distance))
	assert.Equal(t, profile.GradeMinSpan, p.Settings.GradeMethod)
	assert.Equal(t, 0.2, p.Settings.MinSpanKm)
	assert.Equal(t, profile.MaxGradeTrue, p.Settings.MaxGrade.Mode)
	assert.Equal(t, p.Statistics.PeakGradePct, p.Statistics.MaxGradePct)
}

func TestHandleProfileGeoJSON(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/profile?format=geojson", uploadKML)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)
}

func TestHandleProfileErrors(t *testing.T) {
	s, m, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unparseable document", "/api/profile", "not a route", http.StatusBadRequest},
		{"bad number", "/api/profile?min_span_km=wide", uploadKML, http.StatusBadRequest},
		{"unknown method", "/api/profile?grade_method=steepest", uploadKML, http.StatusBadRequest},
		{"bad rename", "/api/profile?rename=first", uploadKML, http.StatusBadRequest},
		{"rename out of range", "/api/profile?rename=3:Nowhere", uploadKML, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	// only the rename failure got as far as a build
	assert.InDelta(t, 1, testutil.ToFloat64(m.Builds.WithLabelValues("ok")), 0)
}

func TestHandleProfileBodyLimit(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.MaxBody = 16

	rec := do(t, s.Handler(), http.MethodPost, "/api/profile", uploadKML)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleProfileChart(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodPost, "/api/profile/chart?title=Ridge+walk&width=640&height=320", uploadKML)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Ridge walk")
	assert.Contains(t, rec.Body.String(), "echarts")
}

func TestHandleSettings(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got profile.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	want, err := s.Config.Settings()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHandleRoutesList(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/api/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []routeInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ridge", list[0].Name)
	assert.Equal(t, []string{"r"}, list[0].Aliases)
	assert.Equal(t, []string{"chart.webp", processor.ProfileFile}, list[0].Files)
}

func TestHandleProfileFile(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/profiles/r/"+processor.ProfileFile, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"Ridge"}`, rec.Body.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/profiles/ridge/"+processor.ProfileFile, nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	h.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)

	for _, target := range []string{
		"/profiles/missing/" + processor.ProfileFile,
		"/profiles/ridge/secrets.txt",
		"/profiles/ridge/" + processor.ChartHTML,
	} {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, target, "").Code, target)
	}
}

func TestRequestLoggerKeepsRequestID(t *testing.T) {
	s, m, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))

	rec = do(t, s.Handler(), http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "GET", "404")), 0)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	do(t, h, http.MethodPost, "/api/profile", uploadKML)
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `elevprofile_builds_total{result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "elevprofile_route_samples")
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.Same(t, a.Builds, b.Builds)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ObserveBuild(nil, nil)
		nilMetrics.ObserveRequest("", http.MethodGet, http.StatusOK, 0)
	})
}
