package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Ridge</name>
    <Placemark>
      <name>Path</name>
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

func serveKML(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ridge.kml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(routeKML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcessRouteFromURL(t *testing.T) {
	srv := serveKML(t)
	out := t.TempDir()
	cfg := config.Default()

	r := config.Route{
		Name:   "ridge",
		Source: srv.URL + "/ridge.kml",
		Rename: config.Rename{0: "Summit cairn"},
		Chart:  config.Chart{HTML: true, Image: "png", Width: 400, Height: 200, Thumbnail: 100},
	}

	res := ProcessRoute(context.Background(), srv.Client(), cfg, r, out, false)
	require.NoError(t, res.Err)
	assert.False(t, res.Skipped)

	for _, name := range []string{ProfileFile, GeoJSONFile, ChartHTML, "chart.png", "thumb.png"} {
		assert.FileExists(t, filepath.Join(out, "ridge", name))
	}
	assert.Len(t, res.Written, 5)

	data, err := os.ReadFile(filepath.Join(out, "ridge", ProfileFile))
	require.NoError(t, err)

	var p profile.Profile
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, "Ridge", p.Name)
	assert.Len(t, p.Samples, 5)
	require.Len(t, p.Waypoints, 1)
	assert.Equal(t, "Summit cairn", p.Waypoints[0].Name)
	assert.Equal(t, 4, p.Waypoints[0].RouteIndex)
	assert.Greater(t, p.Statistics.TotalAscentM, 0.0)

	// existing profile is kept
	res = ProcessRoute(context.Background(), srv.Client(), cfg, r, out, false)
	require.NoError(t, res.Err)
	assert.True(t, res.Skipped)

	res = ProcessRoute(context.Background(), srv.Client(), cfg, r, out, true)
	require.NoError(t, res.Err)
	assert.False(t, res.Skipped)
}

func TestProcessRouteFromFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ridge.kml")
	require.NoError(t, os.WriteFile(src, []byte(routeKML), 0o600))

	res := ProcessRoute(context.Background(), nil, config.Default(), config.Route{Name: "local", Source: src}, dir, false)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{
		filepath.Join(dir, "local", ProfileFile),
		filepath.Join(dir, "local", GeoJSONFile),
	}, res.Written)
}

func TestProcessRouteErrors(t *testing.T) {
	srv := serveKML(t)
	cfg := config.Default()
	out := t.TempDir()

	res := ProcessRoute(context.Background(), srv.Client(), cfg, config.Route{Name: "gone", Source: srv.URL + "/gone.kml"}, out, false)
	assert.ErrorContains(t, res.Err, "status 404")

	res = ProcessRoute(context.Background(), srv.Client(), cfg, config.Route{
		Name:   "rename",
		Source: srv.URL + "/ridge.kml",
		Rename: config.Rename{7: "nope"},
	}, out, false)
	assert.ErrorIs(t, res.Err, profile.ErrWaypointIndex)
}

func TestProcessRoutesKeepsOrder(t *testing.T) {
	srv := serveKML(t)
	routes := []config.Route{
		{Name: "a", Source: srv.URL + "/ridge.kml"},
		{Name: "b", Source: srv.URL + "/missing.kml"},
		{Name: "c", Source: srv.URL + "/ridge.kml"},
	}

	results := ProcessRoutes(context.Background(), srv.Client(), config.Default(), routes, t.TempDir(), 3, false)
	require.Len(t, results, 3)
	for i, r := range routes {
		assert.Equal(t, r.Name, results[i].Route)
	}
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestProcessRoutesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ProcessRoutes(ctx, nil, config.Default(), []config.Route{{Name: "a", Source: "a.kml"}}, t.TempDir(), 2, false)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/a.gpx"))
	assert.True(t, IsURL("http://example.com/a.gpx"))
	assert.False(t, IsURL("./routes/a.kml"))
	assert.False(t, IsURL("ftp://example.com/a.kml"))
}

func TestProcessRoutePlaceholderAltitudes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "flat.kml")
	require.NoError(t, os.WriteFile(src, []byte(`<kml><Document><Placemark><LineString><coordinates>
	  121.5,25.0,0 121.51,25.0,0 121.52,25.0,0
	</coordinates></LineString></Placemark></Document></kml>`), 0o600))

	res := ProcessRoute(context.Background(), nil, config.Default(), config.Route{Name: "flat", Source: src}, dir, false)
	require.NoError(t, res.Err)

	data, err := os.ReadFile(filepath.Join(dir, "flat", ProfileFile))
	require.NoError(t, err)

	var p profile.Profile
	require.NoError(t, json.Unmarshal(data, &p))
	require.Len(t, p.Samples, 3)
	assert.Equal(t, 3, p.Diagnostics.MissingElevations)
	for i, s := range p.Samples {
		assert.False(t, s.Elevation.Valid, "sample %d", i)
		assert.True(t, s.LowConfidence, "sample %d", i)
	}
}
