package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatTile returns a 3x3 tile with every cell at height.
func flatTile(height int16) []byte {
	data := make([]byte, 2*9)
	for i := 0; i < 9; i++ {
		binary.BigEndian.PutUint16(data[2*i:], uint16(height))
	}
	return data
}

func zipTile(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name + ".hgt")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serveTiles(t *testing.T, tiles map[string][]byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, ok := tiles[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRouteTiles(t *testing.T) {
	coords := []geo.Coordinate{
		{Lat: 46.2, Lon: 7.9},
		{Lat: 46.9, Lon: 8.1},
		{Lat: 46.5, Lon: 7.5},
		{Lat: -0.5, Lon: -0.5},
		{Lat: 95, Lon: 0},
	}
	assert.Equal(t, []string{"N46E007", "N46E008", "S01W001"}, RouteTiles(coords))
	assert.Empty(t, RouteTiles(nil))
}

func TestFetchTiles(t *testing.T) {
	srv, hits := serveTiles(t, map[string][]byte{
		"N46E007.hgt": flatTile(500),
		"N47E007.hgt": []byte("short"),
	})
	dir := t.TempDir()
	tpl := srv.URL + "/{tile}.hgt"

	n, err := FetchTiles(context.Background(), srv.Client(), tpl, dir, []string{"N46E007", "N45E007"}, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(dir, "N46E007.hgt"))
	assert.NoFileExists(t, filepath.Join(dir, "N45E007.hgt"))

	// present tiles are not downloaded again
	before := hits.Load()
	n, err = FetchTiles(context.Background(), srv.Client(), tpl, dir, []string{"N46E007"}, 2, false)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, hits.Load())

	n, err = FetchTiles(context.Background(), srv.Client(), tpl, dir, []string{"N46E007"}, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a corrupt payload is reported and not stored
	_, err = FetchTiles(context.Background(), srv.Client(), tpl, dir, []string{"N47E007"}, 1, false)
	assert.ErrorContains(t, err, "unexpected tile size")
	assert.NoFileExists(t, filepath.Join(dir, "N47E007.hgt"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"), e.Name())
	}
}

func TestFetchTilesZip(t *testing.T) {
	srv, _ := serveTiles(t, map[string][]byte{
		"N46E007.hgt.zip": zipTile(t, "N46E007", flatTile(700)),
		"N47E007.hgt.zip": []byte("not a zip"),
	})
	dir := t.TempDir()

	n, err := FetchTiles(context.Background(), srv.Client(), srv.URL+"/{tile}.hgt.zip", dir, []string{"N46E007", "N47E007"}, 2, false)
	assert.ErrorContains(t, err, "not a zip archive")
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(dir, "N46E007.hgt.zip"))
}

func TestFetchTilesCancelled(t *testing.T) {
	srv, _ := serveTiles(t, map[string][]byte{"N46E007.hgt": flatTile(1)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchTiles(ctx, srv.Client(), srv.URL+"/{tile}.hgt", t.TempDir(), []string{"N46E007"}, 1, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessRouteFetchesTiles(t *testing.T) {
	routes := serveKML(t)
	tiles, _ := serveTiles(t, map[string][]byte{"N46E007.hgt": flatTile(500)})
	out := t.TempDir()

	cfg := config.Default()
	cfg.Elevation.Source = config.Sources{config.SourceHGT}
	cfg.Elevation.HGTDir = filepath.Join(out, "dem")
	cfg.Elevation.HGTURL = tiles.URL + "/{tile}.hgt"
	require.NoError(t, cfg.Validate())

	res := ProcessRoute(context.Background(), routes.Client(), cfg, config.Route{Name: "ridge", Source: routes.URL + "/ridge.kml"}, out, false)
	require.NoError(t, res.Err)
	assert.FileExists(t, filepath.Join(cfg.Elevation.HGTDir, "N46E007.hgt"))

	data, err := os.ReadFile(filepath.Join(out, "ridge", ProfileFile))
	require.NoError(t, err)

	var p profile.Profile
	require.NoError(t, json.Unmarshal(data, &p))
	for _, s := range p.Samples {
		require.True(t, s.Elevation.Valid)
		assert.Equal(t, 500.0, s.Elevation.V)
	}
	assert.InDelta(t, 0, p.Statistics.TotalAscentM, 1e-9)
}
