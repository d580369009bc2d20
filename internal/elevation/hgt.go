package elevation

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/series"

	"github.com/rs/zerolog/log"
)

// hgtVoid marks a void cell in SRTM data.
const hgtVoid = -32768

// HGT reads SRTM height tiles (N25E121.hgt or N25E121.hgt.zip) from a local
// directory. Tiles are loaded on first use; a coordinate outside any available
// tile resolves to missing.
type HGT struct {
	tiles       map[string]*hgtTile
	Dir         string
	mu          sync.Mutex
	Interpolate bool
}

type hgtTile struct {
	data []byte
	size int
}

// NewHGT returns a tile reader rooted at dir.
// With interpolate set, heights are bilinearly interpolated between cells.
func NewHGT(dir string, interpolate bool) *HGT {
	return &HGT{
		Dir:         dir,
		Interpolate: interpolate,
		tiles:       make(map[string]*hgtTile),
	}
}

// TileName returns the SRTM tile name covering c, e.g. "N25E121".
func TileName(c geo.Coordinate) string {
	return tileName(int(math.Floor(c.Lat)), int(math.Floor(c.Lon)))
}

func tileName(lat, lon int) string {
	ns, ew := 'N', 'E'
	if lat < 0 {
		ns, lat = 'S', -lat
	}
	if lon < 0 {
		ew, lon = 'W', -lon
	}

	return fmt.Sprintf("%c%02d%c%03d", ns, lat, ew, lon)
}

// Lookup implements Sampler.
// Adjacent tiles share their edge rows and columns, so a coordinate on an
// integer latitude or longitude falls back to the southern or western
// neighbour when its own tile is not available.
func (h *HGT) Lookup(_ context.Context, c geo.Coordinate) (series.Value, error) {
	lat0, lon0 := int(math.Floor(c.Lat)), int(math.Floor(c.Lon))

	for _, origin := range tileOrigins(c, lat0, lon0) {
		tile, err := h.tile(tileName(origin[0], origin[1]))
		if err != nil {
			return series.Undefined, err
		}
		if tile != nil {
			return tile.sample(c, origin[0], origin[1], h.Interpolate), nil
		}
	}

	return series.Undefined, nil
}

// tileOrigins lists the south-west corners of the tiles holding c, own tile
// first.
func tileOrigins(c geo.Coordinate, lat0, lon0 int) [][2]int {
	origins := [][2]int{{lat0, lon0}}
	onLat := c.Lat == float64(lat0)
	onLon := c.Lon == float64(lon0)

	if onLat {
		origins = append(origins, [2]int{lat0 - 1, lon0})
	}
	if onLon {
		origins = append(origins, [2]int{lat0, lon0 - 1})
	}
	if onLat && onLon {
		origins = append(origins, [2]int{lat0 - 1, lon0 - 1})
	}

	return origins
}

// sample reads c from the tile whose south-west corner is (lat0, lon0).
func (t *hgtTile) sample(c geo.Coordinate, lat0, lon0 int, interpolate bool) series.Value {
	n := t.size - 1
	fy := (float64(lat0) + 1 - c.Lat) * float64(n)
	fx := (c.Lon - float64(lon0)) * float64(n)

	if interpolate {
		if v, ok := t.bilinear(fx, fy); ok {
			return series.Of(v)
		}
	}

	v, ok := t.at(int(math.Round(fy)), int(math.Round(fx)))
	if !ok {
		return series.Undefined
	}
	return series.Of(float64(v))
}

func (t *hgtTile) at(row, col int) (int16, bool) {
	row = min(max(row, 0), t.size-1)
	col = min(max(col, 0), t.size-1)

	off := 2 * (row*t.size + col)
	v := int16(binary.BigEndian.Uint16(t.data[off : off+2]))
	if v == hgtVoid {
		return 0, false
	}
	return v, true
}

func (t *hgtTile) bilinear(fx, fy float64) (float64, bool) {
	r0, c0 := int(math.Floor(fy)), int(math.Floor(fx))
	r1, c1 := min(r0+1, t.size-1), min(c0+1, t.size-1)
	dy, dx := fy-float64(r0), fx-float64(c0)

	v00, ok00 := t.at(r0, c0)
	v01, ok01 := t.at(r0, c1)
	v10, ok10 := t.at(r1, c0)
	v11, ok11 := t.at(r1, c1)
	if !ok00 || !ok01 || !ok10 || !ok11 {
		return 0, false
	}

	top := float64(v00)*(1-dx) + float64(v01)*dx
	bottom := float64(v10)*(1-dx) + float64(v11)*dx

	return top*(1-dy) + bottom*dy, true
}

// tile returns the cached tile, loading it on first use.
// A nil tile with nil error means the tile is not available.
func (h *HGT) tile(name string) (*hgtTile, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.tiles[name]; ok {
		return t, nil
	}

	t, err := loadTile(h.Dir, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		log.Debug().Str("tile", name).Str("dir", h.Dir).Msg("Elevation tile not available")
	} else {
		log.Debug().Str("tile", name).Int("size", t.size).Msg("Elevation tile loaded")
	}

	h.tiles[name] = t
	return t, nil
}

func loadTile(dir, name string) (*hgtTile, error) {
	data, err := os.ReadFile(filepath.Join(dir, name+".hgt"))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = readZippedTile(filepath.Join(dir, name+".hgt.zip"))
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", name, err)
	}

	size := int(math.Sqrt(float64(len(data) / 2)))
	if size < 2 || 2*size*size != len(data) {
		return nil, fmt.Errorf("tile %s: unexpected size %d bytes", name, len(data))
	}

	return &hgtTile{data: data, size: size}, nil
}

func readZippedTile(path string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".hgt") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		return data, err
	}

	return nil, fmt.Errorf("%s: no .hgt entry in archive", path)
}
