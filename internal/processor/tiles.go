package processor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/woozymasta/elevprofile/internal/elevation"
	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/rs/zerolog/log"
)

// maxTileSize bounds a downloaded tile (a 1" SRTM tile is about 25 MB).
const maxTileSize = 64 << 20

type tileJob struct {
	Name string
	URL  string
	Path string
}

type tileResult struct {
	Err     error
	Name    string
	Fetched bool
}

// RouteTiles returns the sorted names of the SRTM tiles touched by coords.
func RouteTiles(coords []geo.Coordinate) []string {
	seen := make(map[string]struct{})
	for _, c := range coords {
		if !c.Valid() {
			continue
		}
		seen[elevation.TileName(c)] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// FetchTiles downloads the named tiles from urlTemplate ({tile} is replaced by
// the tile name) into dir. Tiles already present are kept unless force is
// set. A tile the server does not have (404) is not an error: its area then
// resolves to missing elevations. It returns the number of downloaded tiles.
func FetchTiles(ctx context.Context, client *http.Client, urlTemplate, dir string, names []string, concurrency int, force bool) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ext := ".hgt"
	if strings.HasSuffix(strings.ToLower(urlTemplate), ".zip") {
		ext = ".hgt.zip"
	}

	jobs := make(chan tileJob, len(names))
	results := make(chan tileResult, len(names))

	go func() {
		for _, name := range names {
			jobs <- tileJob{
				Name: name,
				URL:  strings.ReplaceAll(urlTemplate, "{tile}", name),
				Path: filepath.Join(dir, name+ext),
			}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < min(concurrency, len(names)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				fetched, err := downloadTile(ctx, client, j, dir, force)
				results <- tileResult{Name: j.Name, Fetched: fetched, Err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	var (
		fetched int
		errs    []error
	)
	for res := range results {
		switch {
		case res.Err != nil:
			log.Warn().Err(res.Err).Str("tile", res.Name).Msg("Failed to download elevation tile")
			errs = append(errs, res.Err)
		case res.Fetched:
			fetched++
		}
	}

	if err := ctx.Err(); err != nil {
		return fetched, err
	}

	return fetched, errors.Join(errs...)
}

func downloadTile(ctx context.Context, client *http.Client, j tileJob, dir string, force bool) (bool, error) {
	// Check existence if not forcing overwrite
	if !force && tilePresent(dir, j.Name) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.URL, nil)
	if err != nil {
		return false, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Debug().Str("url", j.URL).Msg("Elevation tile not found (404)")
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%s: status code %d", j.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileSize))
	if err != nil {
		return false, err
	}
	if err := checkTile(data, filepath.Ext(j.Path)); err != nil {
		return false, fmt.Errorf("%s: %w", j.URL, err)
	}

	// write to a temp file so concurrent readers never see a partial tile
	tmp, err := os.CreateTemp(dir, j.Name+".*.part")
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), j.Path); err != nil {
		return false, err
	}

	log.Debug().Str("tile", j.Name).Int("bytes", len(data)).Msg("Elevation tile downloaded")
	return true, nil
}

func tilePresent(dir, name string) bool {
	for _, ext := range []string{".hgt", ".hgt.zip"} {
		if info, err := os.Stat(filepath.Join(dir, name+ext)); err == nil && info.Size() > 0 {
			return true
		}
	}
	return false
}

// checkTile rejects payloads that are not a square grid of 16-bit samples, or
// an archive holding one.
func checkTile(data []byte, ext string) error {
	if ext == ".zip" {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return fmt.Errorf("not a zip archive: %w", err)
		}
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".hgt") {
				return nil
			}
		}
		return errors.New("no .hgt entry in archive")
	}

	n := len(data) / 2
	size := 0
	for size*size < n {
		size++
	}
	if size < 2 || 2*size*size != len(data) {
		return fmt.Errorf("unexpected tile size %d bytes", len(data))
	}
	return nil
}
