// Package processor builds the profile artefacts of configured routes.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/woozymasta/elevprofile/internal/chart"
	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/document"
	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/rs/zerolog/log"
)

// Artefact file names inside a route directory.
const (
	ProfileFile  = "profile.json"
	GeoJSONFile  = "route.geojson"
	ChartHTML    = "chart.html"
	chartImage   = "chart"
	chartPreview = "thumb"
)

// Result describes the outcome of processing one route.
type Result struct {
	Err     error
	Route   string
	Dir     string
	Written []string
	Skipped bool
}

// ProcessRoute fetches the route document, builds its profile and writes the
// artefacts to outDir/<route name>. An existing profile is kept unless force
// is set.
func ProcessRoute(ctx context.Context, client *http.Client, cfg *config.Config, r config.Route, outDir string, force bool) Result {
	res := Result{Route: r.Name, Dir: filepath.Join(outDir, r.Name)}

	// Check if file exists
	if _, err := os.Stat(filepath.Join(res.Dir, ProfileFile)); err == nil && !force {
		log.Debug().Str("route", r.Name).Msg("Profile exists, skipping")
		res.Skipped = true
		return res
	}

	log.Info().
		Str("route", r.Name).
		Str("source", r.Source).
		Msg("Processing route")

	p, err := buildProfile(ctx, client, cfg, r)
	if err != nil {
		res.Err = err
		return res
	}

	res.Written, res.Err = writeArtefacts(res.Dir, p, r.Chart)
	if res.Err == nil {
		log.Info().
			Str("route", r.Name).
			Int("samples", len(p.Samples)).
			Int("waypoints", len(p.Waypoints)).
			Float64("distance_km", p.Statistics.TotalDistanceKm).
			Float64("ascent_m", p.Statistics.TotalAscentM).
			Float64("max_grade_pct", p.Statistics.MaxGradePct).
			Msg("Route profiled")
	}

	return res
}

func buildProfile(ctx context.Context, client *http.Client, cfg *config.Config, r config.Route) (*profile.Profile, error) {
	doc, err := LoadDocument(ctx, client, r.Source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.Source, err)
	}
	if doc.Name == "" {
		doc.Name = r.Name
	}

	if cfg.Elevation.FetchTiles() {
		if err := prefetchTiles(ctx, client, cfg.Elevation, doc); err != nil {
			return nil, err
		}
	}

	sampler, err := cfg.Elevation.Sampler(client, doc)
	if err != nil {
		return nil, err
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	p, err := profile.Build(ctx, doc, sampler, settings)
	if err != nil {
		return nil, err
	}

	if len(r.Rename) == 0 {
		return p, nil
	}

	renamed := *p
	renamed.Waypoints, err = profile.Rename(p.Waypoints, r.Rename)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", r.Name, err)
	}

	return &renamed, nil
}

// prefetchTiles downloads the HGT tiles the document needs. Failed downloads
// only leave elevations missing; cancellation aborts.
func prefetchTiles(ctx context.Context, client *http.Client, e config.Elevation, doc *document.Document) error {
	coords := make([]geo.Coordinate, 0, len(doc.Route)+len(doc.Points))
	coords = append(coords, doc.Route...)
	for _, p := range doc.Points {
		coords = append(coords, p.Coordinate)
	}

	fetched, err := FetchTiles(ctx, client, e.HGTURL, e.HGTDir, RouteTiles(coords), e.Concurrency, false)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		log.Warn().Err(err).Msg("Some elevation tiles could not be downloaded")
	}
	if fetched > 0 {
		log.Info().Int("tiles", fetched).Str("dir", e.HGTDir).Msg("Elevation tiles downloaded")
	}

	return nil
}

func writeArtefacts(dir string, p *profile.Profile, c config.Chart) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var written []string
	write := func(name string, fn func(f *os.File) error) error {
		path := filepath.Join(dir, name)
		if err := writeFile(path, fn); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	err := write(ProfileFile, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	})
	if err != nil {
		return written, err
	}

	err = write(GeoJSONFile, func(f *os.File) error {
		return json.NewEncoder(f).Encode(p.FeatureCollection())
	})
	if err != nil {
		return written, err
	}

	opts := chart.Options{Width: c.Width, Height: c.Height}
	if c.HTML {
		if err := write(ChartHTML, func(f *os.File) error { return chart.HTML(f, p, opts) }); err != nil {
			return written, err
		}
	}

	if c.Image == "" {
		return written, nil
	}

	img, err := chart.Image(p, opts)
	if err != nil {
		return written, err
	}

	images := []namedImage{{img: img, name: chartImage}}
	if c.Thumbnail > 0 {
		images = append(images, namedImage{img: chart.Thumbnail(img, c.Thumbnail), name: chartPreview})
	}

	for _, it := range images {
		name := it.name + "." + c.Image
		if err := write(name, func(f *os.File) error { return chart.Encode(f, it.img, c.Image) }); err != nil {
			return written, err
		}
	}

	return written, nil
}

type namedImage struct {
	img  image.Image
	name string
}

// writeFile creates path and passes it to fn.
func writeFile(path string, fn func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(f)
}

// ProcessRoutes processes routes with a pool of concurrency workers and
// returns the results in route order.
func ProcessRoutes(ctx context.Context, client *http.Client, cfg *config.Config, routes []config.Route, outDir string, concurrency int, force bool) []Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	concurrency = min(concurrency, max(len(routes), 1))

	type job struct {
		Route config.Route
		Index int
	}
	type result struct {
		Result
		Index int
	}

	jobs := make(chan job, len(routes))
	results := make(chan result, len(routes))

	go func() {
		for i, r := range routes {
			jobs <- job{Index: i, Route: r}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{Index: j.Index, Result: Result{Route: j.Route.Name, Err: err}}
					continue
				}
				res := ProcessRoute(ctx, client, cfg, j.Route, outDir, force)
				if res.Err != nil {
					log.Error().Err(res.Err).Str("route", j.Route.Name).Msg("Failed to process route")
				}
				results <- result{Index: j.Index, Result: res}
			}
		}()
	}
	wg.Wait()
	close(results)

	out := make([]Result, len(routes))
	for res := range results {
		out[res.Index] = res.Result
	}

	return out
}
