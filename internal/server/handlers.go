// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/woozymasta/elevprofile/internal/chart"
	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/document"
	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/processor"
	"github.com/woozymasta/elevprofile/internal/profile"
	"github.com/woozymasta/elevprofile/internal/smooth"

	"github.com/rs/zerolog"
)

const etagCap = 64

// files served from a route directory and their content types
var profileFiles = map[string]string{
	processor.ProfileFile: "application/json",
	processor.GeoJSONFile: "application/geo+json",
	processor.ChartHTML:   "text/html; charset=utf-8",
	"chart.webp":          "image/webp",
	"chart.png":           "image/png",
	"thumb.webp":          "image/webp",
	"thumb.png":           "image/png",
}

type routeInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Files   []string `json:"files"`
}

// HandleRoutesList serves the routes with a computed profile.
func (s *ServerContext) HandleRoutesList(w http.ResponseWriter, r *http.Request) {
	list := make([]routeInfo, 0, len(s.Routes))
	for _, rt := range s.Routes {
		info := routeInfo{Name: rt.Name, Aliases: rt.Aliases, Files: []string{}}
		for name := range profileFiles {
			if _, err := os.Stat(filepath.Join(s.OutDir, rt.Name, name)); err == nil {
				info.Files = append(info.Files, name)
			}
		}
		sort.Strings(info.Files)
		list = append(list, info)
	}

	writeJSON(w, http.StatusOK, list)
}

// HandleSettings serves the profile settings applied when no override is given.
func (s *ServerContext) HandleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Config.Settings()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleProfile builds a profile from the uploaded document.
// ?format=geojson returns the GeoJSON export instead of the profile.
func (s *ServerContext) HandleProfile(w http.ResponseWriter, r *http.Request) {
	p, status, err := s.profileFromRequest(r)
	if err != nil {
		writeError(w, r, status, err)
		return
	}

	if r.URL.Query().Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		_ = json.NewEncoder(w).Encode(p.FeatureCollection())
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// HandleProfileChart builds a profile from the uploaded document and returns
// its HTML chart.
func (s *ServerContext) HandleProfileChart(w http.ResponseWriter, r *http.Request) {
	p, status, err := s.profileFromRequest(r)
	if err != nil {
		writeError(w, r, status, err)
		return
	}

	q := r.URL.Query()
	opts := chart.Options{Title: q.Get("title")}
	opts.Width, _ = strconv.Atoi(q.Get("width"))
	opts.Height, _ = strconv.Atoi(q.Get("height"))

	var buf bytes.Buffer
	if err := chart.HTML(&buf, p, opts); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// HandleProfileFile serves precomputed artefacts: /profiles/{route}/{file}.
func (s *ServerContext) HandleProfileFile(w http.ResponseWriter, r *http.Request) {
	name, ok := s.RouteResolver[r.PathValue("route")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	// allow only known files to prevent path probing
	file := r.PathValue("file")
	contentType, ok := profileFiles[file]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if !s.serveFile(w, r, filepath.Join(s.OutDir, name, file), contentType) {
		http.NotFound(w, r)
	}
}

func (s *ServerContext) profileFromRequest(r *http.Request) (*profile.Profile, int, error) {
	logger := zerolog.Ctx(r.Context())

	settings, err := s.Config.Settings()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	settings, err = applyOverrides(settings, r.URL.Query())
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	rename, err := config.ParseRename(r.URL.Query()["rename"])
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	maxBody := s.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}

	doc, err := document.Parse(data)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	sampler, err := s.Config.Elevation.Sampler(s.Client, doc)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	p, err := profile.Build(r.Context(), doc, sampler, settings)
	s.Metrics.ObserveBuild(p, err)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	if len(rename) > 0 {
		renamed := *p
		if renamed.Waypoints, err = profile.Rename(p.Waypoints, rename); err != nil {
			return nil, http.StatusBadRequest, err
		}
		p = &renamed
	}

	logger.Debug().
		Str("format", string(doc.Format)).
		Int("samples", len(p.Samples)).
		Int("waypoints", len(p.Waypoints)).
		Int("skipped_tokens", p.Diagnostics.SkippedTokens).
		Msg("Profile built from upload")

	return p, http.StatusOK, nil
}

// applyOverrides applies query parameters on top of settings:
// distance, grade_method, min_span_km, epsilon_km, elevation_smoothing,
// elevation_window, elevation_sigma, grade_smoothing, grade_window,
// grade_sigma, max_grade and percentile.
func applyOverrides(s profile.Settings, q url.Values) (profile.Settings, error) {
	var err error
	str := func(key string, set func(string)) {
		if v := q.Get(key); v != "" {
			set(v)
		}
	}
	num := func(key string, set func(float64)) {
		v := q.Get(key)
		if v == "" || err != nil {
			return
		}
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			err = fmt.Errorf("%w: %s: %v", profile.ErrInvalidSettings, key, perr)
			return
		}
		set(f)
	}

	str("distance", func(v string) { s.Distance = geo.Method(v) })
	str("grade_method", func(v string) { s.GradeMethod = profile.GradeMethod(v) })
	str("elevation_smoothing", func(v string) { s.ElevationSmoothing.Strategy = smooth.Strategy(v) })
	str("grade_smoothing", func(v string) { s.GradeSmoothing.Strategy = smooth.Strategy(v) })
	str("max_grade", func(v string) { s.MaxGrade.Mode = profile.MaxGradeMode(v) })
	num("min_span_km", func(f float64) { s.MinSpanKm = f })
	num("epsilon_km", func(f float64) { s.EpsilonKm = f })
	num("elevation_window", func(f float64) { s.ElevationSmoothing.Window = int(f) })
	num("elevation_sigma", func(f float64) { s.ElevationSmoothing.Sigma = f })
	num("grade_window", func(f float64) { s.GradeSmoothing.Window = int(f) })
	num("grade_sigma", func(f float64) { s.GradeSmoothing.Sigma = f })
	num("percentile", func(f float64) { s.MaxGrade.Percentile = f })
	if err != nil {
		return s, err
	}

	return s, s.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
