package main

import (
	"context"
	"crypto/tls"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/logger"
	"github.com/woozymasta/elevprofile/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Limit       []string `short:"l" long:"limit"       env:"LIMIT_NAMES"  description:"Limit processing to specific route names or aliases"`
	Input       string   `short:"i" long:"input"       env:"INPUT_FILE"   description:"Profile a single KML, GPX or GeoJSON file or URL instead of configured routes"`
	Output      string   `short:"o" long:"output"      env:"OUTPUT_DIR"   description:"Output directory" default:"profiles"`
	Image       string   `long:"image"                 env:"CHART_IMAGE"  description:"Chart image format for --input" choice:"webp" choice:"png" choice:"none" default:"webp"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY"  description:"Routes processed in parallel" default:"4"`
	Force       bool     `short:"f" long:"force"       description:"Force overwrite of existing files"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.ConfigFile).Msg("Failed to load configuration")
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: cfg.Elevation.Timeout,
	}
	if client.Timeout <= 0 {
		client.Timeout = 15 * time.Second
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	routes := selectRoutes(cfg, opts)

	log.Info().
		Int("routes_total", len(cfg.Routes)).
		Int("routes_queued", len(routes)).
		Str("output", opts.Output).
		Strs("elevation_sources", cfg.Elevation.Source).
		Msg("Starting profiler")

	failed := 0
	for _, res := range processor.ProcessRoutes(ctx, client, cfg, routes, opts.Output, opts.Concurrency, opts.Force) {
		switch {
		case res.Err != nil:
			failed++
			log.Error().Err(res.Err).Str("route", res.Route).Msg("Failed to profile route")
		case res.Skipped:
			log.Info().Str("route", res.Route).Msg("Profile exists, use --force to rebuild")
		default:
			log.Debug().Str("route", res.Route).Strs("files", res.Written).Msg("Artefacts written")
		}
	}

	if failed > 0 {
		log.Fatal().Int("failed", failed).Msg("Profiler finished with errors")
	}

	log.Info().Msg("Profiler finished successfully")
}

// loadConfig reads the configuration file. Single-file mode falls back to
// the defaults when the file does not exist.
func loadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil && opts.Input != "" && errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", opts.ConfigFile).Msg("No configuration file, using defaults")
		return config.Default(), nil
	}
	return cfg, err
}

func selectRoutes(cfg *config.Config, opts Options) []config.Route {
	if opts.Input != "" {
		name := strings.TrimSuffix(filepath.Base(opts.Input), filepath.Ext(opts.Input))
		r := config.Route{
			Name:   name,
			Source: opts.Input,
			Chart:  config.Chart{HTML: true, Image: opts.Image, Thumbnail: 400},
		}
		if r.Chart.Image == "none" {
			r.Chart.Image = ""
			r.Chart.Thumbnail = 0
		}
		return []config.Route{r}
	}

	if len(opts.Limit) == 0 {
		return cfg.Routes
	}

	routes := make([]config.Route, 0, len(opts.Limit))
	seen := make(map[string]bool)

	for _, limitName := range opts.Limit {
		r, ok := cfg.Find(limitName)
		if !ok {
			log.Error().
				Str("name", limitName).
				Msg("Route specified in --limit not found in configuration")
			continue
		}
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		routes = append(routes, r)
	}

	return routes
}
