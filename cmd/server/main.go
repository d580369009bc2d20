package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/logger"
	"github.com/woozymasta/elevprofile/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"   env:"CONFIG_FILE"    description:"Path to configuration file"          default:"config.yaml"`
	Addr       string `short:"a" long:"addr"     env:"LISTEN_ADDRESS" description:"Address to listen on"                default:"0.0.0.0"`
	Port       int    `short:"p" long:"port"     env:"LISTEN_PORT"    description:"Port to listen on"                   default:"8080"`
	Profiles   string `short:"d" long:"profiles" env:"PROFILES_DIR"   description:"Directory with precomputed profiles" default:"profiles"`
	MaxBody    int64  `long:"max-body"           env:"MAX_BODY"       description:"Maximum uploaded document size in bytes" default:"16777216"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	metrics, err := server.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	client := &http.Client{Timeout: cfg.Elevation.Timeout}
	srvCtx := server.NewServerContext(cfg, opts.Profiles, client, metrics)
	if opts.MaxBody > 0 {
		srvCtx.MaxBody = opts.MaxBody
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("addr", listenAddr).
		Int("routes_loaded", len(srvCtx.Routes)).
		Strs("elevation_sources", cfg.Elevation.Source).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
