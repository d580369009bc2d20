package server

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/woozymasta/elevprofile/internal/config"
	"github.com/woozymasta/elevprofile/internal/processor"

	"github.com/rs/zerolog/log"
)

// DefaultMaxBody bounds uploaded route documents.
const DefaultMaxBody = 16 << 20

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config        *config.Config
	Client        *http.Client
	Metrics       *Metrics
	RouteResolver map[string]string
	OutDir        string
	Routes        []config.Route
	MaxBody       int64
}

// NewServerContext initializes the context and indexes the routes whose
// profiles were already written to outDir.
func NewServerContext(cfg *config.Config, outDir string, client *http.Client, m *Metrics) *ServerContext {
	log.Info().Int("config_routes_count", len(cfg.Routes)).Msg("Initializing server context")

	resolver := make(map[string]string)
	routes := make([]config.Route, 0, len(cfg.Routes))

	for _, r := range cfg.Routes {
		path := filepath.Join(outDir, r.Name, processor.ProfileFile)
		if _, err := os.Stat(path); err != nil {
			log.Warn().
				Str("route", r.Name).
				Str("path", path).
				Msg("Skipping route: profile not found, run the profiler first")
			continue
		}

		// Setup Resolver
		resolver[r.Name] = r.Name
		for _, alias := range r.Aliases {
			resolver[alias] = r.Name
		}

		log.Debug().
			Str("route", r.Name).
			Strs("aliases", r.Aliases).
			Msg("Route added to context")

		routes = append(routes, r)
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Name < routes[j].Name
	})

	if client == nil {
		client = &http.Client{Timeout: cfg.Elevation.Timeout}
	}

	log.Info().
		Int("valid_routes_count", len(routes)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:        cfg,
		Client:        client,
		Metrics:       m,
		RouteResolver: resolver,
		OutDir:        outDir,
		Routes:        routes,
		MaxBody:       DefaultMaxBody,
	}
}

// Handler returns the routed API wrapped in request logging.
func (s *ServerContext) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/routes", s.HandleRoutesList)
	mux.HandleFunc("GET /api/settings", s.HandleSettings)
	mux.HandleFunc("POST /api/profile", s.HandleProfile)
	mux.HandleFunc("POST /api/profile/chart", s.HandleProfileChart)
	mux.HandleFunc("GET /profiles/{route}/{file}", s.HandleProfileFile)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	return RequestLogger(mux, s.Metrics)
}
