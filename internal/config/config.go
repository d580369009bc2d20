// Package config handles configuration loading and the construction of
// elevation sources and profile settings from it.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/elevprofile/internal/document"
	"github.com/woozymasta/elevprofile/internal/elevation"
	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/profile"

	"gopkg.in/yaml.v3"
)

// ErrConfig wraps configuration validation failures.
var ErrConfig = errors.New("invalid configuration")

// Elevation source names.
const (
	SourceHGT      = "hgt"
	SourceAPI      = "api"
	SourceDocument = "document"
	SourceNone     = "none"
)

// Config represents the root configuration file structure.
type Config struct {
	Elevation Elevation        `yaml:"elevation" json:"elevation"`
	Routes    []Route          `yaml:"routes" json:"routes"`
	Profile   profile.Settings `yaml:"profile" json:"profile"`
}

// Elevation configures where elevations come from.
type Elevation struct {
	HGTDir      string        `yaml:"hgt_dir,omitempty" json:"hgt_dir,omitempty"`
	HGTURL      string        `yaml:"hgt_url,omitempty" json:"hgt_url,omitempty"` // tile download template with {tile}
	APIURL      string        `yaml:"api_url,omitempty" json:"api_url,omitempty"`
	Dataset     string        `yaml:"dataset,omitempty" json:"dataset,omitempty"`
	Source      Sources       `yaml:"source" json:"source"`
	BatchSize   int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	Interpolate bool          `yaml:"interpolate,omitempty" json:"interpolate,omitempty"`
}

// Sources is an ordered list of elevation source names.
// In YAML it may be a single scalar or a sequence.
type Sources []string

// UnmarshalYAML accepts "hgt" as well as [document, hgt].
func (s *Sources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = Sources{node.Value}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

// Route represents a single route to profile.
type Route struct {
	Rename  Rename   `yaml:"rename,omitempty" json:"rename,omitempty"`
	Name    string   `yaml:"name" json:"name"`
	Source  string   `yaml:"source" json:"source"` // path or http(s) URL
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Chart   Chart    `yaml:"chart,omitempty" json:"chart,omitempty"`
}

// Rename maps waypoint indices to new names.
type Rename map[int]string

// Chart selects the chart artefacts written for a route.
type Chart struct {
	Image     string `yaml:"image,omitempty" json:"image,omitempty"` // webp, png or empty
	Width     int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height    int    `yaml:"height,omitempty" json:"height,omitempty"`
	Thumbnail int    `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	HTML      bool   `yaml:"html,omitempty" json:"html,omitempty"`
}

// Default returns a configuration using document altitudes only and the
// default profile settings.
func Default() *Config {
	return &Config{
		Elevation: Elevation{
			Source:      Sources{SourceDocument},
			Dataset:     "srtm90m",
			BatchSize:   elevation.DefaultBatchSize,
			Timeout:     15 * time.Second,
			Concurrency: profile.DefaultLookupConcurrency,
		},
		Profile: profile.DefaultSettings(),
	}
}

// Load reads and parses the YAML configuration file from the specified path.
// Values missing in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes a YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks sources, routes and profile settings.
func (c *Config) Validate() error {
	for _, src := range c.Elevation.Source {
		switch src {
		case SourceHGT:
			if c.Elevation.HGTDir == "" {
				return fmt.Errorf("%w: elevation source hgt requires hgt_dir", ErrConfig)
			}
		case SourceAPI:
			if c.Elevation.APIURL == "" {
				return fmt.Errorf("%w: elevation source api requires api_url", ErrConfig)
			}
		case SourceDocument, SourceNone:
		default:
			return fmt.Errorf("%w: unknown elevation source %q", ErrConfig, src)
		}
	}

	if c.Elevation.HGTURL != "" {
		if c.Elevation.HGTDir == "" {
			return fmt.Errorf("%w: hgt_url requires hgt_dir", ErrConfig)
		}
		if !strings.Contains(c.Elevation.HGTURL, "{tile}") {
			return fmt.Errorf("%w: hgt_url must contain {tile}", ErrConfig)
		}
	}

	seen := make(map[string]string)
	for i, r := range c.Routes {
		if r.Name == "" {
			return fmt.Errorf("%w: route #%d has no name", ErrConfig, i)
		}
		if r.Source == "" {
			return fmt.Errorf("%w: route %q has no source", ErrConfig, r.Name)
		}
		switch r.Chart.Image {
		case "", "webp", "png":
		default:
			return fmt.Errorf("%w: route %q: unsupported chart image %q", ErrConfig, r.Name, r.Chart.Image)
		}

		for _, key := range append([]string{r.Name}, r.Aliases...) {
			if other, ok := seen[key]; ok {
				return fmt.Errorf("%w: route name %q used by %q and %q", ErrConfig, key, other, r.Name)
			}
			seen[key] = r.Name
		}
	}

	if _, err := c.Settings(); err != nil {
		return err
	}

	return nil
}

// Settings returns the profile settings with the lookup concurrency applied.
func (c *Config) Settings() (profile.Settings, error) {
	s := c.Profile
	if c.Elevation.Concurrency > 0 {
		s.Concurrency = c.Elevation.Concurrency
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// FetchTiles reports whether missing HGT tiles should be downloaded before
// profiling.
func (e Elevation) FetchTiles() bool {
	if e.HGTURL == "" {
		return false
	}
	for _, src := range e.Source {
		if src == SourceHGT {
			return true
		}
	}
	return false
}

// Find returns the route named name or carrying it as alias.
func (c *Config) Find(name string) (Route, bool) {
	for _, r := range c.Routes {
		if r.Name == name {
			return r, true
		}
		for _, alias := range r.Aliases {
			if alias == name {
				return r, true
			}
		}
	}
	return Route{}, false
}

// Sampler builds the configured elevation source chain for doc.
// The document source serves the altitudes embedded in doc.
func (e Elevation) Sampler(client *http.Client, doc *document.Document) (elevation.Sampler, error) {
	chain := make(elevation.Chain, 0, len(e.Source))

	for _, src := range e.Source {
		switch src {
		case SourceHGT:
			chain = append(chain, elevation.NewHGT(e.HGTDir, e.Interpolate))
		case SourceAPI:
			if client == nil {
				client = &http.Client{Timeout: e.Timeout}
			}
			chain = append(chain, &elevation.API{
				Client:    client,
				BaseURL:   e.APIURL,
				Dataset:   e.Dataset,
				BatchSize: e.BatchSize,
			})
		case SourceDocument:
			if doc == nil {
				continue
			}
			points := make([]geo.Coordinate, len(doc.Points))
			for i, p := range doc.Points {
				points[i] = p.Coordinate
			}
			chain = append(chain, elevation.NewStatic(doc.Route, points))
		case SourceNone:
		default:
			return nil, fmt.Errorf("%w: unknown elevation source %q", ErrConfig, src)
		}
	}

	switch len(chain) {
	case 0:
		return elevation.None{}, nil
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}

// ParseRename parses "index:name" pairs as used on the command line and in
// query strings.
func ParseRename(pairs []string) (Rename, error) {
	out := make(Rename, len(pairs))
	for _, pair := range pairs {
		idx, name, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("%w: rename %q is not index:name", ErrConfig, pair)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: rename %q has an invalid index", ErrConfig, pair)
		}
		out[i] = name
	}
	return out, nil
}
