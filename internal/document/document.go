// Package document parses route documents (KML, GPX, GeoJSON) into an ordered
// route and a set of named points.
package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/rs/zerolog/log"
)

// ErrParse reports a document with no recognizable coordinate structure.
var ErrParse = errors.New("not a route document")

// Format identifies the document encoding.
type Format string

// Supported formats.
const (
	KML     Format = "kml"
	GPX     Format = "gpx"
	GeoJSON Format = "geojson"
)

// NamedPoint is a point of interest declared in the document.
type NamedPoint struct {
	Name           string `json:"name" yaml:"name"`
	geo.Coordinate `yaml:",inline"`
}

// Document is the parsed geometry of a route document.
type Document struct {
	Format        Format           `json:"format" yaml:"format"`
	Name          string           `json:"name,omitempty" yaml:"name,omitempty"`
	Route         []geo.Coordinate `json:"route" yaml:"route"`
	Points        []NamedPoint     `json:"points" yaml:"points"`
	SkippedTokens int              `json:"skipped_tokens" yaml:"skipped_tokens"`

	// DroppedAltitudes counts altitudes discarded as not being heights above
	// sea level (ground clamped geometry or an all-zero placeholder set).
	DroppedAltitudes int `json:"dropped_altitudes,omitempty" yaml:"dropped_altitudes,omitempty"`
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ParseReader parses a document from r.
func ParseReader(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse detects the document format and parses it.
// An empty route is not an error; only a document without any recognizable
// coordinate structure returns ErrParse.
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}

	var (
		doc *Document
		err error
	)

	if trimmed[0] == '{' {
		doc, err = parseGeoJSON(trimmed)
	} else {
		var root string
		root, err = rootElement(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch root {
		case "kml":
			doc, err = parseKML(trimmed)
		case "gpx":
			doc, err = parseGPX(trimmed)
		default:
			err = fmt.Errorf("%w: unsupported root element <%s>", ErrParse, root)
		}
	}
	if err != nil {
		return nil, err
	}

	if doc.Route == nil {
		doc.Route = []geo.Coordinate{}
	}
	if doc.Points == nil {
		doc.Points = []NamedPoint{}
	}

	doc.DroppedAltitudes += dropPlaceholderAltitudes(doc)
	if doc.DroppedAltitudes > 0 {
		log.Warn().
			Str("format", string(doc.Format)).
			Int("dropped", doc.DroppedAltitudes).
			Msg("Document altitudes are not elevations, ignoring them")
	}

	if doc.SkippedTokens > 0 {
		log.Warn().
			Str("format", string(doc.Format)).
			Int("skipped", doc.SkippedTokens).
			Msg("Malformed coordinate tokens skipped")
	}

	return doc, nil
}

// dropPlaceholderAltitudes removes the altitudes of doc when every one of
// them is exactly zero, the value exporters write for "no altitude".
func dropPlaceholderAltitudes(doc *Document) int {
	n := 0
	for _, c := range doc.Route {
		if c.Alt != nil {
			if *c.Alt != 0 {
				return 0
			}
			n++
		}
	}
	for _, p := range doc.Points {
		if p.Alt != nil {
			if *p.Alt != 0 {
				return 0
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}

	stripAltitudes(doc.Route)
	for i := range doc.Points {
		doc.Points[i].Alt = nil
	}
	return n
}

// stripAltitudes clears the altitudes of coords and returns how many were set.
func stripAltitudes(coords []geo.Coordinate) int {
	n := 0
	for i := range coords {
		if coords[i].Alt != nil {
			coords[i].Alt = nil
			n++
		}
	}
	return n
}

// rootElement returns the local name of the first XML element.
func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}
