package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// kmlNode is a namespace agnostic view of a KML element tree.
type kmlNode struct {
	XMLName  xml.Name
	Children []kmlNode `xml:",any"`
	Text     string    `xml:",chardata"`
}

func (n *kmlNode) child(local string) *kmlNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// find returns the first descendant (document order) matching local.
func (n *kmlNode) find(local string) *kmlNode {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}

// findAll appends every descendant matching local, in document order.
func (n *kmlNode) findAll(local string, out []*kmlNode) []*kmlNode {
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local {
			out = append(out, c)
		}
		out = c.findAll(local, out)
	}
	return out
}

func parseKML(data []byte) (*Document, error) {
	var root kmlNode
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if root.find("coordinates") == nil {
		return nil, fmt.Errorf("%w: kml without coordinates", ErrParse)
	}

	doc := &Document{Format: KML}
	if d := root.find("Document"); d != nil {
		if name := d.child("name"); name != nil {
			doc.Name = strings.TrimSpace(name.Text)
		}
	}

	lines := root.findAll("LineString", nil)
	for _, ls := range lines {
		coords := ls.child("coordinates")
		if coords == nil {
			continue
		}
		doc.Route, doc.SkippedTokens = ParseCoordinates(coords.Text)
		if groundClamped(ls) {
			doc.DroppedAltitudes += stripAltitudes(doc.Route)
		}
		break
	}
	if len(lines) > 1 {
		log.Debug().Int("line_strings", len(lines)).Msg("Using the first LineString as route")
	}

	for _, pm := range root.findAll("Placemark", nil) {
		name := pm.child("name")
		point := pm.find("Point")
		if name == nil || point == nil {
			continue
		}
		coords := point.child("coordinates")
		if coords == nil {
			continue
		}

		fields := strings.Fields(coords.Text)
		if len(fields) == 0 {
			doc.SkippedTokens++
			continue
		}
		c, ok := ParseToken(fields[0])
		if !ok {
			doc.SkippedTokens++
			log.Debug().
				Str("placemark", strings.TrimSpace(name.Text)).
				Str("token", fields[0]).
				Msg("Skipping placemark with malformed coordinates")
			continue
		}

		if groundClamped(point) && c.Alt != nil {
			c.Alt = nil
			doc.DroppedAltitudes++
		}

		doc.Points = append(doc.Points, NamedPoint{Name: strings.TrimSpace(name.Text), Coordinate: c})
	}

	return doc, nil
}

// groundClamped reports whether the geometry's altitudes are relative to the
// ground rather than heights above sea level.
func groundClamped(geometry *kmlNode) bool {
	mode := geometry.child("altitudeMode")
	if mode == nil {
		return false
	}
	switch strings.TrimSpace(mode.Text) {
	case "clampToGround", "clampToSeaFloor", "relativeToGround", "relativeToSeaFloor":
		return true
	}
	return false
}
