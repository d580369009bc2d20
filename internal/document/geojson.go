package document

import (
	"encoding/json"
	"fmt"

	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

func parseGeoJSON(data []byte) (*Document, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var features []*geojson.Feature
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		features = fc.Features
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		features = []*geojson.Feature{f}
	default:
		return nil, fmt.Errorf("%w: unsupported geojson type %q", ErrParse, head.Type)
	}

	doc := &Document{Format: GeoJSON}
	recognized := false

	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		name := f.Properties.MustString("name", "")

		switch g := f.Geometry.(type) {
		case orb.LineString:
			recognized = true
			if doc.Route == nil {
				doc.Name = name
				doc.Route = doc.appendPoints(nil, g)
			}
		case orb.MultiLineString:
			recognized = true
			if doc.Route == nil {
				doc.Name = name
				var route []geo.Coordinate
				for _, ls := range g {
					route = doc.appendPoints(route, ls)
				}
				doc.Route = route
			}
		case orb.Point:
			recognized = true
			c := geo.Coordinate{Lat: g.Lat(), Lon: g.Lon()}
			if !c.Valid() {
				doc.SkippedTokens++
				log.Debug().Str("point", name).Msg("Skipping point with invalid coordinates")
				continue
			}
			doc.Points = append(doc.Points, NamedPoint{Name: name, Coordinate: c})
		}
	}

	if !recognized {
		return nil, fmt.Errorf("%w: geojson without LineString or Point features", ErrParse)
	}
	if doc.Route == nil {
		doc.Route = []geo.Coordinate{}
	}

	return doc, nil
}

func (d *Document) appendPoints(route []geo.Coordinate, ls orb.LineString) []geo.Coordinate {
	if route == nil {
		route = make([]geo.Coordinate, 0, len(ls))
	}
	for _, p := range ls {
		c := geo.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
		if !c.Valid() {
			d.SkippedTokens++
			continue
		}
		route = append(route, c)
	}
	return route
}
