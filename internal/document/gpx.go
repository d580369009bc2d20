package document

import (
	"fmt"

	"github.com/woozymasta/elevprofile/internal/geo"

	"github.com/rs/zerolog/log"
	"github.com/tkrajina/gpxgo/gpx"
)

func parseGPX(data []byte) (*Document, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(g.Tracks) == 0 && len(g.Routes) == 0 && len(g.Waypoints) == 0 {
		return nil, fmt.Errorf("%w: gpx without tracks, routes or waypoints", ErrParse)
	}

	doc := &Document{Format: GPX, Name: g.Name}

	for _, track := range g.Tracks {
		if doc.Name == "" {
			doc.Name = track.Name
		}
		for _, segment := range track.Segments {
			for i := range segment.Points {
				doc.appendRoutePoint(&segment.Points[i])
			}
		}
	}

	// routes are only used when the file carries no recorded track
	if len(doc.Route) == 0 {
		for _, route := range g.Routes {
			if doc.Name == "" {
				doc.Name = route.Name
			}
			for i := range route.Points {
				doc.appendRoutePoint(&route.Points[i])
			}
		}
	}

	for i := range g.Waypoints {
		w := &g.Waypoints[i]
		c, ok := coordinateOf(w)
		if !ok {
			doc.SkippedTokens++
			log.Debug().Str("waypoint", w.Name).Msg("Skipping waypoint with invalid coordinates")
			continue
		}
		doc.Points = append(doc.Points, NamedPoint{Name: w.Name, Coordinate: c})
	}

	return doc, nil
}

func (d *Document) appendRoutePoint(p *gpx.GPXPoint) {
	c, ok := coordinateOf(p)
	if !ok {
		d.SkippedTokens++
		log.Debug().
			Float64("lat", p.Latitude).
			Float64("lon", p.Longitude).
			Msg("Skipping track point with invalid coordinates")
		return
	}
	d.Route = append(d.Route, c)
}

func coordinateOf(p *gpx.GPXPoint) (geo.Coordinate, bool) {
	c := geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
	if !c.Valid() {
		return c, false
	}
	if p.Elevation.NotNull() {
		c = c.WithAlt(p.Elevation.Value())
	}
	return c, true
}
