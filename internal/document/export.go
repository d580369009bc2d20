package document

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection converts the document to GeoJSON. The route becomes a
// LineString feature named after the document, with the embedded altitudes
// (null where absent) in its "elevation_m" property. Named points follow as
// Point features.
func (d *Document) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(d.Route) > 0 {
		line := make(orb.LineString, len(d.Route))
		alts := make([]any, len(d.Route))
		for i, c := range d.Route {
			line[i] = orb.Point{c.Lon, c.Lat}
			if c.Alt != nil {
				alts[i] = *c.Alt
			}
		}

		f := geojson.NewFeature(line)
		if d.Name != "" {
			f.Properties["name"] = d.Name
		}
		f.Properties["elevation_m"] = alts
		fc.Append(f)
	}

	for _, p := range d.Points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["name"] = p.Name
		if p.Alt != nil {
			f.Properties["elevation_m"] = *p.Alt
		}
		fc.Append(f)
	}

	return fc
}
