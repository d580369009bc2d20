package profile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection exports the profile as GeoJSON: one LineString feature
// for the route carrying the statistics, followed by one Point feature per
// waypoint.
func (p *Profile) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if len(p.Samples) > 0 {
		line := make(orb.LineString, len(p.Samples))
		elevations := make([]any, len(p.Samples))
		distances := make([]float64, len(p.Samples))
		for i, s := range p.Samples {
			line[i] = orb.Point{s.Lon, s.Lat}
			distances[i] = s.CumulativeKm
			if s.SmoothedElevation.Valid {
				elevations[i] = s.SmoothedElevation.V
			}
		}

		f := geojson.NewFeature(line)
		f.Properties["kind"] = "route"
		if p.Name != "" {
			f.Properties["name"] = p.Name
		}
		f.Properties["total_distance_km"] = p.Statistics.TotalDistanceKm
		f.Properties["total_ascent_m"] = p.Statistics.TotalAscentM
		f.Properties["total_descent_m"] = p.Statistics.TotalDescentM
		f.Properties["max_grade_pct"] = p.Statistics.MaxGradePct
		f.Properties["avg_grade_pct"] = p.Statistics.AvgGradePct
		f.Properties["cumulative_distance_km"] = distances
		f.Properties["elevation_m"] = elevations
		fc.Append(f)
	}

	for i, w := range p.Waypoints {
		f := geojson.NewFeature(orb.Point{w.Lon, w.Lat})
		f.Properties["kind"] = "waypoint"
		f.Properties["index"] = i
		f.Properties["name"] = w.Name
		f.Properties["cumulative_distance_km"] = w.CumulativeKm
		if w.Elevation.Valid {
			f.Properties["elevation_m"] = w.Elevation.V
		}
		fc.Append(f)
	}

	return fc
}
