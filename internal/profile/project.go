package profile

import (
	"github.com/woozymasta/elevprofile/internal/geo"
)

// Project places every waypoint on the route sample nearest by planar squared
// degree distance, ties going to the lowest index. It returns a new slice.
// With an empty route each waypoint keeps CumulativeKm 0 and RouteIndex -1.
func Project(samples []Sample, waypoints []Waypoint) []Waypoint {
	out := make([]Waypoint, len(waypoints))
	copy(out, waypoints)

	for w := range out {
		wp := geo.Coordinate{Lat: out[w].Lat, Lon: out[w].Lon}

		best, bestDist := -1, 0.0
		for i := range samples {
			d := geo.PlanarSquared(wp, samples[i].Coordinate())
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}

		out[w].RouteIndex = best
		if best < 0 {
			out[w].CumulativeKm = 0
			out[w].OffsetKm = 0
			continue
		}
		out[w].CumulativeKm = samples[best].CumulativeKm
		out[w].OffsetKm = geo.Distance(wp, samples[best].Coordinate())
	}

	return out
}
