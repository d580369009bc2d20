package profile

import (
	"math"

	"github.com/woozymasta/elevprofile/internal/geo"
)

// Distances returns the segment and cumulative distances (km) of route.
// segment[0] is exactly 0 and cumulative is the forward running sum, so the
// result depends on input order.
func Distances(route []geo.Coordinate, method geo.Method) (segment, cumulative []float64) {
	segment = make([]float64, len(route))
	cumulative = make([]float64, len(route))

	dist := method.DistanceFunc()
	for i := 1; i < len(route); i++ {
		d := dist(route[i-1], route[i])
		if d < 0 || math.IsNaN(d) {
			d = 0
		}
		segment[i] = d
		cumulative[i] = cumulative[i-1] + d
	}

	return segment, cumulative
}
