package profile

import (
	"github.com/woozymasta/elevprofile/internal/series"
)

// Grade returns the adjacent sample grade in percent.
//
// grade[0] is 0. For i > 0 the grade is undefined when either elevation is
// undefined or segmentKm[i] <= epsilonKm, so duplicate coordinates become
// gaps instead of infinities.
func Grade(elevation series.Series, segmentKm []float64, epsilonKm float64) series.Series {
	n := min(len(elevation), len(segmentKm))
	out := make(series.Series, len(elevation))
	if n == 0 {
		return out
	}

	out[0] = series.Of(0)
	for i := 1; i < n; i++ {
		if segmentKm[i] <= epsilonKm {
			continue
		}
		prev, cur := elevation[i-1], elevation[i]
		if !prev.Valid || !cur.Valid {
			continue
		}
		out[i] = series.Of((cur.V - prev.V) / (segmentKm[i] * 1000) * 100)
	}

	return out
}

// DegenerateSegments counts segments (excluding the first sample) at or below
// epsilonKm.
func DegenerateSegments(segmentKm []float64, epsilonKm float64) int {
	n := 0
	for i := 1; i < len(segmentKm); i++ {
		if segmentKm[i] <= epsilonKm {
			n++
		}
	}
	return n
}
