package profile

import (
	"github.com/woozymasta/elevprofile/internal/series"
)

// FillElevation interpolates undefined entries linearly over cumulative
// distance between the nearest defined neighbours. Leading and trailing gaps
// copy the nearest defined value. A series without defined entries is
// returned unchanged.
func FillElevation(elevation series.Series, cumulativeKm []float64) series.Series {
	out := make(series.Series, len(elevation))
	copy(out, elevation)

	prev := -1
	for i := range elevation {
		if !elevation[i].Valid {
			continue
		}

		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				out[j] = elevation[i]
			}
		case i-prev > 1:
			fillGap(out, cumulativeKm, prev, i)
		}
		prev = i
	}

	if prev < 0 {
		return out
	}
	for j := prev + 1; j < len(out); j++ {
		out[j] = elevation[prev]
	}

	return out
}

// fillGap interpolates out[lo+1:hi] from the defined ends lo and hi.
func fillGap(out series.Series, cumulativeKm []float64, lo, hi int) {
	a, b := out[lo].V, out[hi].V
	span := cumulativeKm[hi] - cumulativeKm[lo]

	for j := lo + 1; j < hi; j++ {
		// coincident anchors fall back to index spacing
		t := float64(j-lo) / float64(hi-lo)
		if span > 0 {
			t = (cumulativeKm[j] - cumulativeKm[lo]) / span
		}
		out[j] = series.Of(a + (b-a)*t)
	}
}
