package smooth

import (
	"github.com/woozymasta/elevprofile/internal/series"
)

// MinSpan derives grade from two anchor samples around each index instead of
// adjacent samples, which makes it robust to irregular sampling density.
//
// The back anchor of i is the nearest j < i with cum[i]-cum[j] >= SpanKm and
// the forward anchor the nearest k > i with cum[k]-cum[i] >= SpanKm. Indices
// near either route end that lack an anchor, or whose anchors have no
// elevation, are undefined.
type MinSpan struct {
	SpanKm float64
}

// Grade returns the grade in percent for every index of elevation (meters)
// indexed by cumulative distance (kilometers).
func (m MinSpan) Grade(elevation series.Series, cumulativeKm []float64) series.Series {
	n := min(len(elevation), len(cumulativeKm))
	out := make(series.Series, len(elevation))

	back := -1
	fwd := 0
	for i := 0; i < n; i++ {
		for back+1 < i && cumulativeKm[i]-cumulativeKm[back+1] >= m.SpanKm {
			back++
		}

		fwd = max(fwd, i+1)
		for fwd < n && cumulativeKm[fwd]-cumulativeKm[i] < m.SpanKm {
			fwd++
		}

		if back < 0 || fwd >= n {
			continue
		}

		lo, hi := elevation[back], elevation[fwd]
		run := (cumulativeKm[fwd] - cumulativeKm[back]) * 1000
		if !lo.Valid || !hi.Valid || run <= 0 {
			continue
		}

		out[i] = series.Of((hi.V - lo.V) / run * 100)
	}

	return out
}
