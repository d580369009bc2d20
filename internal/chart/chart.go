// Package chart renders elevation and grade profiles as interactive HTML or
// raster images.
package chart

import (
	"fmt"

	"github.com/woozymasta/elevprofile/internal/profile"
)

// Options configures a rendered chart.
type Options struct {
	Title  string
	Width  int
	Height int
}

// Default chart size in pixels.
const (
	DefaultWidth  = 1200
	DefaultHeight = 500
)

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func (o Options) title(p *profile.Profile) string {
	if o.Title != "" {
		return o.Title
	}
	if p.Name != "" {
		return p.Name
	}
	return "Elevation profile"
}

func subtitle(p *profile.Profile) string {
	st := p.Statistics
	return fmt.Sprintf("%.2f km, +%.0f m / -%.0f m, max grade %.1f%% (%s), avg %.1f%%",
		st.TotalDistanceKm, st.TotalAscentM, st.TotalDescentM, st.MaxGradePct, st.MaxGradeMode, st.AvgGradePct)
}

// waypointElevation is the waypoint's own resolved elevation, falling back
// to the smoothed route elevation at its projected sample.
func waypointElevation(p *profile.Profile, w profile.Waypoint) (float64, bool) {
	if w.Elevation.Valid {
		return w.Elevation.V, true
	}
	if w.RouteIndex >= 0 && w.RouteIndex < len(p.Samples) {
		if v := p.Samples[w.RouteIndex].SmoothedElevation; v.Valid {
			return v.V, true
		}
	}
	return 0, false
}
