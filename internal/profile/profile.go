// Package profile builds the distance indexed elevation and grade profile of a
// route: distances, elevation fill and smoothing, grade, waypoint placement
// and summary statistics.
package profile

import (
	"context"
	"fmt"

	"github.com/woozymasta/elevprofile/internal/document"
	"github.com/woozymasta/elevprofile/internal/elevation"
	"github.com/woozymasta/elevprofile/internal/geo"
	"github.com/woozymasta/elevprofile/internal/series"
	"github.com/woozymasta/elevprofile/internal/smooth"

	"github.com/rs/zerolog/log"
)

// Sample is one route point annotated along the profile.
type Sample struct {
	Elevation         series.Value `json:"elevation" yaml:"elevation"`
	FilledElevation   series.Value `json:"filled_elevation" yaml:"filled_elevation"`
	SmoothedElevation series.Value `json:"smoothed_elevation" yaml:"smoothed_elevation"`
	Grade             series.Value `json:"grade_pct" yaml:"grade_pct"`
	SmoothedGrade     series.Value `json:"smoothed_grade_pct" yaml:"smoothed_grade_pct"`
	Lat               float64      `json:"lat" yaml:"lat"`
	Lon               float64      `json:"lon" yaml:"lon"`
	SegmentKm         float64      `json:"segment_distance_km" yaml:"segment_distance_km"`
	CumulativeKm      float64      `json:"cumulative_distance_km" yaml:"cumulative_distance_km"`
	LowConfidence     bool         `json:"low_confidence,omitempty" yaml:"low_confidence,omitempty"`
}

// Coordinate returns the sample position.
func (s Sample) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: s.Lat, Lon: s.Lon}
}

// Waypoint is a named point of interest placed on the route.
type Waypoint struct {
	Name         string       `json:"name" yaml:"name"`
	Elevation    series.Value `json:"elevation" yaml:"elevation"`
	Lat          float64      `json:"lat" yaml:"lat"`
	Lon          float64      `json:"lon" yaml:"lon"`
	CumulativeKm float64      `json:"cumulative_distance_km" yaml:"cumulative_distance_km"`
	OffsetKm     float64      `json:"offset_km" yaml:"offset_km"`
	RouteIndex   int          `json:"route_index" yaml:"route_index"`
}

// Diagnostics counts the recoverable anomalies met while building.
type Diagnostics struct {
	SkippedTokens      int  `json:"skipped_tokens" yaml:"skipped_tokens"`
	MissingElevations  int  `json:"missing_elevations" yaml:"missing_elevations"`
	MissingWaypoints   int  `json:"missing_waypoint_elevations" yaml:"missing_waypoint_elevations"`
	DegenerateSegments int  `json:"degenerate_segments" yaml:"degenerate_segments"`
	EmptyRoute         bool `json:"empty_route,omitempty" yaml:"empty_route,omitempty"`
}

// Profile is the result of Build. It is not modified after Build returns.
type Profile struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Samples     []Sample    `json:"samples" yaml:"samples"`
	Waypoints   []Waypoint  `json:"waypoints" yaml:"waypoints"`
	Statistics  Statistics  `json:"statistics" yaml:"statistics"`
	Diagnostics Diagnostics `json:"diagnostics" yaml:"diagnostics"`
	Settings    Settings    `json:"settings" yaml:"settings"`
}

// Build computes the profile of doc.
//
// Route and waypoint elevations are resolved in a single pass through
// sampler (nil means no elevation source). Only invalid settings and context
// cancellation are errors; an empty route yields a profile with zero
// statistics and Diagnostics.EmptyRoute set.
func Build(ctx context.Context, doc *document.Document, sampler elevation.Sampler, settings Settings) (*Profile, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &document.Document{}
	}
	if sampler == nil {
		sampler = elevation.None{}
	}

	elevSmoother, err := smooth.New(settings.ElevationSmoothing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	gradeSmoother, err := smooth.New(settings.GradeSmoothing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	route := doc.Route
	coords := make([]geo.Coordinate, 0, len(route)+len(doc.Points))
	coords = append(coords, route...)
	for _, p := range doc.Points {
		coords = append(coords, p.Coordinate)
	}

	values, err := elevation.Resolve(ctx, sampler, coords, settings.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("resolve elevation: %w", err)
	}

	raw := series.Series(values[:len(route)])
	segment, cumulative := Distances(route, settings.Distance)
	filled := FillElevation(raw, cumulative)
	smoothedElev := elevSmoother.Smooth(filled)

	// Grade is the instantaneous grade of the route elevation. SmoothedGrade
	// chains elevation smoothing, the grade method and grade smoothing.
	grade := Grade(filled, segment, settings.EpsilonKm)

	var smoothedGrade series.Series
	switch settings.GradeMethod {
	case GradeMinSpan:
		spanGrade := smooth.MinSpan{SpanKm: settings.MinSpanKm}.Grade(smoothedElev, cumulative)
		smoothedGrade = maskUndefined(gradeSmoother.Smooth(spanGrade), spanGrade)
	default:
		smoothedGrade = smooth.FillNearest(gradeSmoother.Smooth(Grade(smoothedElev, segment, settings.EpsilonKm)))
	}

	p := &Profile{
		Name:      doc.Name,
		Samples:   make([]Sample, len(route)),
		Waypoints: make([]Waypoint, len(doc.Points)),
		Settings:  settings,
		Diagnostics: Diagnostics{
			SkippedTokens:      doc.SkippedTokens,
			DegenerateSegments: DegenerateSegments(segment, settings.EpsilonKm),
			EmptyRoute:         len(route) == 0,
		},
	}

	for i, c := range route {
		p.Samples[i] = Sample{
			Lat:               c.Lat,
			Lon:               c.Lon,
			Elevation:         raw[i],
			FilledElevation:   filled[i],
			SmoothedElevation: smoothedElev[i],
			LowConfidence:     !raw[i].Valid,
			SegmentKm:         segment[i],
			CumulativeKm:      cumulative[i],
			Grade:             grade[i],
			SmoothedGrade:     smoothedGrade[i],
		}
		if !raw[i].Valid {
			p.Diagnostics.MissingElevations++
		}
	}

	for i, np := range doc.Points {
		v := values[len(route)+i]
		p.Waypoints[i] = Waypoint{
			Name:      np.Name,
			Lat:       np.Lat,
			Lon:       np.Lon,
			Elevation: v,
		}
		if !v.Valid {
			p.Diagnostics.MissingWaypoints++
		}
	}
	p.Waypoints = Project(p.Samples, p.Waypoints)
	p.Statistics = Aggregate(p.Samples, settings.MaxGrade)

	logBuild(p)

	return p, nil
}

// maskUndefined keeps smoothed entries only where raw is defined.
func maskUndefined(smoothed, raw series.Series) series.Series {
	for i := range smoothed {
		if i >= len(raw) || !raw[i].Valid {
			smoothed[i] = series.Undefined
		}
	}
	return smoothed
}

func logBuild(p *Profile) {
	d := p.Diagnostics
	if d.EmptyRoute {
		log.Warn().
			Str("route", p.Name).
			Int("waypoints", len(p.Waypoints)).
			Msg("Route has no samples, profile is empty")
		return
	}

	if d.MissingElevations > 0 || d.MissingWaypoints > 0 {
		log.Warn().
			Str("route", p.Name).
			Int("missing", d.MissingElevations).
			Int("missing_waypoints", d.MissingWaypoints).
			Int("samples", len(p.Samples)).
			Msg("Some elevations could not be resolved")
	}

	if d.DegenerateSegments > 0 {
		log.Debug().
			Str("route", p.Name).
			Int("segments", d.DegenerateSegments).
			Msg("Zero length segments left grade gaps")
	}

	log.Debug().
		Str("route", p.Name).
		Int("samples", len(p.Samples)).
		Int("waypoints", len(p.Waypoints)).
		Float64("distance_km", p.Statistics.TotalDistanceKm).
		Float64("ascent_m", p.Statistics.TotalAscentM).
		Msg("Profile built")
}

// Rename returns a copy of waypoints with names replaced by index.
func Rename(waypoints []Waypoint, names map[int]string) ([]Waypoint, error) {
	out := make([]Waypoint, len(waypoints))
	copy(out, waypoints)

	for i, name := range names {
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("%w: %d (have %d)", ErrWaypointIndex, i, len(out))
		}
		out[i].Name = name
	}

	return out, nil
}
