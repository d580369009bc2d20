package chart

import (
	"bytes"
	"fmt"
	"io"

	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// HTML writes a minified interactive chart with smoothed elevation on the left
// axis, smoothed grade on the right axis and waypoint markers.
func HTML(w io.Writer, p *profile.Profile, o Options) error {
	width, height := o.size()

	elevation := make([]opts.LineData, len(p.Samples))
	grade := make([]opts.LineData, len(p.Samples))
	for i, s := range p.Samples {
		km := round(s.CumulativeKm, 3)
		elevation[i] = opts.LineData{Value: []interface{}{km, valueOrGap(s.SmoothedElevation.V, s.SmoothedElevation.Valid, 1)}}
		grade[i] = opts.LineData{Value: []interface{}{km, valueOrGap(s.SmoothedGrade.V, s.SmoothedGrade.Valid, 2)}}
	}

	markers := make([]opts.MarkPointNameCoordItem, 0, len(p.Waypoints))
	for _, wp := range p.Waypoints {
		ele, ok := waypointElevation(p, wp)
		if !ok || wp.RouteIndex < 0 {
			continue
		}
		markers = append(markers, opts.MarkPointNameCoordItem{
			Name:       wp.Name,
			Coordinate: []interface{}{round(wp.CumulativeKm, 3), round(ele, 1)},
			Symbol:     "pin",
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.title(p),
			Width:     fmt.Sprintf("%dpx", width),
			Height:    fmt.Sprintf("%dpx", height),
		}),
		charts.WithTitleOpts(opts.Title{Title: o.title(p), Subtitle: subtitle(p)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Distance (km)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Elevation (m)", Scale: opts.Bool(true)}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Grade (%)", Type: "value"})

	line.AddSeries("Elevation (m)", elevation,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithMarkPointNameCoordItemOpts(markers...),
		charts.WithMarkPointStyleOpts(opts.MarkPointStyle{
			Label: &opts.Label{Show: opts.Bool(true), Formatter: "{b}"},
		}),
	)
	line.AddSeries("Grade (%)", grade,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), YAxisIndex: 1}),
	)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return minifyHTML(w, &buf)
}

func minifyHTML(w io.Writer, r io.Reader) error {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)

	if err := m.Minify("text/html", w, r); err != nil {
		return fmt.Errorf("minify chart: %w", err)
	}
	return nil
}

// valueOrGap returns v rounded to digits, or "-" which ECharts draws as a gap.
func valueOrGap(v float64, ok bool, digits int) interface{} {
	if !ok {
		return "-"
	}
	return round(v, digits)
}
