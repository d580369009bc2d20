package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/woozymasta/elevprofile/internal/profile"

	"github.com/chai2010/webp"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Image formats accepted by Encode.
const (
	FormatWebP = "webp"
	FormatPNG  = "png"
)

var (
	elevationColor = color.RGBA{R: 0x2b, G: 0x6c, B: 0xb0, A: 0xff}
	gradeColor     = color.RGBA{R: 0xd9, G: 0x48, B: 0x1b, A: 0xff}
)

// Image renders the profile as two aligned panels: smoothed elevation with
// waypoint labels on top and smoothed grade below.
func Image(p *profile.Profile, o Options) (image.Image, error) {
	width, height := o.size()

	top := plot.New()
	top.Title.Text = o.title(p)
	top.Y.Label.Text = "Elevation (m)"
	top.Add(plotter.NewGrid())

	bottom := plot.New()
	bottom.X.Label.Text = "Distance (km)"
	bottom.Y.Label.Text = "Grade (%)"
	bottom.Add(plotter.NewGrid())

	var elevation, grade plotter.XYs
	for _, s := range p.Samples {
		if s.SmoothedElevation.Valid {
			elevation = append(elevation, plotter.XY{X: s.CumulativeKm, Y: s.SmoothedElevation.V})
		}
		if s.SmoothedGrade.Valid {
			grade = append(grade, plotter.XY{X: s.CumulativeKm, Y: s.SmoothedGrade.V})
		}
	}

	if err := addLine(top, elevation, elevationColor); err != nil {
		return nil, err
	}
	if err := addLine(bottom, grade, gradeColor); err != nil {
		return nil, err
	}
	if err := addWaypoints(top, p); err != nil {
		return nil, err
	}

	// both panels share the distance range
	if n := len(p.Samples); n > 0 {
		maxKm := p.Samples[n-1].CumulativeKm
		top.X.Min, top.X.Max = 0, maxKm
		bottom.X.Min, bottom.X.Max = 0, maxKm
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(vg.Length(width), vg.Length(height)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(color.White),
	)
	dc := draw.New(canvas)

	tiles := draw.Tiles{Rows: 2, Cols: 1, PadTop: 4, PadBottom: 4, PadLeft: 4, PadRight: 8, PadY: 6}
	panels := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(panels[0][0])
	bottom.Draw(panels[1][0])

	return canvas.Image(), nil
}

func addLine(p *plot.Plot, xys plotter.XYs, c color.Color) error {
	if len(xys) == 0 {
		return nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("chart line: %w", err)
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	p.Add(line)
	return nil
}

func addWaypoints(p *plot.Plot, prof *profile.Profile) error {
	var xys plotter.XYs
	var names []string
	for _, w := range prof.Waypoints {
		ele, ok := waypointElevation(prof, w)
		if !ok || w.RouteIndex < 0 {
			continue
		}
		xys = append(xys, plotter.XY{X: w.CumulativeKm, Y: ele})
		names = append(names, w.Name)
	}
	if len(xys) == 0 {
		return nil
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("chart waypoints: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.TriangleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: names})
	if err != nil {
		return fmt.Errorf("chart labels: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].YAlign = draw.YBottom
		labels.TextStyle[i].XAlign = draw.XCenter
	}
	labels.Offset = vg.Point{Y: vg.Points(4)}

	p.Add(scatter, labels)
	return nil
}

// Encode writes img as lossless WebP or PNG.
func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FormatWebP:
		if err := webp.Encode(w, img, &webp.Options{Lossless: true}); err != nil {
			return fmt.Errorf("encode webp: %w", err)
		}
		return nil
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

func round(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
