// Package plots renders the group boxplots and method scatter plots of a
// master table as PNG files.
package plots

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/gilchrisn/connectome-metrics/pkg/table"
)

// ErrNoData is returned when a column has no finite value to draw.
var ErrNoData = errors.New("plots: no valid data")

// DefaultDPI matches the resolution of the published figures.
const DefaultDPI = 300

var pointColor = color.NRGBA{A: 115}

// save renders p at dpi into a PNG file.
func save(p *plot.Plot, w, h vg.Length, dpi int, path string) error {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// distinct returns the sorted distinct non-empty values of s.
func distinct(s []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range s {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// legendSwatch is a square glyph used only as a legend thumbnail.
func legendSwatch(c color.Color) (*plotter.Scatter, error) {
	s, err := plotter.NewScatter(plotter.XYs{{}})
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Shape = draw.BoxGlyph{}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(4)
	return s, nil
}

// Boxplot draws col by group on the x axis with one box per method, raw
// points overlaid. Rows without a group are left out.
func Boxplot(t *table.Table, col, title, path string, dpi int) error {
	if !t.Has(col) {
		return fmt.Errorf("%w: %s", ErrNoData, col)
	}
	values, err := t.Float(col)
	if err != nil {
		return err
	}
	groups, err := t.String("group")
	if err != nil {
		return err
	}
	methods, err := t.String("method")
	if err != nil {
		return err
	}

	valid := false
	for _, v := range values {
		if finite(v) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s", ErrNoData, col)
	}

	groupNames := distinct(groups)
	methodNames := distinct(methods)
	if len(groupNames) == 0 || len(methodNames) == 0 {
		return fmt.Errorf("%w: %s", ErrNoData, col)
	}

	p := plot.New()
	p.Title.Text = title + " by Group & Method"
	p.Y.Label.Text = title
	p.Add(plotter.NewGrid())

	span := 0.8
	step := span / float64(len(methodNames))
	boxWidth := vg.Points(120 * step)

	for m, method := range methodNames {
		fill := plotutil.SoftColors[m%len(plotutil.SoftColors)]
		for g, group := range groupNames {
			var sample plotter.Values
			for i, v := range values {
				if groups[i] == group && methods[i] == method && finite(v) {
					sample = append(sample, v)
				}
			}
			if len(sample) == 0 {
				continue
			}
			loc := float64(g) - span/2 + step*(float64(m)+0.5)

			box, err := plotter.NewBoxPlot(boxWidth, loc, sample)
			if err != nil {
				return err
			}
			box.FillColor = fill
			box.GlyphStyle.Radius = 0
			p.Add(box)

			pts := make(plotter.XYs, len(sample))
			for k, v := range sample {
				jitter := (float64(k%5) - 2) * step / 12
				pts[k] = plotter.XY{X: loc + jitter, Y: v}
			}
			strip, err := plotter.NewScatter(pts)
			if err != nil {
				return err
			}
			strip.GlyphStyle.Shape = draw.CircleGlyph{}
			strip.GlyphStyle.Color = pointColor
			strip.GlyphStyle.Radius = vg.Points(1.5)
			p.Add(strip)
		}

		swatch, err := legendSwatch(fill)
		if err != nil {
			return err
		}
		p.Legend.Add(method, swatch)
	}

	p.NominalX(groupNames...)
	p.Legend.Top = true
	return save(p, 8*vg.Inch, 5*vg.Inch, dpi, path)
}

// Limits returns the square axis range of the paired values: their extent
// padded by 5%, or by 1 when the extent is not finite.
func Limits(x, y []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range [][]float64{x, y} {
		for _, v := range s {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	pad := 1.0
	if r := hi - lo; !math.IsInf(r, 0) && !math.IsNaN(r) {
		pad = 0.05 * r
	}
	return lo - pad, hi + pad
}

// Scatter plots each subject's col under methods[0] against methods[1],
// coloured by group, with the identity line.
func Scatter(t *table.Table, col, title, path string, methods [2]string, dpi int) error {
	if !t.Has(col) {
		return fmt.Errorf("%w: %s", ErrNoData, col)
	}
	piv, err := t.Pivot([]string{"subject", "group"}, "method", col)
	if err != nil {
		return err
	}
	if !piv.Has(methods[0]) || !piv.Has(methods[1]) {
		return fmt.Errorf("%w: %s lacks %s/%s pairs", ErrNoData, col, methods[0], methods[1])
	}
	piv = piv.DropNaN(methods[0], methods[1])
	if piv.Len() == 0 {
		return fmt.Errorf("%w: %s has no paired rows", ErrNoData, col)
	}

	x, _ := piv.Float(methods[0])
	y, _ := piv.Float(methods[1])
	groups, _ := piv.String("group")

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s (%s)", methods[0], methods[1], title)
	p.X.Label.Text = methods[0]
	p.Y.Label.Text = methods[1]
	p.Add(plotter.NewGrid())

	lo, hi := Limits(x, y)
	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	diag.LineStyle.Color = color.NRGBA{A: 153}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(diag)

	labels := distinct(groups)
	for i := range groups {
		if groups[i] == "" {
			labels = append(labels, "")
			break
		}
	}
	for k, g := range labels {
		var pts plotter.XYs
		for i := range x {
			if groups[i] == g && finite(x[i]) && finite(y[i]) {
				pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
			}
		}
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Color = plotutil.Color(k)
		s.GlyphStyle.Radius = vg.Points(3.5)
		p.Add(s)
		if g == "" {
			g = "unknown"
		}
		p.Legend.Add(g, s)
	}

	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	p.Legend.Top = true
	p.Legend.Left = true
	return save(p, 6*vg.Inch, 6*vg.Inch, dpi, path)
}
