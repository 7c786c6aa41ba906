package stencil

import (
	"image/color"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// styled exposes what the legend needs to draw a thumbnail that matches the
// element.
type styled interface {
	style() (line, fill color.Color, dashes []vg.Length)
}

func (h *Hist) style() (color.Color, color.Color, []vg.Length) {
	return h.lineColor, h.fillColor, h.lineStyle.Dashes()
}

func (g *Graph) style() (color.Color, color.Color, []vg.Length) {
	return g.lineColor, g.fillColor, g.lineStyle.Dashes()
}

type legendEntry struct {
	Label   string
	Option  string
	Element Element
}

// legendThumb draws a legend thumbnail from ROOT-style legend option letters:
// F a filled box, L a line, P a marker.
type legendThumb struct {
	option string
	elem   Element
}

var _ plot.Thumbnailer = legendThumb{}

func (t legendThumb) Thumbnail(c *draw.Canvas) {
	line, fill := color.Color(color.Black), color.Color(nil)
	var dashes []vg.Length
	if s, ok := t.elem.(styled); ok {
		line, fill, dashes = s.style()
	}
	lineStyle := draw.LineStyle{Color: line, Width: vg.Points(1), Dashes: dashes}

	opt := strings.ToUpper(t.option)
	if strings.ContainsRune(opt, 'F') {
		if fill == nil {
			fill = line
		}
		pts := []vg.Point{
			{X: c.Min.X, Y: c.Min.Y},
			{X: c.Min.X, Y: c.Max.Y},
			{X: c.Max.X, Y: c.Max.Y},
			{X: c.Max.X, Y: c.Min.Y},
		}
		c.FillPolygon(fill, c.ClipPolygonY(pts))
		pts = append(pts, pts[0])
		c.StrokeLines(lineStyle, c.ClipLinesY(pts)...)
	}
	if strings.ContainsRune(opt, 'L') {
		y := c.Center().Y
		c.StrokeLine2(lineStyle, c.Min.X, y, c.Max.X, y)
	}
	if strings.ContainsRune(opt, 'P') {
		glyph := defaultGlyph
		glyph.Color = line
		c.DrawGlyph(glyph, c.Center())
	}
}

// placeLegend puts the legend in the corner nearest to the centre of the
// (x1, y1, x2, y2) box, given in fractions of the canvas, and shifts it so
// its outer edges sit on the box.
func placeLegend(l *plot.Legend, pos Position, w, h vg.Length) {
	x1, y1, x2, y2 := pos[0], pos[1], pos[2], pos[3]
	l.Left = (x1+x2)/2 < 0.5
	l.Top = (y1+y2)/2 >= 0.5

	if l.Left {
		l.XOffs = vg.Length(x1) * w
	} else {
		l.XOffs = -vg.Length(1-x2) * w
	}
	if l.Top {
		l.YOffs = -vg.Length(1-y2) * h
	} else {
		l.YOffs = vg.Length(y1) * h
	}
}
