package stencil

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/groot/root"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hbook/rootcnv"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var ErrNotPlottable = errors.New("object cannot be plotted")

// Element is anything that can be put on an Overlay.
type Element interface {
	// Plotters returns what draws the element with the given draw option, in
	// drawing order.
	Plotters(opt DrawOption) ([]plot.Plotter, error)
	plot.DataRanger
}

// The styling helpers look for these capabilities and skip elements that do
// not have them.

// LineColorer is an element that has a line.
type LineColorer interface {
	LineColor() color.Color
	SetLineColor(color.Color)
}

type FillColorer interface {
	SetFillColor(color.Color)
}

type LineStyler interface {
	SetLineStyle(LineStyle)
}

// Normaliser is an element with an integral that can be scaled.
type Normaliser interface {
	Integral() float64
	Scale(factor float64)
}

// LineStyle follows the ROOT numbering: 1 solid, 2 dashed, 3 dotted,
// 4 dash-dotted. Anything above that is a long dash.
type LineStyle int

const NoLineStyle LineStyle = -1

func (s LineStyle) Dashes() []vg.Length {
	switch {
	case s <= 1:
		return nil
	case s == 2:
		return []vg.Length{vg.Points(4), vg.Points(2)}
	case s == 3:
		return []vg.Length{vg.Points(1), vg.Points(2)}
	case s == 4:
		return []vg.Length{vg.Points(5), vg.Points(2), vg.Points(1), vg.Points(2)}
	default:
		return []vg.Length{vg.Points(8), vg.Points(3)}
	}
}

// DrawOption is a parsed ROOT-style draw option such as "HIST", "E" or "PL".
type DrawOption struct {
	Raw     string
	Hist    bool // histogram outline
	Errors  bool // y error bars
	Markers bool // a marker at every point
	Line    bool // a line through the points
	Fill    bool // fill the area below a graph

	// LogY is set by the overlay, not parsed.
	LogY bool
}

// ParseDrawOption reads a draw option string. It is case insensitive and
// ignores SAME. With nothing to draw selected the outline is drawn.
func ParseDrawOption(s string) DrawOption {
	opt := DrawOption{Raw: s}
	rest := strings.ToUpper(s)
	rest = strings.ReplaceAll(rest, "SAME", "")
	if strings.Contains(rest, "HIST") {
		opt.Hist = true
		rest = strings.ReplaceAll(rest, "HIST", "")
	}
	for _, r := range rest {
		switch r {
		case 'E':
			opt.Errors = true
		case 'P':
			opt.Markers = true
		case 'L', 'C':
			opt.Line = true
		case 'F':
			opt.Fill = true
		}
	}
	if !opt.Hist && !opt.Markers && !opt.Line {
		opt.Hist = true
	}
	return opt
}

var defaultGlyph = draw.GlyphStyle{
	Color:  color.Black,
	Radius: vg.Points(2),
	Shape:  draw.CircleGlyph{},
}

// Hist is a one dimensional histogram.
type Hist struct {
	H *hbook.H1D

	lineColor color.Color
	fillColor color.Color
	lineStyle LineStyle
}

func NewHist(h *hbook.H1D) *Hist {
	return &Hist{
		H:         h,
		lineColor: color.Black,
		lineStyle: NoLineStyle,
	}
}

func (h *Hist) LineColor() color.Color { return h.lineColor }
func (h *Hist) SetLineColor(c color.Color) { h.lineColor = c }
func (h *Hist) FillColor() color.Color { return h.fillColor }
func (h *Hist) SetFillColor(c color.Color) { h.fillColor = c }
func (h *Hist) SetLineStyle(s LineStyle) { h.lineStyle = s }
// Integral is the sum of weights in the visible range. Underflow and overflow
// are left out.
func (h *Hist) Integral() float64 { return h.H.Integral(h.H.XMin(), h.H.XMax()) }
func (h *Hist) Scale(factor float64) { h.H.Scale(factor) }

func (h *Hist) DataRange() (xmin, xmax, ymin, ymax float64) {
	return hplot.NewH1D(h.H).DataRange()
}

// plotter builds the hplot histogram with the current style applied.
func (h *Hist) plotter(opt DrawOption) *hplot.H1D {
	opts := []hplot.Options{hplot.WithLogY(opt.LogY)}
	if opt.Errors {
		opts = append(opts, hplot.WithYErrBars(true))
	}
	if opt.Markers {
		glyph := defaultGlyph
		glyph.Color = h.lineColor
		opts = append(opts, hplot.WithGlyphStyle(glyph))
	}

	hh := hplot.NewH1D(h.H, opts...)
	hh.LineStyle.Color = h.lineColor
	hh.LineStyle.Dashes = h.lineStyle.Dashes()
	if opt.Markers && !opt.Hist && !opt.Line {
		hh.LineStyle.Width = 0
	}
	hh.FillColor = h.fillColor
	return hh
}

func (h *Hist) Plotters(opt DrawOption) ([]plot.Plotter, error) {
	return []plot.Plotter{h.plotter(opt)}, nil
}

// Graph is a set of x/y points. Errors are drawn when the data carries them.
type Graph struct {
	Data *hbook.S2D

	lineColor color.Color
	fillColor color.Color
	lineStyle LineStyle
}

func NewGraph(s *hbook.S2D) *Graph {
	return &Graph{
		Data:      s,
		lineColor: color.Black,
		lineStyle: NoLineStyle,
	}
}

func (g *Graph) LineColor() color.Color { return g.lineColor }
func (g *Graph) SetLineColor(c color.Color) { g.lineColor = c }
func (g *Graph) SetFillColor(c color.Color) { g.fillColor = c }
func (g *Graph) SetLineStyle(s LineStyle) { g.lineStyle = s }

func (g *Graph) DataRange() (xmin, xmax, ymin, ymax float64) {
	return plotter.XYRange(g.Data)
}

func (g *Graph) Plotters(opt DrawOption) ([]plot.Plotter, error) {
	var ps []plot.Plotter

	// A graph has no outline, so HIST means a line.
	if opt.Line || opt.Hist || opt.Fill {
		line, err := plotter.NewLine(g.Data)
		if err != nil {
			return nil, fmt.Errorf("could not create line: %w", err)
		}
		line.LineStyle.Color = g.lineColor
		line.LineStyle.Dashes = g.lineStyle.Dashes()
		if opt.Fill {
			line.FillColor = g.fillColor
		}
		ps = append(ps, line)
	}

	if opt.Markers {
		sca, err := plotter.NewScatter(g.Data)
		if err != nil {
			return nil, fmt.Errorf("could not create markers: %w", err)
		}
		sca.GlyphStyle = defaultGlyph
		sca.GlyphStyle.Color = g.lineColor
		ps = append(ps, sca)
	}

	if opt.Errors {
		errs, err := plotter.NewYErrorBars(g.Data)
		if err != nil {
			return nil, fmt.Errorf("could not create error bars: %w", err)
		}
		errs.LineStyle.Color = g.lineColor
		ps = append(ps, errs)
	}

	return ps, nil
}

// Hist2D is a two dimensional histogram drawn as a heat map. It has no line,
// so color schemes pass over it.
type Hist2D struct {
	H       *hbook.H2D
	Palette palette.Palette
}

func NewHist2D(h *hbook.H2D) *Hist2D {
	return &Hist2D{H: h, Palette: palette.Heat(16, 1)}
}

func (h *Hist2D) DataRange() (xmin, xmax, ymin, ymax float64) {
	return hplot.NewH2D(h.H, h.Palette).DataRange()
}

func (h *Hist2D) Plotters(opt DrawOption) ([]plot.Plotter, error) {
	return []plot.Plotter{hplot.NewH2D(h.H, h.Palette)}, nil
}

// FromObject wraps an object grabbed from a data file so it can be put on an
// Overlay.
func FromObject(obj root.Object) (Element, error) {
	switch o := obj.(type) {
	case rhist.H1:
		return NewHist(rootcnv.H1D(o)), nil
	case rhist.H2:
		return NewHist2D(rootcnv.H2D(o)), nil
	case rhist.Graph:
		return NewGraph(rootcnv.S2D(o)), nil
	case *Series:
		return NewGraph(o.Data), nil
	case *H5Dataset:
		if o.Err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotPlottable, o.Path, o.Err)
		}
		s := hbook.NewS2D()
		for i, v := range o.Values {
			s.Fill(hbook.Point2D{X: float64(i), Y: v})
		}
		return NewGraph(s), nil
	case nil:
		return nil, fmt.Errorf("%w: nil object", ErrNotPlottable)
	default:
		return nil, fmt.Errorf("%w: class %s", ErrNotPlottable, obj.Class())
	}
}
