package stencil

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Position is a box (x1, y1, x2, y2) in fractions of the canvas. On the
// command line it is written as four comma separated numbers.
type Position [4]float64

func (p *Position) UnmarshalFlag(value string) error {
	parts := strings.Split(value, ",")
	if len(parts) != len(p) {
		return fmt.Errorf("%w: want %d comma separated values, got %d", ErrBadSequence, len(p), len(parts))
	}
	var parsed Position
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadSequence, err)
		}
		parsed[i] = v
	}
	*p = parsed
	return nil
}

func (p Position) MarshalFlag() (string, error) {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ","), nil
}

// OverlayOptions are the constructor parameters of an Overlay. The flag names
// double as parameter names for the constructor parser.
type OverlayOptions struct {
	NoLegend     bool      `long:"no_legend" yaml:"no_legend" description:"Do not draw the legend"`
	AutoScaleX   bool      `long:"auto_scale_x" yaml:"auto_scale_x" description:"Use the x range that fits every object"`
	AutoScaleY   bool      `long:"auto_scale_y" yaml:"auto_scale_y" description:"Use the y range that fits every object"`
	AutoScaleMax bool      `long:"auto_scale_max" yaml:"auto_scale_max" description:"Give every object the largest maximum"`
	ColorScheme  string    `long:"color_scheme" yaml:"color_scheme" description:"Color scheme to color objects by name"`
	LegPos       Position  `long:"leg_pos" yaml:"leg_pos" description:"Legend box x1,y1,x2,y2 in canvas fractions"`
	LogX         bool      `long:"log_x" yaml:"log_x" description:"Logarithmic x axis"`
	LogY         bool      `long:"log_y" yaml:"log_y" description:"Logarithmic y axis"`
	AddFill      bool      `long:"add_fill" yaml:"add_fill" description:"Fill objects with their line color"`
	XTitle       string    `long:"x_title" yaml:"x_title" description:"X axis title"`
	YTitle       string    `long:"y_title" yaml:"y_title" description:"Y axis title"`
	Title        string    `long:"title" yaml:"title" description:"Canvas title"`
	XTitleOffset float64   `long:"x_title_offset" yaml:"x_title_offset" description:"X title distance from the axis"`
	YTitleOffset float64   `long:"y_title_offset" yaml:"y_title_offset" description:"Y title distance from the axis"`
	XTitleSize   float64   `long:"x_title_size" yaml:"x_title_size" description:"X title size as a fraction of the canvas height"`
	YTitleSize   float64   `long:"y_title_size" yaml:"y_title_size" description:"Y title size as a fraction of the canvas height"`
	LineStyle    LineStyle `long:"line_style" yaml:"line_style" description:"Line style for every object, -1 keeps their own"`
	Normalise    bool      `long:"normalise" yaml:"normalise" description:"Scale objects to unit area"`
	Width        float64   `long:"width" yaml:"width" description:"Canvas width in points"`
	Height       float64   `long:"height" yaml:"height" description:"Canvas height in points"`
}

// DefaultOverlayOptions: legend in the top right corner and axes scaled to
// show everything.
func DefaultOverlayOptions() OverlayOptions {
	return OverlayOptions{
		NoLegend:     false,
		AutoScaleX:   true,
		AutoScaleY:   true,
		AutoScaleMax: true,
		ColorScheme:  "",
		LegPos:       Position{0.7, 0.7, 0.9, 0.9},
		XTitle:       "xaxis",
		YTitle:       "yaxis",
		Title:        "title",
		XTitleOffset: 1.,
		YTitleOffset: 1.,
		XTitleSize:   0.04,
		YTitleSize:   0.04,
		LineStyle:    NoLineStyle,
		Width:        700,
		Height:       500,
	}
}

// Entry holds how an object is drawn and listed in the legend. LegOpt
// defaults to "L" and LegName to the object's name.
type Entry struct {
	DrawOpt string
	LegOpt  string
	LegName string
}

// basePadding is the title padding for an offset of 1.
const basePadding = vg.Length(5)

// Overlay draws a set of named objects onto one canvas with shared titles,
// ranges and legend. Objects are drawn, and listed in the legend, in the
// order their names were first added.
type Overlay struct {
	opts   OverlayOptions
	scheme Scheme

	objs     *Named[Element]
	drawOpts *Named[string]
	legend   *Named[legendEntry]

	// legend keys owned by each stack, so they can be replaced together
	stackLegend map[string][]string

	xRange  *[2]float64
	yRange  *[2]float64
	maximum *float64

	logger logrus.FieldLogger
}

func NewOverlay(opts OverlayOptions) (*Overlay, error) {
	o := &Overlay{
		opts:        opts,
		objs:        NewNamed[Element](),
		drawOpts:    NewNamed[string](),
		legend:      NewNamed[legendEntry](),
		stackLegend: make(map[string][]string),
		logger:      logrus.WithField("tag", "Overlay"),
	}

	if opts.ColorScheme != "" {
		scheme, err := ColorScheme(opts.ColorScheme)
		if err != nil {
			return nil, err
		}
		o.scheme = scheme
	}

	return o, nil
}

func (o *Overlay) Options() OverlayOptions {
	return o.opts
}

// Names returns the object names in draw order.
func (o *Overlay) Names() []string {
	return o.objs.Names()
}

func (o *Overlay) Get(name string) (Element, bool) {
	return o.objs.Get(name)
}

// DrawOpt returns the draw option stored for name.
func (o *Overlay) DrawOpt(name string) (string, bool) {
	return o.drawOpts.Get(name)
}

// LegendLabels returns the legend labels in legend order.
func (o *Overlay) LegendLabels() []string {
	labels := make([]string, 0, o.legend.Len())
	o.legend.Each(func(_ string, e legendEntry) {
		labels = append(labels, e.Label)
	})
	return labels
}

// AddObj adds obj under name. Adding a name again replaces the object, its
// draw option and its legend entry, and keeps its place in the order. This
// holds for the legend too when name was a stack.
func (o *Overlay) AddObj(name string, obj Element, entry Entry) {
	if entry.LegName == "" {
		entry.LegName = name
	}
	if entry.LegOpt == "" {
		entry.LegOpt = "L"
	}

	at := o.legendIndex(name)
	o.dropStackLegend(name)
	o.objs.Set(name, obj)
	o.drawOpts.Set(name, entry.DrawOpt)
	o.legend.Insert(at, name, legendEntry{Label: entry.LegName, Option: entry.LegOpt, Element: obj})

	o.logger.WithFields(logrus.Fields{
		"name":    name,
		"drawOpt": entry.DrawOpt,
	}).Debug("added object")
}

// AddStack builds stack and adds it under name. The stack has its own colors
// and puts one legend entry per stacked histogram.
func (o *Overlay) AddStack(name string, stack *HistStack) error {
	built, err := stack.Build()
	if err != nil {
		return err
	}

	at := o.legendIndex(name)
	o.dropStackLegend(name)
	o.legend.Delete(name)
	o.objs.Set(name, built)
	o.drawOpts.Set(name, "")

	keys := make([]string, 0, stack.Len())
	stack.each(func(histName string, h *Hist, legName, legOpt string) {
		key := name + "/" + histName
		o.legend.Insert(at+len(keys), key, legendEntry{Label: legName, Option: legOpt, Element: h})
		keys = append(keys, key)
	})
	o.stackLegend[name] = keys

	o.logger.WithFields(logrus.Fields{
		"name":  name,
		"hists": stack.Len(),
	}).Debug("added stack")
	return nil
}

// legendIndex is where the legend rows for name start. Names without rows go
// at the end.
func (o *Overlay) legendIndex(name string) int {
	if keys := o.stackLegend[name]; len(keys) > 0 {
		name = keys[0]
	}
	if i := o.legend.Index(name); i >= 0 {
		return i
	}
	return o.legend.Len()
}

func (o *Overlay) dropStackLegend(name string) {
	for _, key := range o.stackLegend[name] {
		o.legend.Delete(key)
	}
	delete(o.stackLegend, name)
}

// SetXRange fixes the x axis range, overriding the automatic range.
func (o *Overlay) SetXRange(low, high float64) {
	o.xRange = &[2]float64{low, high}
}

// SetYRange fixes the y axis range. It is ignored when the common maximum is
// set automatically.
func (o *Overlay) SetYRange(low, high float64) {
	if o.opts.AutoScaleMax {
		o.logger.Debug("auto_scale_max is set, ignoring y range")
		return
	}
	o.yRange = &[2]float64{low, high}
}

// SetMaxima fixes the y axis maximum.
func (o *Overlay) SetMaxima(max float64) {
	o.maximum = &max
}

// extents returns the union of the data ranges of every object.
func (o *Overlay) extents() (xmin, xmax, ymin, ymax float64, ok bool) {
	xmin, ymin = math.Inf(+1), math.Inf(+1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	o.objs.Each(func(_ string, obj Element) {
		x0, x1, y0, y1 := obj.DataRange()
		if math.IsNaN(x0) || math.IsNaN(x1) || math.IsNaN(y0) || math.IsNaN(y1) {
			return
		}
		xmin, xmax = math.Min(xmin, x0), math.Max(xmax, x1)
		ymin, ymax = math.Min(ymin, y0), math.Max(ymax, y1)
		ok = true
	})
	return xmin, xmax, ymin, ymax, ok
}

// Draw styles every object and draws them all onto a new canvas. The steps
// run in a fixed order: normalise, colors, fill, line style, plot in
// insertion order, ranges, titles, log scales, legend.
func (o *Overlay) Draw() (*Canvas, error) {
	if o.opts.Normalise {
		Normalise(o.objs)
	}
	if o.scheme != nil {
		ApplyColorScheme(o.objs, o.scheme)
	}
	if o.opts.AddFill {
		ApplyFill(o.objs)
	}
	if o.opts.LineStyle != NoLineStyle {
		ApplyLineStyle(o.objs, o.opts.LineStyle)
	}

	p := hplot.New()
	width, height := vg.Length(o.opts.Width), vg.Length(o.opts.Height)

	var drawErr error
	o.objs.Each(func(name string, obj Element) {
		if drawErr != nil {
			return
		}
		drawOpt, _ := o.drawOpts.Get(name)
		opt := ParseDrawOption(drawOpt)
		opt.LogY = o.opts.LogY
		ps, err := obj.Plotters(opt)
		if err != nil {
			drawErr = fmt.Errorf("could not draw %q: %w", name, err)
			return
		}
		p.Add(ps...)
	})
	if drawErr != nil {
		return nil, drawErr
	}

	o.applyRanges(p.Plot)
	o.applyTitles(p.Plot, height)

	if o.opts.LogX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	if o.opts.LogY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	clampForLog(&p.X, o.opts.LogX)
	clampForLog(&p.Y, o.opts.LogY)

	if !o.opts.NoLegend {
		o.legend.Each(func(_ string, e legendEntry) {
			p.Legend.Add(e.Label, legendThumb{option: e.Option, elem: e.Element})
		})
		placeLegend(&p.Legend, o.opts.LegPos, width, height)
	}

	o.logger.WithFields(logrus.Fields{
		"objects": o.objs.Len(),
		"xmin":    p.X.Min,
		"xmax":    p.X.Max,
		"ymin":    p.Y.Min,
		"ymax":    p.Y.Max,
	}).Debug("drew overlay")

	return &Canvas{Plot: p, Width: width, Height: height}, nil
}

func (o *Overlay) applyRanges(p *plot.Plot) {
	xmin, xmax, ymin, ymax, ok := o.extents()
	if ok {
		if o.opts.AutoScaleX {
			p.X.Min, p.X.Max = xmin, xmax
		}
		if o.opts.AutoScaleY && !o.opts.AutoScaleMax {
			p.Y.Min, p.Y.Max = ymin, ymax
		}
		if o.opts.AutoScaleMax {
			p.Y.Max = ymax
		}
	}

	if o.xRange != nil {
		p.X.Min, p.X.Max = o.xRange[0], o.xRange[1]
	}
	if o.yRange != nil {
		p.Y.Min, p.Y.Max = o.yRange[0], o.yRange[1]
	}
	if o.maximum != nil {
		p.Y.Max = *o.maximum
	}
}

func (o *Overlay) applyTitles(p *plot.Plot, height vg.Length) {
	p.Title.Text = o.opts.Title

	p.X.Label.Text = o.opts.XTitle
	p.X.Label.Padding = vg.Length(o.opts.XTitleOffset) * basePadding
	p.X.Label.TextStyle.Font.Size = vg.Length(o.opts.XTitleSize) * height

	p.Y.Label.Text = o.opts.YTitle
	p.Y.Label.Padding = vg.Length(o.opts.YTitleOffset) * basePadding
	p.Y.Label.TextStyle.Font.Size = vg.Length(o.opts.YTitleSize) * height
}

// clampForLog moves a non-positive axis minimum above zero, where a log
// scale can show it.
func clampForLog(a *plot.Axis, log bool) {
	if !log || a.Min > 0 {
		return
	}
	switch {
	case a.Max > 1:
		a.Min = 0.5
	case a.Max > 0:
		a.Min = a.Max * 1e-3
	default:
		a.Min, a.Max = 0.1, 1
	}
}
