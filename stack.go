package stencil

import (
	"errors"

	"github.com/sirupsen/logrus"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
)

var ErrEmptyStack = errors.New("stack has no histograms")

type stackEntry struct {
	hist    *Hist
	legName string
	legOpt  string
}

// HistStack stacks histograms on top of each other, first added at the
// bottom.
type HistStack struct {
	scheme    Scheme
	lineStyle LineStyle

	hists   *Named[Element]
	entries *Named[stackEntry]

	logger logrus.FieldLogger
}

// NewHistStack takes the color scheme and line style of opts. Without a
// color scheme every histogram gets a backup color.
func NewHistStack(opts OverlayOptions) (*HistStack, error) {
	s := &HistStack{
		scheme:    Scheme{},
		lineStyle: opts.LineStyle,
		hists:     NewNamed[Element](),
		entries:   NewNamed[stackEntry](),
		logger:    logrus.WithField("tag", "HistStack"),
	}
	if opts.ColorScheme != "" {
		scheme, err := ColorScheme(opts.ColorScheme)
		if err != nil {
			return nil, err
		}
		s.scheme = scheme
	}
	return s, nil
}

// AddHist adds h under name. legName defaults to name and legOpt to "F".
func (s *HistStack) AddHist(name string, h *Hist, legName, legOpt string) {
	if legName == "" {
		legName = name
	}
	if legOpt == "" {
		legOpt = "F"
	}
	s.hists.Set(name, h)
	s.entries.Set(name, stackEntry{hist: h, legName: legName, legOpt: legOpt})
}

func (s *HistStack) Len() int {
	return s.hists.Len()
}

func (s *HistStack) each(f func(name string, h *Hist, legName, legOpt string)) {
	s.entries.Each(func(name string, e stackEntry) {
		f(name, e.hist, e.legName, e.legOpt)
	})
}

// Build colors and fills the histograms and stacks them in the order they
// were added. Unlike Overlay.Draw, which leaves colors alone without a
// scheme, Build always colors: histograms missing from the scheme, or every
// histogram when there is no scheme, get backup colors, and each fill
// follows its line color.
func (s *HistStack) Build() (*Stack, error) {
	if s.hists.Len() == 0 {
		return nil, ErrEmptyStack
	}

	ApplyColorScheme(s.hists, s.scheme)
	ApplyFill(s.hists)
	if s.lineStyle != NoLineStyle {
		ApplyLineStyle(s.hists, s.lineStyle)
	}

	hists := make([]*Hist, 0, s.hists.Len())
	s.entries.Each(func(_ string, e stackEntry) {
		hists = append(hists, e.hist)
	})

	s.logger.WithField("hists", len(hists)).Debug("built stack")
	return &Stack{Hists: hists}, nil
}

// Stack is a built HistStack, ready to be put on an Overlay.
type Stack struct {
	Hists []*Hist
}

func (st *Stack) hstack(opt DrawOption) *hplot.HStack {
	hs := make([]*hplot.H1D, 0, len(st.Hists))
	for _, h := range st.Hists {
		hs = append(hs, h.plotter(opt))
	}
	stack := hplot.NewHStack(hs)
	stack.Stack = hplot.HStackOn
	stack.LogY = opt.LogY
	return stack
}

func (st *Stack) DataRange() (xmin, xmax, ymin, ymax float64) {
	return st.hstack(ParseDrawOption("")).DataRange()
}

func (st *Stack) Plotters(opt DrawOption) ([]plot.Plotter, error) {
	return []plot.Plotter{st.hstack(opt)}, nil
}
